package source

import (
	"strings"

	"admcal/internal/model"
)

// categoryKeywords maps title keywords to categories. Order matters: a
// "bursary application" is a bursary, not an application.
var categoryKeywords = []struct {
	category model.Category
	words    []string
}{
	{model.CategoryBursary, []string{"bursary", "bursaries", "nsfas", "scholarship", "funding", "financial aid"}},
	{model.CategoryOrientation, []string{"orientation", "welcome", "open day", "induction"}},
	{model.CategoryRegistration, []string{"registration", "register", "residence", "enrol"}},
	{model.CategoryApplication, []string{"application", "apply", "admission", "deadline"}},
}

// DeriveCategory guesses an event's category from free text, defaulting to
// application.
func DeriveCategory(text string) model.Category {
	t := strings.ToLower(text)
	for _, ck := range categoryKeywords {
		for _, w := range ck.words {
			if strings.Contains(t, w) {
				return ck.category
			}
		}
	}
	return model.CategoryApplication
}
