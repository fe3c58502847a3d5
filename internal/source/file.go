package source

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"admcal/internal/calendar"
)

// File reads events from a local YAML or JSON file: either a top-level list
// of records or a mapping with an "events" list. Records accept the same
// field names as the backend.
type File struct {
	name string
	path string
}

func NewFile(name, path string) *File {
	if name == "" {
		name = path
	}
	return &File{name: name, path: path}
}

func (f *File) Name() string { return f.name }

// Fetch implements calendar.Source.
func (f *File) Fetch(_ context.Context) (calendar.Batch, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return calendar.Batch{}, err
	}

	var list []record
	if err := yaml.Unmarshal(data, &list); err != nil {
		var doc struct {
			Events []record `yaml:"events"`
		}
		if err2 := yaml.Unmarshal(data, &doc); err2 != nil {
			return calendar.Batch{}, fmt.Errorf("parse %s: %w", f.path, err)
		}
		list = doc.Events
	}
	return calendar.Batch{Events: recordsToEvents(list)}, nil
}
