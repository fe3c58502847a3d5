package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestCalendarPNGRequiresTargets(t *testing.T) {
	ctx := context.Background()
	if err := CalendarPNG(ctx, Options{OutputPath: "x.png"}); !errors.Is(err, ErrNoURL) {
		t.Errorf("missing URL: err = %v", err)
	}
	if err := CalendarPNG(ctx, Options{URL: "http://127.0.0.1/calendar"}); !errors.Is(err, ErrNoOutput) {
		t.Errorf("missing output: err = %v", err)
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{URL: "http://x", OutputPath: "y"}
	if err := o.normalize(); err != nil {
		t.Fatal(err)
	}
	if o.Width != DefaultWidth || o.Height != DefaultHeight || o.Timeout != DefaultTimeout {
		t.Errorf("defaults = %+v", o)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "preview.png")
	if err := writeFileAtomic(path, []byte("png")); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil || string(got) != "png" {
		t.Fatalf("read back %q, %v", got, err)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("leftover temp files: %d entries", len(entries))
	}
}
