package platform

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindRoot(t *testing.T) {
	base := t.TempDir()

	// Each project is recognised by a different marker.
	projects := map[string]string{
		"system":   ".pedigree",
		"yaml":     "pedigree.yaml",
		"toml":     "pedigree.toml",
		"document": "pedigree.json",
	}
	for dir, marker := range projects {
		nested := filepath.Join(base, dir, "a", "b")
		if err := os.MkdirAll(nested, 0755); err != nil {
			t.Fatal(err)
		}
		markerPath := filepath.Join(base, dir, marker)
		var err error
		if marker == ".pedigree" {
			err = os.Mkdir(markerPath, 0755)
		} else {
			err = os.WriteFile(markerPath, nil, 0644)
		}
		if err != nil {
			t.Fatal(err)
		}
	}
	empty := filepath.Join(base, "empty")
	if err := os.Mkdir(empty, 0755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		start   string
		want    string
		wantErr bool
	}{
		{"system dir at root", filepath.Join(base, "system"), filepath.Join(base, "system"), false},
		{"system dir from nested", filepath.Join(base, "system", "a", "b"), filepath.Join(base, "system"), false},
		{"yaml config", filepath.Join(base, "yaml", "a"), filepath.Join(base, "yaml"), false},
		{"toml config", filepath.Join(base, "toml", "a", "b"), filepath.Join(base, "toml"), false},
		{"bare document", filepath.Join(base, "document", "a"), filepath.Join(base, "document"), false},
		{"no marker", empty, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindRoot(tt.start)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FindRoot(%s) error = %v, wantErr %v", tt.start, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if filepath.Clean(got) != filepath.Clean(tt.want) {
				t.Errorf("FindRoot(%s) = %s, want %s", tt.start, got, tt.want)
			}
		})
	}
}
