package fs

import (
	"fmt"
	"os"
	"path/filepath"
)

// TempFilePrefix names staged files before they are renamed into place.
const TempFilePrefix = ".pedigree-tmp-"

const filePerm = 0644

// file is one target of a write.
type file struct {
	path string
	data []byte
}

// writeAtomic stages every file next to its target, then renames them in
// order. Nothing is renamed unless all files were staged, so a failed image
// leaves the previous document in place. Callers list the document last:
// a reader that sees the new document also sees its image.
func writeAtomic(files ...file) error {
	staged := make([]string, 0, len(files))
	defer func() {
		// Renamed files are gone already; this only drops leftovers.
		for _, tmp := range staged {
			_ = os.Remove(tmp)
		}
	}()

	for _, f := range files {
		tmp, err := stage(f)
		if err != nil {
			return err
		}
		staged = append(staged, tmp)
	}

	for i, f := range files {
		if err := os.Rename(staged[i], f.path); err != nil {
			return fmt.Errorf("failed to move %s into place: %w", filepath.Base(f.path), err)
		}
	}
	return nil
}

// stage writes f.data to a synced temp file in the target directory.
func stage(f file) (string, error) {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, TempFilePrefix+"*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	name := tmp.Name()

	_, err = tmp.Write(f.data)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(name, filePerm)
	}
	if err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("failed to stage %s: %w", filepath.Base(f.path), err)
	}
	return name, nil
}
