package proband

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/pedigree/pkg/core"
)

// StaticSource always returns the same record.
type StaticSource core.ProbandData

// FetchSubjectMetadata implements core.SubjectSource.
func (s StaticSource) FetchSubjectMetadata(ctx context.Context) (core.ProbandData, error) {
	return core.ProbandData(s), nil
}

// FileSource reads the patient record from a YAML or JSON file.
type FileSource struct {
	Path string
}

// FetchSubjectMetadata implements core.SubjectSource.
func (s FileSource) FetchSubjectMetadata(ctx context.Context) (core.ProbandData, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return core.ProbandData{}, err
	}

	var p core.ProbandData
	switch strings.ToLower(filepath.Ext(s.Path)) {
	case ".json":
		err = json.Unmarshal(data, &p)
	default:
		err = yaml.Unmarshal(data, &p)
	}
	if err != nil {
		return core.ProbandData{}, fmt.Errorf("failed to parse patient record %s: %w", s.Path, err)
	}
	return p, nil
}

var (
	_ core.SubjectSource = StaticSource{}
	_ core.SubjectSource = FileSource{}
)
