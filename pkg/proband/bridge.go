// Package proband fetches the subject's identifying metadata from an external
// record and reconciles it with the graph.
package proband

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/pedigree/pkg/core"
)

// Bridge connects a SubjectSource to a GraphModel.
type Bridge struct {
	Source core.SubjectSource
	Logger *slog.Logger
}

// NewBridge creates a Bridge. A nil logger disables logging.
func NewBridge(source core.SubjectSource, logger *slog.Logger) *Bridge {
	return &Bridge{Source: source, Logger: logger}
}

// Fetch returns normalized subject metadata.
func (b *Bridge) Fetch(ctx context.Context) (core.ProbandData, error) {
	if b.Source == nil {
		return Normalize(core.ProbandData{}), nil
	}
	p, err := b.Source.FetchSubjectMetadata(ctx)
	if err != nil {
		return core.ProbandData{}, fmt.Errorf("%w: %v", core.ErrProbandFetch, err)
	}
	p = Normalize(p)
	if b.Logger != nil {
		b.Logger.Debug("proband metadata fetched", "gender", p.Gender, "has_birth_date", p.BirthDate != nil)
	}
	return p, nil
}

// Reconcile applies p to the proband node. It returns false on a gender conflict.
func (b *Bridge) Reconcile(g core.GraphModel, p core.ProbandData) bool {
	return g.SetProbandIdentity(p)
}

// ReconcileOrUnknown applies p and, on a gender conflict, applies it again
// with an unknown gender so the names and dates still land.
func (b *Bridge) ReconcileOrUnknown(g core.GraphModel, p core.ProbandData) bool {
	if b.Reconcile(g, p) {
		return true
	}
	p.Gender = core.GenderUnknown
	g.SetProbandIdentity(p)
	if b.Logger != nil {
		b.Logger.Warn("proband gender incompatible with pedigree, using unknown")
	}
	return false
}

// Normalize applies the defaults: trimmed names, a valid gender and absent
// (rather than empty) dates.
func Normalize(p core.ProbandData) core.ProbandData {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.Gender = core.ParseGender(string(p.Gender))
	p.BirthDate = normalizeDate(p.BirthDate)
	p.DeathDate = normalizeDate(p.DeathDate)
	return p
}

func normalizeDate(d *string) *string {
	if d == nil {
		return nil
	}
	s := strings.TrimSpace(*d)
	if s == "" {
		return nil
	}
	return &s
}
