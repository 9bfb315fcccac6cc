package course

import (
	"context"
	"time"
)

// Provider lists every course known to the data-access layer.
type Provider interface {
	FindAll(ctx context.Context) ([]Source, error)
}

// ChangeFinder lists courses created or modified at or after since.
type ChangeFinder interface {
	FindChangedSince(ctx context.Context, since time.Time) ([]Source, error)
}

// Selector picks the candidate courses for an incremental backup.
type Selector interface {
	Candidates(ctx context.Context, since time.Time) ([]Source, error)
}

// AllCourses selects every course regardless of since.
type AllCourses struct {
	Provider Provider
}

func (s AllCourses) Candidates(ctx context.Context, _ time.Time) ([]Source, error) {
	return s.Provider.FindAll(ctx)
}

// ChangedSince selects only the courses the finder reports as changed.
type ChangedSince struct {
	Finder ChangeFinder
}

func (s ChangedSince) Candidates(ctx context.Context, since time.Time) ([]Source, error) {
	return s.Finder.FindChangedSince(ctx, since)
}

// StaticProvider serves a fixed course list. Useful for exports of already
// loaded data and in tests.
type StaticProvider []Source

func (p StaticProvider) FindAll(context.Context) ([]Source, error) {
	out := make([]Source, len(p))
	copy(out, p)
	return out, nil
}
