// Package history persists terminal translation outcomes so callers can
// look a request up after its lifecycle event has passed.
package history

import (
	"context"

	"gorm.io/gorm"

	"github.com/quailsoft/transq/internal/engine"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Translation{})
}

func (r *Repo) Create(ctx context.Context, t *Translation) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *Repo) GetByRequestID(ctx context.Context, requestID string) (*Translation, error) {
	var t Translation
	if err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// List returns records newest first. beforeID pages backward through the
// ULID-ordered primary key.
func (r *Repo) List(ctx context.Context, limit int, beforeID string) ([]Translation, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	q := r.db.WithContext(ctx).Order("id DESC").Limit(limit)
	if beforeID != "" {
		q = q.Where("id < ?", beforeID)
	}
	var out []Translation
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Record writes the terminal outcome carried by an engine event.
// RateLimited is a deferral, not an outcome, and is skipped.
func (r *Repo) Record(ctx context.Context, ev engine.Event) error {
	t := Translation{
		ID:        NewID(),
		RequestID: ev.RequestID,
		Preset:    ev.Preset,
	}
	switch ev.Kind {
	case engine.EventCompleted:
		t.Status = StatusCompleted
		if ev.Result != nil {
			t.SourceText = ev.Result.OriginalText
			t.TranslatedText = ev.Result.TranslatedText
			t.TokensUsed = ev.Result.TokensUsed
			t.DurationMs = ev.Result.Duration.Milliseconds()
		}
	case engine.EventFailed:
		t.Status = StatusFailed
		t.Error = ev.Error
	case engine.EventCancelled:
		t.Status = StatusCancelled
	default:
		return nil
	}
	return r.Create(ctx, &t)
}
