package history

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Translation is one finished request: what went in, what came out, and
// what it cost.
type Translation struct {
	ID             string    `gorm:"primaryKey;size:26" json:"id"` // ULID length
	RequestID      string    `gorm:"type:varchar(40);uniqueIndex;not null" json:"request_id"`
	Preset         string    `gorm:"type:varchar(64);index;not null" json:"preset"`
	SourceText     string    `gorm:"type:text;not null" json:"source_text"`
	TranslatedText string    `gorm:"type:text" json:"translated_text"`
	Status         Status    `gorm:"type:varchar(16);index;not null" json:"status"`
	Error          string    `gorm:"type:text" json:"error,omitempty"`
	TokensUsed     int       `json:"tokens_used"`
	DurationMs     int64     `json:"duration_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Translation) TableName() string { return "translations" }

func NewID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
