package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Priority orders queued requests. Higher values dequeue first; ties
// break FIFO.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	default:
		return "normal"
	}
}

func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		return PriorityNormal, nil
	case "low":
		return PriorityLow, nil
	case "high":
		return PriorityHigh, nil
	}
	return PriorityNormal, fmt.Errorf("unknown priority %q", s)
}

// Result is the immutable outcome of a completed translation.
type Result struct {
	RequestID      string        `json:"request_id"`
	OriginalText   string        `json:"original_text"`
	TranslatedText string        `json:"translated_text"`
	TokensUsed     int           `json:"tokens_used"`
	Duration       time.Duration `json:"duration"`
}

type EventKind string

const (
	EventCompleted   EventKind = "completed"
	EventFailed      EventKind = "failed"
	EventCancelled   EventKind = "cancelled"
	EventRateLimited EventKind = "rate_limited"
)

// Event reports a request's fate. Every terminal outcome flows through
// the same stream.
type Event struct {
	Kind      EventKind     `json:"kind"`
	RequestID string        `json:"request_id"`
	Preset    string        `json:"preset,omitempty"`
	Result    *Result       `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
	Wait      time.Duration `json:"wait,omitempty"`
}

// Outcome tells a submitter what happened to their request at the door.
type Outcome string

const (
	// OutcomeQueued means a new request entered the priority queue.
	OutcomeQueued Outcome = "queued"
	// OutcomeCached means the translation was served from cache with no
	// queue entry and no outbound call.
	OutcomeCached Outcome = "cached"
	// OutcomeFollower means an identical request is already pending;
	// this submission shares its fate.
	OutcomeFollower Outcome = "follower"
)

type SubmitResult struct {
	RequestID      string  `json:"request_id"`
	Outcome        Outcome `json:"outcome"`
	TranslatedText string  `json:"translated_text,omitempty"`
}

type Stats struct {
	Queued              int `json:"queued"`
	Active              int `json:"active"`
	Cached              int `json:"cached"`
	RemainingThisMinute int `json:"remaining_this_minute"`
	RemainingToday      int `json:"remaining_today"`
}

// normalize is the canonical form used for cache keys and dedup hashes.
func normalize(text string) string {
	return strings.TrimSpace(text)
}

// contentHash keys the pending-group table. The preset id participates
// so identical text under different prompts never shares an outbound
// call.
func contentHash(presetID, normText string) string {
	h := sha256.Sum256([]byte(presetID + "\x00" + normText))
	return hex.EncodeToString(h[:])
}

func cacheKey(presetID, normText string) string {
	return presetID + ":" + contentHash(presetID, normText)
}

// estimateTokens is the crude fallback when the endpoint reports no
// usage: roughly four characters per token.
func estimateTokens(text string) int {
	n := utf8.RuneCountInString(text)/4 + 1
	return n
}
