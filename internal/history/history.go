// Package history persists evaluated practice attempts and summarises a
// learner's progress across them.
//
// Three [Store] implementations are provided: [FileStore] appends JSON lines
// to a local file, [PostgresStore] keeps records in PostgreSQL, and
// [NopStore] discards everything when history is disabled.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/speakcoach/internal/pronunciation"
)

// ErrNotFound is returned by [Store.Get] when no record has the given ID.
var ErrNotFound = errors.New("history: record not found")

// Mode is the kind of practice that produced a record.
type Mode string

const (
	// ModeRead means the learner read the sentence aloud from the screen.
	ModeRead Mode = "read"

	// ModeRepeat means the learner listened to reference audio first and
	// repeated it.
	ModeRepeat Mode = "repeat"
)

// ParseMode converts s to a [Mode]. The empty string yields [ModeRead].
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeRead:
		return ModeRead, nil
	case ModeRepeat:
		return ModeRepeat, nil
	default:
		return "", fmt.Errorf("history: unknown mode %q", s)
	}
}

// Record is one evaluated attempt.
type Record struct {
	ID           string                   `json:"id"`
	UserID       string                   `json:"userId,omitempty"`
	Mode         Mode                     `json:"mode"`
	ExpectedText string                   `json:"expectedText"`
	SpokenText   string                   `json:"spokenText"`
	Evaluation   pronunciation.Evaluation `json:"evaluation"`
	ErrorRate    pronunciation.ErrorRate  `json:"errorRate"`
	Hints        []string                 `json:"hints,omitempty"`
	CreatedAt    time.Time                `json:"createdAt"`
}

// Store persists [Record] values.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Save persists r. r.ID must be set by the caller.
	Save(ctx context.Context, r *Record) error

	// Get returns the record with the given ID or [ErrNotFound].
	Get(ctx context.Context, id string) (*Record, error)

	// List returns up to limit records of userID, newest first. A limit of
	// zero or less returns every record.
	List(ctx context.Context, userID string, limit int) ([]Record, error)

	// Ping reports whether the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}

func validateForSave(r *Record) error {
	if r == nil {
		return errors.New("history: nil record")
	}
	if r.ID == "" {
		return errors.New("history: record ID must not be empty")
	}
	return nil
}
