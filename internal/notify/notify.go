// Package notify publishes backup completion events.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"coursebackup/internal/backup"
)

// Event describes one finished backup run.
type Event struct {
	ID         string        `json:"id"`
	Strategy   backup.Kind   `json:"strategy"`
	Directory  string        `json:"directory"`
	Result     backup.Result `json:"result"`
	Archives   []string      `json:"archives,omitempty"`
	FinishedAt time.Time     `json:"finished_at"`
}

// NewEvent stamps a result with a fresh ID and the current time.
func NewEvent(kind backup.Kind, dir string, result backup.Result) Event {
	return Event{
		ID:         uuid.NewString(),
		Strategy:   kind,
		Directory:  dir,
		Result:     result,
		FinishedAt: time.Now().UTC(),
	}
}

func (e Event) encode() ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return body, nil
}

// Notifier delivers events.
type Notifier interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop drops every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
