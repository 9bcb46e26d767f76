// Package checkpoint persists workflow session state so suspended sessions
// survive process restarts and can be resumed on any node sharing the store.
package checkpoint

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stemtutor/tutorflow/types"
)

// Status represents the lifecycle state of a checkpointed session.
type Status string

const (
	// StatusRunning indicates the session is mid-execution.
	StatusRunning Status = "running"

	// StatusHaltedClarify indicates execution suspended awaiting a
	// restated problem from the learner.
	StatusHaltedClarify Status = "halted_clarify"

	// StatusHaltedDisambiguate indicates execution suspended awaiting a
	// topic choice from the learner.
	StatusHaltedDisambiguate Status = "halted_disambiguate"

	// StatusCompleted indicates the session ran to a terminal step.
	StatusCompleted Status = "completed"

	// StatusFailed indicates the session aborted on a fatal error.
	StatusFailed Status = "failed"
)

// IsTerminal returns true if the status admits no further execution.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// IsHalted returns true if the session is suspended awaiting user input.
func (s Status) IsHalted() bool {
	switch s {
	case StatusHaltedClarify, StatusHaltedDisambiguate:
		return true
	default:
		return false
	}
}

// Checkpoint is a durable snapshot of one session. State carries the
// workflow's serialized domain state; the engine does not interpret it.
type Checkpoint struct {
	// SessionID is the unique identifier for the session.
	SessionID string `json:"session_id"`

	// State is the serialized domain state as of LastStep.
	State json.RawMessage `json:"state"`

	// LastStep is the name of the last step that ran to completion.
	LastStep string `json:"last_step"`

	// Status is the session lifecycle state.
	Status Status `json:"status"`

	// Version increments on every save, for observability and debugging.
	Version int `json:"version"`

	// UpdatedAt is when this snapshot was written.
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the persistence contract for checkpoints. Save overwrites any
// prior snapshot for the same session; Load returns a SESSION_NOT_FOUND
// typed error for unknown sessions.
type Store interface {
	// Save persists the checkpoint, replacing any existing snapshot.
	Save(ctx context.Context, cp *Checkpoint) error

	// Load retrieves the latest checkpoint for a session.
	Load(ctx context.Context, sessionID string) (*Checkpoint, error)

	// Delete removes a session's checkpoint. Deleting an absent session
	// is not an error.
	Delete(ctx context.Context, sessionID string) error

	// Close releases store resources.
	Close() error
}

// ErrNotFound builds the typed error every Store returns for an unknown
// session, so callers can branch on the code rather than the backend.
func ErrNotFound(sessionID string) error {
	return types.NewError(types.ErrSessionNotFound, "session not found: "+sessionID)
}
