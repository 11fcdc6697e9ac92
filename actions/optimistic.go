// Package actions runs user mutations against the platforms with
// optimistic local updates.
package actions

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"social-dashboard/platforms"
)

// Status classifies how an action ended
type Status string

const (
	StatusSuccess Status = "success"
	// StatusWarning is a probable success that could not be confirmed
	StatusWarning Status = "warning"
	// StatusInvalid means validation failed and nothing was sent
	StatusInvalid Status = "invalid"
	StatusFailed  Status = "failed"
)

// Outcome is what every action reports to its caller and to the user
type Outcome struct {
	Status  Status
	Message string
	ID      string // server id of a created entity, if any
	Err     error
}

// Success reports whether the change should be considered applied
func (o Outcome) Success() bool {
	return o.Status == StatusSuccess || o.Status == StatusWarning
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Success bool   `json:"success"`
		Warning bool   `json:"warning,omitempty"`
		Message string `json:"message,omitempty"`
		ID      string `json:"id,omitempty"`
	}{
		Success: o.Success(),
		Warning: o.Status == StatusWarning,
		Message: o.Message,
		ID:      o.ID,
	})
}

func invalid(message string) Outcome {
	return Outcome{Status: StatusInvalid, Message: message}
}

func failed(err error, fallback string) Outcome {
	return Outcome{Status: StatusFailed, Message: platforms.ErrorMessage(err, fallback), Err: err}
}

// Optimistic describes one optimistic action. Apply runs before the
// remote call; exactly one of Reconcile or Rollback runs after it.
type Optimistic[R any] struct {
	Name   string
	Apply  func()
	Remote func(ctx context.Context) (R, error)
	// Reconcile replaces the optimistic entity with the confirmed one.
	// It receives the zero R on an ambiguous success.
	Reconcile func(R)
	Rollback  func()

	// AllowAmbiguous treats a 500 with an empty or unparseable body as a
	// probable success. Only deletes may set it.
	AllowAmbiguous bool

	SuccessMessage   string
	FailureMessage   string
	AmbiguousMessage string
}

// Run applies op.Apply, performs the remote call and then reconciles or
// rolls back
func Run[R any](ctx context.Context, op Optimistic[R]) Outcome {
	if op.Apply != nil {
		op.Apply()
	}

	result, err := op.Remote(ctx)
	switch {
	case err == nil:
		if op.Reconcile != nil {
			op.Reconcile(result)
		}
		return Outcome{Status: StatusSuccess, Message: op.SuccessMessage}

	case op.AllowAmbiguous && platforms.IsAmbiguousSuccess(err):
		slog.Warn("Treating backend error as probable success", "action", op.Name, "error", err)
		var zero R
		if op.Reconcile != nil {
			op.Reconcile(zero)
		}
		return Outcome{Status: StatusWarning, Message: op.AmbiguousMessage, Err: err}
	}

	if op.Rollback != nil {
		op.Rollback()
	}
	if !errors.Is(err, platforms.ErrUnsupported) {
		slog.Error("Action failed", "action", op.Name, "error", err)
	}
	return failed(err, op.FailureMessage)
}
