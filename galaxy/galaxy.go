// Package galaxy is a client for the parts of the Galaxy REST API used to run and measure workflows.
package galaxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when the server reports that an object does not exist.
var ErrNotFound = errors.New("not found")

const (
	InvocationStateNew       = "new"
	InvocationStateReady     = "ready"
	InvocationStateScheduled = "scheduled"
	InvocationStateCancelled = "cancelled"
	InvocationStateFailed    = "failed"

	JobStateOK       = "ok"
	JobStateError    = "error"
	JobStateDeleted  = "deleted"
	JobStateDeleting = "deleting"
	JobStateSkipped  = "skipped"
)

var invocationTerminalStates = map[string]bool{
	InvocationStateScheduled: true,
	InvocationStateCancelled: true,
	InvocationStateFailed:    true,
}

var jobTerminalStates = map[string]bool{
	JobStateOK:       true,
	JobStateError:    true,
	JobStateDeleted:  true,
	JobStateDeleting: true,
	JobStateSkipped:  true,
}

func IsInvocationTerminal(state string) bool {
	return invocationTerminalStates[state]
}

func IsJobTerminal(state string) bool {
	return jobTerminalStates[state]
}

type Workflow struct {
	ID        string                   `json:"id"`
	Name      string                   `json:"name"`
	Published bool                     `json:"published"`
	Inputs    map[string]WorkflowInput `json:"inputs,omitempty"`
}

type WorkflowInput struct {
	Label string `json:"label"`
	Value string `json:"value"`
	UUID  string `json:"uuid"`
}

type Dataset struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	HistoryID string `json:"history_id,omitempty"`
	State     string `json:"state,omitempty"`
}

// InvocationInput binds one workflow input slot to a dataset.
type InvocationInput struct {
	ID  string `json:"id"`
	Src string `json:"src"`
}

type InvocationStep struct {
	ID         string `json:"id"`
	OrderIndex int    `json:"order_index"`
	State      string `json:"state,omitempty"`
	JobID      string `json:"job_id,omitempty"`
}

type Invocation struct {
	ID         string           `json:"id"`
	WorkflowID string           `json:"workflow_id"`
	HistoryID  string           `json:"history_id"`
	State      string           `json:"state"`
	Steps      []InvocationStep `json:"steps"`

	// Raw is the response body the invocation was decoded from. It is persisted as-is.
	Raw json.RawMessage `json:"-"`
}

// TimeoutError is returned by the wait operations when the object did not reach a terminal state in time. It is
// distinct from the object reaching a failed terminal state, which is reported as a normal state value.
type TimeoutError struct {
	Kind      string
	ID        string
	Timeout   time.Duration
	LastState string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %s %s (last state %q)", e.Timeout, e.Kind, e.ID, e.LastState)
}

// Service is the remote workflow service. Client implements it over HTTP.
type Service interface {
	// The base URL of the server, recorded with every metrics record.
	ServerURL() string

	ShowWorkflow(ctx context.Context, id string) (*Workflow, error)

	// Lists workflows whose name equals name exactly, in server order.
	ListWorkflows(ctx context.Context, name string, published bool) ([]*Workflow, error)

	// Returns the ids of the workflow's input slots whose label equals label.
	WorkflowInputs(ctx context.Context, workflowID, label string) ([]string, error)

	InvokeWorkflow(ctx context.Context, workflowID string, inputs map[string]InvocationInput, historyName string) (*Invocation, error)

	ShowDataset(ctx context.Context, id string) (*Dataset, error)

	// Lists datasets whose name equals name exactly, in server order.
	ListDatasets(ctx context.Context, name string) ([]*Dataset, error)

	ShowInvocation(ctx context.Context, id string) (*Invocation, error)

	// Blocks until the invocation is terminal or timeout elapses, polling every interval.
	WaitForInvocation(ctx context.Context, id string, timeout, interval time.Duration) (*Invocation, error)

	// Blocks until the job is terminal or timeout elapses and returns the terminal state.
	WaitForJob(ctx context.Context, id string, timeout, interval time.Duration) (string, error)

	// Returns the job detail as sent by the server, including job_metrics when full is set.
	ShowJob(ctx context.Context, id string, full bool) (map[string]any, error)
}

// Poll calls check every interval until it reports done, it fails, or timeout elapses. Expiry is reported by
// returning errTimedOut so that callers can wrap it with the object they were waiting on.
func Poll(ctx context.Context, timeout, interval time.Duration, check func() (bool, error)) error {
	deadline := time.Now().Add(timeout)
	for {
		done, err := check()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return errTimedOut
		}
		wait := min(interval, remaining)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

var errTimedOut = errors.New("timed out")

// PollInvocation implements WaitForInvocation on top of ShowInvocation.
func PollInvocation(ctx context.Context, s Service, id string, timeout, interval time.Duration) (*Invocation, error) {
	var inv *Invocation
	err := Poll(ctx, timeout, interval, func() (bool, error) {
		var err error
		inv, err = s.ShowInvocation(ctx, id)
		if err != nil {
			return false, err
		}
		return IsInvocationTerminal(inv.State), nil
	})
	if errors.Is(err, errTimedOut) {
		last := ""
		if inv != nil {
			last = inv.State
		}
		return nil, &TimeoutError{Kind: "invocation", ID: id, Timeout: timeout, LastState: last}
	}
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// PollJob implements WaitForJob on top of ShowJob.
func PollJob(ctx context.Context, s Service, id string, timeout, interval time.Duration) (string, error) {
	state := ""
	err := Poll(ctx, timeout, interval, func() (bool, error) {
		job, err := s.ShowJob(ctx, id, false)
		if err != nil {
			return false, err
		}
		state, _ = job["state"].(string)
		return IsJobTerminal(state), nil
	})
	if errors.Is(err, errTimedOut) {
		return "", &TimeoutError{Kind: "job", ID: id, Timeout: timeout, LastState: state}
	}
	if err != nil {
		return "", err
	}
	return state, nil
}
