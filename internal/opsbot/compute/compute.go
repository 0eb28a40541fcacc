// Package compute defines the provider interface the VM command handlers
// call. The bot treats instances as an external resource: handlers ask the
// provider for state, format the answer, and report failures themselves.
package compute

import (
	"context"
	"fmt"
	"time"
)

// InstanceState is the lifecycle state of a managed instance.
type InstanceState string

const (
	StatePending    InstanceState = "pending"
	StateRunning    InstanceState = "running"
	StateStopping   InstanceState = "stopping"
	StateStopped    InstanceState = "stopped"
	StateTerminated InstanceState = "terminated"
	StateUnknown    InstanceState = "unknown"
)

// States lists every state accepted by the --state filter, in lifecycle
// order.
func States() []string {
	return []string{
		string(StatePending),
		string(StateRunning),
		string(StateStopping),
		string(StateStopped),
		string(StateTerminated),
	}
}

// Instance is one managed compute instance.
type Instance struct {
	ID        string
	Name      string
	OSName    string
	Size      string
	State     InstanceState
	Address   string
	CreatedAt time.Time
}

// CreateSpec describes an instance to create.
type CreateSpec struct {
	Name   string
	OSName string
	// Image is the concrete image resolved from the OS name.
	Image string
	Size  string
	Owner string
}

// ListFilter narrows List results. Empty slices match everything.
type ListFilter struct {
	States []string
	Sizes  []string
}

// Matches reports whether inst passes the filter.
func (f ListFilter) Matches(inst Instance) bool {
	if len(f.States) > 0 && !contains(f.States, string(inst.State)) {
		return false
	}
	if len(f.Sizes) > 0 && !contains(f.Sizes, inst.Size) {
		return false
	}
	return true
}

func contains(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}

// Provider is implemented by compute backends. All calls may block on
// external I/O and honor ctx cancellation.
type Provider interface {
	Create(ctx context.Context, spec CreateSpec) (Instance, error)
	List(ctx context.Context, filter ListFilter) ([]Instance, error)
	Start(ctx context.Context, id string) error
	Stop(ctx context.Context, id string) error
	Terminate(ctx context.Context, id string) error
}

// ErrNotFound is returned when an instance ID does not resolve.
var ErrNotFound = fmt.Errorf("instance not found")
