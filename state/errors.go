package state

import (
	"errors"
	"fmt"
)

// Domain errors for the state package.
//
// The typed errors below match these sentinels with errors.Is:
//
//	if errors.Is(err, state.ErrRoomNotFound) {
//	    // handle unknown room
//	}
var (
	// ErrDuplicateName is returned when a container is built with children sharing a name.
	ErrDuplicateName = errors.New("state: non-unique names")

	// ErrRoomNotFound is returned when a house has no room with the requested name.
	ErrRoomNotFound = errors.New("state: room not found")

	// ErrReportFailed is returned when a child report fails.
	ErrReportFailed = errors.New("state: report failed")
)

// Scope names the kind of container an error was raised in.
type Scope string

const (
	ScopeRoom  Scope = "room"
	ScopeHouse Scope = "house"
)

// child returns the kind of entity a container of this scope holds.
func (s Scope) child() string {
	switch s {
	case ScopeRoom:
		return "device"
	case ScopeHouse:
		return "room"
	default:
		return "child"
	}
}

// DuplicateNameError reports the first repeated child name found in a container.
type DuplicateNameError struct {
	Scope     Scope
	Container string
	Name      string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("%ss in %s %q have non-unique names: %q", e.Scope.child(), e.Scope, e.Container, e.Name)
}

func (e *DuplicateNameError) Is(target error) bool {
	return target == ErrDuplicateName
}

type RoomNotFoundError struct {
	House string
	Name  string
}

func (e *RoomNotFoundError) Error() string {
	return fmt.Sprintf("house %q has no room named %q", e.House, e.Name)
}

func (e *RoomNotFoundError) Is(target error) bool {
	return target == ErrRoomNotFound
}

// ReportError wraps the failure of a child report with the names of the
// child and of the container that was reporting on it.
type ReportError struct {
	Scope  Scope
	Child  string
	Parent string
	Err    error
}

func (e *ReportError) Error() string {
	return fmt.Sprintf("report failed for %s %q in %s %q: %v", e.Scope.child(), e.Child, e.Scope, e.Parent, e.Err)
}

func (e *ReportError) Unwrap() error {
	return e.Err
}

func (e *ReportError) Is(target error) bool {
	return target == ErrReportFailed
}

// firstDuplicate returns the first name that occurs more than once.
func firstDuplicate(names []string) (string, bool) {
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			return name, true
		}
		seen[name] = struct{}{}
	}
	return "", false
}
