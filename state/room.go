package state

import (
	"fmt"
	"strings"
)

type Room interface {
	Reporter
	Name() string
	DeviceNames() []string
}

// DeviceRoom is a named, immutable set of devices.
//
// The devices slice is kept as passed to NewRoom. It may belong to the room
// alone or be shared with a longer lived collection such as a DeviceSet;
// either way it must not be modified once the room exists.
type DeviceRoom struct {
	name    string
	devices []Device
}

// NewRoom validates that device names are unique and builds the room.
func NewRoom(name string, devices []Device) (*DeviceRoom, error) {
	if dup, ok := firstDuplicate(deviceNames(devices)); ok {
		return nil, &DuplicateNameError{Scope: ScopeRoom, Container: name, Name: dup}
	}
	return &DeviceRoom{name: name, devices: devices}, nil
}

func (r *DeviceRoom) Name() string {
	return r.name
}

func (r *DeviceRoom) DeviceNames() []string {
	return deviceNames(r.devices)
}

// CreateReport stops at the first device that fails to report.
func (r *DeviceRoom) CreateReport() (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, " * комната '%s':\n", r.name)
	for _, d := range r.devices {
		report, err := d.CreateReport()
		if err != nil {
			return "", &ReportError{Scope: ScopeRoom, Child: d.Name(), Parent: r.name, Err: err}
		}
		fmt.Fprintf(&b, "   - %s\n", report)
	}
	return b.String(), nil
}

func deviceNames(devices []Device) []string {
	names := make([]string, 0, len(devices))
	for _, d := range devices {
		names = append(names, d.Name())
	}
	return names
}

// DeviceSet is a validated device list owned outside of any room. Several
// rooms may borrow the same set; the set outlives them all.
type DeviceSet struct {
	name    string
	devices []Device
}

func NewDeviceSet(name string, devices ...Device) (*DeviceSet, error) {
	if dup, ok := firstDuplicate(deviceNames(devices)); ok {
		return nil, fmt.Errorf("device set %q: %w", name, &DuplicateNameError{Scope: ScopeRoom, Container: name, Name: dup})
	}
	return &DeviceSet{name: name, devices: devices}, nil
}

func (s *DeviceSet) Name() string {
	return s.name
}

// Devices returns the backing slice itself, not a copy.
func (s *DeviceSet) Devices() []Device {
	return s.devices
}

// NewSharedRoom builds a room that borrows the devices of set.
func NewSharedRoom(name string, set *DeviceSet) (*DeviceRoom, error) {
	return NewRoom(name, set.Devices())
}
