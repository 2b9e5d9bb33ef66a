package state

import (
	"fmt"
	"strings"
)

// House is a named, immutable set of rooms. Rooms are held by reference.
type House struct {
	name  string
	rooms []Room
}

// NewHouse validates that room names are unique and builds the house.
func NewHouse(name string, rooms []Room) (*House, error) {
	if dup, ok := firstDuplicate(roomNames(rooms)); ok {
		return nil, &DuplicateNameError{Scope: ScopeHouse, Container: name, Name: dup}
	}
	return &House{name: name, rooms: rooms}, nil
}

func (h *House) Name() string {
	return h.name
}

func (h *House) RoomNames() []string {
	return roomNames(h.rooms)
}

// Room returns the first room called roomName.
func (h *House) Room(roomName string) (Room, error) {
	for _, r := range h.rooms {
		if r.Name() == roomName {
			return r, nil
		}
	}
	return nil, &RoomNotFoundError{House: h.name, Name: roomName}
}

// RoomDeviceNames returns the device names of the first room called roomName.
func (h *House) RoomDeviceNames(roomName string) ([]string, error) {
	r, err := h.Room(roomName)
	if err != nil {
		return nil, err
	}
	return r.DeviceNames(), nil
}

func (h *House) CreateReport() (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Отчёт по дому '%s':\n", h.name)
	for _, r := range h.rooms {
		report, err := r.CreateReport()
		if err != nil {
			return "", &ReportError{Scope: ScopeHouse, Child: r.Name(), Parent: h.name, Err: err}
		}
		b.WriteString(report)
	}
	return b.String(), nil
}

func roomNames(rooms []Room) []string {
	names := make([]string, 0, len(rooms))
	for _, r := range rooms {
		names = append(names, r.Name())
	}
	return names
}
