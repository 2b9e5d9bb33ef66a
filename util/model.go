package util

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/elijahnyp/smart_house/state"
)

const ( // built in device kinds
	KindSocket      = "socket"
	KindThermometer = "thermometer"
)

var (
	ErrUnknownDeviceKind  = errors.New("unknown device kind")
	ErrUnknownDeviceSet   = errors.New("unknown device set")
	ErrDuplicateDeviceSet = errors.New("device set defined more than once")
	ErrAmbiguousDevices   = errors.New("room lists devices and a device set")
)

// DeviceFactory builds a device of one kind from its name.
type DeviceFactory func(name string) state.Device

var deviceKinds = map[string]DeviceFactory{
	KindSocket:      func(name string) state.Device { return state.NewSmartSocket(name) },
	KindThermometer: func(name string) state.Device { return state.NewSmartThermometer(name) },
}

var deviceKindsMu sync.RWMutex

// RegisterDeviceKind makes a device kind available to config models. A nil
// factory removes the kind.
func RegisterDeviceKind(kind string, factory DeviceFactory) {
	deviceKindsMu.Lock()
	defer deviceKindsMu.Unlock()
	kind = strings.ToLower(kind)
	if factory == nil {
		delete(deviceKinds, kind)
	} else {
		deviceKinds[kind] = factory
	}
}

func lookupDeviceKind(kind string) (DeviceFactory, bool) {
	deviceKindsMu.RLock()
	defer deviceKindsMu.RUnlock()
	factory, ok := deviceKinds[strings.ToLower(kind)]
	return factory, ok
}

type Model struct {
	Name       string          `mapstructure:"name" yaml:"name"`
	DeviceSets []DeviceSetSpec `mapstructure:"device_sets" yaml:"device_sets,omitempty"`
	Rooms      []RoomSpec      `mapstructure:"rooms" yaml:"rooms"`
}

// DeviceSetSpec describes devices owned outside any room and borrowed by
// the rooms naming it.
type DeviceSetSpec struct {
	Name    string       `mapstructure:"name" yaml:"name"`
	Devices []DeviceSpec `mapstructure:"devices" yaml:"devices"`
}

type RoomSpec struct {
	Name      string       `mapstructure:"name" yaml:"name"`
	Devices   []DeviceSpec `mapstructure:"devices" yaml:"devices,omitempty"`
	DeviceSet string       `mapstructure:"device_set" yaml:"device_set,omitempty"`
}

type DeviceSpec struct {
	Name string `mapstructure:"name" yaml:"name"`
	Kind string `mapstructure:"kind" yaml:"kind"`
}

func (m *Model) BuildModel() error {
	*m = Model{}
	if err := Config.UnmarshalKey("house", m); err != nil {
		Logger.Error().Msgf("error unmarshaling house model: %v", err)
		return fmt.Errorf("unmarshaling house model: %w", err)
	}
	return nil
}

func (m Model) FindRoomSpec(room string) (RoomSpec, bool) {
	for _, entry := range m.Rooms {
		if entry.Name == room {
			return entry, true
		}
	}
	return RoomSpec{}, false
}

// Build turns the model into a validated house. Every room naming a device
// set shares that set's devices.
func (m Model) Build() (*state.House, error) {
	sets := make(map[string]*state.DeviceSet, len(m.DeviceSets))
	for _, spec := range m.DeviceSets {
		if _, ok := sets[spec.Name]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateDeviceSet, spec.Name)
		}
		devices, err := buildDevices(spec.Devices)
		if err != nil {
			return nil, fmt.Errorf("building device set %q: %w", spec.Name, err)
		}
		set, err := state.NewDeviceSet(spec.Name, devices...)
		if err != nil {
			return nil, err
		}
		sets[spec.Name] = set
	}

	rooms := make([]state.Room, 0, len(m.Rooms))
	for _, spec := range m.Rooms {
		room, err := spec.build(sets)
		if err != nil {
			return nil, fmt.Errorf("building room %q: %w", spec.Name, err)
		}
		rooms = append(rooms, room)
	}

	house, err := state.NewHouse(m.Name, rooms)
	if err != nil {
		return nil, fmt.Errorf("building house %q: %w", m.Name, err)
	}
	return house, nil
}

func (r RoomSpec) build(sets map[string]*state.DeviceSet) (*state.DeviceRoom, error) {
	if r.DeviceSet == "" {
		devices, err := buildDevices(r.Devices)
		if err != nil {
			return nil, err
		}
		return state.NewRoom(r.Name, devices)
	}
	if len(r.Devices) > 0 {
		return nil, ErrAmbiguousDevices
	}
	set, ok := sets[r.DeviceSet]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDeviceSet, r.DeviceSet)
	}
	return state.NewSharedRoom(r.Name, set)
}

func buildDevices(specs []DeviceSpec) ([]state.Device, error) {
	devices := make([]state.Device, 0, len(specs))
	for _, spec := range specs {
		factory, ok := lookupDeviceKind(spec.Kind)
		if !ok {
			return nil, fmt.Errorf("%w %q for device %q", ErrUnknownDeviceKind, spec.Kind, spec.Name)
		}
		devices = append(devices, factory(spec.Name))
	}
	return devices, nil
}

// HouseHolder keeps the house built from the current config. A failed
// reload leaves the previous house in place.
type HouseHolder struct {
	house     *state.House
	listeners []func(*state.House)
	model     Model
	mu        sync.RWMutex
}

func NewHouseHolder() *HouseHolder {
	return &HouseHolder{}
}

func (h *HouseHolder) House() *state.House {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.house
}

func (h *HouseHolder) Model() Model {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.model
}

// OnReload registers fn to run with every newly built house.
func (h *HouseHolder) OnReload(fn func(*state.House)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

func (h *HouseHolder) Reload() error {
	var m Model
	if err := m.BuildModel(); err != nil {
		return err
	}
	house, err := m.Build()
	if err != nil {
		Logger.Error().Err(err).Msg("house model rejected, keeping previous house")
		return err
	}

	h.mu.Lock()
	h.house = house
	h.model = m
	listeners := append([]func(*state.House){}, h.listeners...)
	h.mu.Unlock()

	Logger.Info().Msgf("house %q loaded with %d rooms", house.Name(), len(house.RoomNames()))
	for _, fn := range listeners {
		fn(house)
	}
	return nil
}
