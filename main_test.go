package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/elijahnyp/smart_house/state"
	. "github.com/elijahnyp/smart_house/util"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const sweetHomeReport = "Отчёт по дому 'Дом, милый дом':\n" +
	" * комната 'Зал':\n" +
	"   - Это умная розетка 'розетка для телевизора'. Работает штатно.\n" +
	" * комната 'Кухня':\n" +
	"   - Это умная розетка 'розетка для аквариума'. Работает штатно.\n" +
	"   - Это умный термометр 'термометр для аквариума'. Работает штатно.\n" +
	" * комната 'Кладовка':\n" +
	"   - Это умный термометр 'термометр для самогонного аппарата'. Работает штатно.\n"

// useTestConfig gives the test its own config and house holder.
func useTestConfig(t *testing.T) {
	t.Helper()
	oldConfig, oldHouses := Config, houses
	Config = viper.New()
	houses = NewHouseHolder()
	t.Cleanup(func() {
		Config, houses = oldConfig, oldHouses
	})
}

type brokenDevice struct{ name string }

func (b brokenDevice) Name() string { return b.name }

func (b brokenDevice) CreateReport() (string, error) {
	return "", errors.New("device offline")
}

func useBrokenKind(t *testing.T) {
	t.Helper()
	RegisterDeviceKind("broken", func(name string) state.Device { return brokenDevice{name: name} })
	t.Cleanup(func() { RegisterDeviceKind("broken", nil) })
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestReportCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{
			name: "default prints two reports",
			args: []string{"report"},
			expected: "Report #1: " + sweetHomeReport + "\n" +
				reportDivider + "\n" +
				"Report #2: " + sweetHomeReport + "\n",
		},
		{
			name:     "single report",
			args:     []string{"report", "--count", "1"},
			expected: "Report #1: " + sweetHomeReport + "\n",
		},
		{
			name:     "no reports",
			args:     []string{"report", "-n", "0"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useTestConfig(t)
			out, err := runCmd(t, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestReportCommand_DeviceFailure(t *testing.T) {
	useTestConfig(t)
	useBrokenKind(t)
	Config.Set("house", map[string]any{
		"name": "shed",
		"rooms": []any{
			map[string]any{"name": "workshop", "devices": []any{
				map[string]any{"name": "lathe", "kind": "broken"},
			}},
		},
	})

	_, err := runCmd(t, "report")
	require.Error(t, err)
	assert.ErrorIs(t, err, state.ErrReportFailed)
	assert.Contains(t, err.Error(), "device offline")
}

func TestRoomsCommand(t *testing.T) {
	useTestConfig(t)
	out, err := runCmd(t, "rooms")
	require.NoError(t, err)
	assert.Equal(t, "Зал\nКухня\nКладовка\n", out)
}

func TestDevicesCommand(t *testing.T) {
	tests := []struct {
		name     string
		room     string
		expected string
		err      error
	}{
		{name: "owning room", room: "Зал", expected: "розетка для телевизора\n"},
		{name: "shared room", room: "Кухня", expected: "розетка для аквариума\nтермометр для аквариума\n"},
		{name: "unknown room", room: "Спальня", err: state.ErrRoomNotFound},
		{name: "names are case sensitive", room: "зал", err: state.ErrRoomNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useTestConfig(t)
			out, err := runCmd(t, "devices", tt.room)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				assert.Contains(t, err.Error(), tt.room)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestDevicesCommand_RequiresRoom(t *testing.T) {
	useTestConfig(t)
	_, err := runCmd(t, "devices")
	assert.Error(t, err)
}

func TestModelCommand(t *testing.T) {
	useTestConfig(t)
	out, err := runCmd(t, "model")
	require.NoError(t, err)

	var m Model
	require.NoError(t, yaml.Unmarshal([]byte(out), &m))
	assert.Equal(t, "Дом, милый дом", m.Name)
	require.Len(t, m.Rooms, 3)
	assert.Equal(t, "kitchen", m.Rooms[1].DeviceSet)
	assert.Len(t, m.DeviceSets, 2)
}

func TestRootCommand_InvalidHouse(t *testing.T) {
	useTestConfig(t)
	Config.Set("house", map[string]any{
		"name": "dup",
		"rooms": []any{
			map[string]any{"name": "hall"},
			map[string]any{"name": "hall"},
		},
	})

	_, err := runCmd(t, "rooms")
	require.Error(t, err)
	assert.ErrorIs(t, err, state.ErrDuplicateName)

	var dup *state.DuplicateNameError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "hall", dup.Name)
}

func TestRootCommand_LogLevelFlag(t *testing.T) {
	useTestConfig(t)
	_, err := runCmd(t, "--log-level", "debug", "rooms")
	require.NoError(t, err)
	assert.Equal(t, "debug", Config.GetString("log_level"))
}
