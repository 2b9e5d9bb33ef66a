package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	. "github.com/elijahnyp/smart_house/util"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// newTestServer serves the configured house through a fresh monitor router.
func newTestServer(t *testing.T) (*httptest.Server, *WSHub) {
	t.Helper()
	useTestConfig(t)
	SetupConfig()
	require.NoError(t, houses.Reload())

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)

	monitor := NewMonitorServer()
	(&webHandlers{houses: houses, hub: hub}).register(monitor)
	srv := httptest.NewServer(monitor.Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv, hub
}

func get(t *testing.T, target string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(target)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body bytes.Buffer
	_, err = body.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, body.Bytes()
}

func TestReportHandler(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := get(t, srv.URL+"/report")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))
	assert.Equal(t, sweetHomeReport, string(body))
}

func TestReportHandler_Failure(t *testing.T) {
	useBrokenKind(t)
	srv, _ := newTestServer(t)
	Config.Set("house", map[string]any{
		"name": "shed",
		"rooms": []any{
			map[string]any{"name": "workshop", "devices": []any{
				map[string]any{"name": "lathe", "kind": "broken"},
			}},
		},
	})
	require.NoError(t, houses.Reload())

	resp, body := get(t, srv.URL+"/report")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, string(body), "device offline")
	assert.Contains(t, string(body), "lathe")

	resp, body = get(t, srv.URL+"/api/house")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view HouseView
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Empty(t, view.Report)
	assert.Contains(t, view.Error, "device offline")
}

func TestReportSnapshotHandler(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := get(t, srv.URL+"/report.png")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	img, err := png.Decode(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), 0)
}

func TestAPIHouse(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := get(t, srv.URL+"/api/house")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view HouseView
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, "Дом, милый дом", view.Name)
	assert.Equal(t, sweetHomeReport, view.Report)
	assert.Equal(t, []RoomView{
		{Name: "Зал", Devices: []string{"розетка для телевизора"}},
		{Name: "Кухня", Devices: []string{"розетка для аквариума", "термометр для аквариума"}},
		{Name: "Кладовка", Devices: []string{"термометр для самогонного аппарата"}},
	}, view.Rooms)

	_, body = get(t, srv.URL+"/api/house?report=false")
	view = HouseView{}
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Empty(t, view.Report)
	assert.Len(t, view.Rooms, 3)
}

func TestAPIRooms(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := get(t, srv.URL+"/api/rooms")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rooms []string
	require.NoError(t, json.Unmarshal(body, &rooms))
	assert.Equal(t, []string{"Зал", "Кухня", "Кладовка"}, rooms)
}

func TestAPIRoomDevices(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name     string
		room     string
		status   int
		expected []string
	}{
		{name: "owning room", room: "Зал", status: http.StatusOK, expected: []string{"розетка для телевизора"}},
		{name: "shared room", room: "Кладовка", status: http.StatusOK, expected: []string{"термометр для самогонного аппарата"}},
		{name: "unknown room", room: "Гараж", status: http.StatusNotFound},
		{name: "escaped slash", room: "a/b", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := get(t, srv.URL+"/api/rooms/"+url.PathEscape(tt.room)+"/devices")
			require.Equal(t, tt.status, resp.StatusCode)
			if tt.status != http.StatusOK {
				var payload map[string]string
				require.NoError(t, json.Unmarshal(body, &payload))
				assert.Contains(t, payload["error"], tt.room)
				return
			}
			var names []string
			require.NoError(t, json.Unmarshal(body, &names))
			assert.Equal(t, tt.expected, names)
		})
	}
}

func TestAPIModel(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := get(t, srv.URL+"/api/model")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/yaml", resp.Header.Get("Content-Type"))

	var m Model
	require.NoError(t, yaml.Unmarshal(body, &m))
	assert.Equal(t, houses.Model(), m)
}

func TestHandlers_NoHouse(t *testing.T) {
	useTestConfig(t)
	monitor := NewMonitorServer()
	(&webHandlers{houses: houses, hub: NewHub()}).register(monitor)

	for _, path := range []string{"/report", "/report.png", "/api/house", "/api/rooms", "/api/rooms/x/devices"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		monitor.Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}
}

func TestMetricsHandler(t *testing.T) {
	srv, _ := newTestServer(t)
	get(t, srv.URL+"/report")

	resp, body := get(t, srv.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "smart_house_reports_total")
	assert.Contains(t, string(body), "smart_house_report_duration_seconds")
}

func TestWebSocket(t *testing.T) {
	srv, hub := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg struct {
		Type string       `json:"type"`
		Data ReportUpdate `json:"data"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "report", msg.Type)
	assert.Equal(t, "Дом, милый дом", msg.Data.House)
	assert.Equal(t, sweetHomeReport, msg.Data.Report)

	// the first message is queued before the client registers with the hub
	hub.BroadcastReport("test", "pushed", nil)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	msg.Data = ReportUpdate{}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "pushed", msg.Data.Report)
	assert.Equal(t, "test", msg.Data.House)
	assert.Empty(t, msg.Data.Error)
}
