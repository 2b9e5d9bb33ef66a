package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/elijahnyp/smart_house/state"
	. "github.com/elijahnyp/smart_house/util"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard may be served from another host
	},
}

// WebSocketMessage represents a message sent over WebSocket
type WebSocketMessage struct {
	Data interface{} `json:"data"`
	Type string      `json:"type"`
}

// ReportUpdate is the payload of "report" websocket messages.
type ReportUpdate struct {
	House  string `json:"house"`
	Report string `json:"report,omitempty"`
	Error  string `json:"error,omitempty"`
	Time   int64  `json:"time"`
}

// HouseView is the JSON shape of a house.
type HouseView struct {
	Name   string     `json:"name"`
	Report string     `json:"report,omitempty"`
	Error  string     `json:"error,omitempty"`
	Rooms  []RoomView `json:"rooms"`
}

type RoomView struct {
	Name    string   `json:"name"`
	Devices []string `json:"devices"`
}

// WSClient represents a connected WebSocket client
type WSClient struct {
	conn *websocket.Conn
	send chan WebSocketMessage
	hub  *WSHub
}

// WSHub maintains the set of active clients and broadcasts messages
type WSHub struct {
	clients    map[*WSClient]bool
	broadcast  chan WebSocketMessage
	register   chan *WSClient
	unregister chan *WSClient
	done       chan struct{}
}

// NewHub creates a new WebSocket hub
func NewHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan WebSocketMessage, 16),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		done:       make(chan struct{}),
	}
}

// Run serves the hub until ctx is done, then drops every client.
func (h *WSHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			Logger.Info().Msg("Client connected to WebSocket")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				Logger.Info().Msg("Client disconnected from WebSocket")
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}

		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return
		}
	}
}

// BroadcastUpdate sends an update to all connected clients
func (h *WSHub) BroadcastUpdate(messageType string, data interface{}) {
	select {
	case h.broadcast <- WebSocketMessage{Type: messageType, Data: data}:
	default:
		Logger.Debug().Msgf("websocket broadcast queue full, dropping %s update", messageType)
	}
}

func (h *WSHub) BroadcastReport(house, report string, err error) {
	h.BroadcastUpdate("report", newReportUpdate(house, report, err))
}

func newReportUpdate(house, report string, err error) ReportUpdate {
	update := ReportUpdate{House: house, Report: report, Time: time.Now().Unix()}
	if err != nil {
		update.Error = err.Error()
	}
	return update
}

// readPump pumps messages from the websocket connection to the hub
func (c *WSClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		if err := c.conn.Close(); err != nil {
			Logger.Debug().Err(err).Msg("Error closing WebSocket connection")
		}
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *WSClient) writePump() {
	defer func() {
		if err := c.conn.Close(); err != nil {
			Logger.Debug().Err(err).Msg("Error closing WebSocket connection")
		}
	}()

	for message := range c.send {
		if err := c.conn.WriteJSON(message); err != nil {
			return
		}
	}
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		Logger.Debug().Err(err).Msg("Error writing close message")
	}
}

// webHandlers serves the house held by houses over HTTP.
type webHandlers struct {
	houses *HouseHolder
	hub    *WSHub
}

func (h *webHandlers) register(monitor *MonitorServer) {
	r := monitor.Router()
	r.Get("/report", h.Report)
	r.Get("/report.png", h.ReportSnapshot)
	r.Get("/api/house", h.APIHouse)
	r.Get("/api/rooms", h.APIRooms)
	r.Get("/api/rooms/{room}/devices", h.APIRoomDevices)
	r.Get("/api/model", h.APIModel)
	r.Get("/ws", h.ServeWebSocket)
	r.Handle("/metrics", promhttp.Handler())
}

// house writes 503 and returns nil when no house is loaded yet.
func (h *webHandlers) house(w http.ResponseWriter) *state.House {
	house := h.houses.House()
	if house == nil {
		http.Error(w, "house not loaded", http.StatusServiceUnavailable)
	}
	return house
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger.Error().Err(err).Msg("Error encoding response")
	}
}

// Report returns the house report as plain text.
func (h *webHandlers) Report(w http.ResponseWriter, r *http.Request) {
	house := h.house(w)
	if house == nil {
		return
	}
	report, err := GenerateReport("house", house)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte(report)); err != nil {
		Logger.Debug().Err(err).Msg("Error writing report")
	}
}

// ReportSnapshot returns the house report rendered as a PNG.
func (h *webHandlers) ReportSnapshot(w http.ResponseWriter, r *http.Request) {
	house := h.house(w)
	if house == nil {
		return
	}
	report, err := GenerateReport("house", house)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	img, err := RenderReportPNG(report)
	if err != nil {
		Logger.Error().Err(err).Msg("Error rendering report snapshot")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(img); err != nil {
		Logger.Debug().Err(err).Msg("Error writing snapshot")
	}
}

func houseView(house *state.House, withReport bool) HouseView {
	view := HouseView{Name: house.Name(), Rooms: []RoomView{}}
	for _, name := range house.RoomNames() {
		devices, err := house.RoomDeviceNames(name)
		if err != nil {
			continue
		}
		view.Rooms = append(view.Rooms, RoomView{Name: name, Devices: devices})
	}
	if withReport {
		report, err := GenerateReport("house", house)
		if err != nil {
			view.Error = err.Error()
		} else {
			view.Report = report
		}
	}
	return view
}

// APIHouse returns the house layout, with its report unless ?report=false.
func (h *webHandlers) APIHouse(w http.ResponseWriter, r *http.Request) {
	house := h.house(w)
	if house == nil {
		return
	}
	writeJSON(w, http.StatusOK, houseView(house, r.URL.Query().Get("report") != "false"))
}

func (h *webHandlers) APIRooms(w http.ResponseWriter, r *http.Request) {
	house := h.house(w)
	if house == nil {
		return
	}
	writeJSON(w, http.StatusOK, house.RoomNames())
}

func (h *webHandlers) APIRoomDevices(w http.ResponseWriter, r *http.Request) {
	house := h.house(w)
	if house == nil {
		return
	}
	room := chi.URLParam(r, "room")
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(room); err == nil {
			room = unescaped
		}
	}
	names, err := house.RoomDeviceNames(room)
	if errors.Is(err, state.ErrRoomNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, names)
}

// APIModel returns the configured house model as YAML.
func (h *webHandlers) APIModel(w http.ResponseWriter, r *http.Request) {
	data, err := yaml.Marshal(h.houses.Model())
	if err != nil {
		Logger.Error().Err(err).Msg("Error encoding model")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	if _, err := w.Write(data); err != nil {
		Logger.Debug().Err(err).Msg("Error writing model")
	}
}

// ServeWebSocket handles websocket requests from the peer
func (h *webHandlers) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &WSClient{
		conn: conn,
		send: make(chan WebSocketMessage, 256),
		hub:  h.hub,
	}
	if house := h.houses.House(); house != nil {
		report, err := GenerateReport("house", house)
		client.send <- WebSocketMessage{Type: "report", Data: newReportUpdate(house.Name(), report, err)}
	}

	select {
	case client.hub.register <- client:
	case <-client.hub.done:
		if err := conn.Close(); err != nil {
			Logger.Debug().Err(err).Msg("Error closing WebSocket connection")
		}
		return
	}

	go client.writePump()
	go client.readPump()
}
