package websocket

import (
	"context"
	"encoding/base64"
	"sync"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"homewatch/internal/logger"
	"homewatch/internal/model"
)

// broadcastQueueSize bounds how many messages may wait for the hub loop.
const broadcastQueueSize = 64

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Message types pushed to viewers.
const (
	MessageFrame       = "frame"
	MessageObservation = "observation"
)

type frameMessage struct {
	Type   string `json:"type"`
	Camera string `json:"camera"`
	Image  string `json:"image"`
}

type observationMessage struct {
	Type        string             `json:"type"`
	Observation *model.Observation `json:"observation"`
	TopActivity model.ActivityType `json:"top_activity"`
}

type HubService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{} // closed when Run returns
	mutex      sync.RWMutex
	logger     *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, broadcastQueueSize),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves register, unregister and broadcast requests until ctx is done,
// then closes every client.
func (h *HubService) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Client connected. Total: %d", count)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Client disconnected. Total: %d", count)

		case message := <-h.broadcast:
			h.send(message)

		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return
		}
	}
}

func (h *HubService) send(message []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Error("Error sending message: %v", err)
			delete(h.clients, client)
			client.Close()
		}
	}
}

// Register adds a client. After the hub stopped the client is closed instead.
func (h *HubService) Register(client *websocket.Conn) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues message for every client. It drops the message when the
// queue is full so camera ingest never blocks on slow viewers.
func (h *HubService) Broadcast(message []byte) bool {
	select {
	case h.broadcast <- message:
		return true
	default:
		h.logger.Warning("Broadcast queue full, dropping message")
		return false
	}
}

// BroadcastFrame pushes a JPEG frame as base64.
func (h *HubService) BroadcastFrame(image []byte, camera string) bool {
	msg, err := json.Marshal(frameMessage{
		Type:   MessageFrame,
		Camera: camera,
		Image:  base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		h.logger.Error("Error encoding frame message: %v", err)
		return false
	}
	return h.Broadcast(msg)
}

// BroadcastObservation pushes a perception result.
func (h *HubService) BroadcastObservation(obs *model.Observation) bool {
	msg, err := json.Marshal(observationMessage{
		Type:        MessageObservation,
		Observation: obs,
		TopActivity: obs.TopActivity(),
	})
	if err != nil {
		h.logger.Error("Error encoding observation %s: %v", obs.ID, err)
		return false
	}
	return h.Broadcast(msg)
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
