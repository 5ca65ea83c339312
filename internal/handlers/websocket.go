// -----------------------------------------------------------------------
// WebSocket - live scan progress and debate state pushes on /ws
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jobu711/optionalpha/internal/common"
	"github.com/jobu711/optionalpha/internal/models"
	"github.com/jobu711/optionalpha/internal/services/scan"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

// Message types pushed to clients.
const (
	MessageStatus        = "status"
	MessageScanProgress  = "scan_progress"
	MessageScanFinished  = "scan_finished"
	MessageDebateState   = "debate_state"
	MessageDebateOutcome = "debate_outcome"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type StatusUpdate struct {
	Service          string `json:"service"`
	Version          string `json:"version"`
	ServerInstanceID string `json:"server_instance_id"`
}

type ScanFinishedUpdate struct {
	ScanID      string `json:"scan_id"`
	Status      string `json:"status"`
	Source      string `json:"source"`
	TickerCount int    `json:"ticker_count"`
	ElapsedMs   int64  `json:"elapsed_ms"`
}

type DebateStateUpdate struct {
	Ticker    string `json:"ticker"`
	State     string `json:"state"`
	Timestamp string `json:"timestamp"`
}

type DebateOutcomeUpdate struct {
	Ticker     string  `json:"ticker"`
	Outcome    string  `json:"outcome"`
	Direction  string  `json:"direction"`
	Conviction float64 `json:"conviction"`
	ModelUsed  string  `json:"model_used"`
}

type WebSocketHandler struct {
	logger            arbor.ILogger
	clients           map[*websocket.Conn]bool
	clientMutex       map[*websocket.Conn]*sync.Mutex
	mu                sync.RWMutex
	progressThrottler *rate.Limiter // Intermediate scan_progress events only; nil disables
	serverInstanceID  string        // Clients use it to detect a server restart
}

func NewWebSocketHandler(logger arbor.ILogger, config *common.WebSocketConfig) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:           logger,
		clients:          make(map[*websocket.Conn]bool),
		clientMutex:      make(map[*websocket.Conn]*sync.Mutex),
		serverInstanceID: uuid.New().String(),
	}

	if config != nil && config.ProgressInterval != "" {
		if interval, err := time.ParseDuration(config.ProgressInterval); err == nil && interval > 0 {
			h.progressThrottler = rate.NewLimiter(rate.Every(interval), 1)
			logger.Debug().
				Str("interval", config.ProgressInterval).
				Msg("Throttler initialized for scan_progress events")
		} else {
			logger.Warn().
				Str("interval", config.ProgressInterval).
				Msg("Invalid scan_progress throttle interval - throttler disabled")
		}
	}

	logger.Info().Str("server_instance_id", h.serverInstanceID).Msg("WebSocket handler initialized")
	return h
}

// HandleWebSocket upgrades the connection and keeps it registered until the
// client goes away. Client messages are read and discarded.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Int("clients", clientCount).Msg("WebSocket client connected")

	h.sendStatus(conn)

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
		clientCount := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Int("clients", clientCount).Msg("WebSocket client disconnected")
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			break
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *WebSocketHandler) sendStatus(conn *websocket.Conn) {
	data, err := json.Marshal(WSMessage{
		Type: MessageStatus,
		Payload: StatusUpdate{
			Service:          "ONLINE",
			Version:          common.GetVersion(),
			ServerInstanceID: h.serverInstanceID,
		},
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal initial status")
		return
	}

	h.mu.RLock()
	mutex := h.clientMutex[conn]
	h.mu.RUnlock()

	if mutex != nil {
		mutex.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutex.Unlock()

		if err != nil {
			h.logger.Warn().Err(err).Msg("Failed to send initial status")
		}
	}
}

// broadcast sends one message to every client. Writes to a single
// connection are serialised by its mutex.
func (h *WebSocketHandler) broadcast(msgType string, payload interface{}) {
	data, err := json.Marshal(WSMessage{Type: msgType, Payload: payload})
	if err != nil {
		h.logger.Error().Err(err).Str("type", msgType).Msg("Failed to marshal WebSocket message")
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn := range h.clients {
		clients = append(clients, conn)
		mutexes = append(mutexes, h.clientMutex[conn])
	}
	h.mu.RUnlock()

	for i, conn := range clients {
		mutex := mutexes[i]
		mutex.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutex.Unlock()

		if err != nil {
			h.logger.Warn().Err(err).Str("type", msgType).Msg("Failed to send message to client")
		}
	}
}

// BroadcastScanProgress pushes a scan progress event. Intermediate events are
// throttled; the last event of each phase always goes out.
func (h *WebSocketHandler) BroadcastScanProgress(progress scan.Progress) {
	final := progress.Total == 0 || progress.Current >= progress.Total
	if !final && h.progressThrottler != nil && !h.progressThrottler.Allow() {
		return
	}
	h.broadcast(MessageScanProgress, progress)
}

// BroadcastScanFinished pushes the terminal state of a scan run.
func (h *WebSocketHandler) BroadcastScanFinished(run models.ScanRun, elapsed time.Duration) {
	h.broadcast(MessageScanFinished, ScanFinishedUpdate{
		ScanID:      run.ID,
		Status:      run.Status,
		Source:      run.Source,
		TickerCount: run.TickerCount,
		ElapsedMs:   elapsed.Milliseconds(),
	})
}

// BroadcastDebateState pushes one debate state transition.
func (h *WebSocketHandler) BroadcastDebateState(ticker, state string) {
	h.broadcast(MessageDebateState, DebateStateUpdate{
		Ticker:    ticker,
		State:     state,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// BroadcastDebateOutcome pushes the result of a debate.
func (h *WebSocketHandler) BroadcastDebateOutcome(ticker, outcome string, thesis models.TradeThesis) {
	h.broadcast(MessageDebateOutcome, DebateOutcomeUpdate{
		Ticker:     ticker,
		Outcome:    outcome,
		Direction:  string(thesis.Direction),
		Conviction: thesis.Conviction,
		ModelUsed:  thesis.ModelUsed,
	})
}
