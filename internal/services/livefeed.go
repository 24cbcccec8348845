package services

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"safezone-alert-service/internal/logging"
	"safezone-alert-service/internal/models"
)

const (
	maxConnectionsPerUser = 10
	writeWait             = 10 * time.Second
	maxMessageSize        = 4096
	sendBuffer            = 16
)

// CaregiverLookup finds who else watches a user's alerts.
type CaregiverLookup interface {
	ListAcceptedCaregivers(ctx context.Context, elderlyID uuid.UUID) ([]models.CareRelationship, error)
}

// FeedMessage is the envelope written to live sessions.
type FeedMessage struct {
	Type string                `json:"type"`
	Data models.EmergencyAlert `json:"data"`
}

// session is one live connection. Only its write loop writes to conn.
type session struct {
	conn *websocket.Conn
	send chan []byte
}

// LiveFeed manages WebSocket sessions and pushes alert changes to them.
type LiveFeed struct {
	connections map[uuid.UUID]map[*session]bool // userID -> set of sessions
	mutex       sync.Mutex
	caregivers  CaregiverLookup
	upgrader    websocket.Upgrader
	logger      *logging.Logger
}

func NewLiveFeed(caregivers CaregiverLookup, logger *logging.Logger) *LiveFeed {
	return &LiveFeed{
		connections: make(map[uuid.UUID]map[*session]bool),
		caregivers:  caregivers,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Serve upgrades the request and keeps the session registered until the
// client disconnects. Incoming messages are read and discarded.
func (f *LiveFeed) Serve(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Errorf("WebSocket upgrade failed for user %s: %v", userID, err)
		return
	}
	s := f.register(userID, conn)
	if s == nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too many sessions"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	go f.writeLoop(userID, s)
	defer func() {
		f.unregister(userID, s)
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				f.logger.Warnf("WebSocket read error for user %s: %v", userID, err)
			}
			return
		}
	}
}

// writeLoop drains the session queue until it is closed or a write fails.
func (f *LiveFeed) writeLoop(userID uuid.UUID, s *session) {
	defer func() { _ = s.conn.Close() }()
	for message := range s.send {
		_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			f.logger.Errorf("Failed to send WebSocket message to user %s: %v", userID, err)
			f.unregister(userID, s)
			return
		}
	}
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
		time.Now().Add(writeWait))
}

// register adds a session for conn, or returns nil when userID is at the limit.
func (f *LiveFeed) register(userID uuid.UUID, conn *websocket.Conn) *session {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if _, exists := f.connections[userID]; !exists {
		f.connections[userID] = make(map[*session]bool)
	}
	if len(f.connections[userID]) >= maxConnectionsPerUser {
		f.logger.Warnf("Max connections reached for user %s", userID)
		return nil
	}
	s := &session{conn: conn, send: make(chan []byte, sendBuffer)}
	f.connections[userID][s] = true
	f.logger.Infof("Added WebSocket connection for user %s (total: %d)", userID, len(f.connections[userID]))
	return s
}

func (f *LiveFeed) unregister(userID uuid.UUID, s *session) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.removeLocked(userID, s)
}

// removeLocked drops s and closes its queue once. f.mutex must be held.
func (f *LiveFeed) removeLocked(userID uuid.UUID, s *session) {
	conns, exists := f.connections[userID]
	if !exists || !conns[s] {
		return
	}
	delete(conns, s)
	close(s.send)
	if len(conns) == 0 {
		delete(f.connections, userID)
	}
	f.logger.Infof("Removed WebSocket connection for user %s (remaining: %d)", userID, len(conns))
}

// Connections returns the number of open sessions for userID.
func (f *LiveFeed) Connections(userID uuid.UUID) int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return len(f.connections[userID])
}

// BroadcastAlert sends alert to the alert's owner and every accepted caregiver.
func (f *LiveFeed) BroadcastAlert(alert models.EmergencyAlert) {
	msgType := "alert_created"
	if alert.Status != models.AlertActive {
		msgType = "alert_updated"
	}
	payload, err := json.Marshal(FeedMessage{Type: msgType, Data: alert})
	if err != nil {
		f.logger.Errorf("Failed to encode alert %s: %v", alert.ID, err)
		return
	}

	targets := []uuid.UUID{alert.UserID}
	if f.caregivers != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		rels, err := f.caregivers.ListAcceptedCaregivers(ctx, alert.UserID)
		if err != nil {
			f.logger.Warnf("Failed to load caregivers of user %s: %v", alert.UserID, err)
		}
		for _, rel := range rels {
			targets = append(targets, rel.CaregiverID)
		}
	}

	for _, id := range targets {
		f.SendToUser(id, payload)
	}
}

// SendToUser queues message on every session of userID. A session whose
// queue is full is dropped instead of blocking the caller.
func (f *LiveFeed) SendToUser(userID uuid.UUID, message []byte) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	for s := range f.connections[userID] {
		select {
		case s.send <- message:
		default:
			f.logger.Warnf("WebSocket session of user %s is not keeping up, dropping it", userID)
			f.removeLocked(userID, s)
		}
	}
}
