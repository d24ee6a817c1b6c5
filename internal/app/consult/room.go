/*
Package consult hosts the real-time side of a video consultation: the text
chat relay between the doctor and the patient, and the join-code handshake
that lets a patient enter the doctor's room.

Each consultation is a two-party Room with its own event loop. Clients attach
over WebSocket and the Room relays text frames between them.
*/
package consult

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telemed/internal/pkg/logx"
)

const broadcastChannelBuffer = 256

const (
	// ConsultationMaxClients limits a room to the doctor and one patient.
	ConsultationMaxClients = 2

	// RoomInactivityTimeout is the duration after which an empty room shuts
	// itself down.
	RoomInactivityTimeout = 10 * time.Minute
)

// RoomCleanupMsg notifies the Manager that a room finished its run loop.
type RoomCleanupMsg struct {
	RoomID string
}

// Room is the hub for one consultation's chat session.
type Room struct {
	// ID is the normalized consultation room identifier, shared with the
	// video session.
	ID string

	clients     map[string]*Client
	broadcast   chan Message
	register    chan *Client
	unregister  chan *Client
	cleanupChan chan<- RoomCleanupMsg
	stopChan    chan struct{}

	// shutdownTimer tracks room inactivity.
	shutdownTimer *time.Timer

	mu     sync.RWMutex
	logger zerolog.Logger
}

// NewRoom creates and initializes a Room.
func NewRoom(roomID string, cleanupChan chan<- RoomCleanupMsg) *Room {
	roomLogger := logx.Logger().With().
		Str("room_id", roomID).
		Logger()

	return &Room{
		ID:            roomID,
		clients:       make(map[string]*Client),
		broadcast:     make(chan Message, broadcastChannelBuffer),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		cleanupChan:   cleanupChan,
		stopChan:      make(chan struct{}),
		shutdownTimer: time.NewTimer(RoomInactivityTimeout),
		logger:        roomLogger,
	}
}

// Stop terminates the Room's Run loop immediately.
func (r *Room) Stop() {
	select {
	case <-r.stopChan:
	default:
		close(r.stopChan)
	}
}

// IsFull checks if both consultation seats are taken.
func (r *Room) IsFull() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients) >= ConsultationMaxClients
}

// RegisterClient queues a client for registration.
func (r *Room) RegisterClient(client *Client) {
	select {
	case r.register <- client:
	case <-r.stopChan:
		client.SendError("Consultation has ended.")
		close(client.send)
	}
}

// Run is the Room's event loop: client registration, deregistration, message
// relay, and inactivity shutdown.
func (r *Room) Run() {
	defer r.finish()

	timerChan := r.shutdownTimer.C

	for {
		select {
		case client := <-r.register:
			r.handleRegister(client)

		case client := <-r.unregister:
			r.handleUnregister(client)

		case message := <-r.broadcast:
			r.relay(message)

		case <-timerChan:
			r.logger.Info().Dur("timeout", RoomInactivityTimeout).Msg("Room inactivity timeout reached. Shutting down.")
			return

		case <-r.stopChan:
			r.logger.Info().Msg("Room forced stop.")
			return
		}
	}
}

func (r *Room) handleRegister(client *Client) {
	r.mu.Lock()

	if existing, ok := r.clients[client.user.ID]; ok {
		// Same participant reconnecting (page reload, network switch).
		r.logger.Warn().Str("client_id", client.user.ID).Msg("Participant already connected. Replacing old connection.")
		existing.Kick("Session replaced by a new connection.")
		delete(r.clients, client.user.ID)
	}

	if len(r.clients) >= ConsultationMaxClients {
		r.logger.Warn().Str("client_id", client.user.ID).Msg("Consultation is full. Client rejected.")
		r.mu.Unlock()
		client.SendError("Consultation is full.")
		close(client.send)
		return
	}

	if r.shutdownTimer.Stop() {
		select {
		case <-r.shutdownTimer.C:
		default:
		}
	}

	r.clients[client.user.ID] = client
	online := make([]Participant, 0, len(r.clients))
	for _, c := range r.clients {
		online = append(online, c.user)
	}

	r.logger.Info().
		Str("client_id", client.user.ID).
		Int("total_users", len(r.clients)).
		Msg("Participant joined consultation.")

	r.mu.Unlock()

	if err := client.SendInitData(InitDataPayload{
		CurrentUser: client.user,
		OnlineUsers: online,
		MaxUsers:    ConsultationMaxClients,
	}); err != nil {
		r.handleUnregister(client)
		return
	}

	r.announce(TypeUserJoined, client.user)
}

func (r *Room) handleUnregister(client *Client) {
	r.mu.Lock()

	current, ok := r.clients[client.user.ID]
	if !ok || current != client {
		// Stale connection already replaced; nothing to do.
		r.mu.Unlock()
		return
	}

	delete(r.clients, client.user.ID)
	select {
	case <-client.send:
	default:
		close(client.send)
	}

	empty := len(r.clients) == 0
	r.logger.Info().
		Str("client_id", client.user.ID).
		Int("total_users", len(r.clients)).
		Msg("Participant left consultation.")

	if empty {
		if r.shutdownTimer.Stop() {
			select {
			case <-r.shutdownTimer.C:
			default:
			}
		}
		r.shutdownTimer.Reset(RoomInactivityTimeout)
	}

	r.mu.Unlock()

	r.announce(TypeUserLeft, client.user)
}

// relay forwards a message to every participant except its sender.
func (r *Room) relay(message Message) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		r.logger.Error().Str("message_id", message.ID).Err(err).Msg("Error marshaling message for relay.")
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, client := range r.clients {
		if client.user.ID == message.Sender.ID {
			continue
		}
		select {
		case client.send <- messageBytes:
		default:
			r.logger.Warn().Str("client_id", client.user.ID).Msg("Client send channel full, dropping frame.")
		}
	}
}

// announce broadcasts a presence event from the system sender.
func (r *Room) announce(msgType MessageType, p Participant) {
	msg, err := NewMessage(msgType, r.ID, SystemUser, UserEventPayload{User: p})
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to build presence message.")
		return
	}

	select {
	case r.broadcast <- msg:
	default:
		r.logger.Warn().Msg("Broadcast channel full during presence announcement.")
	}
}

// finish notifies the Manager and releases all client channels.
func (r *Room) finish() {
	r.logger.Info().Msg("Room run loop finished.")

	// RegisterClient calls arriving after the loop exits must take the stop
	// arm instead of blocking on a channel nobody reads anymore.
	r.Stop()

	if r.shutdownTimer != nil {
		r.shutdownTimer.Stop()
	}

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				logx.Warn("Manager cleanup channel closed during room shutdown.")
			}
		}()

		select {
		case r.cleanupChan <- RoomCleanupMsg{RoomID: r.ID}:
		default:
			r.logger.Warn().Msg("Manager cleanup channel blocked. Skipping cleanup notification.")
		}
	}()

	r.mu.Lock()
	for _, client := range r.clients {
		select {
		case <-client.send:
		default:
			close(client.send)
		}
	}
	r.clients = make(map[string]*Client)
	r.mu.Unlock()
}
