package consult

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"telemed/internal/pkg/errs"
	"telemed/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a raw client frame.
	maxMessageSize = 8192

	// MaxContentBytes bounds the text content of a single chat message.
	MaxContentBytes = 5000

	// WsCloseCodeSessionKicked signals that the session was replaced by a
	// newer connection from the same participant.
	WsCloseCodeSessionKicked = 4001
)

// Client represents an active WebSocket connection of one consultation
// participant.
type Client struct {
	room *Room
	conn *websocket.Conn
	user Participant

	// send queues outbound frames for WritePump.
	send chan []byte

	logger zerolog.Logger
}

// NewClient constructs a Client bound to a room and connection.
func NewClient(room *Room, wsConn *websocket.Conn, user Participant) *Client {
	clientLogger := logx.Logger().With().
		Str("client_id", user.ID).
		Str("room_id", room.ID).
		Logger()

	return &Client{
		room:   room,
		conn:   wsConn,
		user:   user,
		send:   make(chan []byte, 64),
		logger: clientLogger,
	}
}

// ReadPump reads client frames until the connection drops, then unregisters.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Connection read ended unexpectedly")
			}
			break
		}

		c.processInboundMessage(messageBytes)
	}
}

func (c *Client) cleanupOnDisconnect() {
	select {
	case c.room.unregister <- c:
	default:
		c.logger.Warn().Msg("Room unregister channel blocked during disconnect.")
	}

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Connection close after disconnect")
	}
}

func (c *Client) processInboundMessage(messageBytes []byte) {
	var inbound struct {
		Type    MessageType     `json:"type"`
		Payload json.RawMessage `json:"payload,omitempty"`
		TempID  string          `json:"tempID,omitempty"`
	}

	if err := json.Unmarshal(messageBytes, &inbound); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid JSON")
		return
	}

	switch inbound.Type {
	case TypeText:
		c.handleText(inbound.Payload, inbound.TempID)
	default:
		c.logger.Warn().Str("msg_type", string(inbound.Type)).Msg("Client sent unsupported message type")
	}
}

func (c *Client) handleText(payloadBytes json.RawMessage, tempID string) {
	var textPayload TextPayload
	if err := json.Unmarshal(payloadBytes, &textPayload); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid TEXT payload")
		return
	}

	if textPayload.Content == "" {
		return
	}
	if len(textPayload.Content) > MaxContentBytes {
		c.SendError(errs.NewError(errs.ErrMessageContentTooLong).Message)
		return
	}

	msg, err := NewMessage(TypeText, c.room.ID, c.user, textPayload)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to build text message")
		return
	}

	c.sendConfirmation(tempID, msg)
	c.room.broadcast <- msg
}

// WritePump writes queued frames and heartbeat pings to the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close in WritePump")
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline")
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error().Err(err).Msg("Error writing message")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Kick closes the connection with the session-replaced close code.
func (c *Client) Kick(reason string) {
	deadline := time.Now().Add(writeWait)
	closeMsg := websocket.FormatCloseMessage(WsCloseCodeSessionKicked, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, closeMsg, deadline)
	_ = c.conn.Close()
}

// SendError queues a TypeError frame for the client.
func (c *Client) SendError(message string) {
	msg, err := NewMessage(TypeError, c.room.ID, SystemUser, ErrorPayload{Message: message})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to build error message")
		return
	}
	c.queue(msg)
}

// SendInitData sends the room snapshot directly; a failure means the
// connection is unusable and the caller should unregister the client.
func (c *Client) SendInitData(payload InitDataPayload) error {
	msg, err := NewMessage(TypeInitData, c.room.ID, SystemUser, payload)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case c.send <- raw:
		return nil
	default:
		return websocket.ErrCloseSent
	}
}

func (c *Client) sendConfirmation(tempID string, delivered Message) {
	if tempID == "" {
		return
	}

	msg, err := NewMessage(TypeConfirm, c.room.ID, SystemUser, ConfirmPayload{
		TempID:    tempID,
		MessageID: delivered.ID,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to build confirmation message")
		return
	}
	c.queue(msg)
}

func (c *Client) queue(msg Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to marshal outbound frame")
		return
	}

	select {
	case c.send <- raw:
	default:
		c.logger.Warn().Msg("Send channel full, dropping outbound frame.")
	}
}
