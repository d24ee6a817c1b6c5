package consult

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telemed/internal/pkg/errs"
	"telemed/internal/pkg/logx"
	"telemed/internal/pkg/randx"
	"telemed/internal/video/token"
)

// Consultation holds the metadata of one scheduled video consultation.
type Consultation struct {
	// RoomID is the normalized room identifier shared with the video session.
	RoomID string `json:"roomId"`

	// JoinCode is the short code the patient enters to join.
	JoinCode string `json:"joinCode"`

	DoctorID   string    `json:"doctorId"`
	DoctorName string    `json:"doctorName"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Manager coordinates all active consultations and their chat rooms.
type Manager struct {
	// consultations is keyed by RoomID; joinCodes resolves a patient's code
	// to the RoomID.
	consultations map[string]*Consultation
	joinCodes     map[string]string
	rooms         map[string]*Room

	mu sync.RWMutex

	// cleanup is the channel rooms use to request their own removal.
	cleanup chan RoomCleanupMsg
	wg      sync.WaitGroup

	logger zerolog.Logger
}

// NewManager constructs a Manager and starts its cleanup loop.
func NewManager() *Manager {
	m := &Manager{
		consultations: make(map[string]*Consultation),
		joinCodes:     make(map[string]string),
		rooms:         make(map[string]*Room),
		cleanup:       make(chan RoomCleanupMsg, 10),
		logger:        logx.Logger().With().Str("component", "ConsultManager").Logger(),
	}

	m.wg.Add(1)
	go m.runCleanupLoop()

	return m
}

func (m *Manager) runCleanupLoop() {
	defer m.wg.Done()

	for msg := range m.cleanup {
		m.deleteConsultation(msg.RoomID)
	}
}

// deleteConsultation removes the room, its metadata, and its join code.
func (m *Manager) deleteConsultation(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.consultations[roomID]; ok {
		delete(m.joinCodes, c.JoinCode)
		delete(m.consultations, roomID)
	}
	if _, ok := m.rooms[roomID]; ok {
		delete(m.rooms, roomID)
		m.logger.Info().Str("room_id", roomID).Msg("Consultation removed.")
	}
}

// CreateConsultation sets up a new consultation for a doctor: a normalized
// room identifier, a patient join code, and a running chat room.
func (m *Manager) CreateConsultation(doctorID, doctorName string) (*Consultation, *errs.CustomError) {
	suffix, err := randx.AppointmentSuffix()
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to generate consultation room suffix.")
		return nil, errs.NewError(errs.ErrUnknown)
	}
	joinCode, err := randx.JoinCode()
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to generate join code.")
		return nil, errs.NewError(errs.ErrUnknown)
	}

	roomID := token.NormalizeRoomID("consultation-" + suffix)

	m.mu.Lock()
	defer m.mu.Unlock()

	// Suffixes are 8 random base36 chars; a collision means the generator is
	// broken, not unlucky.
	if _, ok := m.rooms[roomID]; ok {
		m.logger.Error().Str("room_id", roomID).Msg("Room identifier collision.")
		return nil, errs.NewError(errs.ErrUnknown)
	}

	c := &Consultation{
		RoomID:     roomID,
		JoinCode:   joinCode,
		DoctorID:   doctorID,
		DoctorName: doctorName,
		CreatedAt:  time.Now().UTC(),
	}

	room := NewRoom(roomID, m.cleanup)
	m.consultations[roomID] = c
	m.joinCodes[joinCode] = roomID
	m.rooms[roomID] = room

	go room.Run()

	m.logger.Info().
		Str("room_id", roomID).
		Str("doctor_id", doctorID).
		Msg("Consultation created.")

	return c, nil
}

// JoinByCode resolves a patient's join code to the consultation, rejecting
// malformed codes and full rooms.
func (m *Manager) JoinByCode(code string) (*Consultation, *errs.CustomError) {
	code = strings.ToLower(strings.TrimSpace(code))
	if !randx.IsValidJoinCode(code) {
		return nil, errs.NewError(errs.ErrJoinCodeInvalid)
	}

	m.mu.RLock()
	roomID, ok := m.joinCodes[code]
	var c *Consultation
	var room *Room
	if ok {
		c = m.consultations[roomID]
		room = m.rooms[roomID]
	}
	m.mu.RUnlock()

	if !ok || c == nil || room == nil {
		return nil, errs.NewError(errs.ErrJoinCodeInvalid)
	}
	if room.IsFull() {
		return nil, errs.NewError(errs.ErrConsultationFull)
	}

	return c, nil
}

// GetConsultation returns the consultation for a room, if it exists.
func (m *Manager) GetConsultation(roomID string) *Consultation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.consultations[roomID]
}

// GetRoom retrieves a Room by its identifier.
func (m *Manager) GetRoom(roomID string) *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[roomID]
}

// Shutdown stops all rooms and waits for the cleanup loop to drain.
func (m *Manager) Shutdown() {
	m.logger.Info().Msg("Shutting down consultation manager...")

	m.mu.Lock()
	for _, room := range m.rooms {
		room.Stop()
	}
	m.rooms = make(map[string]*Room)
	m.consultations = make(map[string]*Consultation)
	m.joinCodes = make(map[string]string)
	m.mu.Unlock()

	close(m.cleanup)
	m.wg.Wait()

	m.logger.Info().Msg("Consultation manager shutdown complete.")
}
