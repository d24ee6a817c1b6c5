package tokenclient

import (
	"fmt"
	"time"

	"telemed/internal/video/token"
)

// ConsultationTokenMinutes is the token lifetime for medical consultations.
// Longer than the issuer default so a consultation that runs over the hour
// does not lose its credential mid-session.
const ConsultationTokenMinutes = 90

// Participant carries the identity fields of one consultation party.
type Participant struct {
	ID    string
	Name  string
	Email string
}

// ConsultationRequest builds the token request for a consultation between a
// doctor and a patient, from the perspective of userRole. The room identifier
// is derived from the appointment ID when present, else from the participant
// IDs and the current time, and is normalized for the conferencing backend.
func ConsultationRequest(patient, doctor Participant, userRole, appointmentID string) token.Request {
	var roomID string
	if appointmentID != "" {
		roomID = "consultation-" + appointmentID
	} else {
		roomID = fmt.Sprintf("telemed-%s-%s-%d", patient.ID, doctor.ID, time.Now().UnixMilli())
	}

	requester := patient
	if userRole == token.RoleDoctor {
		requester = doctor
	}

	return token.Request{
		RoomID:            token.NormalizeRoomID(roomID),
		UserID:            requester.ID,
		UserName:          requester.Name,
		UserEmail:         requester.Email,
		UserRole:          userRole,
		ExpirationMinutes: ConsultationTokenMinutes,
	}
}
