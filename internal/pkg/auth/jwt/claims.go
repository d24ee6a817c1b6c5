package jwt

import "github.com/golang-jwt/jwt"

// Role values carried in session tokens. The role decides both API access
// (prescriptions are doctor-only) and the moderator claim on video tokens.
const (
	RoleDoctor  = "doctor"
	RolePatient = "patient"
)

// Payload defines the structure of the session JWT claims for the telemed API.
// It includes standard claims required by the JWT specification and custom claims
// necessary for identifying and authorizing participants.
type Payload struct {
	// StandardClaims embeds the necessary JWT standard fields such as Exp (Expiration),
	// Iat (Issued At), and Iss (Issuer). These are crucial for token validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// ID is the unified identifier for the participant: a doctor profile ID for
	// registered doctors, or a consultation-scoped patient ID for joined patients.
	ID string `json:"id"`

	// Role is the participant role, RoleDoctor or RolePatient.
	Role string `json:"role"`

	// Name is the display name used in consultations and video sessions.
	Name string `json:"name"`

	// Email is the account email for doctors; empty for patients.
	Email string `json:"email,omitempty"`

	// Room restricts patient tokens to a single consultation room. Empty for
	// doctor identity tokens, which are not room-scoped.
	Room string `json:"room,omitempty"`
}
