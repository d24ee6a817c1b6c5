/*
Package token mints short-lived, role-scoped credentials for the external
video conferencing backend (JaaS/8x8).

A consultation participant presents one of these signed tokens to the vendor
widget; the vendor verifies it against the public half of our signing key and
admits the participant to the named room with the claimed privileges.
*/
package token

import (
	"fmt"
	"strings"
	"time"
)

// Participant roles accepted in token requests. Doctors receive the moderator
// claim; patients do not.
const (
	RoleDoctor  = "doctor"
	RolePatient = "patient"
)

// Request identifies who is requesting access to which conferencing room.
type Request struct {
	// RoomID is the room identifier, derived from patient/doctor/appointment
	// identifiers. It is normalized (lowercase, [a-z0-9-]) before use.
	RoomID string `json:"roomId"`

	// UserID is the identifier of the requesting participant.
	UserID string `json:"userId"`

	// UserName is the participant's display name, embedded in the token.
	UserName string `json:"userName"`

	// UserEmail is optional; an empty string is embedded when absent.
	UserEmail string `json:"userEmail,omitempty"`

	// UserRole is RoleDoctor or RolePatient and controls the moderator claim.
	UserRole string `json:"userRole"`

	// ExpirationMinutes is the requested token lifetime. Zero selects the
	// issuer's default policy value.
	ExpirationMinutes int `json:"expirationMinutes,omitempty"`
}

// MissingFields returns the names of required fields that are absent,
// in a stable order. An empty slice means the request is complete.
func (r Request) MissingFields() []string {
	var missing []string

	if r.RoomID == "" {
		missing = append(missing, "roomId")
	}
	if r.UserID == "" {
		missing = append(missing, "userId")
	}
	if r.UserName == "" {
		missing = append(missing, "userName")
	}
	if r.UserRole == "" {
		missing = append(missing, "userRole")
	}

	return missing
}

// CacheKey returns the memoization key for this request: tokens are reusable
// across calls that share user, room, and role.
func (r Request) CacheKey() string {
	return fmt.Sprintf("%s-%s-%s", r.UserID, NormalizeRoomID(r.RoomID), r.UserRole)
}

// NormalizeRoomID lowercases the identifier and replaces every character
// outside [a-z0-9-] with a hyphen, matching what the conferencing backend
// accepts in room names.
func NormalizeRoomID(id string) string {
	lowered := strings.ToLower(id)

	var b strings.Builder
	b.Grow(len(lowered))

	for _, char := range lowered {
		if (char >= 'a' && char <= 'z') || (char >= '0' && char <= '9') || char == '-' {
			b.WriteRune(char)
		} else {
			b.WriteRune('-')
		}
	}

	return b.String()
}

// IssuedToken is the signed credential and its metadata, as returned to the
// requesting client.
type IssuedToken struct {
	// Token is the signed JWT string.
	Token string `json:"token"`

	// ExpiresAt is the absolute instant after which the token must not be
	// used to start a new session. Serialized as RFC 3339.
	ExpiresAt time.Time `json:"expiresAt"`

	// RoomName is the fully-qualified room identifier: "<appID>/<roomID>".
	RoomName string `json:"roomName"`

	// UserRole echoes the requested role.
	UserRole string `json:"userRole"`

	// Moderator is true only for doctor tokens.
	Moderator bool `json:"moderator"`

	// Domain is the conferencing host the client should connect to.
	Domain string `json:"domain"`
}
