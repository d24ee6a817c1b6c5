package token

import "github.com/golang-jwt/jwt"

// Claims defines the structure of the JWT claims the conferencing backend
// verifies. The shape is mandated by the vendor: standard registered claims
// plus a "context" object carrying the user identity and feature switches,
// and a "room" claim.
type Claims struct {
	// StandardClaims embeds aud, iss, sub, iat, exp, and nbf. aud and iss are
	// fixed protocol values; sub carries the tenant application ID.
	jwt.StandardClaims

	// Context carries the participant identity and the per-session feature set.
	Context ClaimsContext `json:"context"`

	// Room is "*": room restriction is enforced by the backend via the
	// fully-qualified room name passed to the session constructor, not by
	// this claim.
	Room string `json:"room"`
}

// ClaimsContext is the vendor-defined "context" claim.
type ClaimsContext struct {
	User     UserClaims    `json:"user"`
	Features FeatureClaims `json:"features"`
}

// UserClaims identifies the participant inside the signed token.
type UserClaims struct {
	// HiddenFromRecorder is always false; recording is disabled outright.
	HiddenFromRecorder bool `json:"hidden-from-recorder"`

	// Moderator grants elevated in-meeting control. True only for doctors.
	Moderator bool `json:"moderator"`

	// Name is the participant display name.
	Name string `json:"name"`

	// ID is the participant identifier.
	ID string `json:"id"`

	// Avatar is intentionally empty; no avatar URLs are exposed to the vendor.
	Avatar string `json:"avatar"`

	// Email is the participant email, or "" when not supplied.
	Email string `json:"email"`
}

// FeatureClaims lists the vendor feature switches. Every feature is explicitly
// disabled: medical consultations must not be recorded, transcribed,
// streamed, or dialed into. This is a compliance stance, not a default.
type FeatureClaims struct {
	Livestreaming   bool `json:"livestreaming"`
	FileUpload      bool `json:"file-upload"`
	OutboundCall    bool `json:"outbound-call"`
	SIPOutboundCall bool `json:"sip-outbound-call"`
	Transcription   bool `json:"transcription"`
	ListVisitors    bool `json:"list-visitors"`
	Recording       bool `json:"recording"`
	Flip            bool `json:"flip"`
}
