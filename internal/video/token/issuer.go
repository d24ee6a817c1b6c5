package token

import (
	"crypto/rsa"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt"
)

const (
	// TokenAudience is the aud claim value mandated by the conferencing backend.
	TokenAudience = "jitsi"

	// TokenIssuer is the iss claim value mandated by the conferencing backend.
	TokenIssuer = "chat"

	// ClockSkewTolerance backdates the nbf claim so small clock differences
	// between this server and the verifier do not reject fresh tokens.
	ClockSkewTolerance = 10 * time.Second

	// DefaultExpirationMinutes is the token lifetime applied when a request
	// does not ask for one.
	DefaultExpirationMinutes = 60

	// DefaultDomain is the conferencing host used unless configured otherwise.
	DefaultDomain = "8x8.vc"
)

// Config holds the signing configuration for the issuer.
type Config struct {
	// AppID is the tenant application identifier, used as the sub claim and
	// the room name prefix.
	AppID string

	// KeyID is embedded in the token header so the backend can select the
	// matching public key.
	KeyID string

	// PrivateKeyPEM is the signing key as an inline PEM string. Escaped "\n"
	// sequences are unescaped, so the value can be carried in a single-line
	// environment variable.
	PrivateKeyPEM string

	// PrivateKeyPath is a filesystem fallback for the signing key, intended
	// for non-production environments. PrivateKeyPEM wins when both are set.
	PrivateKeyPath string

	// Domain is the conferencing host returned with issued tokens.
	Domain string

	// DefaultExpirationMinutes overrides the package default lifetime when positive.
	DefaultExpirationMinutes int
}

// missingItems returns every absent configuration item by name.
func (c Config) missingItems() []string {
	var missing []string

	if c.AppID == "" {
		missing = append(missing, "app ID")
	}
	if c.KeyID == "" {
		missing = append(missing, "key ID")
	}
	if c.PrivateKeyPEM == "" && c.PrivateKeyPath == "" {
		missing = append(missing, "private key (inline value or file path)")
	}

	return missing
}

// Issuer produces signed conferencing credentials. Issuance is stateless and
// safe for concurrent use; the parsed private key is cached after first load.
type Issuer struct {
	cfg Config
	now func() time.Time

	mu  sync.Mutex
	key *rsa.PrivateKey
}

// Option adjusts issuer construction.
type Option func(*Issuer)

// WithClock replaces the issuer's time source. Tests use this to make
// iat/exp/nbf deterministic.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

// NewIssuer constructs an Issuer for the given configuration. Configuration
// completeness is checked per issuance, not here, so a server missing video
// settings still boots and reports the itemized defect when the feature is used.
func NewIssuer(cfg Config, opts ...Option) *Issuer {
	if cfg.Domain == "" {
		cfg.Domain = DefaultDomain
	}
	if cfg.DefaultExpirationMinutes <= 0 {
		cfg.DefaultExpirationMinutes = DefaultExpirationMinutes
	}

	issuer := &Issuer{
		cfg: cfg,
		now: time.Now,
	}

	for _, opt := range opts {
		opt(issuer)
	}

	return issuer
}

// Issue validates the request and configuration, then builds and signs a
// time-bounded credential. Every failure is returned as a *Error with a
// classified Kind; nothing is signed on a validation failure.
func (i *Issuer) Issue(req Request) (*IssuedToken, error) {
	if missing := req.MissingFields(); len(missing) > 0 {
		return nil, &Error{
			Kind:    KindValidation,
			Message: "missing required fields",
			Missing: missing,
		}
	}

	if req.UserRole != RoleDoctor && req.UserRole != RolePatient {
		return nil, &Error{
			Kind:    KindValidation,
			Message: "userRole must be \"doctor\" or \"patient\"",
		}
	}

	roomID := NormalizeRoomID(req.RoomID)
	if strings.Trim(roomID, "-") == "" {
		return nil, &Error{
			Kind:    KindValidation,
			Message: "roomId is empty after normalization",
		}
	}

	if missing := i.cfg.missingItems(); len(missing) > 0 {
		return nil, &Error{
			Kind:    KindConfiguration,
			Message: "signing configuration incomplete",
			Missing: missing,
		}
	}

	key, err := i.privateKey()
	if err != nil {
		return nil, &Error{
			Kind:    KindKeyLoad,
			Message: "failed to load signing key",
			Err:     err,
		}
	}

	minutes := req.ExpirationMinutes
	if minutes <= 0 {
		minutes = i.cfg.DefaultExpirationMinutes
	}

	now := i.now()
	expiresAt := now.Add(time.Duration(minutes) * time.Minute)
	isModerator := req.UserRole == RoleDoctor

	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Audience:  TokenAudience,
			Issuer:    TokenIssuer,
			Subject:   i.cfg.AppID,
			IssuedAt:  now.Unix(),
			ExpiresAt: expiresAt.Unix(),
			NotBefore: now.Add(-ClockSkewTolerance).Unix(),
		},
		Context: ClaimsContext{
			User: UserClaims{
				HiddenFromRecorder: false,
				Moderator:          isModerator,
				Name:               req.UserName,
				ID:                 req.UserID,
				Avatar:             "",
				Email:              req.UserEmail,
			},
			// The zero value disables every feature, which is exactly the
			// required claim set.
			Features: FeatureClaims{},
		},
		Room: "*",
	}

	jwtToken := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	jwtToken.Header["kid"] = i.cfg.KeyID

	signed, err := jwtToken.SignedString(key)
	if err != nil {
		return nil, &Error{
			Kind:    KindKeyLoad,
			Message: "failed to sign token",
			Err:     err,
		}
	}

	return &IssuedToken{
		Token:     signed,
		ExpiresAt: expiresAt,
		RoomName:  i.cfg.AppID + "/" + roomID,
		UserRole:  req.UserRole,
		Moderator: isModerator,
		Domain:    i.cfg.Domain,
	}, nil
}

// privateKey resolves the signing key: the inline configured value first,
// then the configured file path. The parsed key is cached for reuse.
func (i *Issuer) privateKey() (*rsa.PrivateKey, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.key != nil {
		return i.key, nil
	}

	pemData := i.cfg.PrivateKeyPEM
	if pemData != "" {
		pemData = strings.ReplaceAll(pemData, `\n`, "\n")
	} else {
		raw, err := os.ReadFile(i.cfg.PrivateKeyPath)
		if err != nil {
			return nil, err
		}
		pemData = string(raw)
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(pemData))
	if err != nil {
		return nil, err
	}

	i.key = key
	return key, nil
}
