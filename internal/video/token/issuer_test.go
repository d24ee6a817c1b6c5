package token_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"

	"telemed/internal/video/token"
)

// testSigningKey generates a fresh RSA key pair and returns the private key
// as PEM together with the public key for verification.
func testSigningKey(t *testing.T) (string, *rsa.PublicKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}

	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	return string(pemBytes), &key.PublicKey
}

func testConfig(t *testing.T) (token.Config, *rsa.PublicKey) {
	t.Helper()

	keyPEM, pub := testSigningKey(t)
	return token.Config{
		AppID:         "vpaas-magic-cookie-test",
		KeyID:         "vpaas-magic-cookie-test/abc123",
		PrivateKeyPEM: keyPEM,
	}, pub
}

func parseClaims(t *testing.T, signed string, pub *rsa.PublicKey) (*token.Claims, map[string]interface{}) {
	t.Helper()

	claims := &token.Claims{}
	parsed, err := jwt.ParseWithClaims(signed, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return pub, nil
	})
	if err != nil {
		t.Fatalf("failed to parse issued token: %v", err)
	}
	if !parsed.Valid {
		t.Fatal("issued token did not validate")
	}

	return claims, parsed.Header
}

func validRequest() token.Request {
	return token.Request{
		RoomID:   "consultation-42",
		UserID:   "doc1",
		UserName: "Dr. A",
		UserRole: token.RoleDoctor,
	}
}

func TestIssueDefaultLifetimeAndModerator(t *testing.T) {
	cfg, pub := testConfig(t)
	issuer := token.NewIssuer(cfg)

	issued, err := issuer.Issue(validRequest())
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	claims, header := parseClaims(t, issued.Token, pub)

	if got := claims.ExpiresAt - claims.IssuedAt; got != 3600 {
		t.Errorf("exp - iat = %d, want 3600", got)
	}
	if got := claims.IssuedAt - claims.NotBefore; got != 10 {
		t.Errorf("iat - nbf = %d, want 10", got)
	}
	if !issued.Moderator {
		t.Error("Moderator = false for doctor request, want true")
	}
	if !claims.Context.User.Moderator {
		t.Error("claims moderator = false for doctor request, want true")
	}
	if header["kid"] != cfg.KeyID {
		t.Errorf("kid header = %v, want %q", header["kid"], cfg.KeyID)
	}
}

func TestIssueClaimShape(t *testing.T) {
	cfg, pub := testConfig(t)
	issuer := token.NewIssuer(cfg)

	req := validRequest()
	req.UserEmail = "dra@example.com"

	issued, err := issuer.Issue(req)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	claims, _ := parseClaims(t, issued.Token, pub)

	if claims.Audience != "jitsi" {
		t.Errorf("aud = %q, want %q", claims.Audience, "jitsi")
	}
	if claims.Issuer != "chat" {
		t.Errorf("iss = %q, want %q", claims.Issuer, "chat")
	}
	if claims.Subject != cfg.AppID {
		t.Errorf("sub = %q, want %q", claims.Subject, cfg.AppID)
	}
	if claims.Room != "*" {
		t.Errorf("room = %q, want %q", claims.Room, "*")
	}
	if claims.Context.User.Name != "Dr. A" || claims.Context.User.ID != "doc1" {
		t.Errorf("user claims = %+v, want name/id from request", claims.Context.User)
	}
	if claims.Context.User.Email != "dra@example.com" {
		t.Errorf("email claim = %q, want request email", claims.Context.User.Email)
	}
	if claims.Context.User.HiddenFromRecorder {
		t.Error("hidden-from-recorder = true, want false")
	}

	features := claims.Context.Features
	if features.Recording || features.Transcription || features.Livestreaming ||
		features.FileUpload || features.OutboundCall || features.SIPOutboundCall ||
		features.ListVisitors || features.Flip {
		t.Errorf("features = %+v, want every feature disabled", features)
	}

	if issued.RoomName != cfg.AppID+"/consultation-42" {
		t.Errorf("RoomName = %q, want app-scoped room", issued.RoomName)
	}
	if issued.Domain != "8x8.vc" {
		t.Errorf("Domain = %q, want default domain", issued.Domain)
	}
}

func TestIssueEmptyEmailDefaultsToEmptyString(t *testing.T) {
	cfg, pub := testConfig(t)
	issuer := token.NewIssuer(cfg)

	issued, err := issuer.Issue(validRequest())
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	claims, _ := parseClaims(t, issued.Token, pub)
	if claims.Context.User.Email != "" {
		t.Errorf("email claim = %q, want empty string", claims.Context.User.Email)
	}
}

func TestIssuePatientIsNotModerator(t *testing.T) {
	cfg, pub := testConfig(t)
	issuer := token.NewIssuer(cfg)

	req := validRequest()
	req.UserID = "pat1"
	req.UserName = "Patient B"
	req.UserRole = token.RolePatient

	issued, err := issuer.Issue(req)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	if issued.Moderator {
		t.Error("Moderator = true for patient request, want false")
	}

	claims, _ := parseClaims(t, issued.Token, pub)
	if claims.Context.User.Moderator {
		t.Error("claims moderator = true for patient request, want false")
	}
}

func TestIssueCustomLifetime(t *testing.T) {
	cfg, pub := testConfig(t)
	now := time.Now().Truncate(time.Second)
	issuer := token.NewIssuer(cfg, token.WithClock(func() time.Time { return now }))

	req := validRequest()
	req.ExpirationMinutes = 90

	issued, err := issuer.Issue(req)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	claims, _ := parseClaims(t, issued.Token, pub)
	if got := claims.ExpiresAt - claims.IssuedAt; got != 5400 {
		t.Errorf("exp - iat = %d, want 5400", got)
	}
	if claims.IssuedAt != now.Unix() {
		t.Errorf("iat = %d, want injected clock %d", claims.IssuedAt, now.Unix())
	}
	if !issued.ExpiresAt.Equal(now.Add(90 * time.Minute)) {
		t.Errorf("ExpiresAt = %v, want %v", issued.ExpiresAt, now.Add(90*time.Minute))
	}
}

func TestIssueMissingFieldsItemized(t *testing.T) {
	cfg, _ := testConfig(t)
	issuer := token.NewIssuer(cfg)

	req := token.Request{UserEmail: "x@example.com"}

	_, err := issuer.Issue(req)
	if err == nil {
		t.Fatal("Issue() succeeded with empty request, want validation error")
	}

	var issueErr *token.Error
	if !errors.As(err, &issueErr) {
		t.Fatalf("Issue() error type = %T, want *token.Error", err)
	}
	if issueErr.Kind != token.KindValidation {
		t.Errorf("Kind = %v, want KindValidation", issueErr.Kind)
	}

	want := []string{"roomId", "userId", "userName", "userRole"}
	if len(issueErr.Missing) != len(want) {
		t.Fatalf("Missing = %v, want %v", issueErr.Missing, want)
	}
	for i, field := range want {
		if issueErr.Missing[i] != field {
			t.Errorf("Missing[%d] = %q, want %q", i, issueErr.Missing[i], field)
		}
	}
}

func TestIssueRejectsUnknownRole(t *testing.T) {
	cfg, _ := testConfig(t)
	issuer := token.NewIssuer(cfg)

	req := validRequest()
	req.UserRole = "admin"

	_, err := issuer.Issue(req)
	if token.KindOf(err) != token.KindValidation {
		t.Errorf("Issue() error kind = %v, want KindValidation", token.KindOf(err))
	}
}

func TestIssueConfigurationErrorsItemized(t *testing.T) {
	issuer := token.NewIssuer(token.Config{})

	_, err := issuer.Issue(validRequest())
	if err == nil {
		t.Fatal("Issue() succeeded with empty config, want configuration error")
	}

	var issueErr *token.Error
	if !errors.As(err, &issueErr) {
		t.Fatalf("Issue() error type = %T, want *token.Error", err)
	}
	if issueErr.Kind != token.KindConfiguration {
		t.Errorf("Kind = %v, want KindConfiguration", issueErr.Kind)
	}
	if len(issueErr.Missing) != 3 {
		t.Errorf("Missing = %v, want all three config items listed", issueErr.Missing)
	}
}

func TestIssueKeyFileFallback(t *testing.T) {
	keyPEM, pub := testSigningKey(t)

	keyPath := filepath.Join(t.TempDir(), "jaas.key")
	if err := os.WriteFile(keyPath, []byte(keyPEM), 0o600); err != nil {
		t.Fatalf("failed to write key file: %v", err)
	}

	issuer := token.NewIssuer(token.Config{
		AppID:          "vpaas-magic-cookie-test",
		KeyID:          "vpaas-magic-cookie-test/abc123",
		PrivateKeyPath: keyPath,
	})

	issued, err := issuer.Issue(validRequest())
	if err != nil {
		t.Fatalf("Issue() with key file error: %v", err)
	}

	parseClaims(t, issued.Token, pub)
}

func TestIssueInlineKeyWithEscapedNewlines(t *testing.T) {
	keyPEM, pub := testSigningKey(t)

	issuer := token.NewIssuer(token.Config{
		AppID:         "vpaas-magic-cookie-test",
		KeyID:         "vpaas-magic-cookie-test/abc123",
		PrivateKeyPEM: strings.ReplaceAll(keyPEM, "\n", `\n`),
	})

	issued, err := issuer.Issue(validRequest())
	if err != nil {
		t.Fatalf("Issue() with escaped inline key error: %v", err)
	}

	parseClaims(t, issued.Token, pub)
}

func TestIssueKeyLoadFailures(t *testing.T) {
	tests := []struct {
		name string
		cfg  token.Config
	}{
		{
			name: "missing key file",
			cfg: token.Config{
				AppID:          "app",
				KeyID:          "kid",
				PrivateKeyPath: filepath.Join(t.TempDir(), "does-not-exist.key"),
			},
		},
		{
			name: "garbage inline key",
			cfg: token.Config{
				AppID:         "app",
				KeyID:         "kid",
				PrivateKeyPEM: "not a pem block",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			issuer := token.NewIssuer(tc.cfg)

			_, err := issuer.Issue(validRequest())
			if token.KindOf(err) != token.KindKeyLoad {
				t.Errorf("Issue() error kind = %v, want KindKeyLoad (err: %v)", token.KindOf(err), err)
			}
		})
	}
}

func TestIssueIdenticalInputStableClaims(t *testing.T) {
	cfg, pub := testConfig(t)
	clock := time.Now().Truncate(time.Second)
	issuer := token.NewIssuer(cfg, token.WithClock(func() time.Time { return clock }))

	first, err := issuer.Issue(validRequest())
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	clock = clock.Add(5 * time.Second)

	second, err := issuer.Issue(validRequest())
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	firstClaims, _ := parseClaims(t, first.Token, pub)
	secondClaims, _ := parseClaims(t, second.Token, pub)

	if firstClaims.Context != secondClaims.Context || firstClaims.Room != secondClaims.Room ||
		firstClaims.Subject != secondClaims.Subject {
		t.Error("identical requests produced different non-time claims")
	}

	if secondClaims.IssuedAt-firstClaims.IssuedAt != 5 {
		t.Errorf("iat advanced by %d, want 5", secondClaims.IssuedAt-firstClaims.IssuedAt)
	}
	if secondClaims.ExpiresAt-firstClaims.ExpiresAt != 5 {
		t.Errorf("exp advanced by %d, want 5", secondClaims.ExpiresAt-firstClaims.ExpiresAt)
	}
	if secondClaims.NotBefore-firstClaims.NotBefore != 5 {
		t.Errorf("nbf advanced by %d, want 5", secondClaims.NotBefore-firstClaims.NotBefore)
	}
}

func TestNormalizeRoomID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"consultation-42", "consultation-42"},
		{"Consultation 42", "consultation-42"},
		{"TeleMed_Pat1/Doc2", "telemed-pat1-doc2"},
		{"room!@#", "room---"},
	}

	for _, tc := range tests {
		if got := token.NormalizeRoomID(tc.in); got != tc.want {
			t.Errorf("NormalizeRoomID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
