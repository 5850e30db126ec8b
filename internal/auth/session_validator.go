package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultSessionIssuer is the issuer claim stamped on hub session tokens.
	DefaultSessionIssuer = "tauth"

	authorizationHeader = "Authorization"
	bearerScheme        = "bearer"
)

var (
	ErrMissingSessionSigningKey = errors.New("auth: session signing secret is empty")
	ErrMissingSessionCookieName = errors.New("auth: session cookie name is empty")
	ErrMissingSessionToken      = errors.New("auth: no session token on request")
	ErrInvalidSessionToken      = errors.New("auth: session token rejected")
	ErrExpiredSessionToken      = errors.New("auth: session token expired")
	ErrMissingSessionSubject    = errors.New("auth: session token has no user")
)

// SessionClaims is the JWT payload of a hub session.
type SessionClaims struct {
	UserID          string   `json:"user_id"`
	UserEmail       string   `json:"user_email"`
	UserDisplayName string   `json:"user_display_name"`
	UserAvatarURL   string   `json:"user_avatar_url,omitempty"`
	UserRoles       []string `json:"user_roles"`
	jwt.RegisteredClaims
}

func (c SessionClaims) hasUser() bool {
	return strings.TrimSpace(c.Subject) != "" && strings.TrimSpace(c.UserID) != ""
}

// SessionValidatorConfig configures the HS256 session check. Leeway tolerates clock skew on exp/nbf.
type SessionValidatorConfig struct {
	SigningSecret []byte
	Issuer        string
	CookieName    string
	Leeway        time.Duration
	Clock         func() time.Time
}

// SessionValidator authenticates requests carrying a hub session, either as a cookie or a bearer token.
type SessionValidator struct {
	signingSecret []byte
	cookieName    string
	parser        *jwt.Parser
}

func NewSessionValidator(cfg SessionValidatorConfig) (*SessionValidator, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, ErrMissingSessionSigningKey
	}
	cookieName := strings.TrimSpace(cfg.CookieName)
	if cookieName == "" {
		return nil, ErrMissingSessionCookieName
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = DefaultSessionIssuer
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &SessionValidator{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		cookieName:    cookieName,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(cfg.Leeway),
			jwt.WithTimeFunc(clock),
		),
	}, nil
}

// ValidateToken checks signature, issuer and expiry of a raw session token.
func (v *SessionValidator) ValidateToken(raw string) (SessionClaims, error) {
	token := strings.TrimSpace(raw)
	if token == "" {
		return SessionClaims{}, ErrMissingSessionToken
	}

	var claims SessionClaims
	if _, err := v.parser.ParseWithClaims(token, &claims, v.signingKey); err != nil {
		return SessionClaims{}, classifyParseError(err)
	}
	if !claims.hasUser() {
		return SessionClaims{}, ErrMissingSessionSubject
	}
	return claims, nil
}

// ValidateRequest prefers the session cookie and falls back to "Authorization: Bearer".
func (v *SessionValidator) ValidateRequest(r *http.Request) (SessionClaims, error) {
	token, ok := v.requestToken(r)
	if !ok {
		return SessionClaims{}, ErrMissingSessionToken
	}
	return v.ValidateToken(token)
}

func (v *SessionValidator) requestToken(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	if cookie, err := r.Cookie(v.cookieName); err == nil && strings.TrimSpace(cookie.Value) != "" {
		return cookie.Value, true
	}
	scheme, token, found := strings.Cut(strings.TrimSpace(r.Header.Get(authorizationHeader)), " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) || strings.TrimSpace(token) == "" {
		return "", false
	}
	return token, true
}

func (v *SessionValidator) signingKey(*jwt.Token) (any, error) {
	return v.signingSecret, nil
}

// classifyParseError keeps expiry distinguishable so callers can log it quietly.
func classifyParseError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrExpiredSessionToken
	}
	return fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
}
