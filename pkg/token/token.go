package token

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrRevokedToken = errors.New("token has been revoked")
)

// Role strings carried by access tokens. Roles are pre-established by the
// surrounding platform; this package only mints and checks them.
const (
	RoleHost    = "host"
	RoleSpeaker = "speaker"
	RoleViewer  = "viewer"
)

// Claims represents the access-token claims for a broadcast participant.
type Claims struct {
	jwt.RegisteredClaims
	UID     string `json:"uid"`
	EventID string `json:"event_id"`
	Name    string `json:"name,omitempty"`
	Role    string `json:"role"`
}

// Manager mints and validates participant access tokens.
type Manager struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	duration   time.Duration
	issuer     string

	// In-memory revocation store, keyed by uid. Entries expire with the
	// longest-lived token they could cover.
	revoked map[string]time.Time
	mu      sync.RWMutex
}

// NewManager creates a new token manager with a fresh RSA key pair.
func NewManager(duration time.Duration, issuer string) (*Manager, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	return &Manager{
		privateKey: privateKey,
		publicKey:  &privateKey.PublicKey,
		duration:   duration,
		issuer:     issuer,
		revoked:    make(map[string]time.Time),
	}, nil
}

// Mint creates a signed access token for a participant in an event.
func (m *Manager) Mint(uid, eventID, name, role string) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.duration)),
		},
		UID:     uid,
		EventID: eventID,
		Name:    name,
		Role:    role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(m.privateKey)
}

// Validate validates a token and returns its claims.
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, ErrInvalidToken
		}
		return m.publicKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if m.IsRevoked(claims.UID) {
		return nil, ErrRevokedToken
	}

	return claims, nil
}

// Revoke invalidates all outstanding tokens for a uid. Used when a speaker
// is kicked off the stage.
func (m *Manager) Revoke(uid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[uid] = time.Now().Add(m.duration)
}

// IsRevoked reports whether a uid's tokens are currently revoked.
func (m *Manager) IsRevoked(uid string) bool {
	m.mu.RLock()
	expiry, exists := m.revoked[uid]
	m.mu.RUnlock()
	if !exists {
		return false
	}
	if time.Now().After(expiry) {
		m.mu.Lock()
		delete(m.revoked, uid)
		m.mu.Unlock()
		return false
	}
	return true
}

// CleanupExpiredRevocations removes expired revocation entries.
func (m *Manager) CleanupExpiredRevocations() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for uid, expiry := range m.revoked {
		if now.After(expiry) {
			delete(m.revoked, uid)
		}
	}
}
