package auth

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// nonceEntry stores nonce metadata
type nonceEntry struct {
	userID string
	expiry time.Time
}

// NonceManager issues and validates the per-session anti-forgery token
// that accompanies heartbeat activity pings.
type NonceManager struct {
	validNonces map[string]*nonceEntry
	mu          sync.RWMutex
	nonceTTL    time.Duration
}

// NewNonceManager creates a new NonceManager
func NewNonceManager() *NonceManager {
	manager := &NonceManager{
		validNonces: make(map[string]*nonceEntry),
		nonceTTL:    12 * time.Hour, // outlives any reasonable idle timeout
	}

	go manager.cleanupExpiredNonces()

	return manager
}

// GenerateNonce creates a new ping nonce bound to a user
func (m *NonceManager) GenerateNonce(userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	randomBytes := make([]byte, 32)
	_, err := rand.Read(randomBytes)
	if err != nil {
		return "", err
	}

	nonce := hex.EncodeToString(randomBytes)
	m.validNonces[nonce] = &nonceEntry{
		userID: userID,
		expiry: time.Now().Add(m.nonceTTL),
	}

	return nonce, nil
}

// ValidateNonce checks that a nonce exists, belongs to the user, and has
// not expired
func (m *NonceManager) ValidateNonce(nonce, userID string) bool {
	m.mu.RLock()
	entry, exists := m.validNonces[nonce]
	m.mu.RUnlock()

	if !exists {
		return false
	}

	if entry.userID != userID {
		return false
	}

	if time.Now().After(entry.expiry) {
		m.mu.Lock()
		delete(m.validNonces, nonce)
		m.mu.Unlock()
		return false
	}

	return true
}

// RevokeUserNonces removes every nonce issued to a user (logout)
func (m *NonceManager) RevokeUserNonces(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for nonce, entry := range m.validNonces {
		if entry.userID == userID {
			delete(m.validNonces, nonce)
		}
	}
}

// cleanupExpiredNonces periodically removes expired entries
func (m *NonceManager) cleanupExpiredNonces() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		m.mu.Lock()
		for nonce, entry := range m.validNonces {
			if now.After(entry.expiry) {
				delete(m.validNonces, nonce)
			}
		}
		m.mu.Unlock()
	}
}
