// Package verify implements the ownership gate in front of a scan: emailed
// one-time codes, single-use scan tokens and sliding-window rate limits.
// Everything is in-memory; records outlive nothing but the process, and
// emails are stored only as salted hashes.
package verify

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"
)

var (
	ErrNoPending     = errors.New("verify: no verification pending")
	ErrCodeExpired   = errors.New("verify: code expired")
	ErrCodeUsed      = errors.New("verify: code already used")
	ErrTooManyTries  = errors.New("verify: too many attempts")
	ErrCodeMismatch  = errors.New("verify: invalid code")
	ErrTokenInvalid  = errors.New("verify: invalid token")
	ErrTokenExpired  = errors.New("verify: token expired")
)

// ── verification codes ──────────────────────────────────────────────────

type codeRecord struct {
	codeHash  string
	salt      string
	expiresAt time.Time
	attempts  int
	used      bool
}

// CodeStore issues and checks emailed verification codes. Codes are
// stored as sha256(salt+code) keyed by sha256(email).
type CodeStore struct {
	mu          sync.Mutex
	records     map[string]*codeRecord
	codeLength  int
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
}

// NewCodeStore builds a store issuing codes of codeLength digits valid
// for ttl with maxAttempts verification tries.
func NewCodeStore(codeLength int, ttl time.Duration, maxAttempts int) *CodeStore {
	if codeLength <= 0 {
		codeLength = 6
	}
	return &CodeStore{
		records:     map[string]*codeRecord{},
		codeLength:  codeLength,
		ttl:         ttl,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// Create issues a fresh code for the email, replacing any pending one.
// The plaintext code is returned exactly once, for dispatch.
func (s *CodeStore) Create(email string) (string, error) {
	code, err := randomDigits(s.codeLength)
	if err != nil {
		return "", fmt.Errorf("verify.Create: %w", err)
	}
	salt, err := randomHex(16)
	if err != nil {
		return "", fmt.Errorf("verify.Create: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupLocked()
	s.records[hashEmail(email)] = &codeRecord{
		codeHash:  hashCode(code, salt),
		salt:      salt,
		expiresAt: s.now().Add(s.ttl),
	}
	return code, nil
}

// Verify checks a code, consuming it on success. Failed attempts count
// against the attempt budget.
func (s *CodeStore) Verify(email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupLocked()

	key := hashEmail(email)
	rec, ok := s.records[key]
	if !ok {
		return ErrNoPending
	}
	switch {
	case rec.used:
		return ErrCodeUsed
	case rec.expiresAt.Before(s.now()):
		delete(s.records, key)
		return ErrCodeExpired
	case rec.attempts >= s.maxAttempts:
		delete(s.records, key)
		return ErrTooManyTries
	}

	rec.attempts++
	if subtle.ConstantTimeCompare([]byte(hashCode(code, rec.salt)), []byte(rec.codeHash)) != 1 {
		return ErrCodeMismatch
	}
	rec.used = true
	return nil
}

// Expiry reports the remaining validity of a pending code, if any.
func (s *CodeStore) Expiry(email string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[hashEmail(email)]
	if !ok || rec.used {
		return 0, false
	}
	left := rec.expiresAt.Sub(s.now())
	if left < 0 {
		return 0, false
	}
	return left, true
}

func (s *CodeStore) cleanupLocked() {
	now := s.now()
	for k, rec := range s.records {
		if rec.used || rec.expiresAt.Before(now) {
			delete(s.records, k)
		}
	}
}

// ── scan tokens ─────────────────────────────────────────────────────────

type tokenRecord struct {
	email     string
	expiresAt time.Time
}

// TokenStore maps single-use scan tokens to the verified email. Consume
// deletes on first use regardless of outcome.
type TokenStore struct {
	mu     sync.Mutex
	tokens map[string]tokenRecord
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenStore(ttl time.Duration) *TokenStore {
	return &TokenStore{tokens: map[string]tokenRecord{}, ttl: ttl, now: time.Now}
}

// Issue mints a 64-char hex token bound to the email.
func (s *TokenStore) Issue(email string) (string, error) {
	token, err := randomHex(32)
	if err != nil {
		return "", fmt.Errorf("verify.Issue: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, rec := range s.tokens {
		if rec.expiresAt.Before(now) {
			delete(s.tokens, k)
		}
	}
	s.tokens[token] = tokenRecord{email: email, expiresAt: now.Add(s.ttl)}
	return token, nil
}

// Consume validates a token and returns the bound email. One-time use:
// the token is removed whether or not it was still valid.
func (s *TokenStore) Consume(token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tokens[token]
	if !ok {
		return "", ErrTokenInvalid
	}
	delete(s.tokens, token)
	if rec.expiresAt.Before(s.now()) {
		return "", ErrTokenExpired
	}
	return rec.email, nil
}

// ── rate limiting ───────────────────────────────────────────────────────

type limiterEntry struct {
	timestamps   []time.Time
	lockoutUntil time.Time
}

// RateLimiter is a sliding-window limiter keyed by hashed strings, with
// an optional lockout once the window is exceeded.
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	now     func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{entries: map[string]*limiterEntry{}, now: time.Now}
}

// Allow records an attempt for key and reports whether it fits within
// maxRequests per window. When it does not, retryAfter says how long the
// caller must wait; with lockout > 0 the key is frozen for that long.
func (l *RateLimiter) Allow(key string, maxRequests int, window, lockout time.Duration) (bool, time.Duration) {
	hashed := hashEmail(key) // same digest works for any identifier

	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()

	entry, ok := l.entries[hashed]
	if !ok {
		entry = &limiterEntry{}
		l.entries[hashed] = entry
	}

	if entry.lockoutUntil.After(now) {
		return false, entry.lockoutUntil.Sub(now)
	}
	entry.lockoutUntil = time.Time{}

	windowStart := now.Add(-window)
	kept := entry.timestamps[:0]
	for _, t := range entry.timestamps {
		if t.After(windowStart) {
			kept = append(kept, t)
		}
	}
	entry.timestamps = kept

	if len(entry.timestamps) < maxRequests {
		entry.timestamps = append(entry.timestamps, now)
		return true, 0
	}

	if lockout > 0 {
		entry.lockoutUntil = now.Add(lockout)
		return false, lockout
	}
	oldest := entry.timestamps[0]
	return false, oldest.Add(window).Sub(now) + time.Second
}

// Reset clears the window for a key, e.g. after a successful verification.
func (l *RateLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, hashEmail(key))
}

// ── helpers ─────────────────────────────────────────────────────────────

func hashEmail(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(email)))
	return hex.EncodeToString(sum[:])
}

func hashCode(code, salt string) string {
	sum := sha256.Sum256([]byte(salt + code))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func randomDigits(n int) (string, error) {
	digits := make([]byte, n)
	for i := range digits {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + d.Int64())
	}
	return string(digits), nil
}
