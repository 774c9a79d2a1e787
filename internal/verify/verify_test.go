package verify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock gives tests deterministic control over store time.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestCodeStore_CreateAndVerify(t *testing.T) {
	s := NewCodeStore(6, 10*time.Minute, 5)

	code, err := s.Create("user@example.com")
	require.NoError(t, err)
	require.Len(t, code, 6)

	// Email lookup is case-insensitive.
	require.NoError(t, s.Verify("USER@example.com", code))

	// Single use: a second verify of the same code fails.
	err = s.Verify("user@example.com", code)
	assert.ErrorIs(t, err, ErrNoPending)
}

func TestCodeStore_Verify_NoPending(t *testing.T) {
	s := NewCodeStore(6, 10*time.Minute, 5)
	assert.ErrorIs(t, s.Verify("nobody@example.com", "123456"), ErrNoPending)
}

func TestCodeStore_Verify_WrongCode(t *testing.T) {
	s := NewCodeStore(6, 10*time.Minute, 3)

	code, err := s.Create("user@example.com")
	require.NoError(t, err)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	assert.ErrorIs(t, s.Verify("user@example.com", wrong), ErrCodeMismatch)

	// The right code still works while attempts remain.
	require.NoError(t, s.Verify("user@example.com", code))
}

func TestCodeStore_Verify_AttemptBudget(t *testing.T) {
	s := NewCodeStore(6, 10*time.Minute, 2)

	code, err := s.Create("user@example.com")
	require.NoError(t, err)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	assert.ErrorIs(t, s.Verify("user@example.com", wrong), ErrCodeMismatch)
	assert.ErrorIs(t, s.Verify("user@example.com", wrong), ErrCodeMismatch)

	// Budget exhausted: even the right code is refused and the record
	// is gone.
	assert.ErrorIs(t, s.Verify("user@example.com", code), ErrTooManyTries)
	assert.ErrorIs(t, s.Verify("user@example.com", code), ErrNoPending)
}

func TestCodeStore_Verify_Expiry(t *testing.T) {
	clock := newFakeClock()
	s := NewCodeStore(6, 10*time.Minute, 5)
	s.now = clock.now

	code, err := s.Create("user@example.com")
	require.NoError(t, err)

	left, ok := s.Expiry("user@example.com")
	require.True(t, ok)
	assert.Equal(t, 10*time.Minute, left)

	clock.advance(11 * time.Minute)
	assert.ErrorIs(t, s.Verify("user@example.com", code), ErrNoPending)

	_, ok = s.Expiry("user@example.com")
	assert.False(t, ok)
}

func TestCodeStore_Create_ReplacesPending(t *testing.T) {
	s := NewCodeStore(6, 10*time.Minute, 5)

	first, err := s.Create("user@example.com")
	require.NoError(t, err)
	second, err := s.Create("user@example.com")
	require.NoError(t, err)

	if first != second {
		assert.ErrorIs(t, s.Verify("user@example.com", first), ErrCodeMismatch)
	}
	require.NoError(t, s.Verify("user@example.com", second))
}

func TestTokenStore_IssueAndConsume(t *testing.T) {
	s := NewTokenStore(10 * time.Minute)

	token, err := s.Issue("user@example.com")
	require.NoError(t, err)
	assert.Len(t, token, 64)

	email, err := s.Consume(token)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", email)

	// One-time use.
	_, err = s.Consume(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenStore_Consume_Expired(t *testing.T) {
	clock := newFakeClock()
	s := NewTokenStore(10 * time.Minute)
	s.now = clock.now

	token, err := s.Issue("user@example.com")
	require.NoError(t, err)

	clock.advance(11 * time.Minute)
	_, err = s.Consume(token)
	assert.ErrorIs(t, err, ErrTokenExpired)

	// Consumption removes the record even on failure.
	_, err = s.Consume(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRateLimiter_SlidingWindow(t *testing.T) {
	clock := newFakeClock()
	l := NewRateLimiter()
	l.now = clock.now

	for range 3 {
		ok, _ := l.Allow("1.2.3.4", 3, time.Hour, 0)
		assert.True(t, ok)
	}

	ok, retryAfter := l.Allow("1.2.3.4", 3, time.Hour, 0)
	assert.False(t, ok)
	assert.Greater(t, retryAfter, time.Duration(0))

	// Another key is unaffected.
	ok, _ = l.Allow("5.6.7.8", 3, time.Hour, 0)
	assert.True(t, ok)

	// Once the window slides past the oldest attempt, requests flow again.
	clock.advance(time.Hour + time.Minute)
	ok, _ = l.Allow("1.2.3.4", 3, time.Hour, 0)
	assert.True(t, ok)
}

func TestRateLimiter_Lockout(t *testing.T) {
	clock := newFakeClock()
	l := NewRateLimiter()
	l.now = clock.now

	ok, _ := l.Allow("key", 1, time.Minute, 15*time.Minute)
	require.True(t, ok)

	ok, retryAfter := l.Allow("key", 1, time.Minute, 15*time.Minute)
	assert.False(t, ok)
	assert.Equal(t, 15*time.Minute, retryAfter)

	// Frozen even after the window itself has passed.
	clock.advance(5 * time.Minute)
	ok, retryAfter = l.Allow("key", 1, time.Minute, 15*time.Minute)
	assert.False(t, ok)
	assert.Equal(t, 10*time.Minute, retryAfter)

	clock.advance(11 * time.Minute)
	ok, _ = l.Allow("key", 1, time.Minute, 15*time.Minute)
	assert.True(t, ok)
}

func TestRateLimiter_Reset(t *testing.T) {
	l := NewRateLimiter()

	ok, _ := l.Allow("key", 1, time.Hour, 0)
	require.True(t, ok)
	ok, _ = l.Allow("key", 1, time.Hour, 0)
	require.False(t, ok)

	l.Reset("key")
	ok, _ = l.Allow("key", 1, time.Hour, 0)
	assert.True(t, ok)
}
