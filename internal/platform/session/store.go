package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is absent or its entry has expired.
var ErrNotFound = errors.New("session: key not found")

// Store holds short-lived per-session state: OTP codes, staged signup and
// onboarding payloads, the active chat session pointer. Keys are namespaced
// by session id ("<sid>:otp", "<sid>:staged_patient", ...), which lets
// DeletePrefix wipe everything a session owns on logout.
type Store interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}
