// Package repo mirrors room presence into an external store so
// dashboards and other services can read live membership. The in-memory
// registry stays authoritative; mirror writes are best-effort and must
// never fail a relay operation.
package repo

import "context"

// User is the presence record stored per participant.
type User struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	IsSpeaking bool    `json:"isSpeaking"`
	Energy     float64 `json:"energy"`
}

// PresenceRepo is the mirror interface.
type PresenceRepo interface {
	AddUser(ctx context.Context, room string, user User) error
	RemoveUser(ctx context.Context, room, userID string) error
	UpdateUserState(ctx context.Context, room, userID string, speaking bool, energy float64) error
	ListUsers(ctx context.Context, room string) ([]User, error)
}

// Noop is the mirror used when no external store is configured.
type Noop struct{}

func (Noop) AddUser(context.Context, string, User) error { return nil }

func (Noop) RemoveUser(context.Context, string, string) error { return nil }

func (Noop) UpdateUserState(context.Context, string, string, bool, float64) error { return nil }

func (Noop) ListUsers(context.Context, string) ([]User, error) { return nil, nil }
