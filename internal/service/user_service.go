package service

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mmynk/storefront/internal/api"
	"github.com/mmynk/storefront/internal/auth"
	"github.com/mmynk/storefront/internal/cache"
	"github.com/mmynk/storefront/internal/models"
)

// SessionWriter is the part of the session store the user endpoints update.
type SessionWriter interface {
	SetIdentity(ctx context.Context, identity models.Identity) error
	Clear(ctx context.Context) error
}

// UserService covers login, registration, logout and profile updates. Every
// successful call replaces the session identity.
type UserService struct {
	cache    *cache.Cache
	sessions SessionWriter
}

// NewUserService creates a UserService over c writing identities to sessions.
func NewUserService(c *cache.Cache, sessions SessionWriter) *UserService {
	return &UserService{cache: c, sessions: sessions}
}

// Login authenticates with creds and starts a session.
func (s *UserService) Login(ctx context.Context, creds auth.Credentials) (models.Identity, error) {
	slog.Info("Login request", "email", creds.Email)

	if err := auth.ValidateLogin(creds); err != nil {
		return models.Identity{}, err
	}
	identity, err := api.Decode[models.Identity](s.cache.Mutate(ctx,
		cache.Call{Method: http.MethodPost, Endpoint: "/users/login", Body: creds},
	))
	if err != nil {
		slog.Warn("Login failed", "email", creds.Email, "error", err)
		return identity, err
	}

	return identity, s.start(ctx, identity)
}

// Register creates an account and starts a session. The password
// confirmation is checked before any call is made.
func (s *UserService) Register(ctx context.Context, reg auth.Registration) (models.Identity, error) {
	slog.Info("Register request", "email", reg.Email)

	if err := auth.ValidateRegistration(reg); err != nil {
		return models.Identity{}, err
	}
	identity, err := api.Decode[models.Identity](s.cache.Mutate(ctx,
		cache.Call{Method: http.MethodPost, Endpoint: "/users", Body: reg},
	))
	if err != nil {
		slog.Error("Registration failed", "email", reg.Email, "error", err)
		return identity, err
	}

	slog.Info("User registered successfully", "user_id", identity.UserID, "email", identity.Email)
	return identity, s.start(ctx, identity)
}

// UpdateProfile saves the profile form and replaces the session identity
// with the one returned.
func (s *UserService) UpdateProfile(ctx context.Context, update auth.ProfileUpdate) (models.Identity, error) {
	slog.Info("UpdateProfile request", "user_id", update.UserID)

	if err := auth.ValidateProfileUpdate(update); err != nil {
		return models.Identity{}, err
	}
	identity, err := api.Decode[models.Identity](s.cache.Mutate(ctx,
		cache.Call{Method: http.MethodPut, Endpoint: "/users/profile", Body: update},
		cache.TypeTag(TagUser),
	))
	if err != nil {
		slog.Error("UpdateProfile failed", "user_id", update.UserID, "error", err)
		return identity, err
	}

	return identity, s.start(ctx, identity)
}

// Logout tells the backend the session ended and clears it locally. The
// local session is cleared even when the call fails.
func (s *UserService) Logout(ctx context.Context) error {
	if _, err := s.cache.Mutate(ctx, cache.Call{Method: http.MethodPost, Endpoint: "/users/logout"}); err != nil {
		slog.Warn("Logout call failed, clearing session anyway", "error", err)
	}
	s.forgetUserData()
	return s.sessions.Clear(ctx)
}

// SessionRejected ends a session the backend refused with 401. Per-user
// entries are dropped the same way Logout drops them.
func (s *UserService) SessionRejected(ctx context.Context) error {
	slog.Warn("Session rejected by the server, logging out")
	s.forgetUserData()
	return s.sessions.Clear(ctx)
}

func (s *UserService) start(ctx context.Context, identity models.Identity) error {
	if err := s.sessions.SetIdentity(ctx, identity); err != nil {
		return err
	}
	s.forgetUserData()
	return nil
}

// forgetUserData marks per-user entries stale so a new session never reads
// the previous one's data.
func (s *UserService) forgetUserData() {
	s.cache.Invalidate(cache.TypeTag(TagOrder), cache.TypeTag(TagUser))
}
