package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/apperr"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/outbox"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/rpc"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/validation"
)

const (
	registrationFailed = "Registration failed. Please check your details."
	invalidCredentials = "Invalid credentials"
)

// EventPublisher relays a committed outbox event. *outbox.Relay implements
// it; events it fails to send stay pending for the relay-outbox job.
type EventPublisher interface {
	Publish(ctx context.Context, e outbox.Event) error
}

type Service struct {
	store   *Store
	tokens  *Tokens
	relay   EventPublisher
	cost    int
	v       *validatorv10.Validate
	logger  *slog.Logger
	nowFunc func() time.Time
	newID   func() string
}

// NewService wires the auth service. relay may be nil, in which case events
// wait for the next scheduled relay run.
func NewService(store *Store, tokens *Tokens, relay EventPublisher, bcryptCost int, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		tokens:  tokens,
		relay:   relay,
		cost:    bcryptCost,
		v:       validation.New(),
		logger:  logger,
		nowFunc: time.Now,
		newID:   uuid.NewString,
	}
}

func (s *Service) Register(srv *rpc.Server) {
	srv.Handle("register", rpc.Command(s.v, func(ctx context.Context, req validation.RegisterRequest) (rpc.Reply, error) {
		sess, err := s.SignUp(ctx, req)
		if err != nil {
			return rpc.Reply{}, err
		}
		return rpc.OK("User registered successfully", sess), nil
	}))
	srv.Handle("login", rpc.Command(s.v, func(ctx context.Context, req validation.LoginRequest) (rpc.Reply, error) {
		sess, err := s.Login(ctx, req)
		if err != nil {
			return rpc.Reply{}, err
		}
		return rpc.OK("Login successful", sess), nil
	}))
	srv.Handle("validate_token", rpc.Command(s.v, func(_ context.Context, req validation.TokenRequest) (rpc.Reply, error) {
		claims, err := s.ValidateToken(req.Token)
		if err != nil {
			return rpc.Reply{}, err
		}
		return rpc.OK("", claims), nil
	}))
	srv.Handle("get_profile", rpc.Command(s.v, func(ctx context.Context, req validation.IDRequest) (rpc.Reply, error) {
		u, err := s.Profile(ctx, req.ID)
		if err != nil {
			return rpc.Reply{}, err
		}
		return rpc.OK("", u), nil
	}))
	srv.Handle("change_password", rpc.Command(s.v, func(ctx context.Context, req validation.ChangePasswordRequest) (rpc.Reply, error) {
		if err := s.ChangePassword(ctx, req); err != nil {
			return rpc.Reply{}, err
		}
		return rpc.OK("Password changed successfully", nil), nil
	}))
}

// SignUp creates an account with the user role and returns a session.
func (s *Service) SignUp(ctx context.Context, req validation.RegisterRequest) (*Session, error) {
	if !meetsPolicy(req.Password) {
		return nil, apperr.Validation(passwordPolicy)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, apperr.Internal("Registration failed due to a system error", err)
	}

	now := s.nowFunc().UTC()
	c := Credential{
		ID:           s.newID(),
		Email:        normalizeEmail(req.Email),
		Name:         strings.TrimSpace(req.Name),
		Role:         RoleUser,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	u := c.user()
	event, err := outbox.NewEvent(outbox.TypeUserRegistered, c.ID, c.profile(), now)
	if err != nil {
		return nil, apperr.Internal("Registration failed due to a system error", err)
	}

	if err := s.store.Create(ctx, c, event); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, apperr.Conflict(registrationFailed)
		}
		return nil, apperr.Internal("Registration failed due to a system error", err)
	}
	s.logger.Info("user registered", "user_id", c.ID)
	s.publish(ctx, event)

	return s.session(u)
}

func (s *Service) publish(ctx context.Context, e outbox.Event) {
	if s.relay == nil {
		return
	}
	if err := s.relay.Publish(ctx, e); err != nil {
		s.logger.Warn("profile event not relayed yet", "event_id", e.ID, "error", err)
	}
}

// SeedAdmin creates an admin account for email, or promotes an existing
// account and resets its password. Both paths record a user.registered event
// so the users service picks up the admin profile.
func (s *Service) SeedAdmin(ctx context.Context, email, password, name string) (*User, bool, error) {
	email = normalizeEmail(email)
	if err := s.v.Var(email, "required,email"); err != nil {
		return nil, false, apperr.Validation("A valid admin email is required")
	}
	if !meetsPolicy(password) {
		return nil, false, apperr.Validation(passwordPolicy)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, false, apperr.Internal("failed to hash admin password", err)
	}

	now := s.nowFunc().UTC()
	c, err := s.store.GetByEmail(ctx, email)
	created := errors.Is(err, ErrNotFound)
	switch {
	case created:
		c = &Credential{ID: s.newID(), Email: email, CreatedAt: now}
	case err != nil:
		return nil, false, apperr.Internal("failed to load admin account", err)
	}
	c.Name = strings.TrimSpace(name)
	c.Role = RoleAdmin
	c.PasswordHash = string(hash)
	c.UpdatedAt = now

	event, err := outbox.NewEvent(outbox.TypeUserRegistered, c.ID, c.profile(), now)
	if err != nil {
		return nil, false, apperr.Internal("failed to seed admin", err)
	}
	if created {
		err = s.store.Create(ctx, *c, event)
	} else {
		err = s.store.Replace(ctx, *c, event)
	}
	switch {
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrNotFound):
		return nil, false, apperr.Conflict("Admin account changed concurrently, please retry")
	case err != nil:
		return nil, false, apperr.Internal("failed to seed admin", err)
	}
	s.logger.Info("admin seeded", "user_id", c.ID, "created", created)
	s.publish(ctx, event)

	u := c.user()
	return &u, created, nil
}

// Login answers the same way for an unknown email and a wrong password.
func (s *Service) Login(ctx context.Context, req validation.LoginRequest) (*Session, error) {
	c, err := s.store.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.Unauthorized(invalidCredentials)
		}
		return nil, apperr.Internal("login failed", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperr.Unauthorized(invalidCredentials)
	}
	return s.session(c.user())
}

func (s *Service) session(u User) (*Session, error) {
	token, err := s.tokens.Issue(u)
	if err != nil {
		return nil, apperr.Internal("failed to issue token", err)
	}
	return &Session{User: u, Token: token}, nil
}

func (s *Service) ValidateToken(token string) (*Claims, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, apperr.Unauthorized("Token has expired")
		}
		return nil, apperr.Unauthorized("Invalid token")
	}
	return claims, nil
}

func (s *Service) Profile(ctx context.Context, id string) (*User, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, apperr.Internal("failed to load user", err)
	}
	u := c.user()
	return &u, nil
}

func (s *Service) ChangePassword(ctx context.Context, req validation.ChangePasswordRequest) error {
	c, err := s.store.Get(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperr.NotFound("User not found")
		}
		return apperr.Internal("failed to load user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(req.OldPassword)); err != nil {
		return apperr.Validation("Current password is incorrect")
	}
	if !meetsPolicy(req.NewPassword) {
		return apperr.Validation("New password must contain at least 8 characters, including uppercase, lowercase, and numbers")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.cost)
	if err != nil {
		return apperr.Internal("failed to hash password", err)
	}
	if err := s.store.SetPasswordHash(ctx, c.ID, string(hash), s.nowFunc()); err != nil {
		return apperr.Internal("failed to change password", err)
	}
	s.logger.Info("password changed", "user_id", c.ID)
	return nil
}
