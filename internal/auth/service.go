package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/gavelhouse/gavel/internal/models"
	"github.com/gavelhouse/gavel/internal/storage"
)

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrEmailTaken         = errors.New("email already registered")
)

// Session is an opaque, time-bounded authorization grant. The token carries
// no claims; the mapping to an identity lives only in this process.
type Session struct {
	Token     string
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Config holds configuration for the auth service
type Config struct {
	SessionDuration time.Duration
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		SessionDuration: time.Hour,
	}
}

// Service handles credential verification and session token issuance.
type Service struct {
	store storage.Store
	clock clockwork.Clock

	mu       sync.RWMutex
	sessions map[string]*Session

	sessionDuration time.Duration
}

// New creates a new auth service.
func New(store storage.Store, clock clockwork.Clock, cfg Config) *Service {
	if cfg.SessionDuration == 0 {
		cfg.SessionDuration = DefaultConfig().SessionDuration
	}
	return &Service{
		store:           store,
		clock:           clock,
		sessions:        make(map[string]*Session),
		sessionDuration: cfg.SessionDuration,
	}
}

// RegisterRequest carries a new account submission.
type RegisterRequest struct {
	Name     string
	Email    string
	Username string
	Password string
}

// Register creates a user account and an initial session.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.User, *Session, error) {
	if _, err := s.store.GetUserByUsername(ctx, req.Username); err == nil {
		return nil, nil, ErrUsernameTaken
	} else if !errors.Is(err, storage.ErrUserNotFound) {
		return nil, nil, err
	}
	if _, err := s.store.GetUserByEmail(ctx, req.Email); err == nil {
		return nil, nil, ErrEmailTaken
	} else if !errors.Is(err, storage.ErrUserNotFound) {
		return nil, nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New(),
		Name:         req.Name,
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: string(hash),
		CreatedAt:    s.clock.Now().UTC(),
	}

	if err := s.store.SaveUser(ctx, user); err != nil {
		return nil, nil, fmt.Errorf("failed to save user: %w", err)
	}

	log.Info().Str("username", user.Username).Msg("user registered")
	return user, s.createSession(user.Username), nil
}

// Login verifies credentials, marks the user online and issues a session.
func (s *Service) Login(ctx context.Context, username, password string) (*models.User, *Session, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	user.Online = true
	if err := s.store.SaveUser(ctx, user); err != nil {
		return nil, nil, fmt.Errorf("failed to update login state: %w", err)
	}

	log.Info().Str("username", username).Msg("user logged in")
	return user, s.createSession(username), nil
}

// Logout invalidates the session and marks the user offline.
func (s *Service) Logout(ctx context.Context, token string) error {
	username, err := s.ValidateToken(token)
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()

	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil
	}
	user.Online = false
	if err := s.store.SaveUser(ctx, user); err != nil {
		log.Warn().Err(err).Str("username", username).Msg("failed to persist logout state")
	}
	return nil
}

// ValidateToken checks a token and returns the identity it was issued to.
func (s *Service) ValidateToken(token string) (string, error) {
	s.mu.RLock()
	session, ok := s.sessions[token]
	s.mu.RUnlock()

	if !ok {
		return "", ErrInvalidToken
	}

	if s.clock.Now().After(session.ExpiresAt) {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return "", ErrInvalidToken
	}

	return session.Username, nil
}

// createSession creates a new session for an identity.
func (s *Service) createSession(username string) *Session {
	now := s.clock.Now()
	session := &Session{
		Token:     generateToken(),
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionDuration),
	}

	s.mu.Lock()
	s.sessions[session.Token] = session
	s.mu.Unlock()

	return session
}

// CleanExpiredSessions removes expired sessions (call periodically).
func (s *Service) CleanExpiredSessions() {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, token)
		}
	}
}

func generateToken() string {
	b := make([]byte, 24)
	_, _ = rand.Read(b)
	return "tok_" + base64.RawURLEncoding.EncodeToString(b)
}
