// Package identity signs users up and in with email and password and tracks
// their sessions.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskflow/taskflow/internal/board/models"
	"github.com/taskflow/taskflow/internal/board/repository"
	apperrors "github.com/taskflow/taskflow/internal/common/errors"
	"github.com/taskflow/taskflow/internal/common/logger"
	"github.com/taskflow/taskflow/internal/events"
	"github.com/taskflow/taskflow/internal/events/bus"
)

// Password length bounds SignUp accepts. bcrypt rejects passwords over 72 bytes.
const (
	MinPasswordLength = 6
	MaxPasswordLength = 72
)

const eventSource = "identity-service"

var errInvalidCredentials = apperrors.Unauthorized("invalid email or password")

// Session is an authenticated sign-in.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionChange is delivered to OnSessionChanged handlers. Type is
// events.SessionSignedIn or events.SessionSignedOut.
type SessionChange struct {
	Type   string
	UserID string
}

// Options configure token lifetime and password hashing.
type Options struct {
	TokenDuration time.Duration
	BcryptCost    int
}

// Service manages accounts and in-memory sessions.
type Service struct {
	repo     repository.Repository
	eventBus bus.EventBus
	logger   *logger.Logger
	opts     Options
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewService creates an identity service. eventBus may be nil.
func NewService(repo repository.Repository, eventBus bus.EventBus, log *logger.Logger, opts Options) *Service {
	if opts.TokenDuration <= 0 {
		opts.TokenDuration = 24 * time.Hour
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		repo:     repo,
		eventBus: eventBus,
		logger:   log.WithFields(zap.String("component", "identity")),
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[string]*Session),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp registers a new account with empty favorites and recently viewed lists.
func (s *Service) SignUp(ctx context.Context, email, password, name string) (*models.User, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	switch {
	case email == "" || !strings.Contains(email, "@"):
		return nil, apperrors.ValidationError("email", "must be a valid email address")
	case len(password) < MinPasswordLength:
		return nil, apperrors.ValidationError("password", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	case len(password) > MaxPasswordLength:
		return nil, apperrors.ValidationError("password", fmt.Sprintf("must be at most %d bytes", MaxPasswordLength))
	case name == "":
		return nil, apperrors.ValidationError("name", "must not be empty")
	}

	if _, err := s.repo.GetCredentialsByEmail(ctx, email); err == nil {
		return nil, apperrors.Conflict("an account with this email already exists")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.StoreUnavailable(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return nil, apperrors.InternalError("failed to hash password", err)
	}

	now := s.now()
	user := &models.User{
		Name:           name,
		Email:          email,
		Favorites:      []string{},
		RecentlyViewed: []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	creds := &models.Credentials{
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
	}
	if err := s.repo.CreateAccount(ctx, user, creds); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("an account with this email already exists")
		}
		return nil, apperrors.StoreUnavailable(err)
	}

	s.logger.Info("user signed up", zap.String("user_id", user.ID))
	return user, nil
}

// SignIn checks the password and opens a session.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	creds, err := s.repo.GetCredentialsByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(password)); err != nil {
		return nil, errInvalidCredentials
	}

	session := &Session{
		Token:     uuid.New().String(),
		UserID:    creds.UserID,
		ExpiresAt: s.now().Add(s.opts.TokenDuration),
	}
	s.mu.Lock()
	s.sessions[session.Token] = session
	s.mu.Unlock()

	s.logger.Info("user signed in", zap.String("user_id", session.UserID))
	s.publish(ctx, events.SessionSignedIn, session.UserID)
	return session, nil
}

// SignOut ends the session for token. Unknown tokens are ignored.
func (s *Service) SignOut(ctx context.Context, token string) error {
	s.mu.Lock()
	session, ok := s.sessions[token]
	delete(s.sessions, token)
	s.mu.Unlock()

	if ok {
		s.logger.Info("user signed out", zap.String("user_id", session.UserID))
		s.publish(ctx, events.SessionSignedOut, session.UserID)
	}
	return nil
}

// Authenticate returns the user id for a live session token.
func (s *Service) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", apperrors.Unauthorized("missing session token")
	}

	s.mu.RLock()
	session, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return "", apperrors.Unauthorized("invalid session token")
	}
	if !s.now().Before(session.ExpiresAt) {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		s.publish(ctx, events.SessionSignedOut, session.UserID)
		return "", apperrors.Unauthorized("session expired")
	}
	return session.UserID, nil
}

// CurrentUser returns the user signed in with token.
func (s *Service) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	userID, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.GetUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("user", userID)
	}
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	return user, nil
}

// PurgeExpired drops every expired session and returns how many were removed.
func (s *Service) PurgeExpired() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for token, session := range s.sessions {
		if !now.Before(session.ExpiresAt) {
			delete(s.sessions, token)
			n++
		}
	}
	return n
}

// OnSessionChanged calls handler after every sign-in and sign-out.
func (s *Service) OnSessionChanged(handler func(SessionChange)) (bus.Subscription, error) {
	if s.eventBus == nil {
		return nil, apperrors.InternalError("session notifications need an event bus", nil)
	}
	return s.eventBus.Subscribe(events.SessionSubject, func(_ context.Context, event *bus.Event) error {
		handler(SessionChange{Type: event.Type, UserID: event.String("user_id")})
		return nil
	})
}

func (s *Service) publish(ctx context.Context, eventType, userID string) {
	if s.eventBus == nil {
		return
	}
	event := bus.NewEvent(eventType, eventSource, map[string]interface{}{"user_id": userID})
	if err := s.eventBus.Publish(ctx, events.SessionSubject, event); err != nil {
		s.logger.Error("failed to publish session event",
			zap.String("event_type", eventType),
			zap.String("user_id", userID),
			zap.Error(err))
	}
}
