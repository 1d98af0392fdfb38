// Package service is the board aggregate controller: it checks membership,
// computes rank writes and applies them to the entity store.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/taskflow/taskflow/internal/board/access"
	"github.com/taskflow/taskflow/internal/board/models"
	"github.com/taskflow/taskflow/internal/board/repository"
	apperrors "github.com/taskflow/taskflow/internal/common/errors"
	"github.com/taskflow/taskflow/internal/common/logger"
	"github.com/taskflow/taskflow/internal/common/tracing"
	"github.com/taskflow/taskflow/internal/events"
	"github.com/taskflow/taskflow/internal/events/bus"
)

const eventSource = "board-service"

// Options tune membership and per-user list behavior.
type Options struct {
	AllowMemberSelfRemoval bool
	RecentlyViewedLimit    int
}

// Service provides board business logic
type Service struct {
	repo     repository.Repository
	eventBus bus.EventBus
	policy   access.Policy
	logger   *logger.Logger
	tracer   trace.Tracer
	opts     Options
	now      func() time.Time
}

// NewService creates a new board service. eventBus may be nil, in which case
// no change notifications are published.
func NewService(repo repository.Repository, eventBus bus.EventBus, log *logger.Logger, opts Options) *Service {
	if opts.RecentlyViewedLimit <= 0 {
		opts.RecentlyViewedLimit = 10
	}
	return &Service{
		repo:     repo,
		eventBus: eventBus,
		policy:   access.Policy{AllowSelfRemoval: opts.AllowMemberSelfRemoval},
		logger:   log.WithFields(zap.String("component", "board-service")),
		tracer:   tracing.Tracer("taskflow/board"),
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// storeError converts an entity store error into an AppError. Missing entities
// become NotFound for resource/id; anything else means the store is unavailable.
func storeError(err error, resource, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NotFound(resource, id)
	default:
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return apperrors.StoreUnavailable(err)
	}
}

func (s *Service) loadBoard(ctx context.Context, boardID string) (*models.Board, error) {
	board, err := s.repo.GetBoard(ctx, boardID)
	if err != nil {
		return nil, storeError(err, "board", boardID)
	}
	return board, nil
}

// authorize loads the board and checks that actorID holds capability c on it.
func (s *Service) authorize(ctx context.Context, actorID, boardID string, c access.Capability) (*models.Board, error) {
	board, err := s.loadBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Check(board, actorID, c); err != nil {
		s.logger.Debug("access denied",
			zap.String("board_id", boardID),
			zap.String("user_id", actorID),
			zap.String("capability", c.String()))
		return nil, err
	}
	return board, nil
}

// touch refreshes the board's updatedAt after a write to its contents.
func (s *Service) touch(ctx context.Context, boardID string, at time.Time) error {
	return storeError(s.repo.TouchBoard(ctx, boardID, at), "board", boardID)
}

func requireTitle(field, title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", apperrors.ValidationError(field, "must not be empty")
	}
	return title, nil
}

// publishBoardEvent notifies live-query subscribers that boardID changed.
// Publish failures are logged; the write has already happened.
func (s *Service) publishBoardEvent(ctx context.Context, eventType, boardID string, data map[string]interface{}) {
	if s.eventBus == nil {
		return
	}
	if data == nil {
		data = make(map[string]interface{}, 1)
	}
	data["board_id"] = boardID

	event := bus.NewEvent(eventType, eventSource, data)
	if err := s.eventBus.Publish(ctx, events.BoardSubject(boardID), event); err != nil {
		s.logger.Error("failed to publish board event",
			zap.String("event_type", eventType),
			zap.String("board_id", boardID),
			zap.Error(err))
	}
}

func (s *Service) publishUserEvent(ctx context.Context, eventType, userID string, data map[string]interface{}) {
	if s.eventBus == nil {
		return
	}
	data["user_id"] = userID

	event := bus.NewEvent(eventType, eventSource, data)
	if err := s.eventBus.Publish(ctx, events.UserSubject(userID), event); err != nil {
		s.logger.Error("failed to publish user event",
			zap.String("event_type", eventType),
			zap.String("user_id", userID),
			zap.Error(err))
	}
}
