package service

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/taskflow/taskflow/internal/board/access"
	"github.com/taskflow/taskflow/internal/board/models"
	apperrors "github.com/taskflow/taskflow/internal/common/errors"
	"github.com/taskflow/taskflow/internal/events"
	"github.com/taskflow/taskflow/internal/events/bus"
)

// Snapshot is the full state of a board as one client renders it.
type Snapshot struct {
	Board   *models.Board
	Columns []*models.Column
	// Cards maps every column id to its cards in display order.
	Cards map[string][]*models.Card
}

// GetSnapshot loads a board with its columns and cards. Columns and cards are
// read concurrently.
func (s *Service) GetSnapshot(ctx context.Context, actorID, boardID string) (*Snapshot, error) {
	board, err := s.authorize(ctx, actorID, boardID, access.ViewBoard)
	if err != nil {
		return nil, err
	}

	var (
		columns []*models.Column
		cards   []*models.Card
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		columns, err = s.repo.ListColumns(gctx, boardID)
		return err
	})
	g.Go(func() error {
		var err error
		cards, err = s.repo.ListCards(gctx, boardID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, storeError(err, "board", boardID)
	}

	models.SortColumns(columns)
	models.SortCards(cards)
	snap := &Snapshot{
		Board:   board,
		Columns: columns,
		Cards:   make(map[string][]*models.Card, len(columns)),
	}
	for _, c := range columns {
		snap.Cards[c.ID] = []*models.Card{}
	}
	for _, c := range cards {
		if list, ok := snap.Cards[c.ColumnID]; ok {
			snap.Cards[c.ColumnID] = append(list, c)
		}
	}
	return snap, nil
}

// SnapshotFunc receives a fresh snapshot after every change, or the error that
// ended the subscription.
type SnapshotFunc func(snap *Snapshot, err error)

// Subscribe registers fn as a live query on a board. fn is called once with the
// current snapshot and then after every change, never concurrently with itself.
// Changes that arrive while a snapshot is loading are coalesced into one reload.
// The subscription ends when ctx is done, when the returned function is called
// (any number of times), or after fn receives a NotFound or Forbidden error.
func (s *Service) Subscribe(ctx context.Context, actorID, boardID string, fn SnapshotFunc) (func(), error) {
	if s.eventBus == nil {
		return nil, apperrors.InternalError("live queries need an event bus", nil)
	}

	changed := make(chan struct{}, 1)
	sub, err := s.eventBus.Subscribe(events.BoardSubject(boardID), func(context.Context, *bus.Event) error {
		select {
		case changed <- struct{}{}:
		default:
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}

	initial, err := s.GetSnapshot(ctx, actorID, boardID)
	if err != nil {
		_ = sub.Unsubscribe()
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			cancel()
			if err := sub.Unsubscribe(); err != nil {
				s.logger.Warn("failed to unsubscribe live query", zap.String("board_id", boardID), zap.Error(err))
			}
		})
	}

	go func() {
		defer unsubscribe()
		fn(initial, nil)
		for {
			select {
			case <-ctx.Done():
				return
			case <-changed:
			}
			snap, err := s.GetSnapshot(ctx, actorID, boardID)
			if ctx.Err() != nil {
				return
			}
			fn(snap, err)
			if err != nil && (apperrors.IsNotFound(err) || apperrors.IsForbidden(err)) {
				return
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Warn("live query reload failed", zap.String("board_id", boardID), zap.Error(err))
			}
		}
	}()

	return unsubscribe, nil
}
