package service

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/taskflow/taskflow/internal/board/access"
	"github.com/taskflow/taskflow/internal/board/models"
	apperrors "github.com/taskflow/taskflow/internal/common/errors"
	"github.com/taskflow/taskflow/internal/events"
)

// CreateBoardRequest contains the data for creating a new board
type CreateBoardRequest struct {
	Title      string
	Background string
}

// UpdateBoardRequest contains the board fields to change. Nil fields are left as is.
type UpdateBoardRequest struct {
	Title      *string
	Background *string
}

// BoardFilter selects which of a user's boards ListBoards returns.
type BoardFilter string

const (
	FilterAll       BoardFilter = "all"
	FilterFavorites BoardFilter = "favorites"
	FilterRecent    BoardFilter = "recent"
)

// ParseBoardFilter accepts all, favorites or recent. Empty means all.
func ParseBoardFilter(s string) (BoardFilter, error) {
	switch f := BoardFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterFavorites, FilterRecent:
		return f, nil
	default:
		return "", apperrors.ValidationError("filter", "must be one of all, favorites, recent")
	}
}

func resolveBackground(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.DefaultBackground, nil
	}
	if !models.ValidBackground(token) {
		return "", apperrors.ValidationError("background", "unknown background '"+token+"'")
	}
	return token, nil
}

// CreateBoard creates a board owned by actorID with no members.
func (s *Service) CreateBoard(ctx context.Context, actorID string, req *CreateBoardRequest) (*models.Board, error) {
	title, err := requireTitle("title", req.Title)
	if err != nil {
		return nil, err
	}
	background, err := resolveBackground(req.Background)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetUser(ctx, actorID); err != nil {
		return nil, storeError(err, "user", actorID)
	}

	now := s.now()
	board := &models.Board{
		Title:      title,
		Background: background,
		OwnerID:    actorID,
		Members:    []models.BoardMember{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.CreateBoard(ctx, board); err != nil {
		return nil, storeError(err, "board", board.ID)
	}

	s.logger.Info("board created",
		zap.String("board_id", board.ID),
		zap.String("owner_id", actorID))
	s.publishBoardEvent(ctx, events.BoardCreated, board.ID, map[string]interface{}{
		"title":    board.Title,
		"owner_id": board.OwnerID,
	})
	return board, nil
}

// GetUser returns a user's profile and board lists.
func (s *Service) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, storeError(err, "user", userID)
	}
	return user, nil
}

// GetBoard returns a board actorID may view.
func (s *Service) GetBoard(ctx context.Context, actorID, boardID string) (*models.Board, error) {
	return s.authorize(ctx, actorID, boardID, access.ViewBoard)
}

// UpdateBoard changes a board's title or background. Owner only.
func (s *Service) UpdateBoard(ctx context.Context, actorID, boardID string, req *UpdateBoardRequest) (*models.Board, error) {
	board, err := s.authorize(ctx, actorID, boardID, access.ManageBoard)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		title, err := requireTitle("title", *req.Title)
		if err != nil {
			return nil, err
		}
		board.Title = title
	}
	if req.Background != nil {
		background, err := resolveBackground(*req.Background)
		if err != nil {
			return nil, err
		}
		board.Background = background
	}

	board.UpdatedAt = s.now()
	if err := s.repo.UpdateBoard(ctx, board); err != nil {
		return nil, storeError(err, "board", boardID)
	}
	s.publishBoardEvent(ctx, events.BoardUpdated, boardID, map[string]interface{}{
		"title":      board.Title,
		"background": board.Background,
	})
	return board, nil
}

// DeleteBoard deletes a board with its columns, cards and memberships. Owner only.
func (s *Service) DeleteBoard(ctx context.Context, actorID, boardID string) error {
	if _, err := s.authorize(ctx, actorID, boardID, access.ManageBoard); err != nil {
		return err
	}
	if err := s.repo.DeleteBoard(ctx, boardID); err != nil {
		return storeError(err, "board", boardID)
	}
	s.logger.Info("board deleted", zap.String("board_id", boardID))
	s.publishBoardEvent(ctx, events.BoardDeleted, boardID, nil)
	return nil
}

// ListBoards returns the boards actorID owns or is a member of. Favorites and
// the full list are sorted by most recent update; recent keeps view order.
// A non-empty query keeps boards whose title contains it, case-insensitively.
func (s *Service) ListBoards(ctx context.Context, actorID string, filter BoardFilter, query string) ([]*models.Board, error) {
	user, err := s.repo.GetUser(ctx, actorID)
	if err != nil {
		return nil, storeError(err, "user", actorID)
	}
	owned, err := s.repo.ListBoardsByOwner(ctx, actorID)
	if err != nil {
		return nil, storeError(err, "board", actorID)
	}
	shared, err := s.repo.ListBoardsByMember(ctx, actorID)
	if err != nil {
		return nil, storeError(err, "board", actorID)
	}

	byID := make(map[string]*models.Board, len(owned)+len(shared))
	for _, b := range append(owned, shared...) {
		byID[b.ID] = b
	}

	query = strings.ToLower(strings.TrimSpace(query))
	keep := func(b *models.Board) bool {
		return query == "" || strings.Contains(strings.ToLower(b.Title), query)
	}

	result := make([]*models.Board, 0, len(byID))
	switch filter {
	case FilterRecent:
		for _, id := range user.RecentlyViewed {
			if b, ok := byID[id]; ok && keep(b) {
				result = append(result, b)
			}
		}
		return result, nil
	case FilterFavorites:
		for _, id := range user.Favorites {
			if b, ok := byID[id]; ok && keep(b) {
				result = append(result, b)
			}
		}
	default:
		for _, b := range byID {
			if keep(b) {
				result = append(result, b)
			}
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].UpdatedAt.After(result[j].UpdatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// ToggleFavorite adds boardID to userID's favorites or removes it, returning
// the new state. Any user may favorite a board that exists.
func (s *Service) ToggleFavorite(ctx context.Context, userID, boardID string) (bool, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return false, storeError(err, "user", userID)
	}
	if _, err := s.loadBoard(ctx, boardID); err != nil {
		return false, err
	}

	favorite := !user.IsFavorite(boardID)
	if err := s.repo.SetFavorite(ctx, userID, boardID, favorite, s.now()); err != nil {
		return false, storeError(err, "user", userID)
	}
	s.publishUserEvent(ctx, events.FavoriteToggled, userID, map[string]interface{}{
		"board_id": boardID,
		"favorite": favorite,
	})
	return favorite, nil
}

// RecordBoardView moves boardID to the front of userID's recently viewed boards.
func (s *Service) RecordBoardView(ctx context.Context, userID, boardID string) error {
	if _, err := s.authorize(ctx, userID, boardID, access.ViewBoard); err != nil {
		return err
	}
	if err := s.repo.RecordView(ctx, userID, boardID, s.now(), s.opts.RecentlyViewedLimit); err != nil {
		return storeError(err, "user", userID)
	}
	s.publishUserEvent(ctx, events.BoardViewed, userID, map[string]interface{}{
		"board_id": boardID,
	})
	return nil
}

// OpenBoard is what a client calls when it navigates to a board: it creates the
// default columns on an empty board the actor may edit, records the view and
// returns the board's snapshot.
func (s *Service) OpenBoard(ctx context.Context, actorID, boardID string) (*Snapshot, error) {
	board, err := s.authorize(ctx, actorID, boardID, access.ViewBoard)
	if err != nil {
		return nil, err
	}
	if access.Allows(access.Resolve(board, actorID), access.EditContent) {
		if _, err := s.CreateDefaultColumns(ctx, actorID, boardID); err != nil {
			return nil, err
		}
	}
	if err := s.RecordBoardView(ctx, actorID, boardID); err != nil {
		return nil, err
	}
	return s.GetSnapshot(ctx, actorID, boardID)
}
