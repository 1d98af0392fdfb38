package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/taskflow/taskflow/internal/board/access"
	"github.com/taskflow/taskflow/internal/board/models"
	"github.com/taskflow/taskflow/internal/board/ordering"
	apperrors "github.com/taskflow/taskflow/internal/common/errors"
	"github.com/taskflow/taskflow/internal/events"
)

func nextOrder(orders []int) int {
	next := 0
	for _, o := range orders {
		if o >= next {
			next = o + 1
		}
	}
	return next
}

func columnItems(boardID string, columns []*models.Column) []ordering.Item {
	out := make([]ordering.Item, len(columns))
	for i, c := range columns {
		out[i] = ordering.Item{ID: c.ID, ContainerID: boardID, Order: c.Order}
	}
	return out
}

// orderingError maps Ordering Engine failures to validation errors.
func orderingError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.ValidationError("index", err.Error())
}

// loadColumn loads a column and checks c on its board.
func (s *Service) loadColumn(ctx context.Context, actorID, columnID string, c access.Capability) (*models.Column, error) {
	column, err := s.repo.GetColumn(ctx, columnID)
	if err != nil {
		return nil, storeError(err, "column", columnID)
	}
	if _, err := s.authorize(ctx, actorID, column.BoardID, c); err != nil {
		return nil, err
	}
	return column, nil
}

// CreateDefaultColumns creates "To Do", "In Progress" and "Done" on a board
// with no columns. A board that already has columns is returned unchanged.
func (s *Service) CreateDefaultColumns(ctx context.Context, actorID, boardID string) ([]*models.Column, error) {
	if _, err := s.authorize(ctx, actorID, boardID, access.EditContent); err != nil {
		return nil, err
	}
	existing, err := s.repo.ListColumns(ctx, boardID)
	if err != nil {
		return nil, storeError(err, "board", boardID)
	}
	if len(existing) > 0 {
		return existing, nil
	}

	now := s.now()
	created := make([]*models.Column, 0, len(models.DefaultColumnTitles))
	for i, title := range models.DefaultColumnTitles {
		column := &models.Column{
			BoardID:   boardID,
			Title:     title,
			Order:     i,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.CreateColumn(ctx, column); err != nil {
			return nil, storeError(err, "board", boardID)
		}
		created = append(created, column)
	}
	if err := s.touch(ctx, boardID, now); err != nil {
		return nil, err
	}

	s.publishBoardEvent(ctx, events.ColumnCreated, boardID, map[string]interface{}{
		"count": len(created),
	})
	return created, nil
}

// CreateColumn appends a column to the right of the board's existing columns.
func (s *Service) CreateColumn(ctx context.Context, actorID, boardID, title string) (*models.Column, error) {
	title, err := requireTitle("title", title)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, actorID, boardID, access.EditContent); err != nil {
		return nil, err
	}
	existing, err := s.repo.ListColumns(ctx, boardID)
	if err != nil {
		return nil, storeError(err, "board", boardID)
	}
	orders := make([]int, len(existing))
	for i, c := range existing {
		orders[i] = c.Order
	}

	now := s.now()
	column := &models.Column{
		BoardID:   boardID,
		Title:     title,
		Order:     nextOrder(orders),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateColumn(ctx, column); err != nil {
		return nil, storeError(err, "board", boardID)
	}
	if err := s.touch(ctx, boardID, now); err != nil {
		return nil, err
	}

	s.publishBoardEvent(ctx, events.ColumnCreated, boardID, map[string]interface{}{
		"column_id": column.ID,
		"title":     column.Title,
	})
	return column, nil
}

// RenameColumn changes a column's title.
func (s *Service) RenameColumn(ctx context.Context, actorID, columnID, title string) (*models.Column, error) {
	title, err := requireTitle("title", title)
	if err != nil {
		return nil, err
	}
	column, err := s.loadColumn(ctx, actorID, columnID, access.EditContent)
	if err != nil {
		return nil, err
	}

	column.Title = title
	column.UpdatedAt = s.now()
	if err := s.repo.UpdateColumn(ctx, column); err != nil {
		return nil, storeError(err, "column", columnID)
	}
	if err := s.touch(ctx, column.BoardID, column.UpdatedAt); err != nil {
		return nil, err
	}

	s.publishBoardEvent(ctx, events.ColumnUpdated, column.BoardID, map[string]interface{}{
		"column_id": column.ID,
		"title":     column.Title,
	})
	return column, nil
}

// DeleteColumn deletes a column and every card in it.
func (s *Service) DeleteColumn(ctx context.Context, actorID, columnID string) error {
	column, err := s.loadColumn(ctx, actorID, columnID, access.EditContent)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteColumn(ctx, columnID); err != nil {
		return storeError(err, "column", columnID)
	}
	if err := s.touch(ctx, column.BoardID, s.now()); err != nil {
		return err
	}

	s.publishBoardEvent(ctx, events.ColumnDeleted, column.BoardID, map[string]interface{}{
		"column_id": columnID,
	})
	return nil
}

// MoveColumn moves the column at sourceIndex to destinationIndex among the
// board's columns and renumbers them. columnID must be the column the client
// saw at sourceIndex.
func (s *Service) MoveColumn(ctx context.Context, actorID, boardID, columnID string, sourceIndex, destinationIndex int) (err error) {
	ctx, span := s.tracer.Start(ctx, "board.MoveColumn")
	span.SetAttributes(
		attribute.String("board_id", boardID),
		attribute.String("column_id", columnID),
		attribute.Int("source_index", sourceIndex),
		attribute.Int("destination_index", destinationIndex),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if _, err := s.authorize(ctx, actorID, boardID, access.EditContent); err != nil {
		return err
	}
	columns, err := s.repo.ListColumns(ctx, boardID)
	if err != nil {
		return storeError(err, "board", boardID)
	}

	siblings := columnItems(boardID, columns)
	writes, err := ordering.Plan(ordering.Drop{
		ItemID:      columnID,
		Source:      ordering.Location{ContainerID: boardID, Index: sourceIndex},
		Destination: &ordering.Location{ContainerID: boardID, Index: destinationIndex},
	}, siblings, nil)
	if err != nil {
		return orderingError(err)
	}
	writes = ordering.Minimize(siblings, writes)
	span.SetAttributes(attribute.Int("writes", len(writes)))
	if len(writes) == 0 {
		return nil
	}

	now := s.now()
	for _, w := range writes {
		if err := s.repo.UpdateColumnPosition(ctx, w.ID, w.Order, now); err != nil {
			return storeError(err, "column", w.ID)
		}
	}
	if err := s.touch(ctx, boardID, now); err != nil {
		return err
	}

	s.logger.Debug("columns reordered",
		zap.String("board_id", boardID),
		zap.String("column_id", columnID),
		zap.Int("writes", len(writes)))
	s.publishBoardEvent(ctx, events.ColumnsReordered, boardID, map[string]interface{}{
		"column_id": columnID,
	})
	return nil
}
