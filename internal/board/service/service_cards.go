package service

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/taskflow/taskflow/internal/board/access"
	"github.com/taskflow/taskflow/internal/board/models"
	"github.com/taskflow/taskflow/internal/board/ordering"
	apperrors "github.com/taskflow/taskflow/internal/common/errors"
	"github.com/taskflow/taskflow/internal/events"
)

// CreateCardRequest contains the data for creating a new card
type CreateCardRequest struct {
	Title       string
	Description string
}

// UpdateCardRequest contains the card fields to change. Nil fields are left as is.
type UpdateCardRequest struct {
	Title       *string
	Description *string
}

func cardItems(cards []*models.Card) []ordering.Item {
	out := make([]ordering.Item, len(cards))
	for i, c := range cards {
		out[i] = ordering.Item{ID: c.ID, ContainerID: c.ColumnID, Order: c.Order}
	}
	return out
}

// loadCard loads a card and checks c on its board.
func (s *Service) loadCard(ctx context.Context, actorID, cardID string, c access.Capability) (*models.Card, error) {
	card, err := s.repo.GetCard(ctx, cardID)
	if err != nil {
		return nil, storeError(err, "card", cardID)
	}
	if _, err := s.authorize(ctx, actorID, card.BoardID, c); err != nil {
		return nil, err
	}
	return card, nil
}

// CreateCard appends a card to the bottom of a column.
func (s *Service) CreateCard(ctx context.Context, actorID, columnID string, req *CreateCardRequest) (*models.Card, error) {
	title, err := requireTitle("title", req.Title)
	if err != nil {
		return nil, err
	}
	column, err := s.loadColumn(ctx, actorID, columnID, access.EditContent)
	if err != nil {
		return nil, err
	}
	siblings, err := s.repo.ListCardsByColumn(ctx, columnID)
	if err != nil {
		return nil, storeError(err, "column", columnID)
	}
	orders := make([]int, len(siblings))
	for i, c := range siblings {
		orders[i] = c.Order
	}

	now := s.now()
	card := &models.Card{
		BoardID:     column.BoardID,
		ColumnID:    columnID,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Order:        nextOrder(orders),
		CreatedAt:    now,
		UpdatedAt:    now,
		PositionedAt: now,
	}
	if err := s.repo.CreateCard(ctx, card); err != nil {
		return nil, storeError(err, "column", columnID)
	}
	if err := s.touch(ctx, column.BoardID, now); err != nil {
		return nil, err
	}

	s.publishBoardEvent(ctx, events.CardCreated, column.BoardID, map[string]interface{}{
		"card_id":   card.ID,
		"column_id": columnID,
	})
	return card, nil
}

// UpdateCard changes a card's title or description.
func (s *Service) UpdateCard(ctx context.Context, actorID, cardID string, req *UpdateCardRequest) (*models.Card, error) {
	card, err := s.loadCard(ctx, actorID, cardID, access.EditContent)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		title, err := requireTitle("title", *req.Title)
		if err != nil {
			return nil, err
		}
		card.Title = title
	}
	if req.Description != nil {
		card.Description = strings.TrimSpace(*req.Description)
	}

	card.UpdatedAt = s.now()
	if err := s.repo.UpdateCard(ctx, card); err != nil {
		return nil, storeError(err, "card", cardID)
	}
	if err := s.touch(ctx, card.BoardID, card.UpdatedAt); err != nil {
		return nil, err
	}

	s.publishBoardEvent(ctx, events.CardUpdated, card.BoardID, map[string]interface{}{
		"card_id": card.ID,
	})
	return card, nil
}

// DeleteCard deletes a card.
func (s *Service) DeleteCard(ctx context.Context, actorID, cardID string) error {
	card, err := s.loadCard(ctx, actorID, cardID, access.EditContent)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteCard(ctx, cardID); err != nil {
		return storeError(err, "card", cardID)
	}
	if err := s.touch(ctx, card.BoardID, s.now()); err != nil {
		return err
	}

	s.publishBoardEvent(ctx, events.CardDeleted, card.BoardID, map[string]interface{}{
		"card_id":   cardID,
		"column_id": card.ColumnID,
	})
	return nil
}

// MoveCard applies a finished drag of cardID. A nil destination is a cancelled
// drag and does nothing. An empty source container defaults to the card's column.
// Writes are applied one card at a time; the dragged card is written in a
// single update when it changes column.
func (s *Service) MoveCard(ctx context.Context, actorID, cardID string, source ordering.Location, destination *ordering.Location) (err error) {
	if destination == nil {
		return nil
	}

	ctx, span := s.tracer.Start(ctx, "board.MoveCard")
	span.SetAttributes(
		attribute.String("card_id", cardID),
		attribute.String("source_column_id", source.ContainerID),
		attribute.Int("source_index", source.Index),
		attribute.String("destination_column_id", destination.ContainerID),
		attribute.Int("destination_index", destination.Index),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	card, err := s.loadCard(ctx, actorID, cardID, access.EditContent)
	if err != nil {
		return err
	}
	if source.ContainerID == "" {
		source.ContainerID = card.ColumnID
	}
	if source.ContainerID != card.ColumnID {
		return apperrors.ValidationError("source", "card is no longer in column '"+source.ContainerID+"'")
	}

	dest := *destination
	if dest.ContainerID == "" {
		dest.ContainerID = source.ContainerID
	}

	sourceCards, err := s.repo.ListCardsByColumn(ctx, source.ContainerID)
	if err != nil {
		return storeError(err, "column", source.ContainerID)
	}
	var destCards []*models.Card
	if dest.ContainerID != source.ContainerID {
		column, err := s.repo.GetColumn(ctx, dest.ContainerID)
		if err != nil {
			return storeError(err, "column", dest.ContainerID)
		}
		if column.BoardID != card.BoardID {
			return apperrors.ValidationError("destination", "column belongs to another board")
		}
		destCards, err = s.repo.ListCardsByColumn(ctx, dest.ContainerID)
		if err != nil {
			return storeError(err, "column", dest.ContainerID)
		}
	}

	sourceItems := cardItems(sourceCards)
	destItems := cardItems(destCards)
	writes, err := ordering.Plan(ordering.Drop{
		ItemID:      cardID,
		Source:      source,
		Destination: &dest,
	}, sourceItems, destItems)
	if err != nil {
		return orderingError(err)
	}
	writes = ordering.Minimize(append(sourceItems, destItems...), writes)
	span.SetAttributes(attribute.Int("writes", len(writes)))
	if len(writes) == 0 {
		return nil
	}

	columnOf := make(map[string]string, len(sourceCards)+len(destCards))
	for _, c := range append(sourceCards, destCards...) {
		columnOf[c.ID] = c.ColumnID
	}

	now := s.now()
	for _, w := range writes {
		columnID := w.ContainerID
		if columnID == "" {
			columnID = columnOf[w.ID]
		}
		if err := s.repo.UpdateCardPosition(ctx, w.ID, columnID, w.Order, now); err != nil {
			return storeError(err, "card", w.ID)
		}
	}
	if err := s.touch(ctx, card.BoardID, now); err != nil {
		return err
	}

	s.logger.Debug("card moved",
		zap.String("card_id", cardID),
		zap.String("from_column_id", source.ContainerID),
		zap.String("to_column_id", dest.ContainerID),
		zap.Int("writes", len(writes)))
	s.publishBoardEvent(ctx, events.CardMoved, card.BoardID, map[string]interface{}{
		"card_id":        cardID,
		"from_column_id": source.ContainerID,
		"to_column_id":   dest.ContainerID,
	})
	return nil
}
