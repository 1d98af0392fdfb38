package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/taskflow/taskflow/internal/board/access"
	"github.com/taskflow/taskflow/internal/board/models"
	"github.com/taskflow/taskflow/internal/board/repository"
	apperrors "github.com/taskflow/taskflow/internal/common/errors"
	"github.com/taskflow/taskflow/internal/events"
)

// RoleOwner labels the board owner in member listings. It is never a grantable role.
const RoleOwner = "owner"

// MemberView is a board participant with their profile.
type MemberView struct {
	UserID  string
	Name    string
	Email   string
	Role    string
	AddedAt time.Time
}

// NormalizeEmail lower-cases and trims an email address for lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// InviteMember grants userID the given role on a board. The owner and existing
// members cannot be invited. Owner only.
func (s *Service) InviteMember(ctx context.Context, actorID, boardID, userID, role string) (*models.BoardMember, error) {
	board, err := s.authorize(ctx, actorID, boardID, access.ManageMembers)
	if err != nil {
		return nil, err
	}
	parsed, err := access.ParseMemberRole(role)
	if err != nil {
		return nil, err
	}
	if userID == board.OwnerID {
		return nil, apperrors.ValidationError("userId", "the owner is already on the board")
	}
	if _, exists := board.Member(userID); exists {
		return nil, apperrors.ValidationError("userId", "user is already a member of the board")
	}
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return nil, storeError(err, "user", userID)
	}

	now := s.now()
	member := models.BoardMember{UserID: userID, Role: parsed, AddedAt: now}
	if err := s.repo.AddMember(ctx, boardID, member); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.ValidationError("userId", "user is already a member of the board")
		}
		return nil, storeError(err, "board", boardID)
	}
	if err := s.touch(ctx, boardID, now); err != nil {
		return nil, err
	}

	s.logger.Info("member invited",
		zap.String("board_id", boardID),
		zap.String("user_id", userID),
		zap.String("role", string(parsed)))
	s.publishBoardEvent(ctx, events.MemberAdded, boardID, map[string]interface{}{
		"user_id": userID,
		"role":    string(parsed),
	})
	return &member, nil
}

// InviteMemberByEmail looks the invitee up by email and invites them.
func (s *Service) InviteMemberByEmail(ctx context.Context, actorID, boardID, email, role string) (*models.BoardMember, error) {
	if _, err := s.authorize(ctx, actorID, boardID, access.ManageMembers); err != nil {
		return nil, err
	}
	email = NormalizeEmail(email)
	if email == "" {
		return nil, apperrors.ValidationError("email", "must not be empty")
	}
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, storeError(err, "user", email)
	}
	return s.InviteMember(ctx, actorID, boardID, user.ID, role)
}

// UpdateMemberRole changes a member's role. Owner only.
func (s *Service) UpdateMemberRole(ctx context.Context, actorID, boardID, userID, role string) error {
	board, err := s.authorize(ctx, actorID, boardID, access.ManageMembers)
	if err != nil {
		return err
	}
	parsed, err := access.ParseMemberRole(role)
	if err != nil {
		return err
	}
	if _, exists := board.Member(userID); !exists {
		return apperrors.NotFound("member", userID)
	}
	if err := s.repo.UpdateMemberRole(ctx, boardID, userID, parsed); err != nil {
		return storeError(err, "member", userID)
	}
	if err := s.touch(ctx, boardID, s.now()); err != nil {
		return err
	}

	s.publishBoardEvent(ctx, events.MemberRoleChanged, boardID, map[string]interface{}{
		"user_id": userID,
		"role":    string(parsed),
	})
	return nil
}

// RemoveMember removes userID from a board. Only the owner may remove members,
// unless self-removal is enabled.
func (s *Service) RemoveMember(ctx context.Context, actorID, boardID, userID string) error {
	board, err := s.loadBoard(ctx, boardID)
	if err != nil {
		return err
	}
	if err := s.policy.CanRemoveMember(board, actorID, userID); err != nil {
		return err
	}
	if _, exists := board.Member(userID); !exists {
		return apperrors.NotFound("member", userID)
	}
	if err := s.repo.RemoveMember(ctx, boardID, userID); err != nil {
		return storeError(err, "member", userID)
	}
	if err := s.touch(ctx, boardID, s.now()); err != nil {
		return err
	}

	s.logger.Info("member removed",
		zap.String("board_id", boardID),
		zap.String("user_id", userID),
		zap.String("removed_by", actorID))
	s.publishBoardEvent(ctx, events.MemberRemoved, boardID, map[string]interface{}{
		"user_id": userID,
	})
	return nil
}

// ListMembers returns the owner followed by the members in the order they joined.
func (s *Service) ListMembers(ctx context.Context, actorID, boardID string) ([]*MemberView, error) {
	board, err := s.authorize(ctx, actorID, boardID, access.ViewBoard)
	if err != nil {
		return nil, err
	}

	views := make([]*MemberView, 0, len(board.Members)+1)
	owner, err := s.memberView(ctx, board.OwnerID, RoleOwner, board.CreatedAt)
	if err != nil {
		return nil, err
	}
	views = append(views, owner)
	for _, m := range board.Members {
		view, err := s.memberView(ctx, m.UserID, string(m.Role), m.AddedAt)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *Service) memberView(ctx context.Context, userID, role string, addedAt time.Time) (*MemberView, error) {
	view := &MemberView{UserID: userID, Role: role, AddedAt: addedAt}
	user, err := s.repo.GetUser(ctx, userID)
	switch {
	case err == nil:
		view.Name = user.Name
		view.Email = user.Email
	case errors.Is(err, repository.ErrNotFound):
		s.logger.Warn("board member has no user profile", zap.String("user_id", userID))
	default:
		return nil, apperrors.StoreUnavailable(err)
	}
	return view, nil
}
