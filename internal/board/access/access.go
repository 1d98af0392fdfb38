// Package access resolves a user's effective role on a board and decides which
// board operations that role may perform.
package access

import (
	"fmt"
	"strings"

	"github.com/taskflow/taskflow/internal/board/models"
	"github.com/taskflow/taskflow/internal/common/errors"
)

// EffectiveRole is exactly one of Owner, Member or None.
type EffectiveRole interface {
	effectiveRole()
	String() string
}

// Owner is the board's creator.
type Owner struct{}

// Member is a listed collaborator with an editor or viewer role.
type Member struct {
	Role models.MemberRole
}

// None has no access to the board.
type None struct{}

func (Owner) effectiveRole()  {}
func (Member) effectiveRole() {}
func (None) effectiveRole()   {}

func (Owner) String() string    { return "owner" }
func (m Member) String() string { return string(m.Role) }
func (None) String() string     { return "none" }

// Resolve returns userID's role on board.
func Resolve(board *models.Board, userID string) EffectiveRole {
	if userID != "" && board.OwnerID == userID {
		return Owner{}
	}
	if m, ok := board.Member(userID); ok {
		return Member{Role: m.Role}
	}
	return None{}
}

// Capability is a class of board operation.
type Capability int

const (
	// ViewBoard covers reading the board, its columns and cards.
	ViewBoard Capability = iota
	// EditContent covers creating, editing, moving and deleting columns and cards.
	EditContent
	// ManageBoard covers renaming, restyling and deleting the board.
	ManageBoard
	// ManageMembers covers inviting, removing and re-roling members.
	ManageMembers
)

func (c Capability) String() string {
	switch c {
	case ViewBoard:
		return "view board"
	case EditContent:
		return "edit board content"
	case ManageBoard:
		return "manage board"
	case ManageMembers:
		return "manage members"
	default:
		return fmt.Sprintf("capability(%d)", int(c))
	}
}

// Allows reports whether role grants c.
func Allows(role EffectiveRole, c Capability) bool {
	switch r := role.(type) {
	case Owner:
		return true
	case Member:
		switch c {
		case ViewBoard:
			return r.Role.Valid()
		case EditContent:
			return r.Role == models.RoleEditor
		}
		return false
	default:
		return false
	}
}

// Policy applies capability checks with the configured membership rules.
type Policy struct {
	// AllowSelfRemoval lets a member leave a board without the owner.
	AllowSelfRemoval bool
}

// Check returns an authorization error unless userID may perform c on board.
func (p Policy) Check(board *models.Board, userID string, c Capability) error {
	if Allows(Resolve(board, userID), c) {
		return nil
	}
	return errors.Forbidden(fmt.Sprintf("not allowed to %s on board '%s'", c, board.ID))
}

// CanRemoveMember decides whether actorID may remove targetID from board.
func (p Policy) CanRemoveMember(board *models.Board, actorID, targetID string) error {
	if _, isOwner := Resolve(board, actorID).(Owner); isOwner {
		return nil
	}
	if p.AllowSelfRemoval && actorID == targetID {
		if _, isMember := Resolve(board, actorID).(Member); isMember {
			return nil
		}
	}
	return errors.Forbidden(fmt.Sprintf("not allowed to %s on board '%s'", ManageMembers, board.ID))
}

// ParseMemberRole accepts "editor" or "viewer", case-insensitively.
// Ownership is never grantable.
func ParseMemberRole(s string) (models.MemberRole, error) {
	role := models.MemberRole(strings.ToLower(strings.TrimSpace(s)))
	if !role.Valid() {
		return "", errors.ValidationError("role", fmt.Sprintf("must be %q or %q", models.RoleEditor, models.RoleViewer))
	}
	return role, nil
}
