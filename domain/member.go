package domain

import "time"

// Role is a convenience bundle of permissions, not a hard constraint:
// individual bits may be overridden per member after the role is applied.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleMember    Role = "member"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleModerator, RoleMember:
		return true
	}
	return false
}

// Capability is a single named permission bit.
type Capability string

const (
	CapSend         Capability = "send"
	CapDeleteOthers Capability = "delete_others_messages"
	CapKick         Capability = "kick"
	CapBan          Capability = "ban"
	CapEditRoom     Capability = "edit_room"
	CapManageRoles  Capability = "manage_roles"
)

// PermissionSet holds each capability as an independent boolean.
type PermissionSet struct {
	Send         bool `json:"send"`
	DeleteOthers bool `json:"delete_others_messages"`
	Kick         bool `json:"kick"`
	Ban          bool `json:"ban"`
	EditRoom     bool `json:"edit_room"`
	ManageRoles  bool `json:"manage_roles"`
}

func (p PermissionSet) Has(c Capability) bool {
	switch c {
	case CapSend:
		return p.Send
	case CapDeleteOthers:
		return p.DeleteOthers
	case CapKick:
		return p.Kick
	case CapBan:
		return p.Ban
	case CapEditRoom:
		return p.EditRoom
	case CapManageRoles:
		return p.ManageRoles
	}
	return false
}

// DefaultPermissions returns the bundle template for a role.
// Moderators get send, delete-others and kick but NOT ban, edit-room
// or manage-roles.
func (r Role) DefaultPermissions() PermissionSet {
	switch r {
	case RoleAdmin:
		return PermissionSet{Send: true, DeleteOthers: true, Kick: true, Ban: true, EditRoom: true, ManageRoles: true}
	case RoleModerator:
		return PermissionSet{Send: true, DeleteOthers: true, Kick: true}
	default:
		return PermissionSet{Send: true}
	}
}

// Membership binds a user to a room with per-user state.
type Membership struct {
	UserID      string        `json:"user_id"`
	Role        Role          `json:"role"`
	Permissions PermissionSet `json:"permissions"`
	JoinedAt    time.Time     `json:"joined_at"`
	Muted       bool          `json:"muted"`
	MuteUntil   *time.Time    `json:"mute_until,omitempty"` // nil while muted means indefinite
}

func NewMembership(userID string, role Role, now time.Time) *Membership {
	return &Membership{
		UserID:      userID,
		Role:        role,
		Permissions: role.DefaultPermissions(),
		JoinedAt:    now,
	}
}

// IsMuted evaluates the mute lazily: an expired mute counts as already lifted,
// no background sweep ever runs.
func (m *Membership) IsMuted(now time.Time) bool {
	if !m.Muted {
		return false
	}
	if m.MuteUntil == nil {
		return true
	}
	return now.Before(*m.MuteUntil)
}

// Can reports whether the member holds the capability right now.
// Admins implicitly hold every capability. A live mute masks send; an
// expired mute counts as lifted even though the stored send bit is still
// cleared, so no unmute call is ever required.
func (m *Membership) Can(c Capability, now time.Time) bool {
	if c == CapSend && m.IsMuted(now) {
		return false
	}
	if m.Role == RoleAdmin {
		return true
	}
	if c == CapSend && m.Muted && !m.IsMuted(now) {
		return m.Role.DefaultPermissions().Send
	}
	return m.Permissions.Has(c)
}
