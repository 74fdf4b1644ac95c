// Package domain contains the chatroom aggregate and its invariants.
// Every membership, ban, invite and settings transition is a method on
// Chatroom so that one room document stays the single unit of contention.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"time"

	"roomcore/roomerr"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
	VisibilityDirect  Visibility = "direct"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityPrivate, VisibilityDirect:
		return true
	}
	return false
}

type Settings struct {
	MaxMembers       int  `json:"max_members"`
	AllowInvites     bool `json:"allow_invites"`
	AllowFileSharing bool `json:"allow_file_sharing"`
	RequireApproval  bool `json:"require_approval"`
}

// LastMessage is the denormalized summary shown in room lists.
type LastMessage struct {
	SenderID string    `json:"sender_id"`
	Text     string    `json:"text"`
	At       time.Time `json:"at"`
}

// BanRecord presence for a user is authoritative: it blocks every join path
// until an explicit unban, whether or not a membership ever existed.
type BanRecord struct {
	UserID   string    `json:"user_id"`
	BannedBy string    `json:"banned_by"`
	Reason   string    `json:"reason"`
	At       time.Time `json:"at"`
}

// Chatroom is the aggregate root. Memberships, bans and invite links are
// embedded so a single document update covers any combination of them.
type Chatroom struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Description  string                 `json:"description"`
	Visibility   Visibility             `json:"visibility"`
	CreatorID    string                 `json:"creator_id"`
	Settings     Settings               `json:"settings"`
	LastMessage  *LastMessage           `json:"last_message,omitempty"`
	Active       bool                   `json:"active"`
	MessageCount int64                  `json:"message_count"`
	MessageSeq   int64                  `json:"message_seq"`
	CreatedAt    time.Time              `json:"created_at"`
	Members      map[string]*Membership `json:"members"`
	Bans         map[string]BanRecord   `json:"bans"`
	Invites      map[string]*InviteLink `json:"invites"`

	// codes created since the aggregate was loaded, consumed by the
	// repository to maintain the code-to-room index
	newInviteCodes []string
}

// NewChatroom creates an active room whose creator is its first admin.
func NewChatroom(id, name, description string, visibility Visibility, creatorID string, settings Settings, now time.Time) *Chatroom {
	room := &Chatroom{
		ID:          id,
		Name:        name,
		Description: description,
		Visibility:  visibility,
		CreatorID:   creatorID,
		Settings:    settings,
		Active:      true,
		CreatedAt:   now,
		Members:     make(map[string]*Membership),
		Bans:        make(map[string]BanRecord),
		Invites:     make(map[string]*InviteLink),
	}
	room.Members[creatorID] = NewMembership(creatorID, RoleAdmin, now)
	return room
}

func (r *Chatroom) Member(userID string) (*Membership, bool) {
	m, ok := r.Members[userID]
	return m, ok
}

func (r *Chatroom) IsBanned(userID string) bool {
	_, ok := r.Bans[userID]
	return ok
}

// HasPermission never fails: non-members simply hold nothing.
func (r *Chatroom) HasPermission(userID string, c Capability, now time.Time) bool {
	m, ok := r.Members[userID]
	if !ok {
		return false
	}
	return m.Can(c, now)
}

// Join admits userID as a plain member. A ban blocks every join path, so it
// rejects ahead of the softer approval and capacity checks; freshness is
// guaranteed because callers run this inside the room's storage transaction,
// making the ban set the last state read before membership creation.
func (r *Chatroom) Join(userID string, now time.Time) (*Membership, error) {
	if !r.Active {
		return nil, roomerr.E(roomerr.KindNotFound, "room %s is deleted", r.ID)
	}
	if _, ok := r.Members[userID]; ok {
		return nil, roomerr.ErrAlreadyMember
	}
	if r.IsBanned(userID) {
		return nil, roomerr.ErrBanned
	}
	if r.Visibility == VisibilityPrivate && r.Settings.RequireApproval {
		return nil, roomerr.ErrApprovalRequired
	}
	if r.Settings.MaxMembers > 0 && len(r.Members) >= r.Settings.MaxMembers {
		return nil, roomerr.E(roomerr.KindValidation, "room %s is full", r.ID)
	}
	m := NewMembership(userID, RoleMember, now)
	r.Members[userID] = m
	return m, nil
}

// Leave is a no-op when the user is not a member.
func (r *Chatroom) Leave(userID string) bool {
	if _, ok := r.Members[userID]; !ok {
		return false
	}
	delete(r.Members, userID)
	return true
}

// SetRole is admin-only and resets the target's bundle to the role template.
// Individual grants may be re-overridden afterwards.
func (r *Chatroom) SetRole(actorID, targetID string, role Role) error {
	actor, ok := r.Members[actorID]
	if !ok || actor.Role != RoleAdmin {
		return roomerr.ErrForbidden
	}
	if !role.Valid() {
		return roomerr.E(roomerr.KindValidation, "unknown role %q", role)
	}
	target, ok := r.Members[targetID]
	if !ok {
		return roomerr.ErrNotFound
	}
	target.Role = role
	target.Permissions = role.DefaultPermissions()
	return nil
}

// Kick removes an existing member. Kicking a non-member is NotFound, not
// Forbidden: the actor's capability is checked first.
func (r *Chatroom) Kick(actorID, targetID string, now time.Time) error {
	if !r.HasPermission(actorID, CapKick, now) {
		return roomerr.ErrForbidden
	}
	if _, ok := r.Members[targetID]; !ok {
		return roomerr.ErrNotFound
	}
	delete(r.Members, targetID)
	return nil
}

// Ban upserts a ban record and force-removes any live membership. A user can
// be pre-banned before ever joining.
func (r *Chatroom) Ban(actorID, targetID, reason string, now time.Time) error {
	if !r.HasPermission(actorID, CapBan, now) {
		return roomerr.ErrForbidden
	}
	r.Bans[targetID] = BanRecord{UserID: targetID, BannedBy: actorID, Reason: reason, At: now}
	delete(r.Members, targetID)
	return nil
}

// Unban is admin-only and never re-creates membership.
func (r *Chatroom) Unban(actorID, targetID string) error {
	actor, ok := r.Members[actorID]
	if !ok || actor.Role != RoleAdmin {
		return roomerr.ErrForbidden
	}
	if _, ok := r.Bans[targetID]; !ok {
		return roomerr.ErrNotFound
	}
	delete(r.Bans, targetID)
	return nil
}

// Mute silences a member until now+duration, or indefinitely when duration is
// nil. Expiry is evaluated lazily at each permission check.
func (r *Chatroom) Mute(actorID, targetID string, duration *time.Duration, now time.Time) (*time.Time, error) {
	actor, ok := r.Members[actorID]
	if !ok || (actor.Role != RoleAdmin && actor.Role != RoleModerator) {
		return nil, roomerr.ErrForbidden
	}
	target, ok := r.Members[targetID]
	if !ok {
		return nil, roomerr.ErrNotFound
	}
	target.Muted = true
	target.MuteUntil = nil
	if duration != nil {
		until := now.Add(*duration)
		target.MuteUntil = &until
	}
	target.Permissions.Send = false
	return target.MuteUntil, nil
}

// Unmute restores the role-default send permission.
func (r *Chatroom) Unmute(actorID, targetID string) error {
	actor, ok := r.Members[actorID]
	if !ok || (actor.Role != RoleAdmin && actor.Role != RoleModerator) {
		return roomerr.ErrForbidden
	}
	target, ok := r.Members[targetID]
	if !ok {
		return roomerr.ErrNotFound
	}
	target.Muted = false
	target.MuteUntil = nil
	target.Permissions.Send = target.Role.DefaultPermissions().Send
	return nil
}

// AddModerator promotes target with the moderator bundle. Admin-only.
func (r *Chatroom) AddModerator(actorID, targetID string) error {
	return r.SetRole(actorID, targetID, RoleModerator)
}

// RemoveModerator demotes target back to a plain member. Admin-only.
func (r *Chatroom) RemoveModerator(actorID, targetID string) error {
	return r.SetRole(actorID, targetID, RoleMember)
}

// CreateInvite issues a new link. Requires room invites to be enabled and the
// issuer to be admin or moderator.
func (r *Chatroom) CreateInvite(issuerID string, maxUses *int, expiresIn *time.Duration, grantedRole Role, now time.Time) (*InviteLink, error) {
	if !r.Settings.AllowInvites {
		return nil, roomerr.E(roomerr.KindForbidden, "invites are disabled for room %s", r.ID)
	}
	issuer, ok := r.Members[issuerID]
	if !ok || (issuer.Role != RoleAdmin && issuer.Role != RoleModerator) {
		return nil, roomerr.ErrForbidden
	}
	if !grantedRole.Valid() {
		grantedRole = RoleMember
	}
	link := &InviteLink{
		Code:        NewInviteCode(),
		IssuerID:    issuerID,
		GrantedRole: grantedRole,
		MaxUses:     maxUses,
		Active:      true,
		CreatedAt:   now,
	}
	if expiresIn != nil {
		expiry := now.Add(*expiresIn)
		link.ExpiresAt = &expiry
	}
	r.Invites[link.Code] = link
	r.newInviteCodes = append(r.newInviteCodes, link.Code)
	return link, nil
}

// RedeemInvite turns a valid link into a membership. Redeeming while already
// a member is idempotent success and does not consume a use. The ban check is
// the final gate before the membership is created.
func (r *Chatroom) RedeemInvite(code, userID string, now time.Time) (*Membership, error) {
	link, ok := r.Invites[code]
	if !ok {
		return nil, roomerr.ErrNotFound
	}
	if !link.IsValid(now) {
		if link.Exhausted() {
			return nil, roomerr.ErrExhausted
		}
		return nil, roomerr.ErrExpired
	}
	if m, ok := r.Members[userID]; ok {
		return m, nil
	}
	if r.IsBanned(userID) {
		return nil, roomerr.ErrBanned
	}
	link.redeem(userID, now)
	m := NewMembership(userID, link.GrantedRole, now)
	r.Members[userID] = m
	return m, nil
}

// DeactivateInvite is allowed for the link's issuer or a room admin. Already
// redeemed memberships are unaffected.
func (r *Chatroom) DeactivateInvite(code, actorID string) error {
	link, ok := r.Invites[code]
	if !ok {
		return roomerr.ErrNotFound
	}
	actor, isMember := r.Members[actorID]
	isAdmin := isMember && actor.Role == RoleAdmin
	if link.IssuerID != actorID && !isAdmin {
		return roomerr.ErrForbidden
	}
	link.Active = false
	return nil
}

// UpdateSettings requires the edit-room capability.
func (r *Chatroom) UpdateSettings(actorID string, settings Settings, now time.Time) error {
	if !r.HasPermission(actorID, CapEditRoom, now) {
		return roomerr.ErrForbidden
	}
	r.Settings = settings
	return nil
}

// SoftDelete marks the room inactive. Rooms are never resurrected; the
// message cascade is handled by the stores.
func (r *Chatroom) SoftDelete(actorID string) error {
	actor, ok := r.Members[actorID]
	if !ok || actor.Role != RoleAdmin {
		return roomerr.ErrForbidden
	}
	r.Active = false
	return nil
}

// RecordMessage bumps the per-room sequence and the last-message summary,
// returning the sequence assigned to the message being appended.
func (r *Chatroom) RecordMessage(senderID, text string, now time.Time) int64 {
	r.MessageSeq++
	r.MessageCount++
	r.LastMessage = &LastMessage{SenderID: senderID, Text: text, At: now}
	return r.MessageSeq
}

// AdminCount is used to warn when a moderation action orphans the room.
func (r *Chatroom) AdminCount() int {
	n := 0
	for _, m := range r.Members {
		if m.Role == RoleAdmin {
			n++
		}
	}
	return n
}

// TakeNewInviteCodes drains the codes created since load so the repository
// can index them in the same transaction as the room write.
func (r *Chatroom) TakeNewInviteCodes() []string {
	codes := r.newInviteCodes
	r.newInviteCodes = nil
	return codes
}
