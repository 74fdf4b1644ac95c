package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Redemption is the receipt kept for every successful invite use.
type Redemption struct {
	UserID string    `json:"user_id"`
	At     time.Time `json:"at"`
}

// InviteLink grants room membership on redemption, bounded by expiry and usage.
type InviteLink struct {
	Code        string       `json:"code"`
	IssuerID    string       `json:"issuer_id"`
	GrantedRole Role         `json:"granted_role"`
	MaxUses     *int         `json:"max_uses,omitempty"`
	UsedCount   int          `json:"used_count"`
	ExpiresAt   *time.Time   `json:"expires_at,omitempty"`
	Active      bool         `json:"active"`
	CreatedAt   time.Time    `json:"created_at"`
	Redemptions []Redemption `json:"redemptions,omitempty"`
}

// NewInviteCode returns an opaque globally-unique token.
func NewInviteCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// IsValid holds iff the link is active, not past its expiry and not exhausted.
func (l *InviteLink) IsValid(now time.Time) bool {
	if !l.Active {
		return false
	}
	if l.ExpiresAt != nil && !now.Before(*l.ExpiresAt) {
		return false
	}
	if l.MaxUses != nil && l.UsedCount >= *l.MaxUses {
		return false
	}
	return true
}

// Exhausted reports whether usage alone makes the link invalid.
func (l *InviteLink) Exhausted() bool {
	return l.MaxUses != nil && l.UsedCount >= *l.MaxUses
}

// redeem records one successful use and deactivates the link when it
// reaches its usage bound. Callers must have checked IsValid first.
func (l *InviteLink) redeem(userID string, now time.Time) {
	l.UsedCount++
	l.Redemptions = append(l.Redemptions, Redemption{UserID: userID, At: now})
	if l.Exhausted() {
		l.Active = false
	}
}
