// Package platform abstracts the chat platform the escape room runs on.
// Every operation is remote, slow, and allowed to fail; callers own the
// retry policy.
package platform

import "context"

// Opaque platform identifiers.
type (
	UserID    string
	ChannelID string
	RoleID    string
)

// Override is a per-user channel visibility override.
type Override struct {
	User  UserID
	Allow bool
}

// Client is the set of remote operations the progression engine consumes.
// Implementations must make each call individually atomic; none are
// guaranteed to succeed.
type Client interface {
	// CreateOverride creates (or replaces) a per-user visibility override
	// on a channel. Allow grants VIEW, deny actively hides the channel.
	CreateOverride(ctx context.Context, channel ChannelID, o Override) error

	// DeleteOverride removes the user's per-user override on a channel.
	DeleteOverride(ctx context.Context, channel ChannelID, user UserID) error

	AddRole(ctx context.Context, user UserID, role RoleID) error
	RemoveRole(ctx context.Context, user UserID, role RoleID) error

	// SetRoles replaces the user's role set wholesale; used by the admin
	// set-stage recovery path.
	SetRoles(ctx context.Context, user UserID, roles []RoleID) error

	// MemberRoles returns the user's current role set.
	MemberRoles(ctx context.Context, user UserID) ([]RoleID, error)

	// SendMessage posts a plain message to a channel.
	SendMessage(ctx context.Context, channel ChannelID, content string) error
}
