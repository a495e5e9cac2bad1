package models

// Identity is the authenticated session record returned by login,
// registration and profile updates. It is persisted as JSON under the
// "userInfo" storage key. A nil *Identity means the visitor is a guest.
type Identity struct {
	// UserID is the remote user identifier.
	UserID string `json:"_id"`

	// Name is the display name.
	Name string `json:"name"`

	// Email is the login email.
	Email string `json:"email"`

	// IsAdmin grants access to admin-gated views.
	IsAdmin bool `json:"isAdmin"`

	// Token is the bearer credential attached to outgoing calls.
	Token string `json:"token"`
}
