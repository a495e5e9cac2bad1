// Package auth validates credential forms and inspects identity tokens.
package auth

// Credentials is the login form.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the sign-up form. ConfirmPassword is checked locally and
// never sent.
type Registration struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"-"`
}

// ProfileUpdate is the profile form. ConfirmPassword is checked locally and
// never sent.
type ProfileUpdate struct {
	UserID          string `json:"_id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password,omitempty"`
	ConfirmPassword string `json:"-"`
}
