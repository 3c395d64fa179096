package domain

import "time"

// User is a registered gallery administrator.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	PasswordHash string `json:"-"`
	// RefreshToken is the single live refresh token of the user, nil when
	// signed out.
	RefreshToken *string   `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Identity is the payload embedded in both token classes.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Identity returns the token payload for the user.
func (u *User) Identity() Identity {
	return Identity{ID: u.ID, Email: u.Email}
}

// HasRefreshToken reports whether token is the user's current refresh token.
func (u *User) HasRefreshToken(token string) bool {
	return u.RefreshToken != nil && token != "" && *u.RefreshToken == token
}

// Profile is the public view of a user.
type Profile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Profile returns the public view of the user.
func (u *User) Profile() Profile {
	return Profile{ID: u.ID, Email: u.Email, Phone: u.Phone}
}

// TokenPair holds an access and refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"-"`
	RefreshToken string `json:"-"`
}

// Session is the result of a successful register, login or refresh.
type Session struct {
	User   Identity
	Tokens TokenPair
}
