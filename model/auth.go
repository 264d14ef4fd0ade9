package model

import "io"

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the sign-up request body.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
}

// LoginResponse is returned by POST /auth/login.
type LoginResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	User         User   `json:"user"`
}

// TokenResponse is returned by POST /auth/token/refresh.
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType,omitempty"`
}

// RefreshRequest is the body of the refresh and revoke endpoints.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// PasswordReset is the body of POST /account/password/reset.
type PasswordReset struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// PasswordChange is the body of POST /users/profile/change-password.
type PasswordChange struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// ProfileUpdate carries the self-editable profile fields. When Picture is
// set it is uploaded first and its URL replaces ProfilePicture.
type ProfileUpdate struct {
	Name           string `json:"name,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Address        string `json:"address,omitempty"`
	ProfilePicture string `json:"profilePicture,omitempty"`

	Picture *Upload `json:"-"`
}

// Upload is a file handed to a multipart endpoint.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}
