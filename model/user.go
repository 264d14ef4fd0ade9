package model

import "strings"

// Role names as issued by the API.
const (
	RoleAdmin  = "ROLE_ADMIN"
	RoleAgent  = "ROLE_AGENT"
	RoleClient = "ROLE_CLIENT"
	RoleUser   = "ROLE_USER"
)

// User is the account snapshot returned by login and profile endpoints.
// It is replaced wholesale whenever the server returns a newer copy.
type User struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone,omitempty"`
	Address        string    `json:"address,omitempty"`
	ProfilePicture string    `json:"profilePicture,omitempty"`
	Enabled        bool      `json:"enabled"`
	Roles          []string  `json:"roles"`
	CreatedAt      Timestamp `json:"createdAt"`
	UpdatedAt      Timestamp `json:"updatedAt"`
}

// HasRole reports whether u carries role. Both "ADMIN" and "ROLE_ADMIN"
// spellings match.
func (u *User) HasRole(role string) bool {
	if u == nil {
		return false
	}
	want := normalizeRole(role)
	for _, r := range u.Roles {
		if normalizeRole(r) == want {
			return true
		}
	}
	return false
}

// IsAdmin is shorthand for HasRole(RoleAdmin).
func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.Roles = append([]string(nil), u.Roles...)
	return &out
}

func normalizeRole(role string) string {
	role = strings.ToUpper(strings.TrimSpace(role))
	if !strings.HasPrefix(role, "ROLE_") {
		role = "ROLE_" + role
	}
	return role
}

// UserUpdate carries the admin-editable fields of an account.
type UserUpdate struct {
	Name    string   `json:"name,omitempty"`
	Email   string   `json:"email,omitempty"`
	Phone   string   `json:"phone,omitempty"`
	Address string   `json:"address,omitempty"`
	Enabled *bool    `json:"enabled,omitempty"`
	Roles   []string `json:"roles,omitempty"`
}
