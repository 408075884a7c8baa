package model

import (
	"fmt"
	"strings"
	"time"
)

// Role is the closed set of account roles.  Values match the role_id column
// and the role_id field of the public API.
type Role uint8

const (
	RoleAdmin  Role = 1 // manages the catalog
	RoleMember Role = 2 // browses the catalog
)

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool { return r == RoleAdmin || r == RoleMember }

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "ADMIN"
	case RoleMember:
		return "MEMBER"
	}
	return fmt.Sprintf("Role(%d)", uint8(r))
}

// LandingPath is the client route a user lands on after signing in.
func (r Role) LandingPath() string {
	if r == RoleAdmin {
		return "/products"
	}
	return "/home"
}

// ParseRole accepts either the role name ("ADMIN") or its numeric id ("1").
func ParseRole(s string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ADMIN", "1":
		return RoleAdmin, nil
	case "MEMBER", "2":
		return RoleMember, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// User represents an application user record as stored in the
// `users` table.  PasswordHash never leaves the server; handlers
// expose users through PublicUser.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Username     – unique login name.
//	Email        – unique email address.
//	PasswordHash – bcrypt hashed password.
//	Role         – users.role_id.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Username     string    // users.username
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         Role      // users.role_id
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// PublicUser is the JSON shape of a user returned to clients.
type PublicUser struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	RoleID   Role   `json:"role_id"`
	Role     string `json:"role"`
	Landing  string `json:"landing"`
}

// Public strips the credential fields.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		RoleID:   u.Role,
		Role:     u.Role.String(),
		Landing:  u.Role.LandingPath(),
	}
}
