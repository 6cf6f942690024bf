package domain

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
)

// Valid reports whether p is a known plan.
func (p Plan) Valid() bool {
	return p == PlanFree || p == PlanPremium
}

// User is an account. Email is unique and stored lower-cased.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	FullName     string     `json:"full_name"`
	Company      string     `json:"company"`
	JobTitle     string     `json:"job_title"`
	Role         Role       `json:"role"`
	Plan         Plan       `json:"plan"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// IsAdmin is a read-only projection of the stored role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Profile holds the user-editable attributes collected at sign-up and on
// the settings page.
type Profile struct {
	FullName string `json:"full_name"`
	Company  string `json:"company"`
	JobTitle string `json:"job_title"`
}

type Stats struct {
	Users   int `json:"users"`
	Premium int `json:"premium"`
	Admins  int `json:"admins"`
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
