package models

import (
	"time"
)

// Role names. Exactly one per admin.
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleEditor     = "editor"
)

// Admin is a back-office account. PasswordHash and TwoFactorSecret never leave
// the server; use Profile for anything written to a response.
type Admin struct {
	ID               string
	Name             string
	Email            string
	PasswordHash     string
	Role             string
	Permissions      []string
	IsActive         bool
	LastLogin        *time.Time
	LoginAttempts    int
	LockoutUntil     *time.Time
	TwoFactorEnabled bool
	TwoFactorSecret  []byte // AES-GCM ciphertext, nonce prefixed
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsLocked reports whether a lockout is in force at now. An expired lockout
// counts as unlocked.
func (a *Admin) IsLocked(now time.Time) bool {
	return a.LockoutUntil != nil && a.LockoutUntil.After(now)
}

// AdminProfile is the outward-facing view of an Admin.
type AdminProfile struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	Role             string     `json:"role"`
	Permissions      []string   `json:"permissions"`
	IsActive         bool       `json:"isActive"`
	TwoFactorEnabled bool       `json:"twoFactorEnabled"`
	LastLogin        *time.Time `json:"lastLogin,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Profile strips secrets and resolves the effective permission set.
func (a *Admin) Profile() *AdminProfile {
	return &AdminProfile{
		ID:               a.ID,
		Name:             a.Name,
		Email:            a.Email,
		Role:             a.Role,
		Permissions:      ResolvePermissions(a),
		IsActive:         a.IsActive,
		TwoFactorEnabled: a.TwoFactorEnabled,
		LastLogin:        a.LastLogin,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

// IsValidRole checks a role name against the known set.
func IsValidRole(role string) bool {
	switch role {
	case RoleSuperAdmin, RoleAdmin, RoleEditor:
		return true
	}
	return false
}
