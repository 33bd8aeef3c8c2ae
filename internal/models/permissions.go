package models

import "slices"

// Permission constants define every capability the back office checks.
const (
	PermManageAdmins     = "manage_admins"
	PermManageApartments = "manage_apartments"
	PermManageFeatures   = "manage_features"
	PermManageWarranties = "manage_warranties"
	PermManageLocation   = "manage_location"
	PermManageMedia      = "manage_media"
	PermManageProject    = "manage_project"
	PermManageContact    = "manage_contact"
	PermViewInquiries    = "view_inquiries"
	PermManageInquiries  = "manage_inquiries"
	PermViewAnalytics    = "view_analytics"
)

// AllPermissions is the whitelist of capability strings, in display order.
var AllPermissions = []string{
	PermManageAdmins,
	PermManageApartments,
	PermManageFeatures,
	PermManageWarranties,
	PermManageLocation,
	PermManageMedia,
	PermManageProject,
	PermManageContact,
	PermViewInquiries,
	PermManageInquiries,
	PermViewAnalytics,
}

var validPermissions = func() map[string]bool {
	m := make(map[string]bool, len(AllPermissions))
	for _, p := range AllPermissions {
		m[p] = true
	}
	return m
}()

// IsValidPermission checks a capability string against the whitelist
func IsValidPermission(perm string) bool {
	return validPermissions[perm]
}

// ValidatePermissions rejects any string outside AllPermissions.
func ValidatePermissions(perms []string) error {
	for _, p := range perms {
		if !IsValidPermission(p) {
			return ErrBadRequest
		}
	}
	return nil
}

// DefaultPermissions returns the bundle a role starts with. super_admin gets
// an empty stored set because HasPermission grants it everything anyway.
func DefaultPermissions(role string) []string {
	switch role {
	case RoleAdmin:
		perms := make([]string, 0, len(AllPermissions)-1)
		for _, p := range AllPermissions {
			if p != PermManageAdmins {
				perms = append(perms, p)
			}
		}
		return perms
	case RoleEditor:
		return []string{
			PermManageApartments,
			PermManageFeatures,
			PermManageWarranties,
			PermManageLocation,
			PermManageMedia,
			PermViewInquiries,
			PermManageInquiries,
		}
	default:
		return []string{}
	}
}

// HasPermission is the single capability check used by the guard and the
// client helper. super_admin is tagged, not pre-populated.
func HasPermission(role string, perms []string, required string) bool {
	if role == RoleSuperAdmin {
		return true
	}
	return slices.Contains(perms, required)
}

// HasRole reports whether role is one of allowed.
func HasRole(role string, allowed ...string) bool {
	return slices.Contains(allowed, role)
}

// ResolvePermissions returns the effective capability list for display.
func ResolvePermissions(a *Admin) []string {
	if a.Role == RoleSuperAdmin {
		return slices.Clone(AllPermissions)
	}
	if a.Permissions == nil {
		return []string{}
	}
	return slices.Clone(a.Permissions)
}
