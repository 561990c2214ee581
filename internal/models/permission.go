package models

// Permission is a typed admin capability. The backend transmits these as
// strings; parsing them into a closed set keeps membership checks
// exhaustive instead of stringly-typed.
type Permission string

const (
	PermUsersRead     Permission = "admin:users:read"
	PermUsersWrite    Permission = "admin:users:write"
	PermAnalyticsRead Permission = "admin:analytics:read"
	PermMonitoring    Permission = "admin:monitoring:read"
	PermSettingsRead  Permission = "admin:settings:read"
	PermSettingsWrite Permission = "admin:settings:write"
	PermUsageExport   Permission = "admin:usage:export"
)

// knownPermissions is the closed set a raw string may parse into.
var knownPermissions = map[Permission]bool{
	PermUsersRead:     true,
	PermUsersWrite:    true,
	PermAnalyticsRead: true,
	PermMonitoring:    true,
	PermSettingsRead:  true,
	PermSettingsWrite: true,
	PermUsageExport:   true,
}

// ParsePermission returns the typed permission and whether it is known.
// Unknown strings are preserved by the caller but never compare true.
func ParsePermission(s string) (Permission, bool) {
	p := Permission(s)
	return p, knownPermissions[p]
}

// AdminProfile is the admin identity and capability set fetched from the
// backend when an authenticated user enters the admin console.
type AdminProfile struct {
	IsAdmin      bool         `json:"is_admin"`
	IsSuperAdmin bool         `json:"is_super_admin"`
	Permissions  []Permission `json:"permissions"`
}

// HasPermission is a pure membership check; super admins hold every
// capability implicitly.
func (p *AdminProfile) HasPermission(perm Permission) bool {
	if p == nil || !p.IsAdmin {
		return false
	}
	if p.IsSuperAdmin {
		return true
	}
	for _, have := range p.Permissions {
		if have == perm {
			return true
		}
	}
	return false
}
