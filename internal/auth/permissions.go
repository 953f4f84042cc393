package auth

import "strings"

// Role names. The catalog is fixed; deployments seed these four rows.
const (
	RoleAdmin     = "admin"
	RoleAssistant = "assistant"
	RoleGuard     = "guard"
	RoleAuxiliary = "auxiliary"
)

// Permission keys.
const (
	PermViewVisits        = "view_visits"
	PermCreateVisits      = "create_visits"
	PermEditVisits        = "edit_visits"
	PermCloseVisits       = "close_visits"
	PermDeleteVisits      = "delete_visits"
	PermManageUsers       = "manage_users"
	PermViewStats         = "view_stats"
	PermValidateCarnet    = "validate_carnet"
	PermViewActiveVisits  = "view_active_visits"
	PermViewMissionVisits = "view_mission_visits"
	PermCloseMissionVisit = "close_mission_visits"
)

// rolePermissions maps a role name to the capabilities resolved at login.
// Assistants administer visits but cannot delete them or manage users; guards
// work the gate (active visits, restricted close, carnet validation);
// auxiliaries only see and close visits within their own mission.
var rolePermissions = map[string][]string{
	RoleAdmin: {
		PermViewVisits, PermCreateVisits, PermEditVisits, PermCloseVisits,
		PermDeleteVisits, PermManageUsers, PermViewStats, PermValidateCarnet,
	},
	RoleAssistant: {
		PermViewVisits, PermCreateVisits, PermEditVisits, PermCloseVisits,
		PermViewStats,
	},
	RoleGuard: {
		PermViewActiveVisits, PermCloseVisits, PermValidateCarnet,
	},
	RoleAuxiliary: {
		PermViewMissionVisits, PermCloseMissionVisit,
	},
}

// PermissionsForRole resolves a role name (case-insensitive) to its
// permission list. Unknown roles get no permissions.
func PermissionsForRole(name string) []string {
	perms, ok := rolePermissions[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil
	}
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

// HasPermission reports whether the identity carries the given permission.
func (id Identity) HasPermission(perm string) bool {
	for _, p := range id.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}
