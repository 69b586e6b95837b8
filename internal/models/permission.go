package models

// Permission names a discrete capability a role may hold.
type Permission string

// Capabilities gated by the API.
const (
	PermStudentsRead      Permission = "students:read"
	PermStudentsWrite     Permission = "students:write"
	PermGroupsRead        Permission = "groups:read"
	PermGroupsWrite       Permission = "groups:write"
	PermEnrollmentsRead   Permission = "enrollments:read"
	PermEnrollmentsManage Permission = "enrollments:manage"
	PermUsersManage       Permission = "users:manage"
	PermReportsExport     Permission = "reports:export"
)

// RolePermissions maps each role to the capabilities it grants. Route
// guards consult this table instead of comparing role names directly.
var RolePermissions = map[UserRole][]Permission{
	RoleAdmin: {
		PermStudentsRead, PermStudentsWrite,
		PermGroupsRead, PermGroupsWrite,
		PermEnrollmentsRead, PermEnrollmentsManage,
		PermUsersManage, PermReportsExport,
	},
	RoleUser: {
		PermStudentsRead,
		PermGroupsRead,
		PermEnrollmentsRead, PermEnrollmentsManage,
	},
}

// RoleHasPermission reports whether the role grants the permission.
func RoleHasPermission(role UserRole, perm Permission) bool {
	for _, p := range RolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}
