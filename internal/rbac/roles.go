package rbac

// Role names are part of the token contract; keep them stable.
const (
	RoleOwner      = "owner"
	RoleManager    = "manager"
	RoleAnalyst    = "analyst"
	RoleFinance    = "finance"
	RoleSuperAdmin = "super_admin"
	RoleSupport    = "support" // hidden, platform staff
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

func IsHiddenRole(role string) bool { return role == RoleSupport }

// IsPlatformStaff reports roles that may act across tenants.
func IsPlatformStaff(role string) bool { return IsSuperAdmin(role) || IsHiddenRole(role) }
