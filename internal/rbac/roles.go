package rbac

// Role names. Keep these stable; they are part of the operator token contract.
const (
	RoleOwner      = "owner"
	RoleOperator   = "operator"
	RoleAgent      = "agent"
	RoleSuperAdmin = "super_admin"
)

// DispatchRoles may start campaign calls manually.
var DispatchRoles = []string{RoleOwner, RoleOperator}

// ReportRoles may read campaign progress.
var ReportRoles = []string{RoleOwner, RoleOperator, RoleAgent}

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }
