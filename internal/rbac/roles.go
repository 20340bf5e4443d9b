package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleAdmin        = "admin"
	RoleSupport      = "support"
	RoleSuperAdmin   = "super_admin"
	RoleFraudAnalyst = "fraud_analyst" // hidden role
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

func IsHiddenRole(role string) bool { return role == RoleFraudAnalyst }
