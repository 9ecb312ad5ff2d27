package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	// RoleOwner is the subscriber whose line is being screened.
	RoleOwner = "owner"
	// RoleOperator staffs the screening desk and may act on any call.
	RoleOperator = "operator"
	RoleAdmin    = "admin"
	// RoleTelephony is the machine identity of the telephony bridge. It only passes
	// RequireAnyRole where it is listed.
	RoleTelephony = "telephony"
)

func IsAdmin(role string) bool { return role == RoleAdmin }
