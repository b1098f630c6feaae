package enum

// ── Roles (carried in the JWT, checked by router middleware) ──

const (
	UserRoleOwner   = "OWNER"
	UserRoleManager = "MANAGER"
	UserRoleCashier = "CASHIER"
	UserRoleWaiter  = "WAITER"
	UserRoleKitchen = "KITCHEN"
)

// Role groups used by the router.
var (
	FloorRoles      = []string{UserRoleWaiter, UserRoleCashier, UserRoleManager, UserRoleOwner}
	KitchenRoles    = []string{UserRoleKitchen, UserRoleWaiter, UserRoleManager, UserRoleOwner}
	CashierRoles    = []string{UserRoleCashier, UserRoleManager, UserRoleOwner}
	SupervisorRoles = []string{UserRoleManager, UserRoleOwner}
)

// IsValidRole reports whether role is one of the known staff roles.
func IsValidRole(role string) bool {
	switch role {
	case UserRoleOwner, UserRoleManager, UserRoleCashier, UserRoleWaiter, UserRoleKitchen:
		return true
	}
	return false
}

// ── Configurable labels (CHECK constrained in DB) ──

const (
	DiscountTypePercentage = "PERCENTAGE"
	DiscountTypeFixed      = "FIXED_AMOUNT"
)
