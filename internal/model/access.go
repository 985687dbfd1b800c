package model

import "fmt"

// Action is an operation that needs a capability check.
type Action int

// Actions.
const (
	ActionReadOrder Action = iota
	ActionAddOrderLine
	ActionSetOrderStatus
	ActionListAllOrders
	ActionDeleteOrder
	ActionOverridePrice
	ActionManageCatalog
	ActionViewDeletedProducts
	ActionReadAccount
	ActionManageAccounts
	ActionDeleteReview
)

var actionNames = map[Action]string{
	ActionReadOrder:           "read order",
	ActionAddOrderLine:        "add order line",
	ActionSetOrderStatus:      "set order status",
	ActionListAllOrders:       "list all orders",
	ActionDeleteOrder:         "delete order",
	ActionOverridePrice:       "override unit price",
	ActionManageCatalog:       "manage catalog",
	ActionViewDeletedProducts: "view deleted products",
	ActionReadAccount:         "read account",
	ActionManageAccounts:      "manage accounts",
	ActionDeleteReview:        "delete review",
}

func (a Action) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Actor is the account performing a request.
type Actor struct {
	ID   int64
	Role Role
}

// Actor returns the capability view of the account.
func (a *Account) Actor() Actor {
	return Actor{ID: a.ID, Role: a.Role}
}

// Resource describes what an action touches. OwnerID is the owning account
// (zero when the resource has no owner); TargetStatus is set for status
// changes.
type Resource struct {
	OwnerID      int64
	TargetStatus OrderStatus
}

// Grant is the outcome of a capability check.
type Grant int

// Grants.
const (
	GrantDenied Grant = iota
	GrantOwner
	GrantAdmin
)

// Permit decides whether actor may perform action on res. Admins may do
// everything. Owners may read and extend their orders, cancel them, read their
// own account and delete their own reviews. Nothing else is granted.
func Permit(actor Actor, action Action, res Resource) Grant {
	if actor.Role == RoleAdmin {
		return GrantAdmin
	}
	owner := actor.ID != 0 && res.OwnerID == actor.ID
	if !owner {
		return GrantDenied
	}

	switch action {
	case ActionReadOrder, ActionAddOrderLine, ActionReadAccount, ActionDeleteReview:
		return GrantOwner
	case ActionSetOrderStatus:
		if res.TargetStatus == OrderCancelled {
			return GrantOwner
		}
	}
	return GrantDenied
}

// Authorize is Permit returning ErrForbidden when the grant is denied.
func Authorize(actor Actor, action Action, res Resource) (Grant, error) {
	g := Permit(actor, action, res)
	if g == GrantDenied {
		return g, fmt.Errorf("%w: not allowed to %s", ErrForbidden, action)
	}
	return g, nil
}
