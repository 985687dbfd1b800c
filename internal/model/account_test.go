package model

import (
	"errors"
	"testing"
)

func TestPermit(t *testing.T) {
	admin := Actor{ID: 1, Role: RoleAdmin}
	owner := Actor{ID: 2, Role: RoleCustomer}
	stranger := Actor{ID: 3, Role: RoleCustomer}
	mine := Resource{OwnerID: 2}

	tests := []struct {
		name   string
		actor  Actor
		action Action
		res    Resource
		want   Grant
	}{
		{"admin reads any order", admin, ActionReadOrder, mine, GrantAdmin},
		{"owner reads own order", owner, ActionReadOrder, mine, GrantOwner},
		{"stranger reads order", stranger, ActionReadOrder, mine, GrantDenied},
		{"owner adds line", owner, ActionAddOrderLine, mine, GrantOwner},
		{"stranger adds line", stranger, ActionAddOrderLine, mine, GrantDenied},
		{"owner cancels", owner, ActionSetOrderStatus, Resource{OwnerID: 2, TargetStatus: OrderCancelled}, GrantOwner},
		{"owner marks paid", owner, ActionSetOrderStatus, Resource{OwnerID: 2, TargetStatus: OrderPaid}, GrantDenied},
		{"owner sets bogus status", owner, ActionSetOrderStatus, Resource{OwnerID: 2, TargetStatus: "bogus"}, GrantDenied},
		{"stranger cancels", stranger, ActionSetOrderStatus, Resource{OwnerID: 2, TargetStatus: OrderCancelled}, GrantDenied},
		{"admin sets delivered", admin, ActionSetOrderStatus, Resource{OwnerID: 2, TargetStatus: OrderDelivered}, GrantAdmin},
		{"customer lists all orders", owner, ActionListAllOrders, Resource{}, GrantDenied},
		{"customer manages catalog", owner, ActionManageCatalog, Resource{}, GrantDenied},
		{"admin manages catalog", admin, ActionManageCatalog, Resource{}, GrantAdmin},
		{"owner overrides price", owner, ActionOverridePrice, mine, GrantDenied},
		{"owner deletes own order", owner, ActionDeleteOrder, mine, GrantDenied},
		{"owner reads own account", owner, ActionReadAccount, mine, GrantOwner},
		{"owner deletes own review", owner, ActionDeleteReview, mine, GrantOwner},
		// Zero actor never owns anything, even ownerless resources.
		{"anonymous", Actor{}, ActionReadOrder, Resource{}, GrantDenied},
		{"unknown role", Actor{ID: 2, Role: "root"}, ActionManageCatalog, mine, GrantDenied},
	}

	for _, tt := range tests {
		got := Permit(tt.actor, tt.action, tt.res)
		if got != tt.want {
			t.Errorf("%s: Permit = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestAuthorizeForbidden(t *testing.T) {
	_, err := Authorize(Actor{ID: 5, Role: RoleCustomer}, ActionManageAccounts, Resource{})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}

	g, err := Authorize(Actor{ID: 5, Role: RoleAdmin}, ActionManageAccounts, Resource{})
	if err != nil || g != GrantAdmin {
		t.Errorf("expected admin grant, got %v, %v", g, err)
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		wantErr  bool
	}{
		{"", true},
		{"short", true},
		{"1234567", true},
		{"12345678", false},
		{"a-valid-password", false},
	}

	for _, tt := range tests {
		err := ValidatePassword(tt.password)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidInput) {
			t.Errorf("ValidatePassword(%q) error should wrap ErrInvalidInput", tt.password)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"Alice@Example.com", "alice@example.com", false},
		{"  bob@example.com ", "bob@example.com", false},
		{"not-an-email", "", true},
		{"Alice <alice@example.com>", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := NormalizeEmail(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizeEmail(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseOrderStatus(t *testing.T) {
	for _, st := range OrderStatuses {
		got, err := ParseOrderStatus(string(st))
		if err != nil || got != st {
			t.Errorf("ParseOrderStatus(%q) = %q, %v", st, got, err)
		}
	}

	for _, bad := range []string{"", "PENDING", "pendiente", "refunded"} {
		if _, err := ParseOrderStatus(bad); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("ParseOrderStatus(%q): expected ErrInvalidInput, got %v", bad, err)
		}
	}
}

func TestRoleValid(t *testing.T) {
	if !RoleAdmin.Valid() || !RoleCustomer.Valid() {
		t.Error("expected built-in roles to be valid")
	}
	if Role("manager").Valid() || Role("").Valid() {
		t.Error("expected unknown roles to be invalid")
	}
}
