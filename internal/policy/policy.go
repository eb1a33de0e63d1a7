// ABOUTME: Access policy deciding which roles may perform which operations
// ABOUTME: Single role/operation table consulted before every guarded call

package policy

import (
	"errors"
	"fmt"

	"github.com/2389/lendtrack/internal/store"
)

// ErrPermissionDenied is returned when a role may not perform an operation
var ErrPermissionDenied = errors.New("permission denied")

// Operation names a guarded action
type Operation string

const (
	OpCheckout         Operation = "checkout"
	OpCheckIn          Operation = "check_in"
	OpRegisterAsset    Operation = "register_asset"
	OpSetAssetStatus   Operation = "set_asset_status"
	OpUpdateAsset      Operation = "update_asset"
	OpRegisterIdentity Operation = "register_identity"
	OpUpdateIdentity   Operation = "update_identity"
	OpViewIdentities   Operation = "view_identities"
	OpSearch           Operation = "search"
	OpHistory          Operation = "history"
	OpViewActivity     Operation = "view_activity"
	OpExport           Operation = "export"
	OpReconcile        Operation = "reconcile"
)

// Operations lists every guarded operation
var Operations = []Operation{
	OpCheckout,
	OpCheckIn,
	OpRegisterAsset,
	OpSetAssetStatus,
	OpUpdateAsset,
	OpRegisterIdentity,
	OpUpdateIdentity,
	OpViewIdentities,
	OpSearch,
	OpHistory,
	OpViewActivity,
	OpExport,
	OpReconcile,
}

var (
	anyRole   = []store.Role{store.RoleBorrower, store.RoleStaff, store.RoleAdministrator}
	staffUp   = []store.Role{store.RoleStaff, store.RoleAdministrator}
	adminOnly = []store.Role{store.RoleAdministrator}
)

// grants maps each operation to the roles allowed to perform it.
var grants = map[Operation][]store.Role{
	OpCheckout:         staffUp,
	OpCheckIn:          staffUp,
	OpRegisterAsset:    adminOnly,
	OpSetAssetStatus:   adminOnly,
	OpUpdateAsset:      adminOnly,
	OpRegisterIdentity: adminOnly,
	OpUpdateIdentity:   adminOnly,
	OpViewIdentities:   staffUp,
	OpSearch:           anyRole,
	OpHistory:          anyRole,
	OpViewActivity:     adminOnly,
	OpExport:           staffUp,
	OpReconcile:        adminOnly,
}

// Can reports whether role may perform op. Unknown roles and unknown
// operations are denied.
func Can(role store.Role, op Operation) bool {
	for _, r := range grants[op] {
		if r == role {
			return true
		}
	}
	return false
}

// Check is Can as an error: nil when allowed, ErrPermissionDenied otherwise.
func Check(role store.Role, op Operation) error {
	if Can(role, op) {
		return nil
	}
	return fmt.Errorf("%w: role %q cannot %s", ErrPermissionDenied, role, op)
}
