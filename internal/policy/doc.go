// Package policy is the access table for lendtrack.
//
// Every guarded call in the lending desk asks Check(role, op) before it
// touches the store. A denial returns ErrPermissionDenied and nothing is
// written.
//
//	| Operation                                   | borrower | staff | administrator |
//	|---------------------------------------------|----------|-------|---------------|
//	| checkout, check_in, export,                 |          |   x   |       x       |
//	| view_identities                             |          |       |               |
//	| register_asset, set_asset_status,           |          |       |       x       |
//	| update_asset, register_identity,            |          |       |               |
//	| update_identity, view_activity, reconcile   |          |       |               |
//	| search, history                             |    x     |   x   |       x       |
package policy
