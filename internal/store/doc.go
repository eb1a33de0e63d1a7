// Package store provides persistent storage for lendtrack using SQLite.
//
// # Architecture
//
// The store package uses an interface-driven architecture with one interface
// per component:
//
//   - IdentityStore: borrowers, staff and administrators with credential digests
//   - AssetStore: devices and their current status
//   - LoanStore: the loan ledger, including the transactional checkout/check-in
//   - ActivityStore: the append-only activity log
//
// SQLiteStore implements all of them (the Store interface) in a single struct.
// The handle is created once with NewSQLiteStore and passed explicitly to the
// components that need it; there is no package-level connection.
//
// # Data Models
//
//   - Identity: id, display name, role, credential digest
//   - Asset: tag, make, model, status
//   - Loan: asset tag, borrower, issuer, issued/due/returned timestamps
//   - ActivityRecord: actor, description, timestamp, session id
//
// # Consistency
//
// Asset.Status is a cached copy of ledger state: an asset is on_loan exactly
// when an open loan (returned_at IS NULL) references it. OpenLoan and
// CloseLoan write both tables in one transaction, and a partial unique index
// on loans(asset_tag) WHERE returned_at IS NULL makes a second open loan
// impossible at the SQL level. ReconcileAssetStatuses repairs the cache from
// the ledger if it ever drifts.
//
// # SQLite Configuration
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//	PRAGMA busy_timeout=5000;
//
// Two drivers are linked in: modernc.org/sqlite ("sqlite", pure Go, the
// default) and github.com/mattn/go-sqlite3 ("sqlite3", cgo). Select one with
// WithDriver.
//
// Timestamps are stored as fixed-width UTC text with nanosecond precision so
// that comparisons in SQL order the same way as time.Time.
//
// # Error Handling
//
//   - ErrNotFound and its variants (ErrAssetNotFound, ErrIdentityNotFound,
//     ErrBorrowerNotFound, ErrLoanNotFound)
//   - ErrDuplicateIdentity, ErrDuplicateAsset
//   - ErrAssetUnavailable, ErrNoOpenLoan, ErrInvalidTransition
//   - ErrStorage wraps every failure of the engine itself
//
// All methods accept context.Context.
//
// # Testing
//
// Tests open a fresh database in t.TempDir() via setupTestStore.
package store
