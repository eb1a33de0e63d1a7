// Package ledger implements the loan lifecycle.
//
// An asset is either free (no open loan) or loaned (exactly one open loan).
// Checkout and CheckIn each map to a single store call that writes the loan
// row and the asset status in one transaction, so the two never disagree.
// The stored asset status is a cache of the ledger; Reconcile rebuilds it
// from open loans.
//
// Overdue is time-derived: an open loan is overdue when now is strictly
// after due_at. There is no grace period. The clock is injectable with
// WithClock.
//
// Search matches the asset tag, borrower id and issuer id with Unicode case
// folding (golang.org/x/text/cases), scoped to open loans or to all loans.
package ledger
