// Package inventory is the registry of loanable devices.
//
// New assets start available. Manual status edits go through CheckTransition,
// which runs inside the store's transaction so the decision and the write see
// the same row. Only the loan ledger may move an asset into or out of on_loan.
package inventory
