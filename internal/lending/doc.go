// Package lending is the guarded core of lendtrack.
//
// A Desk owns the identity directory, asset registry, loan ledger and
// activity log, all built over one explicitly passed store. Callers log in
// to get a Session:
//
//	desk := lending.NewDesk(st, lending.WithSessionTokens(secret, ttl))
//	sess, err := desk.Login(ctx, "P1", secret)
//	loanID, err := sess.Checkout(ctx, "NB-01", "S100", 7)
//
// Every Session method asks the access policy first. A denied call returns
// policy.ErrPermissionDenied before the store is touched. A successful
// mutation appends one activity entry stamped with the session id.
//
// Sessions survive between CLI invocations as signed tokens (Session.Token,
// Desk.Resume). Resume re-reads the role from the store.
package lending
