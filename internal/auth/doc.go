// Package auth provides the credential and session primitives for lendtrack.
//
// # Credential Hashing
//
// Secrets are never stored. The identity directory depends on the Hasher
// interface, implemented by BcryptHasher:
//
//	h := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
//	digest, err := h.Hash(secret)
//	ok := h.Verify(secret, digest)
//
// Verify against an empty digest still performs a bcrypt comparison so a
// lookup miss costs the same as a wrong secret.
//
// # Session Tokens
//
// The CLI keeps a login alive between invocations with an HS256 JWT signed by
// auth.session_secret. Claims:
//
//   - sub: identity id
//   - sid: session id (UUID) stamped on activity records
//   - exp: expiry, from auth.session_ttl
//
// Tokens carry no role. The role is re-read from the store when a session is
// resumed, so a role change applies on the next command.
//
// # Actor Context
//
// The acting identity travels through core calls on the context:
//
//	ctx = auth.WithActor(ctx, &auth.Actor{IdentityID: id, Role: role, SessionID: sid})
//	actor := auth.FromContext(ctx)
package auth
