// Package identity manages the people known to lendtrack: borrowers, staff
// and administrators.
//
// Secrets go through an auth.Hasher and only the digest reaches the store.
// Authenticate collapses unknown ids and wrong secrets into
// ErrAuthenticationFailed and spends the same bcrypt work on both.
//
// On first run Bootstrap provisions a well-known administrator (admin / 123
// unless configured otherwise). RequiresRotation tells the caller when that
// account still uses its default secret.
package identity
