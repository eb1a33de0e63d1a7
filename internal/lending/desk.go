// ABOUTME: Lending desk wiring identities, inventory, ledger and activity log together
// ABOUTME: Logs people in and hands out sessions that gate every operation by role

package lending

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/lendtrack/internal/activity"
	"github.com/2389/lendtrack/internal/auth"
	"github.com/2389/lendtrack/internal/identity"
	"github.com/2389/lendtrack/internal/inventory"
	"github.com/2389/lendtrack/internal/ledger"
	"github.com/2389/lendtrack/internal/store"
)

var (
	// ErrProtectedIdentity is returned when editing the bootstrap
	// administrator's profile. Its secret may still be changed.
	ErrProtectedIdentity = errors.New("identity is protected")

	// ErrNoSessionSecret is returned when a token is requested but
	// auth.session_secret is not configured.
	ErrNoSessionSecret = errors.New("session secret not configured")
)

// Desk is the entry point for every lending operation
type Desk struct {
	identities *identity.Directory
	registry   *inventory.Registry
	ledger     *ledger.Ledger
	activity   *activity.Log

	tokens     *auth.JWTIssuer
	sessionTTL time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

type options struct {
	hasher     auth.Hasher
	bootstrap  identity.BootstrapAccount
	secret     []byte
	sessionTTL time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Desk
type Option func(*options)

// WithHasher sets the credential hasher. The default is bcrypt at DefaultCost.
func WithHasher(h auth.Hasher) Option {
	return func(o *options) { o.hasher = h }
}

// WithBootstrap overrides the first-run administrator.
func WithBootstrap(acct identity.BootstrapAccount) Option {
	return func(o *options) { o.bootstrap = acct }
}

// WithSessionTokens enables signed session tokens.
func WithSessionTokens(secret []byte, ttl time.Duration) Option {
	return func(o *options) {
		o.secret = secret
		if ttl > 0 {
			o.sessionTTL = ttl
		}
	}
}

// WithClock replaces time.Now for the ledger and activity log.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewDesk builds a Desk and its components over s.
func NewDesk(s store.Store, opts ...Option) *Desk {
	o := options{
		hasher:     auth.NewBcryptHasher(0),
		bootstrap:  identity.DefaultBootstrap,
		sessionTTL: 12 * time.Hour,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	d := &Desk{
		identities: identity.NewDirectory(s, o.hasher,
			identity.WithBootstrap(o.bootstrap),
			identity.WithLogger(o.logger),
		),
		registry: inventory.NewRegistry(s, o.logger),
		ledger: ledger.New(s,
			ledger.WithClock(o.now),
			ledger.WithLogger(o.logger),
		),
		activity:   activity.NewLog(s, o.now, o.logger),
		sessionTTL: o.sessionTTL,
		now:        o.now,
		logger:     o.logger.With("component", "lending"),
	}
	if len(o.secret) > 0 {
		d.tokens = auth.NewJWTIssuer(o.secret)
	}
	return d
}

// Bootstrap provisions the first-run administrator if none exists.
func (d *Desk) Bootstrap(ctx context.Context) (bool, error) {
	created, err := d.identities.Bootstrap(ctx)
	if err != nil {
		return false, err
	}
	if created {
		d.activity.Record(ctx, d.identities.BootstrapID(), "Bootstrap administrator created")
	}
	return created, nil
}

// Login authenticates id with secret and opens a session.
// Returns identity.ErrAuthenticationFailed on any credential mismatch.
func (d *Desk) Login(ctx context.Context, id, secret string) (*Session, error) {
	ident, err := d.identities.Authenticate(ctx, id, secret)
	if err != nil {
		return nil, err
	}

	sess := d.newSession(ident, uuid.NewString())
	ctx = sess.context(ctx)

	d.activity.Record(ctx, ident.ID, "Login")
	d.logger.Info("login", "id", ident.ID, "role", ident.Role, "session", sess.actor.SessionID)

	if rotate, err := d.identities.RequiresRotation(ctx, ident.ID); err == nil && rotate {
		sess.mustRotate = true
		d.logger.Warn("bootstrap administrator is using the default secret", "id", ident.ID)
	}
	return sess, nil
}

// Resume restores a session from a token issued by Session.Token. The role
// is read from the store, so role changes apply immediately.
func (d *Desk) Resume(ctx context.Context, token string) (*Session, error) {
	if d.tokens == nil {
		return nil, ErrNoSessionSecret
	}

	claims, err := d.tokens.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("resuming session: %w", err)
	}

	ident, err := d.identities.Get(ctx, claims.IdentityID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, identity.ErrAuthenticationFailed
	}
	if err != nil {
		return nil, err
	}

	sess := d.newSession(ident, claims.SessionID)
	if rotate, err := d.identities.RequiresRotation(ctx, ident.ID); err == nil {
		sess.mustRotate = rotate
	}
	return sess, nil
}

func (d *Desk) newSession(ident *store.Identity, sessionID string) *Session {
	return &Session{
		desk:     d,
		identity: ident,
		actor: auth.Actor{
			IdentityID: ident.ID,
			Role:       ident.Role,
			SessionID:  sessionID,
		},
	}
}
