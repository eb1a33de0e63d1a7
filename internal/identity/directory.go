// ABOUTME: Identity directory: registration, login and profile edits for people
// ABOUTME: Wraps the identity store with validation, hashing and the bootstrap admin

package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/2389/lendtrack/internal/auth"
	"github.com/2389/lendtrack/internal/store"
)

var (
	// ErrAuthenticationFailed covers both unknown ids and wrong secrets.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrInvalidInput is returned when a registration or edit fails validation.
	ErrInvalidInput = errors.New("invalid input")
)

// BootstrapAccount is the administrator created on first run
type BootstrapAccount struct {
	ID          string
	DisplayName string
	Secret      string
}

// DefaultBootstrap is the documented, well-known first-run administrator.
var DefaultBootstrap = BootstrapAccount{
	ID:          "admin",
	DisplayName: "Administrator",
	Secret:      "123",
}

// RegisterInput carries a new identity
type RegisterInput struct {
	ID          string     `validate:"required,max=64"`
	DisplayName string     `validate:"required,max=128"`
	Role        store.Role `validate:"required,oneof=borrower staff administrator"`
	Secret      string     `validate:"required"`
}

type profileInput struct {
	DisplayName string     `validate:"required,max=128"`
	Role        store.Role `validate:"required,oneof=borrower staff administrator"`
}

// Directory manages identities
type Directory struct {
	store     store.IdentityStore
	hasher    auth.Hasher
	validate  *validator.Validate
	bootstrap BootstrapAccount
	logger    *slog.Logger
}

// Option configures a Directory
type Option func(*Directory)

// WithBootstrap overrides the first-run administrator account.
func WithBootstrap(acct BootstrapAccount) Option {
	return func(d *Directory) {
		if acct.ID != "" {
			d.bootstrap.ID = acct.ID
		}
		if acct.DisplayName != "" {
			d.bootstrap.DisplayName = acct.DisplayName
		}
		if acct.Secret != "" {
			d.bootstrap.Secret = acct.Secret
		}
	}
}

// WithLogger sets the directory's logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Directory) {
		if l != nil {
			d.logger = l.With("component", "identity")
		}
	}
}

// NewDirectory creates a Directory over s, hashing secrets with h.
func NewDirectory(s store.IdentityStore, h auth.Hasher, opts ...Option) *Directory {
	d := &Directory{
		store:     s,
		hasher:    h,
		validate:  validator.New(),
		bootstrap: DefaultBootstrap,
		logger:    slog.Default().With("component", "identity"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// BootstrapID returns the id of the first-run administrator.
func (d *Directory) BootstrapID() string {
	return d.bootstrap.ID
}

// Register creates a new identity with a hashed secret.
// Returns store.ErrDuplicateIdentity if the id is taken.
func (d *Directory) Register(ctx context.Context, in RegisterInput) error {
	in.ID = strings.TrimSpace(in.ID)
	in.DisplayName = strings.TrimSpace(in.DisplayName)

	if err := d.check(in); err != nil {
		return err
	}

	digest, err := d.hasher.Hash(in.Secret)
	if err != nil {
		return fmt.Errorf("registering %s: %w", in.ID, err)
	}

	return d.store.CreateIdentity(ctx, &store.Identity{
		ID:               in.ID,
		DisplayName:      in.DisplayName,
		Role:             in.Role,
		CredentialDigest: digest,
	})
}

// Authenticate returns the identity iff id exists and secret verifies.
// Every failure that is not a storage error is ErrAuthenticationFailed.
func (d *Directory) Authenticate(ctx context.Context, id, secret string) (*store.Identity, error) {
	ident, err := d.store.GetIdentity(ctx, strings.TrimSpace(id))
	if errors.Is(err, store.ErrNotFound) {
		// Same bcrypt cost as a wrong secret.
		d.hasher.Verify(secret, "")
		d.logger.Warn("login failed", "id", id)
		return nil, ErrAuthenticationFailed
	}
	if err != nil {
		return nil, err
	}

	if !d.hasher.Verify(secret, ident.CredentialDigest) {
		d.logger.Warn("login failed", "id", id)
		return nil, ErrAuthenticationFailed
	}
	return ident, nil
}

// Get returns the identity with the given id.
func (d *Directory) Get(ctx context.Context, id string) (*store.Identity, error) {
	return d.store.GetIdentity(ctx, id)
}

// UpdateProfile changes display name and role.
func (d *Directory) UpdateProfile(ctx context.Context, id, displayName string, role store.Role) error {
	in := profileInput{DisplayName: strings.TrimSpace(displayName), Role: role}
	if err := d.check(in); err != nil {
		return err
	}
	return d.store.UpdateIdentityProfile(ctx, id, in.DisplayName, in.Role)
}

// ChangeSecret replaces the credential of id.
func (d *Directory) ChangeSecret(ctx context.Context, id, newSecret string) error {
	if newSecret == "" {
		return fmt.Errorf("%w: secret is required", ErrInvalidInput)
	}
	digest, err := d.hasher.Hash(newSecret)
	if err != nil {
		return fmt.Errorf("changing secret of %s: %w", id, err)
	}
	return d.store.UpdateIdentityCredential(ctx, id, digest)
}

// ListAll returns every identity ordered by id.
func (d *Directory) ListAll(ctx context.Context) ([]*store.Identity, error) {
	return d.store.ListIdentities(ctx)
}

// Bootstrap creates the first-run administrator when no administrator
// exists. Reports whether it created one.
func (d *Directory) Bootstrap(ctx context.Context) (bool, error) {
	n, err := d.store.CountIdentitiesByRole(ctx, store.RoleAdministrator)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	err = d.Register(ctx, RegisterInput{
		ID:          d.bootstrap.ID,
		DisplayName: d.bootstrap.DisplayName,
		Role:        store.RoleAdministrator,
		Secret:      d.bootstrap.Secret,
	})
	if err != nil {
		return false, fmt.Errorf("bootstrapping administrator: %w", err)
	}

	d.logger.Info("created bootstrap administrator", "id", d.bootstrap.ID)
	return true, nil
}

// RequiresRotation reports whether id is the bootstrap administrator still
// using the default secret.
func (d *Directory) RequiresRotation(ctx context.Context, id string) (bool, error) {
	if id != d.bootstrap.ID {
		return false, nil
	}
	ident, err := d.store.GetIdentity(ctx, id)
	if err != nil {
		return false, err
	}
	return d.hasher.Verify(d.bootstrap.Secret, ident.CredentialDigest), nil
}

func (d *Directory) check(in any) error {
	err := d.validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(fields, ", "))
}
