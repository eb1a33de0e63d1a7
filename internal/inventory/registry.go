// ABOUTME: Asset registry for loanable devices and their manual status edits
// ABOUTME: Owns the status transition rule enforced inside the store transaction

package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/2389/lendtrack/internal/store"
)

// ErrInvalidInput is returned when asset fields fail validation.
var ErrInvalidInput = errors.New("invalid input")

type assetInput struct {
	Tag   string `validate:"required,max=64"`
	Make  string `validate:"max=128"`
	Model string `validate:"max=128"`
}

// CheckTransition is the manual status rule. Only the loan ledger moves an
// asset into or out of on_loan, so both directions are refused here; every
// other pair of valid statuses is allowed.
func CheckTransition(from, to store.AssetStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, to)
	}
	if from == to {
		return nil
	}
	if from == store.StatusOnLoan {
		return fmt.Errorf("%w: %s -> %s: close the open loan first", store.ErrInvalidTransition, from, to)
	}
	if to == store.StatusOnLoan {
		return fmt.Errorf("%w: %s -> %s: use checkout", store.ErrInvalidTransition, from, to)
	}
	return nil
}

// Registry manages assets
type Registry struct {
	store    store.AssetStore
	validate *validator.Validate
	logger   *slog.Logger
}

// NewRegistry creates a Registry over s.
func NewRegistry(s store.AssetStore, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:    s,
		validate: validator.New(),
		logger:   logger.With("component", "inventory"),
	}
}

// Register adds an asset with status available.
// Returns store.ErrDuplicateAsset if the tag is taken.
func (r *Registry) Register(ctx context.Context, tag, mk, model string) error {
	in := assetInput{Tag: strings.TrimSpace(tag), Make: strings.TrimSpace(mk), Model: strings.TrimSpace(model)}
	if err := r.validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	return r.store.CreateAsset(ctx, &store.Asset{
		Tag:    in.Tag,
		Make:   in.Make,
		Model:  in.Model,
		Status: store.StatusAvailable,
	})
}

// SetStatus manually moves an asset to status, subject to CheckTransition:
// an on_loan asset cannot be moved at all, and no asset can be moved to
// on_loan. Both return store.ErrInvalidTransition; checkout and check-in
// are the only way in and out of on_loan.
func (r *Registry) SetStatus(ctx context.Context, tag string, status store.AssetStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	err := r.store.SetAssetStatus(ctx, tag, status, CheckTransition)
	if errors.Is(err, store.ErrInvalidTransition) {
		r.logger.Warn("status change refused", "tag", tag, "to", status)
	}
	return err
}

// UpdateDetails changes make and model of an asset.
func (r *Registry) UpdateDetails(ctx context.Context, tag, mk, model string) error {
	in := assetInput{Tag: tag, Make: strings.TrimSpace(mk), Model: strings.TrimSpace(model)}
	if err := r.validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return r.store.UpdateAssetDetails(ctx, in.Tag, in.Make, in.Model)
}

// Get returns the asset with tag, or store.ErrAssetNotFound.
func (r *Registry) Get(ctx context.Context, tag string) (*store.Asset, error) {
	return r.store.GetAsset(ctx, tag)
}

// ListAll returns every asset ordered by tag.
func (r *Registry) ListAll(ctx context.Context) ([]*store.Asset, error) {
	return r.store.ListAssets(ctx, nil)
}

// ListByStatus returns assets currently in status, ordered by tag.
func (r *Registry) ListByStatus(ctx context.Context, status store.AssetStatus) ([]*store.Asset, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	return r.store.ListAssets(ctx, &status)
}
