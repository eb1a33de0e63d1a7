// ABOUTME: Asset store methods for the device registry
// ABOUTME: Status writes run the caller's transition guard inside the same transaction

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const assetColumns = `tag, make, model, status, created_at, updated_at`

// CreateAsset inserts a new asset. A zero Status becomes StatusAvailable.
// Returns ErrDuplicateAsset if the tag is already registered.
func (s *SQLiteStore) CreateAsset(ctx context.Context, a *Asset) error {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = a.CreatedAt
	if a.Status == "" {
		a.Status = StatusAvailable
	}

	query := `
		INSERT INTO assets (tag, make, model, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		a.Tag,
		a.Make,
		a.Model,
		string(a.Status),
		formatTime(a.CreatedAt),
		formatTime(a.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateAsset
		}
		return storageErr("inserting asset", err)
	}

	s.logger.Debug("created asset", "tag", a.Tag)
	return nil
}

// GetAsset retrieves an asset by tag.
// Returns ErrAssetNotFound if it doesn't exist.
func (s *SQLiteStore) GetAsset(ctx context.Context, tag string) (*Asset, error) {
	return getAsset(ctx, s.db, tag)
}

// ListAssets returns assets ordered by tag, optionally only those in status.
func (s *SQLiteStore) ListAssets(ctx context.Context, status *AssetStatus) ([]*Asset, error) {
	var statusArg *string
	if status != nil {
		str := string(*status)
		statusArg = &str
	}

	query := `SELECT ` + assetColumns + `
		FROM assets
		WHERE (? IS NULL OR status = ?)
		ORDER BY tag
	`

	rows, err := s.db.QueryContext(ctx, query, statusArg, statusArg)
	if err != nil {
		return nil, storageErr("querying assets", err)
	}
	defer rows.Close()

	assets := []*Asset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, storageErr("scanning asset", err)
		}
		assets = append(assets, a)
	}

	if err := rows.Err(); err != nil {
		return nil, storageErr("iterating assets", err)
	}
	return assets, nil
}

// UpdateAssetDetails changes make and model; status is untouched.
// Returns ErrAssetNotFound if the asset doesn't exist.
func (s *SQLiteStore) UpdateAssetDetails(ctx context.Context, tag, mk, model string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE assets SET make = ?, model = ?, updated_at = ? WHERE tag = ?`,
		mk, model, formatTime(time.Now()), tag,
	)
	if err != nil {
		return storageErr("updating asset", err)
	}
	if err := requireOneRow(result, ErrAssetNotFound); err != nil {
		return err
	}

	s.logger.Debug("updated asset details", "tag", tag)
	return nil
}

// SetAssetStatus moves an asset to status `to`. The guard sees the current
// status under the same transaction and may veto the write.
// Returns ErrAssetNotFound if the asset doesn't exist.
func (s *SQLiteStore) SetAssetStatus(ctx context.Context, tag string, to AssetStatus, guard TransitionGuard) error {
	var from AssetStatus
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		a, err := getAsset(ctx, tx, tag)
		if err != nil {
			return err
		}
		from = a.Status

		if guard != nil {
			if err := guard(from, to); err != nil {
				return err
			}
		}

		return updateAssetStatus(ctx, tx, tag, to)
	})
	if err != nil {
		return err
	}

	s.logger.Debug("set asset status", "tag", tag, "from", from, "to", to)
	return nil
}

// queryer is satisfied by *sql.DB and *sql.Tx
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getAsset(ctx context.Context, q queryer, tag string) (*Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE tag = ?`

	a, err := scanAsset(q.QueryRowContext(ctx, query, tag))
	if err == sql.ErrNoRows {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, storageErr("querying asset", err)
	}
	return a, nil
}

func updateAssetStatus(ctx context.Context, q queryer, tag string, to AssetStatus) error {
	result, err := q.ExecContext(ctx,
		`UPDATE assets SET status = ?, updated_at = ? WHERE tag = ?`,
		string(to), formatTime(time.Now()), tag,
	)
	if err != nil {
		return storageErr("updating asset status", err)
	}
	return requireOneRow(result, ErrAssetNotFound)
}

func scanAsset(row rowScanner) (*Asset, error) {
	var a Asset
	var status, createdAt, updatedAt string
	if err := row.Scan(&a.Tag, &a.Make, &a.Model, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	a.Status = AssetStatus(status)

	var err error
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &a, nil
}
