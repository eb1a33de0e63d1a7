// ABOUTME: Loan ledger store methods: open, close, history and overdue queries
// ABOUTME: Opening and closing a loan flips the asset status in the same transaction

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const loanColumns = `loan_id, asset_tag, borrower_id, issuer_id, issued_at, due_at, returned_at`

// OpenLoan records a checkout and marks the asset on_loan atomically.
//
// Checks run in this order: borrower exists (ErrBorrowerNotFound), asset
// exists (ErrAssetNotFound), asset status is exactly available
// (ErrAssetUnavailable). Nothing is written unless all pass.
func (s *SQLiteStore) OpenLoan(ctx context.Context, nl NewLoan) (*Loan, error) {
	loan := &Loan{
		AssetTag:   nl.AssetTag,
		BorrowerID: nl.BorrowerID,
		IssuerID:   nl.IssuerID,
		IssuedAt:   nl.IssuedAt.UTC(),
		DueAt:      nl.DueAt.UTC(),
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM identities WHERE id = ?`, nl.BorrowerID).Scan(&exists)
		if err == sql.ErrNoRows {
			return ErrBorrowerNotFound
		}
		if err != nil {
			return storageErr("querying borrower", err)
		}

		asset, err := getAsset(ctx, tx, nl.AssetTag)
		if err != nil {
			return err
		}
		if asset.Status != StatusAvailable {
			return ErrAssetUnavailable
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO loans (asset_tag, borrower_id, issuer_id, issued_at, due_at, returned_at)
			VALUES (?, ?, ?, ?, ?, NULL)
		`,
			loan.AssetTag,
			loan.BorrowerID,
			loan.IssuerID,
			formatTime(loan.IssuedAt),
			formatTime(loan.DueAt),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrAssetUnavailable
			}
			return storageErr("inserting loan", err)
		}
		loan.ID, err = result.LastInsertId()
		if err != nil {
			return storageErr("reading loan id", err)
		}

		result, err = tx.ExecContext(ctx,
			`UPDATE assets SET status = ?, updated_at = ? WHERE tag = ? AND status = ?`,
			string(StatusOnLoan), formatTime(loan.IssuedAt), loan.AssetTag, string(StatusAvailable),
		)
		if err != nil {
			return storageErr("marking asset on loan", err)
		}
		return requireOneRow(result, ErrAssetUnavailable)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("opened loan",
		"loan_id", loan.ID,
		"asset", loan.AssetTag,
		"borrower", loan.BorrowerID,
		"due_at", loan.DueAt,
	)
	return loan, nil
}

// CloseLoan sets returned_at on the open loan for assetTag and marks the
// asset available atomically. Returns ErrNoOpenLoan when nothing is out.
// A return time earlier than the issue time is clamped to the issue time.
func (s *SQLiteStore) CloseLoan(ctx context.Context, assetTag string, at time.Time) (*Loan, error) {
	var loan *Loan

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query := `SELECT ` + loanColumns + ` FROM loans WHERE asset_tag = ? AND returned_at IS NULL`
		l, err := scanLoan(tx.QueryRowContext(ctx, query, assetTag))
		if err == sql.ErrNoRows {
			return ErrNoOpenLoan
		}
		if err != nil {
			return storageErr("querying open loan", err)
		}

		returned := at.UTC()
		if returned.Before(l.IssuedAt) {
			returned = l.IssuedAt
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE loans SET returned_at = ? WHERE loan_id = ?`,
			formatTime(returned), l.ID,
		); err != nil {
			return storageErr("closing loan", err)
		}

		if err := updateAssetStatus(ctx, tx, assetTag, StatusAvailable); err != nil {
			return err
		}

		l.ReturnedAt = &returned
		loan = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("closed loan", "loan_id", loan.ID, "asset", assetTag)
	return loan, nil
}

// GetLoan retrieves a loan by id.
// Returns ErrLoanNotFound if it doesn't exist.
func (s *SQLiteStore) GetLoan(ctx context.Context, id int64) (*Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE loan_id = ?`

	l, err := scanLoan(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrLoanNotFound
	}
	if err != nil {
		return nil, storageErr("querying loan", err)
	}
	return l, nil
}

// ListLoans returns loans matching filter ordered by loan id ascending.
func (s *SQLiteStore) ListLoans(ctx context.Context, filter LoanFilter) ([]*Loan, error) {
	query := `SELECT ` + loanColumns + `
		FROM loans
		WHERE (? = 0 OR returned_at IS NULL)
		  AND (? = '' OR asset_tag = ?)
		ORDER BY loan_id ASC
	`

	openOnly := 0
	if filter.OpenOnly {
		openOnly = 1
	}
	return s.queryLoans(ctx, "listing loans", query, openOnly, filter.AssetTag, filter.AssetTag)
}

// ListLoansForAsset returns every loan of an asset, most recently issued first.
func (s *SQLiteStore) ListLoansForAsset(ctx context.Context, assetTag string) ([]*Loan, error) {
	query := `SELECT ` + loanColumns + `
		FROM loans
		WHERE asset_tag = ?
		ORDER BY issued_at DESC, loan_id DESC
	`
	return s.queryLoans(ctx, "listing asset history", query, assetTag)
}

// ListOverdueLoans returns open loans whose due_at is strictly before now,
// earliest due first.
func (s *SQLiteStore) ListOverdueLoans(ctx context.Context, now time.Time) ([]*Loan, error) {
	query := `SELECT ` + loanColumns + `
		FROM loans
		WHERE returned_at IS NULL AND due_at < ?
		ORDER BY due_at ASC, loan_id ASC
	`
	return s.queryLoans(ctx, "listing overdue loans", query, formatTime(now))
}

// CountOverdueLoans counts open loans whose due_at is strictly before now.
func (s *SQLiteStore) CountOverdueLoans(ctx context.Context, now time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM loans WHERE returned_at IS NULL AND due_at < ?`,
		formatTime(now),
	).Scan(&count)
	if err != nil {
		return 0, storageErr("counting overdue loans", err)
	}
	return count, nil
}

// ReconcileAssetStatuses recomputes the on_loan flag of every asset from the
// ledger: an asset with an open loan becomes on_loan, an on_loan asset
// without one becomes available. Returns the repairs made.
func (s *SQLiteStore) ReconcileAssetStatuses(ctx context.Context) ([]StatusRepair, error) {
	repairs := []StatusRepair{}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT a.tag, a.status,
				EXISTS (SELECT 1 FROM loans l WHERE l.asset_tag = a.tag AND l.returned_at IS NULL)
			FROM assets a
			ORDER BY a.tag
		`)
		if err != nil {
			return storageErr("scanning assets for reconcile", err)
		}

		for rows.Next() {
			var tag, status string
			var open bool
			if err := rows.Scan(&tag, &status, &open); err != nil {
				rows.Close()
				return storageErr("scanning reconcile row", err)
			}
			from := AssetStatus(status)
			switch {
			case open && from != StatusOnLoan:
				repairs = append(repairs, StatusRepair{Tag: tag, From: from, To: StatusOnLoan})
			case !open && from == StatusOnLoan:
				repairs = append(repairs, StatusRepair{Tag: tag, From: from, To: StatusAvailable})
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return storageErr("iterating reconcile rows", err)
		}
		rows.Close()

		for _, r := range repairs {
			if err := updateAssetStatus(ctx, tx, r.Tag, r.To); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, r := range repairs {
		s.logger.Info("repaired asset status", "tag", r.Tag, "from", r.From, "to", r.To)
	}
	return repairs, nil
}

func (s *SQLiteStore) queryLoans(ctx context.Context, op, query string, args ...any) ([]*Loan, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	loans := []*Loan{}
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, storageErr(op, err)
		}
		loans = append(loans, l)
	}

	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return loans, nil
}

func scanLoan(row rowScanner) (*Loan, error) {
	var l Loan
	var issuedAt, dueAt string
	var returnedAt sql.NullString
	if err := row.Scan(&l.ID, &l.AssetTag, &l.BorrowerID, &l.IssuerID, &issuedAt, &dueAt, &returnedAt); err != nil {
		return nil, err
	}

	var err error
	if l.IssuedAt, err = parseTime(issuedAt); err != nil {
		return nil, fmt.Errorf("parsing issued_at: %w", err)
	}
	if l.DueAt, err = parseTime(dueAt); err != nil {
		return nil, fmt.Errorf("parsing due_at: %w", err)
	}
	if returnedAt.Valid {
		t, err := parseTime(returnedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing returned_at: %w", err)
		}
		l.ReturnedAt = &t
	}
	return &l, nil
}
