package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/erazemk/teren/internal/model"
)

// Billing rates for work codes. The reconciliation engine treats this as a
// read-only lookup; an unknown code is auto-created with a zero amount and
// surfaced as a warning so completion never fails on missing price data.

// SetRate creates or updates a rate.
func SetRate(ctx context.Context, db *sql.DB, code, description string, amount decimal.Decimal) (*model.Rate, error) {
	if code == "" {
		return nil, fmt.Errorf("rate code required: %w", ErrBadRequest)
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO rates (code, description, amount) VALUES (?, ?, ?)
		 ON CONFLICT (code) DO UPDATE SET description = excluded.description, amount = excluded.amount`,
		code, description, amount.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("setting rate: %w", err)
	}
	return GetRate(ctx, db, code)
}

// GetRate returns a rate by code.
func GetRate(ctx context.Context, db *sql.DB, code string) (*model.Rate, error) {
	r := &model.Rate{}
	var description, amount sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT code, description, amount FROM rates WHERE code = ?`, code,
	).Scan(&r.Code, &description, &amount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting rate: %w", err)
	}
	r.Description = description.String
	r.Amount, err = scanDec(amount)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListRates returns all rates.
func ListRates(ctx context.Context, db *sql.DB) ([]model.Rate, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT code, description, amount FROM rates ORDER BY code`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing rates: %w", err)
	}
	defer rows.Close()

	var rates []model.Rate
	for rows.Next() {
		var r model.Rate
		var description, amount sql.NullString
		if err := rows.Scan(&r.Code, &description, &amount); err != nil {
			return nil, fmt.Errorf("scanning rate: %w", err)
		}
		r.Description = description.String
		r.Amount, err = scanDec(amount)
		if err != nil {
			return nil, err
		}
		rates = append(rates, r)
	}
	return rates, rows.Err()
}

// resolveRateTx looks up a rate inside a transaction, auto-creating a
// zero-amount row for unknown codes. Returns whether it had to create one.
func resolveRateTx(ctx context.Context, tx *sql.Tx, code string) (decimal.Decimal, bool, error) {
	var amount string
	err := tx.QueryRowContext(ctx,
		`SELECT amount FROM rates WHERE code = ?`, code,
	).Scan(&amount)
	if err == sql.ErrNoRows {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO rates (code, amount) VALUES (?, '0')`, code,
		)
		if err != nil {
			return decimal.Zero, false, fmt.Errorf("auto-creating rate: %w", err)
		}
		return decimal.Zero, true, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("looking up rate: %w", err)
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("parsing rate amount: %w", err)
	}
	return d, false, nil
}
