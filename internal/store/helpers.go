package store

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
)

// Decimal quantities and amounts are stored as TEXT and parsed on scan.

func scanDec(s sql.NullString) (decimal.Decimal, error) {
	if !s.Valid || s.String == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing decimal %q: %w", s.String, err)
	}
	return d, nil
}

func scanDecPtr(s sql.NullString) (*decimal.Decimal, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	d, err := scanDec(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func nullInt(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func int64OrNil(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
