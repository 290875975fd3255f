package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// GetJWTSecret retrieves the JWT secret from the database.
// If no secret exists, it generates one, stores it, and returns it.
// Uses INSERT OR IGNORE + re-SELECT to avoid TOCTOU race on concurrent startup.
func GetJWTSecret(ctx context.Context, db *sql.DB) (string, error) {
	// Try to generate and insert first (safe against races).
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}
	candidate := hex.EncodeToString(buf)

	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES ('jwt_secret', ?)`,
		candidate,
	)
	if err != nil {
		return "", fmt.Errorf("storing jwt_secret: %w", err)
	}

	// Always read back (either our insert or the existing value).
	var secret string
	err = db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = 'jwt_secret'`,
	).Scan(&secret)
	if err != nil {
		return "", fmt.Errorf("querying jwt_secret: %w", err)
	}

	return secret, nil
}

// DefaultAmendWindow applies when the setting is absent or malformed.
const DefaultAmendWindow = 15 * time.Minute

// GetAmendWindow returns how long after completion a technician may still
// amend their own order.
func GetAmendWindow(ctx context.Context, db *sql.DB) (time.Duration, error) {
	var value string
	err := db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = 'amend_window_minutes'`,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return DefaultAmendWindow, nil
	}
	if err != nil {
		return 0, fmt.Errorf("querying amend window: %w", err)
	}

	minutes, err := strconv.Atoi(value)
	if err != nil || minutes <= 0 {
		return DefaultAmendWindow, nil
	}
	return time.Duration(minutes) * time.Minute, nil
}

// SetAmendWindow stores the amendment window in minutes.
func SetAmendWindow(ctx context.Context, db *sql.DB, minutes int) error {
	if minutes <= 0 {
		return fmt.Errorf("amend window must be positive: %w", ErrBadRequest)
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES ('amend_window_minutes', ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		strconv.Itoa(minutes),
	)
	if err != nil {
		return fmt.Errorf("storing amend window: %w", err)
	}
	return nil
}
