package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'technician' CHECK (role IN ('admin', 'manager', 'technician')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS holders (
    id         INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    type       TEXT NOT NULL CHECK (type IN ('technician', 'location')),
    user_id    INTEGER REFERENCES users(id),
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at DATETIME
);

CREATE TABLE IF NOT EXISTS materials (
    id         INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    unit       TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at DATETIME
);

CREATE TABLE IF NOT EXISTS orders (
    id                INTEGER PRIMARY KEY,
    code              TEXT NOT NULL,
    kind              TEXT NOT NULL CHECK (kind IN ('installation', 'service')),
    status            TEXT NOT NULL DEFAULT 'pending'
                      CHECK (status IN ('pending', 'assigned', 'completed', 'not_completed')),
    technician_id     INTEGER REFERENCES holders(id),
    customer          TEXT,
    address           TEXT,
    attempt           INTEGER NOT NULL DEFAULT 1,
    previous_order_id INTEGER REFERENCES orders(id),
    completed_at      DATETIME,
    completed_by      INTEGER REFERENCES users(id),
    created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS items (
    id             INTEGER PRIMARY KEY,
    kind           TEXT NOT NULL CHECK (kind IN ('device', 'material')),
    name           TEXT NOT NULL,
    serial         TEXT,
    category       TEXT,
    photo          BLOB,
    photo_mime     TEXT,
    material_id    INTEGER REFERENCES materials(id),
    quantity       TEXT,
    status         TEXT NOT NULL CHECK (status IN (
                       'AVAILABLE', 'ASSIGNED', 'ASSIGNED_TO_ORDER',
                       'COLLECTED_FROM_CLIENT', 'RETURNED', 'RETURNED_TO_OPERATOR')),
    assigned_to_id INTEGER REFERENCES holders(id),
    location_id    INTEGER REFERENCES holders(id),
    order_id       INTEGER REFERENCES orders(id),
    created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_items_serial
    ON items(serial) WHERE serial IS NOT NULL AND serial != '';

CREATE TABLE IF NOT EXISTS history (
    id           INTEGER PRIMARY KEY,
    item_id      INTEGER NOT NULL REFERENCES items(id),
    action       TEXT NOT NULL CHECK (action IN (
                     'RECEIVED', 'ISSUED', 'RETURNED', 'RETURNED_TO_TECHNICIAN',
                     'RETURNED_TO_OPERATOR', 'ASSIGNED_TO_ORDER',
                     'COLLECTED_FROM_CLIENT', 'TRANSFER')),
    user_id      INTEGER REFERENCES users(id),
    performer_id INTEGER REFERENCES holders(id),
    holder_id    INTEGER REFERENCES holders(id),
    order_id     INTEGER REFERENCES orders(id),
    quantity     TEXT,
    created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_history_item ON history(item_id, id);

CREATE TABLE IF NOT EXISTS transfer_requests (
    id              INTEGER PRIMARY KEY,
    item_id         INTEGER NOT NULL REFERENCES items(id),
    from_holder_id  INTEGER NOT NULL REFERENCES holders(id),
    to_holder_id    INTEGER NOT NULL REFERENCES holders(id),
    quantity        TEXT,
    pending_item_id INTEGER REFERENCES items(id),
    status          TEXT NOT NULL DEFAULT 'requested'
                    CHECK (status IN ('requested', 'confirmed', 'rejected', 'cancelled')),
    requested_by    INTEGER REFERENCES users(id),
    requested_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    resolved_at     DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_transfer_requests_open
    ON transfer_requests(item_id) WHERE status = 'requested';

CREATE TABLE IF NOT EXISTS deficits (
    holder_id   INTEGER NOT NULL REFERENCES holders(id),
    material_id INTEGER NOT NULL REFERENCES materials(id),
    quantity    TEXT NOT NULL,
    PRIMARY KEY (holder_id, material_id)
);

CREATE TABLE IF NOT EXISTS order_equipment (
    order_id INTEGER NOT NULL REFERENCES orders(id),
    item_id  INTEGER NOT NULL REFERENCES items(id),
    PRIMARY KEY (order_id, item_id)
);

CREATE TABLE IF NOT EXISTS order_materials (
    id          INTEGER PRIMARY KEY,
    order_id    INTEGER NOT NULL REFERENCES orders(id),
    material_id INTEGER NOT NULL REFERENCES materials(id),
    quantity    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS order_work_codes (
    id       INTEGER PRIMARY KEY,
    order_id INTEGER NOT NULL REFERENCES orders(id),
    code     TEXT NOT NULL,
    amount   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS rates (
    code        TEXT PRIMARY KEY,
    description TEXT,
    amount      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
