package index

// Schema contains the SQL statements to create the checksum index schema.
const Schema = `
-- Checksums table: last known SHA-256 of a file, keyed by its root-relative path
CREATE TABLE IF NOT EXISTS checksums (
    path        TEXT PRIMARY KEY,
    size        INTEGER NOT NULL,
    mod_time    INTEGER NOT NULL,
    sha256      TEXT NOT NULL,
    recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_checksums_sha256 ON checksums(sha256);
`

// checksumLength is the length of a hex encoded SHA-256 digest.
const checksumLength = 64
