package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/emiliorios/mpgateway/internal/domain/model"
	"github.com/emiliorios/mpgateway/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.LinkStore = (*LinkRepo)(nil)

// LinkRepo is the SQLite implementation of the LinkStore port interface.
type LinkRepo struct {
	db *DB
}

// NewLinkRepo creates a LinkRepo backed by the given DB.
func NewLinkRepo(db *DB) *LinkRepo {
	return &LinkRepo{db: db}
}

// Upsert inserts or replaces the record for account.SubjectID. Timestamps
// already present on the row survive a replace only through the values the
// caller supplies, so callers must carry forward what they want kept.
func (r *LinkRepo) Upsert(ctx context.Context, account model.LinkedAccount) error {
	const query = `
		INSERT INTO linked_accounts (subject_id, linked, linked_at, unlinked_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(subject_id) DO UPDATE SET
			linked = excluded.linked,
			linked_at = COALESCE(excluded.linked_at, linked_accounts.linked_at),
			unlinked_at = COALESCE(excluded.unlinked_at, linked_accounts.unlinked_at),
			updated_at = excluded.updated_at`

	updatedAt := account.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		account.SubjectID,
		boolToInt(account.Linked),
		formatNullableTime(account.LinkedAt),
		formatNullableTime(account.UnlinkedAt),
		updatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert linked account %q: %w", account.SubjectID, err)
	}
	return nil
}

// Get returns the record for a subject id, or nil if none exists.
func (r *LinkRepo) Get(ctx context.Context, subjectID string) (*model.LinkedAccount, error) {
	const query = `
		SELECT id, subject_id, linked, linked_at, unlinked_at, updated_at
		FROM linked_accounts WHERE subject_id = ?`

	account, err := scanLinkedAccount(r.db.Reader.QueryRowContext(ctx, query, subjectID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get linked account %q: %w", subjectID, err)
	}
	return &account, nil
}

// List returns all records ordered by subject id.
func (r *LinkRepo) List(ctx context.Context) ([]model.LinkedAccount, error) {
	const query = `
		SELECT id, subject_id, linked, linked_at, unlinked_at, updated_at
		FROM linked_accounts ORDER BY subject_id`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list linked accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.LinkedAccount
	for rows.Next() {
		account, err := scanLinkedAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan linked account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate linked accounts: %w", err)
	}
	return accounts, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanLinkedAccount(row rowScanner) (model.LinkedAccount, error) {
	var (
		account    model.LinkedAccount
		linked     int
		linkedAt   sql.NullString
		unlinkedAt sql.NullString
		updatedAt  string
	)
	if err := row.Scan(&account.ID, &account.SubjectID, &linked, &linkedAt, &unlinkedAt, &updatedAt); err != nil {
		return model.LinkedAccount{}, err
	}

	account.Linked = linked != 0

	var err error
	if account.LinkedAt, err = parseNullableTime(linkedAt); err != nil {
		return model.LinkedAccount{}, fmt.Errorf("parse linked_at: %w", err)
	}
	if account.UnlinkedAt, err = parseNullableTime(unlinkedAt); err != nil {
		return model.LinkedAccount{}, fmt.Errorf("parse unlinked_at: %w", err)
	}
	if account.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return model.LinkedAccount{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return account, nil
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseNullableTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
