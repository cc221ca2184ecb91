// Package sqlite provides the default SQLite-backed ledger store.
//
// The users table keeps the legacy column names (coins, bank, boost_multiplier) so an
// existing data.db is picked up unchanged; later columns are added by migration.
package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/vi13x/coinbot/internal/domain"
	"github.com/vi13x/coinbot/internal/storage"
	"github.com/vi13x/coinbot/internal/storage/sqlite/migrations"
)

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the ledger database at path and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite: empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "sqlite: pragmas")
	}
	if err := applyMigrations(db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "sqlite: migrate")
	}
	return &Store{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) BackupExt() string { return ".db" }

// Backup writes a compacted copy of the database to dst, which must not exist.
func (s *Store) Backup(ctx context.Context, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, dst)
	return errors.Wrap(err, "sqlite: backup")
}

const ledgerColumns = `userId, username, coins, bank, boostMultiplier, updatedAt`

// Restore replaces every ledger row with the rows of the backup at src.
func (s *Store) Restore(ctx context.Context, src string) error {
	// ATTACH creates missing files
	if _, err := os.Stat(src); err != nil {
		return err
	}
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return errors.Wrap(err, "sqlite: conn")
	}
	defer conn.Close()
	if _, err := conn.ExecContext(ctx, `ATTACH DATABASE ? AS backup`, src); err != nil {
		return errors.Wrap(err, "sqlite: attach backup")
	}
	defer conn.ExecContext(context.Background(), `DETACH DATABASE backup`)

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
		return errors.Wrap(err, "sqlite: clear users")
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO users (`+ledgerColumns+`) SELECT `+ledgerColumns+` FROM backup.users`); err != nil {
		return errors.Wrap(err, "sqlite: copy users")
	}
	return errors.Wrap(tx.Commit(), "sqlite: commit")
}

const selectAccount = `SELECT userId, username, COALESCE(coins, 0), COALESCE(bank, 0), COALESCE(boostMultiplier, 1), updatedAt FROM users`

func scanAccount(row interface{ Scan(...any) error }) (domain.Account, error) {
	var (
		a       domain.Account
		id      string
		updated int64
	)
	if err := row.Scan(&id, &a.Username, &a.Balance, &a.Bank, &a.Multiplier, &updated); err != nil {
		return domain.Account{}, err
	}
	a.ID = domain.UserID(id)
	if updated > 0 {
		a.UpdatedAt = time.UnixMilli(updated).UTC()
	}
	return a, nil
}

func (s *Store) Account(ctx context.Context, id domain.UserID) (domain.Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx, selectAccount+` WHERE userId = ?`, string(id)))
	if err == sql.ErrNoRows {
		return domain.Account{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Account{}, errors.Wrap(err, "sqlite: Account")
	}
	return a, nil
}

func (s *Store) AccountByUsername(ctx context.Context, username string) (domain.Account, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return domain.Account{}, storage.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, selectAccount+` WHERE username = ? COLLATE NOCASE LIMIT 1`, username)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return domain.Account{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Account{}, errors.Wrap(err, "sqlite: AccountByUsername")
	}
	return a, nil
}

func (s *Store) Accounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := s.db.QueryContext(ctx, selectAccount+` ORDER BY userId`)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: Accounts")
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, errors.Wrap(err, "sqlite: Accounts scan")
		}
		out = append(out, a)
	}
	return out, errors.Wrap(rows.Err(), "sqlite: Accounts rows")
}

func (s *Store) upsert(ctx context.Context, op, column string, id domain.UserID, value any) error {
	query := `INSERT INTO users (userId, ` + column + `, updatedAt) VALUES (?, ?, ?)
		ON CONFLICT(userId) DO UPDATE SET ` + column + ` = excluded.` + column + `, updatedAt = excluded.updatedAt`
	if _, err := s.db.ExecContext(ctx, query, string(id), value, time.Now().UTC().UnixMilli()); err != nil {
		return errors.Wrap(err, "sqlite: "+op)
	}
	return nil
}

func (s *Store) PutBalance(ctx context.Context, id domain.UserID, coins float64) error {
	return s.upsert(ctx, "PutBalance", "coins", id, coins)
}

func (s *Store) PutBank(ctx context.Context, id domain.UserID, bank float64) error {
	return s.upsert(ctx, "PutBank", "bank", id, bank)
}

func (s *Store) PutMultiplier(ctx context.Context, id domain.UserID, multiplier float64) error {
	return s.upsert(ctx, "PutMultiplier", "boostMultiplier", id, multiplier)
}

func (s *Store) PutUsername(ctx context.Context, id domain.UserID, username string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (userId, username, updatedAt) VALUES (?, ?, ?)
		ON CONFLICT(userId) DO UPDATE SET username = excluded.username
		WHERE users.username <> excluded.username`,
		string(id), username, time.Now().UTC().UnixMilli())
	return errors.Wrap(err, "sqlite: PutUsername")
}
