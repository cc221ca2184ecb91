package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"

	"github.com/vi13x/coinbot/internal/domain"
	"github.com/vi13x/coinbot/internal/storage"
)

type Repo struct {
	db *sql.DB
}

func Open(ctx context.Context, dsn string) (*Repo, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres: empty dsn")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cannot ping db: %w", err)
	}
	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id TEXT PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			coins DOUBLE PRECISION NOT NULL DEFAULT 0,
			bank DOUBLE PRECISION NOT NULL DEFAULT 0,
			boost_multiplier DOUBLE PRECISION NOT NULL DEFAULT 1,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_users_username ON users (LOWER(username));`,
	}
	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return errors.Wrap(err, "repo: initSchema")
		}
	}
	return nil
}

func (r *Repo) Close() error { return r.db.Close() }

const selectAccount = `SELECT user_id, username, coins, bank, boost_multiplier, updated_at FROM users`

func scan(row interface{ Scan(...any) error }) (domain.Account, error) {
	var (
		a  domain.Account
		id string
	)
	if err := row.Scan(&id, &a.Username, &a.Balance, &a.Bank, &a.Multiplier, &a.UpdatedAt); err != nil {
		return domain.Account{}, err
	}
	a.ID = domain.UserID(id)
	return a, nil
}

func (r *Repo) Account(ctx context.Context, id domain.UserID) (domain.Account, error) {
	a, err := scan(r.db.QueryRowContext(ctx, selectAccount+` WHERE user_id = $1;`, string(id)))
	if err == sql.ErrNoRows {
		return domain.Account{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Account{}, errors.Wrap(err, "repo: Account")
	}
	return a, nil
}

func (r *Repo) AccountByUsername(ctx context.Context, username string) (domain.Account, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	query := selectAccount + ` WHERE LOWER(username) = LOWER($1) LIMIT 1;`
	a, err := scan(r.db.QueryRowContext(ctx, query, username))
	if err == sql.ErrNoRows || username == "" {
		return domain.Account{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Account{}, errors.Wrap(err, "repo: AccountByUsername")
	}
	return a, nil
}

func (r *Repo) Accounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := r.db.QueryContext(ctx, selectAccount+` ORDER BY user_id;`)
	if err != nil {
		return nil, errors.Wrap(err, "repo: Accounts")
	}
	defer rows.Close()

	var res []domain.Account
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// upsertQuery builds the insert-or-update statement for a single ledger column.
func upsertQuery(column string) string {
	return `INSERT INTO users (user_id, ` + column + `) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET ` + column + ` = EXCLUDED.` + column + `, updated_at = NOW();`
}

func (r *Repo) put(ctx context.Context, op, column string, id domain.UserID, value any) error {
	if _, err := r.db.ExecContext(ctx, upsertQuery(column), string(id), value); err != nil {
		return errors.Wrap(err, "repo: "+op)
	}
	return nil
}

func (r *Repo) PutBalance(ctx context.Context, id domain.UserID, coins float64) error {
	return r.put(ctx, "PutBalance", "coins", id, coins)
}

func (r *Repo) PutBank(ctx context.Context, id domain.UserID, bank float64) error {
	return r.put(ctx, "PutBank", "bank", id, bank)
}

func (r *Repo) PutMultiplier(ctx context.Context, id domain.UserID, multiplier float64) error {
	return r.put(ctx, "PutMultiplier", "boost_multiplier", id, multiplier)
}

func (r *Repo) PutUsername(ctx context.Context, id domain.UserID, username string) error {
	return r.put(ctx, "PutUsername", "username", id, username)
}
