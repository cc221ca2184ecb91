package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vi13x/coinbot/internal/domain"
)

var ErrNotFound = errors.New("not found")

// FileDB keeps the whole ledger in one JSON snapshot and rewrites it on every mutation.
type FileDB struct {
	mu   sync.RWMutex
	file *os.File
	snap *domain.Snapshot
	path string
}

func OpenFileDB(path string) (*FileDB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, err
	}
	db := &FileDB{file: f, path: path}
	if err := db.load(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return db, nil
}

func (db *FileDB) Close() error { return db.file.Close() }

// BackupExt is the file extension of Backup output.
func (db *FileDB) BackupExt() string { return ".json" }

// Backup copies the snapshot file to dst.
func (db *FileDB) Backup(ctx context.Context, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	data, err := os.ReadFile(db.path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o600)
}

// Restore replaces the ledger with the snapshot at src and rewrites the file.
func (db *FileDB) Restore(ctx context.Context, src string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	if snap.Accounts == nil {
		snap.Accounts = map[domain.UserID]*domain.Account{}
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	db.snap = &snap
	return db.flushLocked()
}

func (db *FileDB) load() error {
	info, err := db.file.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		db.snap = &domain.Snapshot{
			Version:   1,
			Accounts:  map[domain.UserID]*domain.Account{},
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		return db.flushLocked()
	}
	var snap domain.Snapshot
	if err := json.NewDecoder(db.file).Decode(&snap); err != nil {
		return err
	}
	if snap.Accounts == nil {
		snap.Accounts = map[domain.UserID]*domain.Account{}
	}
	db.snap = &snap
	return nil
}

func (db *FileDB) flushLocked() error {
	if _, err := db.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	enc := json.NewEncoder(db.file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(db.snap); err != nil {
		return err
	}
	// truncate in case new content is shorter
	pos, _ := db.file.Seek(0, io.SeekCurrent)
	if err := db.file.Truncate(pos); err != nil {
		return err
	}
	return db.file.Sync()
}

func (db *FileDB) withWrite(ctx context.Context, fn func(*domain.Snapshot) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if err := fn(db.snap); err != nil {
		return err
	}
	db.snap.UpdatedAt = time.Now()
	return db.flushLocked()
}

func (db *FileDB) withRead(fn func(*domain.Snapshot) error) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return fn(db.snap)
}

// upsertLocked returns the stored record for id, inserting the implicit one first.
func upsertLocked(s *domain.Snapshot, id domain.UserID) *domain.Account {
	a, ok := s.Accounts[id]
	if !ok {
		acc := domain.NewAccount(id)
		a = &acc
		s.Accounts[id] = a
	}
	a.UpdatedAt = time.Now().UTC()
	return a
}

func (db *FileDB) Account(ctx context.Context, id domain.UserID) (domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return domain.Account{}, err
	}
	var out *domain.Account
	db.withRead(func(s *domain.Snapshot) error {
		if a, ok := s.Accounts[id]; ok {
			copy := *a
			out = &copy
		}
		return nil
	})
	if out == nil {
		return domain.Account{}, ErrNotFound
	}
	return *out, nil
}

func (db *FileDB) AccountByUsername(ctx context.Context, username string) (domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return domain.Account{}, err
	}
	username = strings.ToLower(strings.TrimPrefix(username, "@"))
	var out *domain.Account
	db.withRead(func(s *domain.Snapshot) error {
		for _, a := range s.Accounts {
			if a.Username != "" && strings.ToLower(a.Username) == username {
				copy := *a
				out = &copy
				break
			}
		}
		return nil
	})
	if out == nil {
		return domain.Account{}, ErrNotFound
	}
	return *out, nil
}

func (db *FileDB) Accounts(ctx context.Context) ([]domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []domain.Account
	db.withRead(func(s *domain.Snapshot) error {
		for _, a := range s.Accounts {
			out = append(out, *a)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (db *FileDB) PutBalance(ctx context.Context, id domain.UserID, coins float64) error {
	return db.withWrite(ctx, func(s *domain.Snapshot) error {
		upsertLocked(s, id).Balance = coins
		return nil
	})
}

func (db *FileDB) PutBank(ctx context.Context, id domain.UserID, bank float64) error {
	return db.withWrite(ctx, func(s *domain.Snapshot) error {
		upsertLocked(s, id).Bank = bank
		return nil
	})
}

func (db *FileDB) PutMultiplier(ctx context.Context, id domain.UserID, multiplier float64) error {
	return db.withWrite(ctx, func(s *domain.Snapshot) error {
		upsertLocked(s, id).Multiplier = multiplier
		return nil
	})
}

// PutUsername skips the rewrite when the stored name already matches.
func (db *FileDB) PutUsername(ctx context.Context, id domain.UserID, username string) error {
	var same bool
	db.withRead(func(s *domain.Snapshot) error {
		a, ok := s.Accounts[id]
		same = ok && a.Username == username
		return nil
	})
	if same {
		return nil
	}
	return db.withWrite(ctx, func(s *domain.Snapshot) error {
		upsertLocked(s, id).Username = username
		return nil
	})
}
