package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vi13x/coinbot/internal/domain"
)

// ErrBackupUnsupported is returned for stores that cannot snapshot themselves.
var ErrBackupUnsupported = errors.New("this store does not support backups")

// Snapshotter is implemented by stores that can copy themselves to a file and
// load such a copy back.
type Snapshotter interface {
	BackupExt() string
	Backup(ctx context.Context, dst string) error
	Restore(ctx context.Context, src string) error
}

const backupPrefix = "ledger-"

func (b *Bank) snapshotter() (Snapshotter, error) {
	s, ok := b.store.(Snapshotter)
	if !ok {
		return nil, ErrBackupUnsupported
	}
	return s, nil
}

// BackupNow writes a timestamped copy of the ledger into dir and returns its name.
func (b *Bank) BackupNow(ctx context.Context, dir string) (string, error) {
	s, err := b.snapshotter()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := backupPrefix + b.now().Format("20060102-150405") + s.BackupExt()
	if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
		return "", fmt.Errorf("backup %s already exists", name)
	}
	if err := s.Backup(ctx, filepath.Join(dir, name)); err != nil {
		return "", err
	}
	return name, nil
}

// ListBackups returns the backup names in dir, oldest first. A missing dir has none.
func (b *Bank) ListBackups(dir string) ([]string, error) {
	s, err := b.snapshotter()
	if err != nil {
		return nil, err
	}
	ents, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		n := e.Name()
		if !e.IsDir() && strings.HasPrefix(n, backupPrefix) && strings.HasSuffix(n, s.BackupExt()) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out, nil
}

// RestoreBackup replaces the ledger with the named backup from dir. Every user
// stripe is held, so no mutation interleaves with the swap.
func (b *Bank) RestoreBackup(ctx context.Context, dir, name string) error {
	s, err := b.snapshotter()
	if err != nil {
		return err
	}
	if name == "" || filepath.Base(name) != name || !strings.HasPrefix(name, backupPrefix) {
		return domain.Validation("unknown backup " + name)
	}
	for i := range b.locks {
		b.locks[i].Lock()
	}
	defer func() {
		for i := len(b.locks) - 1; i >= 0; i-- {
			b.locks[i].Unlock()
		}
	}()
	return s.Restore(ctx, filepath.Join(dir, name))
}
