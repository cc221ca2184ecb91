package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Reports

// WriteLedgerCSV writes every account as one row.
func (b *Bank) WriteLedgerCSV(ctx context.Context, w io.Writer) (int, error) {
	accs, err := b.store.Accounts(ctx)
	if err != nil {
		return 0, err
	}
	rows := [][]string{{"user_id", "username", "coins", "bank", "boost_multiplier", "updated_at"}}
	for _, a := range accs {
		updated := ""
		if !a.UpdatedAt.IsZero() {
			updated = a.UpdatedAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, []string{
			string(a.ID),
			a.Username,
			strconv.FormatFloat(a.Balance, 'f', 2, 64),
			strconv.FormatFloat(a.Bank, 'f', 2, 64),
			strconv.FormatFloat(a.Multiplier, 'f', -1, 64),
			updated,
		})
	}
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return 0, err
	}
	return len(accs), nil
}

// ExportLedgerCSV writes the ledger to outPath, creating parent directories.
func (b *Bank) ExportLedgerCSV(ctx context.Context, outPath string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := b.WriteLedgerCSV(ctx, f); err != nil {
		return "", fmt.Errorf("export %s: %w", outPath, err)
	}
	return outPath, f.Sync()
}
