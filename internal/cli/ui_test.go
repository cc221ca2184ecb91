package cli

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vi13x/coinbot/internal/boost"
	"github.com/vi13x/coinbot/internal/service"
	"github.com/vi13x/coinbot/internal/storage"
)

func newBank(t *testing.T) *service.Bank {
	t.Helper()
	db, err := storage.OpenFileDB(filepath.Join(t.TempDir(), "ledger.json"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return service.NewBank(db, boost.NewTable())
}

func run(t *testing.T, bank *service.Bank, reports string, input ...string) string {
	t.Helper()
	return runIn(t, bank, reports, filepath.Join(t.TempDir(), "backups"), input...)
}

func runIn(t *testing.T, bank *service.Bank, reports, backups string, input ...string) string {
	t.Helper()
	var out bytes.Buffer
	in := bufio.NewReader(strings.NewReader(strings.Join(input, "\n") + "\n"))
	NewUI(bank, in, &out, reports, backups).Run(context.Background())
	return out.String()
}

func TestGiveRemoveAndShow(t *testing.T) {
	ctx := context.Background()
	bank := newBank(t)
	require.NoError(t, bank.Touch(ctx, "7", "alice"))

	out := run(t, bank, "", "3", "@alice", "150", "4", "7", "oops", "40", "2", "7", "0")

	bal, err := bank.GetBalance(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, 110.0, bal)
	assert.Contains(t, out, "Done. Balance: 150")
	assert.Contains(t, out, "Invalid number")
	assert.Contains(t, out, "Coins:      110")
	assert.Contains(t, out, "@alice")
}

func TestUnknownUsername(t *testing.T) {
	out := run(t, newBank(t), "", "3", "@nobody", "0")
	assert.Contains(t, out, "Unknown user: @nobody")
}

func TestSetMultiplierRejectsZero(t *testing.T) {
	ctx := context.Background()
	bank := newBank(t)

	out := run(t, bank, "", "6", "5", "0", "6", "5", "2.5", "0")
	assert.Contains(t, out, "Error:")

	m, err := bank.EffectiveMultiplier(ctx, "5")
	require.NoError(t, err)
	assert.Equal(t, 2.5, m)
}

func TestListAndExport(t *testing.T) {
	ctx := context.Background()
	bank := newBank(t)
	reports := t.TempDir()
	require.NoError(t, bank.SetBalance(ctx, "1", 30))

	out := run(t, bank, reports, "1", "7", "0")
	assert.Contains(t, out, "- 1 - coins=30 bank=0 x1")

	files, err := filepath.Glob(filepath.Join(reports, "ledger_*.csv"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	raw, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "user_id,username,coins,bank,boost_multiplier,updated_at"))
}

func TestEndOfInputExits(t *testing.T) {
	var out bytes.Buffer
	NewUI(newBank(t), bufio.NewReader(strings.NewReader("")), &out, "", "").Run(context.Background())
	assert.Contains(t, out.String(), "=== Ledger ===")
}

func TestBackupListRestore(t *testing.T) {
	ctx := context.Background()
	bank := newBank(t)
	backups := filepath.Join(t.TempDir(), "backups")
	require.NoError(t, bank.SetBalance(ctx, "1", 30))

	out := runIn(t, bank, "", backups, "9", "8", "0")
	assert.Contains(t, out, "No backups")
	assert.Contains(t, out, "Backup created: ledger-")

	names, err := bank.ListBackups(backups)
	require.NoError(t, err)
	require.Len(t, names, 1)
	require.NoError(t, bank.SetBalance(ctx, "1", 99))

	out = runIn(t, bank, "", backups, "9", "10", "../ledger.json", "10", names[0], "0")
	assert.Contains(t, out, "1) "+names[0])
	assert.Contains(t, out, "Error: unknown backup ../ledger.json")
	assert.Contains(t, out, "Restored.")

	bal, err := bank.GetBalance(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 30.0, bal)
}
