package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/vi13x/coinbot/internal/domain"
	"github.com/vi13x/coinbot/internal/service"
)

// UI is the operator console over the ledger. It works on the same store as
// the bot, so run it while the bot is stopped when using the file driver.
type UI struct {
	bank    *service.Bank
	in      *bufio.Reader
	out     io.Writer
	p       *message.Printer
	reports string
	backups string
}

func NewUI(bank *service.Bank, in *bufio.Reader, out io.Writer, reportsDir, backupsDir string) *UI {
	if reportsDir == "" {
		reportsDir = "reports"
	}
	if backupsDir == "" {
		backupsDir = "backups"
	}
	return &UI{bank: bank, in: in, out: out, p: message.NewPrinter(language.English), reports: reportsDir, backups: backupsDir}
}

// Run shows the menu until the operator exits or input ends.
func (ui *UI) Run(ctx context.Context) {
	for {
		fmt.Fprintln(ui.out, "\n=== Ledger ===")
		fmt.Fprintln(ui.out, "1) List accounts")
		fmt.Fprintln(ui.out, "2) Show account")
		fmt.Fprintln(ui.out, "3) Give coins")
		fmt.Fprintln(ui.out, "4) Remove coins")
		fmt.Fprintln(ui.out, "5) Set balance")
		fmt.Fprintln(ui.out, "6) Set multiplier")
		fmt.Fprintln(ui.out, "7) Export ledger (CSV)")
		fmt.Fprintln(ui.out, "8) Backup ledger")
		fmt.Fprintln(ui.out, "9) List backups")
		fmt.Fprintln(ui.out, "10) Restore backup")
		fmt.Fprintln(ui.out, "0) Exit")
		fmt.Fprint(ui.out, "> ")
		line, ok := ui.readLine()
		if !ok {
			return
		}
		switch strings.TrimSpace(line) {
		case "1":
			ui.listAccounts(ctx)
		case "2":
			ui.showAccount(ctx)
		case "3":
			ui.give(ctx)
		case "4":
			ui.remove(ctx)
		case "5":
			ui.setBalance(ctx)
		case "6":
			ui.setMultiplier(ctx)
		case "7":
			ui.export(ctx)
		case "8":
			if name, err := ui.bank.BackupNow(ctx, ui.backups); err != nil {
				fmt.Fprintln(ui.out, "Error:", err)
			} else {
				fmt.Fprintln(ui.out, "Backup created:", name)
			}
		case "9":
			ui.listBackups()
		case "10":
			ui.restoreBackup(ctx)
		default:
			return
		}
	}
}

func (ui *UI) listAccounts(ctx context.Context) {
	accs, err := ui.bank.Accounts(ctx)
	if err != nil {
		fmt.Fprintln(ui.out, "Error:", err)
		return
	}
	if len(accs) == 0 {
		fmt.Fprintln(ui.out, "No accounts yet.")
		return
	}
	for _, a := range accs {
		fmt.Fprintf(ui.out, "- %s %s coins=%s bank=%s x%v\n",
			a.ID, atName(a.Username), ui.coins(a.Balance), ui.coins(a.Bank), a.Multiplier)
	}
}

func (ui *UI) showAccount(ctx context.Context) {
	id, ok := ui.readUser(ctx)
	if !ok {
		return
	}
	a, err := ui.bank.Account(ctx, id)
	if err != nil {
		fmt.Fprintln(ui.out, "Error:", err)
		return
	}
	eff, err := ui.bank.EffectiveMultiplier(ctx, id)
	if err != nil {
		fmt.Fprintln(ui.out, "Error:", err)
		return
	}
	fmt.Fprintf(ui.out, "User:       %s %s\n", a.ID, atName(a.Username))
	fmt.Fprintf(ui.out, "Coins:      %s\n", ui.coins(a.Balance))
	fmt.Fprintf(ui.out, "Bank:       %s\n", ui.coins(a.Bank))
	fmt.Fprintf(ui.out, "Multiplier: x%v (effective x%v)\n", a.Multiplier, eff)
	if !a.UpdatedAt.IsZero() {
		fmt.Fprintf(ui.out, "Updated:    %s\n", a.UpdatedAt.Format(time.RFC3339))
	}
}

func (ui *UI) give(ctx context.Context) {
	id, ok := ui.readUser(ctx)
	if !ok {
		return
	}
	amt, ok := ui.readAmount("Amount:")
	if !ok {
		return
	}
	bal, err := ui.bank.Give(ctx, id, amt)
	if err != nil {
		fmt.Fprintln(ui.out, "Error:", err)
		return
	}
	fmt.Fprintln(ui.out, "Done. Balance:", ui.coins(bal))
}

func (ui *UI) remove(ctx context.Context) {
	id, ok := ui.readUser(ctx)
	if !ok {
		return
	}
	amt, ok := ui.readAmount("Amount:")
	if !ok {
		return
	}
	bal, err := ui.bank.Remove(ctx, id, amt)
	if err != nil {
		fmt.Fprintln(ui.out, "Error:", err)
		return
	}
	fmt.Fprintln(ui.out, "Done. Balance:", ui.coins(bal))
}

func (ui *UI) setBalance(ctx context.Context) {
	id, ok := ui.readUser(ctx)
	if !ok {
		return
	}
	amt, ok := ui.readAmount("New balance:")
	if !ok {
		return
	}
	if err := ui.bank.SetBalance(ctx, id, amt); err != nil {
		fmt.Fprintln(ui.out, "Error:", err)
		return
	}
	fmt.Fprintln(ui.out, "Done.")
}

func (ui *UI) setMultiplier(ctx context.Context) {
	id, ok := ui.readUser(ctx)
	if !ok {
		return
	}
	mult, ok := ui.readAmount("Multiplier:")
	if !ok {
		return
	}
	if err := ui.bank.SetMultiplier(ctx, id, mult); err != nil {
		fmt.Fprintln(ui.out, "Error:", err)
		return
	}
	fmt.Fprintln(ui.out, "Done.")
}

func (ui *UI) export(ctx context.Context) {
	path := filepath.Join(ui.reports, fmt.Sprintf("ledger_%s.csv", ui.bank.Now().Format("20060102_150405")))
	p, err := ui.bank.ExportLedgerCSV(ctx, path)
	if err != nil {
		fmt.Fprintln(ui.out, "Error:", err)
		return
	}
	fmt.Fprintln(ui.out, "Saved:", p)
}

func (ui *UI) listBackups() {
	list, err := ui.bank.ListBackups(ui.backups)
	if err != nil {
		fmt.Fprintln(ui.out, "Error:", err)
		return
	}
	if len(list) == 0 {
		fmt.Fprintln(ui.out, "No backups")
		return
	}
	for i, n := range list {
		fmt.Fprintf(ui.out, "%d) %s\n", i+1, n)
	}
}

func (ui *UI) restoreBackup(ctx context.Context) {
	fmt.Fprint(ui.out, "Backup name from the list: ")
	name, ok := ui.readLine()
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return
	}
	if err := ui.bank.RestoreBackup(ctx, ui.backups, name); err != nil {
		fmt.Fprintln(ui.out, "Error:", err)
		return
	}
	fmt.Fprintln(ui.out, "Restored.")
}

// readUser accepts a numeric user id or a recorded @username.
func (ui *UI) readUser(ctx context.Context) (domain.UserID, bool) {
	fmt.Fprint(ui.out, "User (id or @username): ")
	raw, ok := ui.readLine()
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return "", false
	}
	if !strings.HasPrefix(raw, "@") {
		return domain.UserID(raw), true
	}
	id, err := ui.bank.Resolve(ctx, strings.TrimPrefix(raw, "@"))
	if err != nil {
		fmt.Fprintln(ui.out, "Unknown user:", raw)
		return "", false
	}
	return id, true
}

func (ui *UI) readLine() (string, bool) {
	s, err := ui.in.ReadString('\n')
	if err != nil && s == "" {
		return "", false
	}
	return strings.TrimRight(s, "\r\n"), true
}

// readAmount asks until it gets a number; an empty line cancels.
func (ui *UI) readAmount(prompt string) (float64, bool) {
	for {
		fmt.Fprint(ui.out, prompt+" ")
		raw, ok := ui.readLine()
		raw = strings.TrimSpace(raw)
		if !ok || raw == "" {
			return 0, false
		}
		// accept a decimal comma
		n, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
		if err != nil {
			fmt.Fprintln(ui.out, "Invalid number. Example: 150 or 1.5")
			continue
		}
		return n, true
	}
}

func (ui *UI) coins(v float64) string {
	return ui.p.Sprintf("%.0f", v)
}

func atName(s string) string {
	if s == "" {
		return "-"
	}
	return "@" + s
}
