package shop

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vi13x/coinbot/internal/domain"
)

// PayloadSource lists the files that make up an item.
type PayloadSource interface {
	Files(itemID string) ([]string, error)
}

// DirSource keeps each item's payload under Root/<item id>/, searched recursively.
type DirSource struct {
	Root string
	Ext  string // only files with this extension; empty means all
}

// Files returns nil without error when the item has no folder.
func (d DirSource) Files(itemID string) ([]string, error) {
	dir := filepath.Join(d.Root, filepath.Base(strings.ToLower(itemID)))
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, nil
	}
	var out []string
	err = filepath.WalkDir(dir, func(path string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if e.IsDir() {
			return nil
		}
		if d.Ext != "" && !strings.EqualFold(filepath.Ext(path), d.Ext) {
			return nil
		}
		out = append(out, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// FileSender pushes one file to a user, usually as a direct message.
type FileSender interface {
	SendFile(ctx context.Context, user domain.UserID, path string) error
}

type Report struct {
	Files  int
	Sent   int
	Failed int
}

func (r Report) NoPayload() bool { return r.Files == 0 }

// Deliver attempts every file once. Individual failures are counted, never retried.
func Deliver(ctx context.Context, sender FileSender, user domain.UserID, files []string) Report {
	r := Report{Files: len(files)}
	for _, f := range files {
		if err := sender.SendFile(ctx, user, f); err != nil {
			r.Failed++
			continue
		}
		r.Sent++
	}
	return r
}
