package maildrop

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/communalgrowth/docsub/internal/id"
	"github.com/communalgrowth/docsub/internal/ingest"
)

// Maildir subdirectories. Mail is written to tmp and renamed into new.
const (
	dirTmp = "tmp"
	dirNew = "new"
	dirCur = "cur"
)

// LockFileName is created in the spool root while a daemon runs.
const LockFileName = "docsub.lock"

// NewDir is the directory a daemon reads action's mail from.
func NewDir(root string, action ingest.Action) string {
	return filepath.Join(root, string(action), dirNew)
}

// Prepare creates the maildir layout for every action under root.
func Prepare(root string) error {
	for _, a := range ingest.Actions {
		for _, sub := range []string{dirTmp, dirNew, dirCur} {
			if err := os.MkdirAll(filepath.Join(root, string(a), sub), 0o750); err != nil {
				return fmt.Errorf("create spool directory: %w", err)
			}
		}
	}
	return nil
}

// ActionOf returns the action a spooled file belongs to. Only files
// directly inside <root>/<action>/new qualify.
func ActionOf(root, path string) (ingest.Action, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", false
	}
	account, rest, ok := cutDir(rel)
	if !ok {
		return "", false
	}
	delivered, name, ok := cutDir(rest)
	if !ok || delivered != dirNew || name == "" || filepath.Base(name) != name {
		return "", false
	}
	action, err := ingest.ParseAction(account)
	if err != nil || string(action) != account {
		return "", false
	}
	return action, true
}

func cutDir(p string) (dir, rest string, ok bool) {
	for i := 0; i < len(p); i++ {
		if os.IsPathSeparator(p[i]) {
			return p[:i], p[i+1:], true
		}
	}
	return "", "", false
}

// Deliver writes a message into action's new directory the way a mail
// delivery agent would, and returns the final path.
func Deliver(root string, action ingest.Action, r io.Reader) (string, error) {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	name := strconv.FormatInt(time.Now().Unix(), 10) + "." + id.MustGenerate("drop") + "." + host

	tmpPath := filepath.Join(root, string(action), dirTmp, name)
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create spool file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("write spool file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close spool file: %w", err)
	}

	newPath := filepath.Join(NewDir(root, action), name)
	if err := os.Rename(tmpPath, newPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("deliver spool file: %w", err)
	}
	return newPath, nil
}
