package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Workspaces hands out one scratch directory per request under root.
// Directories handed out and not yet removed are never swept.
type Workspaces struct {
	root string
	log  logrus.FieldLogger
	now  func() time.Time

	mu     sync.Mutex
	active map[string]struct{}
}

func NewWorkspaces(root string, log logrus.FieldLogger) (*Workspaces, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create tmp dir %s: %w", root, err)
	}
	return &Workspaces{root: root, log: log, now: time.Now, active: make(map[string]struct{})}, nil
}

func (w *Workspaces) Root() string {
	return w.root
}

// Create makes a fresh directory named by a random uuid.
func (w *Workspaces) Create() (string, error) {
	dir := filepath.Join(w.root, uuid.NewString())
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create workspace: %w", err)
	}
	w.mu.Lock()
	w.active[filepath.Base(dir)] = struct{}{}
	w.mu.Unlock()
	return dir, nil
}

// Remove deletes a workspace. Failures are logged, the sweep picks up
// whatever is left behind.
func (w *Workspaces) Remove(dir string) {
	w.mu.Lock()
	delete(w.active, filepath.Base(dir))
	w.mu.Unlock()

	log := w.log.WithField("dir", dir)
	if _, err := os.Stat(dir); err != nil {
		log.WithError(err).Error("workspace to remove does not exist")
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		log.WithError(err).Error("failed to remove workspace")
	}
}

// Sweep removes workspaces last modified more than maxAge ago and returns
// how many were removed. Workspaces still in use are skipped however old
// they are, a slow import keeps its directory.
func (w *Workspaces) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return 0, fmt.Errorf("failed to read tmp dir %s: %w", w.root, err)
	}

	cutoff := w.now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) || w.inUse(entry.Name()) {
			continue
		}
		path := filepath.Join(w.root, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			w.log.WithError(err).WithField("dir", path).Error("failed to remove stale workspace")
			continue
		}
		removed++
	}
	return removed, nil
}

func (w *Workspaces) inUse(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.active[name]
	return ok
}
