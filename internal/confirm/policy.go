package confirm

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
)

// Policy is the live tool confirmation policy, backed by a TOML file with a
// [tools] table mapping tool names to booleans. Tools absent from the file
// require confirmation; a missing or malformed file means everything does.
type Policy struct {
	path   string
	logger *slog.Logger

	mu    sync.RWMutex
	tools map[string]bool
	mtime time.Time
}

type policyFile struct {
	Tools map[string]bool `toml:"tools"`
}

// LoadPolicy reads the policy file. Load never fails: unreadable or
// malformed content degrades to the fail-safe empty policy.
func LoadPolicy(path string, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Policy{
		path:   path,
		logger: logger.With("component", "confirm-policy"),
		tools:  map[string]bool{},
	}
	p.reload()
	return p
}

// RequiresConfirmation reports whether the named tool needs user approval.
// The file's mtime is checked on each lookup so edits apply without restart
// even when the watcher is not running.
func (p *Policy) RequiresConfirmation(tool string) bool {
	p.maybeReload()

	p.mu.RLock()
	defer p.mu.RUnlock()
	required, listed := p.tools[tool]
	if !listed {
		return true
	}
	return required
}

// Watch reloads the policy on filesystem events until ctx ends. It watches
// the directory rather than the file so atomic replaces keep working.
func (p *Policy) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name == p.path && event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					p.reload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				p.logger.Warn("policy watcher error", "error", err)
			}
		}
	}()
	return nil
}

func (p *Policy) maybeReload() {
	info, err := os.Stat(p.path)
	if err != nil {
		return
	}
	p.mu.RLock()
	changed := info.ModTime().After(p.mtime)
	p.mu.RUnlock()
	if changed {
		p.reload()
	}
}

func (p *Policy) reload() {
	tools := map[string]bool{}
	var mtime time.Time

	if info, err := os.Stat(p.path); err == nil {
		mtime = info.ModTime()
		var parsed policyFile
		if _, err := toml.DecodeFile(p.path, &parsed); err != nil {
			p.logger.Warn("confirmation policy unreadable, requiring confirmation for all tools",
				"path", p.path, "error", err)
		} else if parsed.Tools != nil {
			tools = parsed.Tools
		}
	}

	p.mu.Lock()
	p.tools = tools
	p.mtime = mtime
	p.mu.Unlock()
}
