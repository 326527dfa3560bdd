// Package scratch provides the sandboxed working filesystem tools share.
// Every path is confined to a single configured root; writes are bounded by
// per-file and whole-tree quotas.
package scratch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Quotas.
const (
	MaxFileSize  = 50 << 20  // 50 MB per file
	MaxTotalSize = 500 << 20 // 500 MB across the tree
	MaxNameLen   = 255
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._\-]`)

// Entry describes one regular file in the space.
type Entry struct {
	Name     string
	Size     int64
	Modified time.Time
	AgeHours float64
}

// Space is a sandboxed directory tree.
type Space struct {
	root string
	now  func() time.Time
}

// New creates a Space rooted at dir, creating the directory if needed.
func New(dir string) (*Space, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve scratch root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch root: %w", err)
	}
	return &Space{root: abs, now: time.Now}, nil
}

// Root returns the absolute root directory.
func (s *Space) Root() string {
	return s.root
}

// SanitizeName rewrites one path segment into a safe filename: unsafe
// characters become underscores, leading dots are stripped, length is capped.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	name = unsafeNameChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")
	if len(name) > MaxNameLen {
		name = name[:MaxNameLen]
	}
	return name
}

// Resolve maps a POSIX-style relative path to an absolute path strictly
// inside the root. Each segment is sanitised; traversal is rejected.
func (s *Space) Resolve(path string) (string, error) {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return "", fmt.Errorf("path is required")
	}
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "/") {
		return "", fmt.Errorf("absolute paths are not allowed")
	}

	var segments []string
	for _, seg := range strings.Split(filepath.ToSlash(clean), "/") {
		if seg == "" || seg == "." {
			continue
		}
		if seg == ".." {
			return "", fmt.Errorf("path escapes scratch space")
		}
		safe := SanitizeName(seg)
		if safe == "" {
			return "", fmt.Errorf("invalid path segment %q", seg)
		}
		segments = append(segments, safe)
	}
	if len(segments) == 0 {
		return "", fmt.Errorf("path is required")
	}

	target := filepath.Join(append([]string{s.root}, segments...)...)
	rel, err := filepath.Rel(s.root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes scratch space")
	}
	return target, nil
}

// Write stores data at path, creating parent directories. Quota checks run
// before anything touches disk so a rejected write has no side effects.
func (s *Space) Write(path string, data []byte) error {
	target, err := s.Resolve(path)
	if err != nil {
		return err
	}
	if int64(len(data)) > MaxFileSize {
		return fmt.Errorf("file size %d exceeds the %d byte limit", len(data), MaxFileSize)
	}

	total, err := s.totalSize()
	if err != nil {
		return err
	}
	// Replacing a file frees its current bytes.
	if info, err := os.Stat(target); err == nil && info.Mode().IsRegular() {
		total -= info.Size()
	}
	if total+int64(len(data)) > MaxTotalSize {
		return fmt.Errorf("write would exceed the %d byte space limit", int64(MaxTotalSize))
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Read returns a file's contents.
func (s *Space) Read(path string) ([]byte, error) {
	target, err := s.Resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file %s does not exist", path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// Delete removes a file. Deleting a missing file is an error so the caller
// can tell the LLM the name was wrong.
func (s *Space) Delete(path string) error {
	target, err := s.Resolve(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file %s does not exist", path)
		}
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}
	return os.Remove(target)
}

// List enumerates every regular file, root-relative, sorted by walk order.
func (s *Space) List() ([]Entry, error) {
	now := s.now()
	var entries []Entry
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{
			Name:     filepath.ToSlash(rel),
			Size:     info.Size(),
			Modified: info.ModTime(),
			AgeHours: now.Sub(info.ModTime()).Hours(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list scratch space: %w", err)
	}
	return entries, nil
}

func (s *Space) totalSize() (int64, error) {
	var total int64
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("measure scratch space: %w", err)
	}
	return total, nil
}
