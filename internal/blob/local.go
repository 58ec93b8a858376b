// Package blob stores uploaded image files in a local content directory
// that is served read-only under a URL prefix.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// maxNameAttempts bounds how many timestamp bumps Store tries when the
// generated name is already taken.
const maxNameAttempts = 8

// Local implements domain.BlobStore on the local filesystem.
// Stored names have the form <unix-millis>-<original name>; the reference
// handed back to callers is <prefix>/<stored name>.
type Local struct {
	root   string
	prefix string
	now    func() time.Time
}

// Option configures a Local store.
type Option func(*Local)

// WithClock overrides the time source used to name stored files.
func WithClock(now func() time.Time) Option {
	return func(l *Local) { l.now = now }
}

// NewLocal creates a Local store rooted at dir, creating the directory if
// needed. prefix is the public URL path the directory is served under.
func NewLocal(dir, prefix string, opts ...Option) (*Local, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir %q: %w", dir, err)
	}
	absRoot, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}

	l := &Local{
		root:   absRoot,
		prefix: "/" + strings.Trim(prefix, "/"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Dir returns the absolute content directory.
func (l *Local) Dir() string { return l.root }

// Prefix returns the URL prefix refs are issued under.
func (l *Local) Prefix() string { return l.prefix }

// Store streams data into the content directory and returns its reference.
// The bytes land in a temp file first and are then hard-linked to the final
// name, so a reader never sees a partial file and an existing name is
// never overwritten.
func (l *Local) Store(ctx context.Context, originalName string, data io.Reader) (string, error) {
	tmp, err := os.CreateTemp(l.root, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck

	_, werr := io.Copy(tmp, data)
	cerr := tmp.Close()
	if werr != nil {
		return "", fmt.Errorf("write upload: %w", werr)
	}
	if cerr != nil {
		return "", fmt.Errorf("flush upload: %w", cerr)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	base := SanitizeName(originalName)
	stamp := l.now().UnixMilli()
	for range maxNameAttempts {
		name := strconv.FormatInt(stamp, 10) + "-" + base
		err := os.Link(tmpPath, filepath.Join(l.root, name))
		if err == nil {
			return l.prefix + "/" + name, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("publish upload: %w", err)
		}
		stamp++
	}
	return "", fmt.Errorf("no free name for %q after %d attempts", base, maxNameAttempts)
}

// Delete removes the file behind ref. Unmanaged refs and files that are
// already gone are not errors.
func (l *Local) Delete(ctx context.Context, ref string) error {
	if !l.Manages(ref) {
		return nil
	}
	p, err := l.Path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %q: %w", ref, err)
	}
	return nil
}

// Manages reports whether ref was issued by this store.
func (l *Local) Manages(ref string) bool {
	return strings.HasPrefix(ref, l.prefix+"/") && len(ref) > len(l.prefix)+1
}

// Path resolves a managed ref to its file path, refusing anything that
// would escape the content directory.
func (l *Local) Path(ref string) (string, error) {
	if !l.Manages(ref) {
		return "", fmt.Errorf("ref %q is not under %s", ref, l.prefix)
	}
	name := strings.TrimPrefix(ref, l.prefix+"/")
	if name != path.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("ref %q escapes upload dir", ref)
	}
	return filepath.Join(l.root, name), nil
}

// SanitizeName reduces a client-supplied filename to a safe base name.
// Characters outside [A-Za-z0-9._-] become underscores.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	if name == "." || name == "/" || name == ".." {
		name = ""
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return "upload"
	}
	return out
}
