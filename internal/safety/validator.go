package safety

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidPath    = errors.New("invalid path")
	ErrProtectedPath  = errors.New("protected path")
	ErrOutsideAllowed = errors.New("outside allowed roots")
	ErrTraversal      = errors.New("path traversal detected")
	ErrSymlinkEscape  = errors.New("symlink escape detected")
)

// Validator decides whether a path may be deleted.
// AllowedRoots confines batch deletions to the walked tree; ProtectedPaths
// are refused everywhere.
type Validator struct {
	AllowedRoots   []string
	ProtectedPaths []string
}

// NewValidator creates a validator with allowed roots and optional additional protected paths
func NewValidator(allowed []string, extraProtected []string) *Validator {
	return &Validator{
		AllowedRoots:   normalizeRoots(allowed),
		ProtectedPaths: defaultProtected(extraProtected),
	}
}

// ValidateDeleteTarget authorizes deletion of path inside the allowed roots.
// The returned error wraps one of the package sentinels and names the path.
func (v *Validator) ValidateDeleteTarget(path string) error {
	p, err := v.checkProtected(path)
	if err != nil {
		return err
	}

	// Checked on the raw input; Clean would already have folded ".." away
	if DetectTraversal(path) {
		return fmt.Errorf("%w: %s", ErrTraversal, path)
	}

	if !IsWithinAllowedRoots(p, v.AllowedRoots) {
		return fmt.Errorf("%w: %s", ErrOutsideAllowed, p)
	}

	escaped, err := DetectSymlinkEscape(p, v.AllowedRoots)
	if err != nil {
		// A vanished path cannot escape; the delete itself will report it
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if escaped {
		return fmt.Errorf("%w: %s", ErrSymlinkEscape, p)
	}

	return nil
}

// ValidateOperand authorizes a single explicit file operation (rm, rmtree,
// mv source). Only emptiness, traversal and protected paths are checked,
// since the operator named the path directly.
func (v *Validator) ValidateOperand(path string) error {
	if _, err := v.checkProtected(path); err != nil {
		return err
	}
	if DetectTraversal(path) {
		return fmt.Errorf("%w: %s", ErrTraversal, path)
	}
	return nil
}

func (v *Validator) checkProtected(path string) (string, error) {
	p, err := NormalizePath(path)
	if err != nil {
		return "", err
	}
	if IsProtectedPath(p, v.ProtectedPaths) {
		return "", fmt.Errorf("%w: %s", ErrProtectedPath, p)
	}
	return p, nil
}

// NormalizePath converts path to absolute, cleaned form
func NormalizePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrInvalidPath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}
	return filepath.Clean(abs), nil
}

// DetectTraversal reports any ".." segment in raw input
func DetectTraversal(raw string) bool {
	for _, p := range strings.Split(filepath.ToSlash(raw), "/") {
		if p == ".." {
			return true
		}
	}
	return false
}

// IsWithinAllowedRoots checks if path is within any allowed root
func IsWithinAllowedRoots(path string, allowedRoots []string) bool {
	p := filepath.Clean(path)
	for _, r := range allowedRoots {
		if hasPathPrefix(p, r) {
			return true
		}
	}
	return false
}

// DetectSymlinkEscape resolves symlinks and checks if the resolved path
// leaves every allowed root
func DetectSymlinkEscape(cleanAbs string, allowedRoots []string) (bool, error) {
	resolved, err := filepath.EvalSymlinks(cleanAbs)
	if err != nil {
		return false, err
	}
	resolvedAbs, err := filepath.Abs(resolved)
	if err != nil {
		return false, err
	}
	return !IsWithinAllowedRoots(filepath.Clean(resolvedAbs), allowedRoots), nil
}

// IsProtectedPath checks if path is, or lies under, a protected path.
// "/" only protects itself.
func IsProtectedPath(path string, protected []string) bool {
	p := filepath.Clean(path)
	if p == string(os.PathSeparator) {
		return true
	}

	for _, prot := range protected {
		prot = filepath.Clean(prot)
		if prot == string(os.PathSeparator) {
			continue
		}
		if hasPathPrefix(p, prot) {
			return true
		}
	}
	return false
}

// hasPathPrefix reports whether path equals prefix or lies beneath it
func hasPathPrefix(path, prefix string) bool {
	path = filepath.Clean(path)
	prefix = filepath.Clean(prefix)

	if prefix == string(os.PathSeparator) {
		return filepath.IsAbs(path)
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+string(os.PathSeparator))
}

// normalizeRoots converts roots to absolute, cleaned paths. A root reached
// through a symlink is kept in both its given and its resolved form, so files
// under it are not mistaken for escapes.
func normalizeRoots(roots []string) []string {
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		if strings.TrimSpace(r) == "" {
			continue
		}
		abs, err := filepath.Abs(r)
		if err != nil {
			continue
		}
		abs = filepath.Clean(abs)
		out = append(out, abs)
		if resolved, err := filepath.EvalSymlinks(abs); err == nil && resolved != abs {
			out = append(out, filepath.Clean(resolved))
		}
	}
	return out
}

// defaultProtected returns the base set of protected paths plus any extras
func defaultProtected(extra []string) []string {
	base := []string{
		"/",
		"/etc",
		"/bin",
		"/usr",
		"/boot",
		"/lib",
		"/lib64",
		"/sbin",
		"/proc",
		"/sys",
		"/dev",
		"/var/lib/dirmanage",
	}
	return append(base, extra...)
}
