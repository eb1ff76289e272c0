package state

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// projectIDPattern is the only accepted identifier shape. It admits no
// separators, dots, whitespace, or shell metacharacters, so a valid id can
// never name anything outside its own directory.
var projectIDPattern = regexp.MustCompile(`^project-\d+$`)

// ValidateProjectID checks that id matches project-<digits>.
func ValidateProjectID(id string) error {
	if !projectIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q must match project-<digits>", ErrInvalidID, id)
	}
	return nil
}

// resolveProjectDir validates id and returns the canonicalized project
// directory, verifying it is a strict descendant of the canonicalized root.
// The descendant check is defense in depth: the regex already rules out
// traversal, but the path is verified independently.
func resolveProjectDir(root, id string) (string, error) {
	if err := ValidateProjectID(id); err != nil {
		return "", err
	}

	rootResolved, err := canonicalPath(root)
	if err != nil {
		return "", fmt.Errorf("resolve root %q: %w", root, err)
	}

	dirResolved, err := canonicalPath(filepath.Join(root, id))
	if err != nil {
		return "", fmt.Errorf("resolve project dir for %q: %w", id, err)
	}

	if !strings.HasPrefix(dirResolved, rootResolved+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path traversal detected for %q", ErrInvalidID, id)
	}

	return dirResolved, nil
}

// canonicalPath returns the absolute path with symlinks resolved. Paths
// that do not exist yet are resolved through their deepest existing
// ancestor, so a fresh project directory canonicalizes the same way it
// will after creation.
func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	parent := filepath.Dir(abs)
	if parent == abs {
		// Filesystem root; nothing left to resolve.
		return abs, nil
	}
	parentResolved, err := canonicalPath(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(parentResolved, filepath.Base(abs)), nil
}
