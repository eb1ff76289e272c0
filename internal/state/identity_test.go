package state

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateProjectID(t *testing.T) {
	valid := []string{"project-1", "project-0", "project-123", "project-999999"}
	for _, id := range valid {
		if err := ValidateProjectID(id); err != nil {
			t.Errorf("ValidateProjectID(%q) = %v, want nil", id, err)
		}
	}

	invalid := []string{
		"",
		"project-",
		"project_1",
		"PROJECT-1",
		"project-1x",
		"project-1/../x",
		"../x",
		"project-1 ",
		" project-1",
		"project-1;rm -rf /",
		"project-1\n",
		"project-1.2",
	}
	for _, id := range invalid {
		err := ValidateProjectID(id)
		if err == nil {
			t.Errorf("ValidateProjectID(%q) = nil, want error", id)
			continue
		}
		if !errors.Is(err, ErrInvalidID) {
			t.Errorf("ValidateProjectID(%q) = %v, want ErrInvalidID", id, err)
		}
	}
}

func TestResolveProjectDirStaysInsideRoot(t *testing.T) {
	root := t.TempDir()

	dir, err := resolveProjectDir(root, "project-42")
	if err != nil {
		t.Fatalf("resolveProjectDir failed: %v", err)
	}

	rootResolved, err := canonicalPath(root)
	if err != nil {
		t.Fatalf("canonicalPath failed: %v", err)
	}
	if !strings.HasPrefix(dir, rootResolved+string(filepath.Separator)) {
		t.Errorf("resolved dir %q escapes root %q", dir, rootResolved)
	}
}

func TestResolveProjectDirRejectsBadIDsBeforeIO(t *testing.T) {
	// A nonexistent root proves no filesystem access happens before
	// validation: resolution against it would error differently.
	root := filepath.Join(t.TempDir(), "does-not-exist")

	for _, id := range []string{"../x", "project-1/../x", "project_1", ""} {
		_, err := resolveProjectDir(root, id)
		if !errors.Is(err, ErrInvalidID) {
			t.Errorf("resolveProjectDir(%q) = %v, want ErrInvalidID", id, err)
		}
	}
}

func TestResolveProjectDirDetectsSymlinkEscape(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "root")
	outside := filepath.Join(base, "outside")
	for _, dir := range []string{root, outside} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	// A project directory that is really a symlink pointing out of the root.
	if err := os.Symlink(outside, filepath.Join(root, "project-7")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	_, err := resolveProjectDir(root, "project-7")
	if !errors.Is(err, ErrInvalidID) {
		t.Errorf("resolveProjectDir over escaping symlink = %v, want ErrInvalidID", err)
	}
}

func TestCanonicalPathNonexistentLeaf(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a", "b", "c")

	resolved, err := canonicalPath(path)
	if err != nil {
		t.Fatalf("canonicalPath(%q) failed: %v", path, err)
	}

	rootResolved, err := canonicalPath(root)
	if err != nil {
		t.Fatalf("canonicalPath(root) failed: %v", err)
	}
	want := filepath.Join(rootResolved, "a", "b", "c")
	if resolved != want {
		t.Errorf("canonicalPath(%q) = %q, want %q", path, resolved, want)
	}
}
