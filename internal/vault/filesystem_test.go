package vault

import (
	"bytes"
	"strings"
	"testing"
)

func TestFileSystemVault_PutGetRoundTrip(t *testing.T) {
	v, err := NewFileSystemVault("offsite", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	content := "archive bytes"
	if err := v.Put("plex-backup-20250615-103000.tar.gz", strings.NewReader(content), int64(len(content))); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	var buf bytes.Buffer
	if err := v.Get("plex-backup-20250615-103000.tar.gz", &buf); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if buf.String() != content {
		t.Errorf("Get() = %q, want %q", buf.String(), content)
	}
}

func TestFileSystemVault_PutIdempotent(t *testing.T) {
	v, err := NewFileSystemVault("offsite", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	content := "first"
	if err := v.Put("a.tar.gz", strings.NewReader(content), int64(len(content))); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// A second put of the same name is skipped; archives are immutable.
	other := "other"
	if err := v.Put("a.tar.gz", strings.NewReader(other), int64(len(other))); err != nil {
		t.Fatalf("second Put() error = %v", err)
	}

	var buf bytes.Buffer
	if err := v.Get("a.tar.gz", &buf); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if buf.String() != content {
		t.Errorf("Get() after duplicate put = %q, want original %q", buf.String(), content)
	}
}

func TestFileSystemVault_PutSizeMismatch(t *testing.T) {
	v, err := NewFileSystemVault("offsite", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	if err := v.Put("b.tar.gz", strings.NewReader("short"), 100); err == nil {
		t.Error("Put() with wrong size expected error")
	}
}

func TestFileSystemVault_GetMissing(t *testing.T) {
	v, err := NewFileSystemVault("offsite", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	var buf bytes.Buffer
	if err := v.Get("missing.tar.gz", &buf); err == nil {
		t.Error("Get() on missing archive expected error")
	}
}

func TestFileSystemVault_List(t *testing.T) {
	v, err := NewFileSystemVault("offsite", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	for _, name := range []string{"b.tar.gz", "a.tar.gz"} {
		if err := v.Put(name, strings.NewReader("x"), 1); err != nil {
			t.Fatalf("Put(%s) error = %v", name, err)
		}
	}

	names, err := v.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("List() = %v, want 2 entries", names)
	}
}

func TestFileSystemVault_ValidateSetup(t *testing.T) {
	v, err := NewFileSystemVault("offsite", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}
	if err := v.ValidateSetup(); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}
}
