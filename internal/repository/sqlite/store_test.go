package sqlite

import (
	"path/filepath"
	"testing"

	"trackit/internal/store/storetest"
)

func TestStoreContract(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "nested", "trackit.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	storetest.Run(t, s)
}

func TestOpenEmptyPath(t *testing.T) {
	if _, err := Open("", nil); err == nil {
		t.Fatal("expected error for empty path")
	}
}
