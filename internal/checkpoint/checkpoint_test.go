package checkpoint

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestFreshStoreHasNoCheckpoint(t *testing.T) {
	store := newTestStore(t)

	pid, ok, err := store.LastProcessedPID()
	if err != nil {
		t.Fatalf("LastProcessedPID() failed: %v", err)
	}
	if ok {
		t.Errorf("fresh store: got checkpoint %d, want none", pid)
	}
}

func TestSetAndGetCheckpoint(t *testing.T) {
	store := newTestStore(t)

	if err := store.SetLastProcessedPID(123456); err != nil {
		t.Fatalf("SetLastProcessedPID() failed: %v", err)
	}

	pid, ok, err := store.LastProcessedPID()
	if err != nil {
		t.Fatalf("LastProcessedPID() failed: %v", err)
	}
	if !ok || pid != 123456 {
		t.Errorf("got (%d, %v), want (123456, true)", pid, ok)
	}
}

func TestCheckpointOverwrite(t *testing.T) {
	store := newTestStore(t)

	if err := store.SetLastProcessedPID(100); err != nil {
		t.Fatalf("SetLastProcessedPID(100) failed: %v", err)
	}
	if err := store.SetLastProcessedPID(200); err != nil {
		t.Fatalf("SetLastProcessedPID(200) failed: %v", err)
	}

	pid, ok, err := store.LastProcessedPID()
	if err != nil {
		t.Fatalf("LastProcessedPID() failed: %v", err)
	}
	if !ok || pid != 200 {
		t.Errorf("got (%d, %v), want (200, true)", pid, ok)
	}
}

func TestCheckpointSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := store.SetLastProcessedPID(777); err != nil {
		t.Fatalf("SetLastProcessedPID() failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	pid, ok, err := reopened.LastProcessedPID()
	if err != nil {
		t.Fatalf("LastProcessedPID() after reopen failed: %v", err)
	}
	if !ok || pid != 777 {
		t.Errorf("after reopen: got (%d, %v), want (777, true)", pid, ok)
	}
}

func TestClearCheckpoint(t *testing.T) {
	store := newTestStore(t)

	if err := store.SetLastProcessedPID(42); err != nil {
		t.Fatalf("SetLastProcessedPID() failed: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() failed: %v", err)
	}

	_, ok, err := store.LastProcessedPID()
	if err != nil {
		t.Fatalf("LastProcessedPID() failed: %v", err)
	}
	if ok {
		t.Error("after Clear: checkpoint still present")
	}
}
