package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T, name string) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	store, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("OpenFileStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, path
}

func TestOpenFileStore_CreatesDefaults(t *testing.T) {
	store, path := newTestStore(t, "config.json")

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config file was not created: %v", err)
	}
	for _, key := range []string{`"channels"`, `"keywords"`, `"channel_ids"`} {
		if !strings.Contains(string(raw), key) {
			t.Errorf("config file missing %s: %s", key, raw)
		}
	}

	snap := store.Snapshot()
	if len(snap.Channels) != 0 || len(snap.Keywords) != 0 || len(snap.ChannelIDs) != 0 {
		t.Errorf("Snapshot() = %+v, want empty", snap)
	}
}

func TestOpenFileStore_LoadExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{"channels":["https://www.youtube.com/@a"],"keywords":["go"],"channel_ids":{"https://www.youtube.com/@a":"UCa"}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("OpenFileStore() error = %v", err)
	}
	defer store.Close()

	snap := store.Snapshot()
	if !reflect.DeepEqual(snap.Channels, []string{"https://www.youtube.com/@a"}) {
		t.Errorf("Channels = %v", snap.Channels)
	}
	id, ok, err := store.Get(context.Background(), "https://www.youtube.com/@a")
	if err != nil || !ok || id != "UCa" {
		t.Errorf("Get() = %q, %v, %v; want UCa, true, nil", id, ok, err)
	}
}

func TestOpenFileStore_SparseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"channels":null}`), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("OpenFileStore() error = %v", err)
	}
	defer store.Close()

	if err := store.Put(context.Background(), "ref", "UCx"); err != nil {
		t.Fatalf("Put() on sparse config error = %v", err)
	}
}

func TestOpenFileStore_Corrupt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := OpenFileStore(path)
	if !errors.Is(err, ErrStorageCorrupt) {
		t.Fatalf("OpenFileStore() error = %v, want ErrStorageCorrupt", err)
	}
	var storErr *StorageError
	if !errors.As(err, &storErr) || storErr.Op != "read" {
		t.Errorf("error = %#v, want *StorageError with Op read", err)
	}
}

func TestFileStore_SaveSettings(t *testing.T) {
	store, path := newTestStore(t, "config.json")
	ctx := context.Background()

	channels := []string{" https://www.youtube.com/@a ", "", "https://www.youtube.com/channel/UCb"}
	keywords := []string{"rust", "  ", " go"}
	if err := store.SaveSettings(ctx, channels, keywords); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}

	snap := store.Snapshot()
	wantChannels := []string{"https://www.youtube.com/@a", "https://www.youtube.com/channel/UCb"}
	if !reflect.DeepEqual(snap.Channels, wantChannels) {
		t.Errorf("Channels = %v, want %v", snap.Channels, wantChannels)
	}
	if !reflect.DeepEqual(snap.Keywords, []string{"rust", "go"}) {
		t.Errorf("Keywords = %v, want [rust go]", snap.Keywords)
	}

	store.Close()
	reopened, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()
	if !reflect.DeepEqual(reopened.Snapshot().Channels, wantChannels) {
		t.Errorf("reopened Channels = %v, want %v", reopened.Snapshot().Channels, wantChannels)
	}
}

func TestFileStore_SaveSettingsFailureKeepsMemory(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	store, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("OpenFileStore() error = %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.SaveSettings(ctx, []string{"a"}, nil); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}

	if err := os.Chmod(dir, 0o500); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(dir, 0o700)

	err = store.SaveSettings(ctx, []string{"b"}, []string{"k"})
	var storErr *StorageError
	if !errors.As(err, &storErr) {
		t.Fatalf("SaveSettings() error = %v, want *StorageError", err)
	}
	if got := store.Snapshot().Channels; !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("Channels after failed save = %v, want [a]", got)
	}
}

func TestFileStore_PutFlush(t *testing.T) {
	store, path := newTestStore(t, "config.json")
	ctx := context.Background()

	if err := store.Put(ctx, "https://www.youtube.com/@a", "UCa"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	raw, _ := os.ReadFile(path)
	if strings.Contains(string(raw), "UCa") {
		t.Error("Put() persisted before Flush()")
	}

	if err := store.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	raw, _ = os.ReadFile(path)
	if !strings.Contains(string(raw), "UCa") {
		t.Errorf("Flush() did not persist mapping: %s", raw)
	}
}

func TestFileStore_PutInvalid(t *testing.T) {
	store, _ := newTestStore(t, "config.json")

	err := store.Put(context.Background(), "", "UCa")
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Put() error = %v, want ErrInvalidInput", err)
	}
}

func TestFileStore_SnapshotIsCopy(t *testing.T) {
	store, _ := newTestStore(t, "config.json")
	ctx := context.Background()
	if err := store.SaveSettings(ctx, []string{"a"}, []string{"k"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, "a", "UCa"); err != nil {
		t.Fatal(err)
	}

	snap := store.Snapshot()
	snap.Channels[0] = "mutated"
	snap.ChannelIDs["a"] = "mutated"

	again := store.Snapshot()
	if again.Channels[0] != "a" || again.ChannelIDs["a"] != "UCa" {
		t.Errorf("Snapshot() shares state with store: %+v", again)
	}
}

func TestFileStore_YAML(t *testing.T) {
	store, path := newTestStore(t, "config.yaml")
	ctx := context.Background()

	if err := store.SaveSettings(ctx, []string{"https://www.youtube.com/@a"}, []string{"go"}); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "channels:") || strings.HasPrefix(string(raw), "{") {
		t.Errorf("config.yaml is not YAML: %s", raw)
	}

	store.Close()
	reopened, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()
	if got := reopened.Snapshot().Keywords; !reflect.DeepEqual(got, []string{"go"}) {
		t.Errorf("Keywords = %v, want [go]", got)
	}
}

func TestFileStore_LockedByOtherStore(t *testing.T) {
	_, path := newTestStore(t, "config.json")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	lock := NewFileLock(path)
	err := lock.Lock(ctx)
	if !errors.Is(err, ErrLockTimeout) {
		lock.Unlock()
		t.Fatalf("Lock() on held file error = %v, want ErrLockTimeout", err)
	}
}

func TestFileLock_Canceled(t *testing.T) {
	_, path := newTestStore(t, "config.json")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewFileLock(path).Lock(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Lock() with canceled ctx error = %v, want context.Canceled", err)
	}
}

func TestFileLock_Reacquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	first := NewFileLock(path)
	if err := first.Lock(context.Background()); err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	raw, err := os.ReadFile(first.Path())
	if err != nil {
		t.Fatalf("read lock file: %v", err)
	}
	if want := strconv.Itoa(os.Getpid()) + "\n"; string(raw) != want {
		t.Errorf("lock file = %q, want %q", raw, want)
	}
	if err := first.Unlock(); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}

	second := NewFileLock(path)
	if err := second.Lock(context.Background()); err != nil {
		t.Fatalf("Lock() after Unlock error = %v", err)
	}
	second.Unlock()
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	if err := WriteFileAtomic(path, []byte("one")); err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(path, []byte("two")); err != nil {
		t.Fatalf("WriteFileAtomic() overwrite error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "two" {
		t.Errorf("content = %q, want two", raw)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only the target", len(entries))
	}
}

func TestFileStore_UseAfterClose(t *testing.T) {
	store, _ := newTestStore(t, "config.json")
	store.Close()

	err := store.SaveSettings(context.Background(), []string{"a"}, nil)
	if !errors.Is(err, ErrClosed) {
		t.Errorf("SaveSettings() after Close error = %v, want ErrClosed", err)
	}
}
