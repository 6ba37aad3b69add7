package storage

import (
	"context"
	"errors"
	"testing"
)

// kvContract exercises the behavior every backend must share.
func kvContract(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	if _, err := kv.Get(ctx, "absent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(absent) error = %v; want ErrNotFound", err)
	}

	if err := kv.Set(ctx, KeySavedPrinters, []byte(`{"v":1}`)); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	got, err := kv.Get(ctx, KeySavedPrinters)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if string(got) != `{"v":1}` {
		t.Errorf("Get() = %q", got)
	}

	// Overwrite replaces, never appends.
	if err := kv.Set(ctx, KeySavedPrinters, []byte(`{"v":2}`)); err != nil {
		t.Fatalf("overwrite Set() error: %v", err)
	}
	got, err = kv.Get(ctx, KeySavedPrinters)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if string(got) != `{"v":2}` {
		t.Errorf("Get() after overwrite = %q", got)
	}

	// Keys are independent.
	if err := kv.Set(ctx, KeySyncSnapshots, []byte(`{}`)); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	got, err = kv.Get(ctx, KeySavedPrinters)
	if err != nil || string(got) != `{"v":2}` {
		t.Errorf("neighbour key disturbed: %q, %v", got, err)
	}

	if err := kv.Remove(ctx, KeySavedPrinters); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if _, err := kv.Get(ctx, KeySavedPrinters); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after remove error = %v; want ErrNotFound", err)
	}
	// Removing an absent key is not an error.
	if err := kv.Remove(ctx, KeySavedPrinters); err != nil {
		t.Errorf("repeat Remove() error: %v", err)
	}
}

func TestMemoryKV(t *testing.T) {
	kvContract(t, NewMemoryKV())
}

func TestFileKV(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileKV() error: %v", err)
	}
	defer kv.Close()
	kvContract(t, kv)
}

func TestFileKVSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	kv, err := NewFileKV(dir)
	if err != nil {
		t.Fatalf("NewFileKV() error: %v", err)
	}
	if err := kv.Set(ctx, KeySavedPrinters, []byte("persisted")); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	kv.Close()

	kv, err = NewFileKV(dir)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	got, err := kv.Get(ctx, KeySavedPrinters)
	if err != nil || string(got) != "persisted" {
		t.Errorf("Get() after reopen = %q, %v", got, err)
	}
}

func TestFileKVKeyEscaping(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileKV() error: %v", err)
	}
	ctx := context.Background()

	// Hostile key names must stay inside the directory.
	key := "../../etc/passwd"
	if err := kv.Set(ctx, key, []byte("x")); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	got, err := kv.Get(ctx, key)
	if err != nil || string(got) != "x" {
		t.Errorf("Get() = %q, %v", got, err)
	}
}

func TestMemoryKVReturnsCopies(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()

	val := []byte("original")
	if err := kv.Set(ctx, "k", val); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	val[0] = 'X'

	got, err := kv.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if string(got) != "original" {
		t.Error("Set() retained the caller's slice")
	}

	got[0] = 'Y'
	again, _ := kv.Get(ctx, "k")
	if string(again) != "original" {
		t.Error("Get() leaked the stored slice")
	}
}
