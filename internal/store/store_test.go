package store

import (
	"context"
	"testing"
)

func TestMemory_PutGetDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()

	handle, err := m.Put(ctx, "news/global/a.json", []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if handle.Key != "news/global/a.json" {
		t.Fatalf("unexpected handle key: %q", handle.Key)
	}

	data, err := m.Get(ctx, handle)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != `{"a":1}` {
		t.Fatalf("unexpected object data: %q", data)
	}

	if err := m.Delete(ctx, handle); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := m.Get(ctx, handle); !IsNotFound(err) {
		t.Fatalf("expected ErrNotFound after delete, got: %v", err)
	}

	// Deleting again must be a no-op.
	if err := m.Delete(ctx, handle); err != nil {
		t.Fatalf("second delete should be idempotent, got: %v", err)
	}
}

func TestMemory_ListFiltersAndOrders(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()
	for _, key := range []string{
		"news/global/b.json",
		"news/global/a.json",
		"news/personas/calm/x.json",
	} {
		if _, err := m.Put(ctx, key, []byte("{}")); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	handles, err := m.List(ctx, "news/global/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(handles) != 2 {
		t.Fatalf("unexpected handle count: got %d want 2", len(handles))
	}
	if handles[0].Key != "news/global/a.json" || handles[1].Key != "news/global/b.json" {
		t.Fatalf("expected lexicographic order, got %v", handles)
	}

	empty, err := m.List(ctx, "news/none/")
	if err != nil {
		t.Fatalf("list empty prefix: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no handles, got %v", empty)
	}
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()
	handle, err := m.Put(ctx, "k", []byte("abc"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	first, err := m.Get(ctx, handle)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	first[0] = 'X'

	second, err := m.Get(ctx, handle)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if string(second) != "abc" {
		t.Fatalf("stored object was mutated through a returned slice: %q", second)
	}
}

func TestFilesystem_PutGetDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("new filesystem store: %v", err)
	}

	handle, err := fsStore.Put(ctx, "news/global/a.json", []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	data, err := fsStore.Get(ctx, handle)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != `{"a":1}` {
		t.Fatalf("unexpected object data: %q", data)
	}

	if err := fsStore.Delete(ctx, handle); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := fsStore.Get(ctx, handle); !IsNotFound(err) {
		t.Fatalf("expected ErrNotFound after delete, got: %v", err)
	}
	if err := fsStore.Delete(ctx, handle); err != nil {
		t.Fatalf("second delete should be idempotent, got: %v", err)
	}
}

func TestFilesystem_ListFiltersByPrefix(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("new filesystem store: %v", err)
	}

	keys := []string{
		"news/global/b.json",
		"news/global/a.json",
		"news/personas/calm/https%3A%2F%2Fexample.com%2Fa.json",
	}
	for _, key := range keys {
		if _, err := fsStore.Put(ctx, key, []byte("{}")); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	global, err := fsStore.List(ctx, "news/global/")
	if err != nil {
		t.Fatalf("list global: %v", err)
	}
	if len(global) != 2 {
		t.Fatalf("unexpected global count: got %d want 2", len(global))
	}
	if global[0].Key != "news/global/a.json" {
		t.Fatalf("expected lexicographic order, got %v", global)
	}

	personas, err := fsStore.List(ctx, "news/personas/")
	if err != nil {
		t.Fatalf("list personas: %v", err)
	}
	if len(personas) != 1 {
		t.Fatalf("unexpected persona count: got %d want 1", len(personas))
	}
	if personas[0].Key != "news/personas/calm/https%3A%2F%2Fexample.com%2Fa.json" {
		t.Fatalf("unexpected persona key: %q", personas[0].Key)
	}
}

func TestFilesystem_RejectsTraversalKeys(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("new filesystem store: %v", err)
	}

	for _, key := range []string{"", "/abs/path", "a/../b", "a//b", "a\\b"} {
		if _, err := fsStore.Put(ctx, key, []byte("{}")); err == nil {
			t.Fatalf("expected key %q to be rejected", key)
		}
	}
}

func TestLikePrefix_EscapesWildcards(t *testing.T) {
	t.Parallel()

	if got := likePrefix("news/global/"); got != "news/global/%" {
		t.Fatalf("unexpected pattern: %q", got)
	}
	if got := likePrefix("a_b%c"); got != `a\_b\%c%` {
		t.Fatalf("unexpected escaped pattern: %q", got)
	}
}
