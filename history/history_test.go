package history

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"go.aimuz.me/prakriti/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{InMemory: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_LoadOldestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	// Appended out of order on purpose.
	msgs := []types.Message{
		{ID: "c", Role: types.RoleAssistant, Text: "Crop looks healthy", CreatedAt: base.Add(2 * time.Second)},
		{ID: "a", Role: types.RoleUser, Text: "hello", CreatedAt: base},
		{ID: "b", Role: types.RoleUser, ImageRef: "https://cdn.example/leaf.jpg", CreatedAt: base.Add(time.Second)},
	}
	for _, m := range msgs {
		if err := s.Append(ctx, "farmer-1", m); err != nil {
			t.Fatalf("Append(%s): %v", m.ID, err)
		}
	}

	got, err := s.Load(ctx, "farmer-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	var ids []string
	for _, m := range got {
		ids = append(ids, m.ID)
	}
	if want := []string{"a", "b", "c"}; !slices.Equal(ids, want) {
		t.Errorf("Load order = %v, want %v", ids, want)
	}
	if got[1].ImageRef != "https://cdn.example/leaf.jpg" {
		t.Errorf("ImageRef = %q", got[1].ImageRef)
	}
	if got[2].Role != types.RoleAssistant {
		t.Errorf("Role = %q, want %q", got[2].Role, types.RoleAssistant)
	}
}

func TestStore_ConversationsAreIsolated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, "a", types.Message{Role: types.RoleUser, Text: "one"}); err != nil {
		t.Fatal(err)
	}
	// "ab" shares a prefix with "a" but is a different conversation.
	if err := s.Append(ctx, "ab", types.Message{Role: types.RoleUser, Text: "two"}); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Text != "one" {
		t.Errorf("Load(a) = %+v, want one message", got)
	}
	if got[0].ID == "" || got[0].CreatedAt.IsZero() {
		t.Error("Append did not fill ID and CreatedAt")
	}

	empty, err := s.Load(ctx, "nobody")
	if err != nil || len(empty) != 0 {
		t.Errorf("Load(nobody) = %v, %v, want empty", empty, err)
	}

	ids, err := s.Conversations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"a", "ab"}; !slices.Equal(ids, want) {
		t.Errorf("Conversations() = %v, want %v", ids, want)
	}
}

func TestStore_InvalidConversation(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"", "a/b"} {
		err := s.Append(context.Background(), id, types.Message{Text: "x"})
		if !errors.Is(err, ErrPersistence) {
			t.Errorf("Append(%q) error = %v, want ErrPersistence", id, err)
		}
	}
}

func TestStore_ClosedFails(t *testing.T) {
	s, err := Open(Options{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	err = s.Append(context.Background(), "c", types.Message{Text: "late"})
	if !errors.Is(err, ErrPersistence) {
		t.Errorf("Append after Close = %v, want ErrPersistence", err)
	}
}

func TestStore_OnDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(Options{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, "c", types.Message{Role: types.RoleUser, Text: "नमस्ते", Lang: "hi"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(Options{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, err := s.Load(ctx, "c")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Text != "नमस्ते" || got[0].Lang != "hi" {
		t.Errorf("reopened Load = %+v", got)
	}

	if _, err := Open(Options{}); err == nil {
		t.Error("Open without Dir should fail")
	}
}
