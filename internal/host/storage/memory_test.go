package storage

import (
	"errors"
	"testing"

	"github.com/nemanja-m/wanremote/internal/host/core"
	"github.com/nemanja-m/wanremote/pkg/protocol"
)

func newPrompt(id string) *core.Prompt {
	return &core.Prompt{ID: id, Status: core.PromptStatusPending, Graph: protocol.NewJobGraph()}
}

func TestInMemoryPromptStore_SaveAndGet(t *testing.T) {
	store := NewInMemoryPromptStore()
	p := newPrompt("p1")

	if err := store.SavePrompt(p); err != nil {
		t.Fatalf("SavePrompt returned error: %v", err)
	}
	if err := store.SavePrompt(p); err == nil {
		t.Error("expected duplicate save to fail")
	}

	p.Status = core.PromptStatusRunning
	got, err := store.GetPrompt("p1")
	if err != nil {
		t.Fatalf("GetPrompt returned error: %v", err)
	}
	if got.Status != core.PromptStatusPending {
		t.Error("store must keep its own copy of the prompt")
	}

	if _, err := store.GetPrompt("missing"); !errors.Is(err, core.ErrPromptNotFound) {
		t.Errorf("expected ErrPromptNotFound, got %v", err)
	}
}

func TestInMemoryPromptStore_HistoryOrder(t *testing.T) {
	store := NewInMemoryPromptStore()
	for _, id := range []string{"a", "b", "c"} {
		if err := store.SavePrompt(newPrompt(id)); err != nil {
			t.Fatal(err)
		}
	}

	history, _ := store.History(0)
	if len(history) != 0 {
		t.Fatalf("pending prompts must not appear in history, got %d", len(history))
	}

	for _, id := range []string{"c", "a"} {
		p, _ := store.GetPrompt(id)
		p.MarkSucceeded(nil)
		if err := store.UpdatePrompt(p); err != nil {
			t.Fatal(err)
		}
		// A second update must not duplicate the history entry.
		if err := store.UpdatePrompt(p); err != nil {
			t.Fatal(err)
		}
	}

	history, _ = store.History(0)
	if len(history) != 2 || history[0].ID != "c" || history[1].ID != "a" {
		t.Errorf("unexpected history %v", history)
	}

	recent, _ := store.History(1)
	if len(recent) != 1 || recent[0].ID != "a" {
		t.Errorf("History(1) should return the latest entry, got %v", recent)
	}
}

func TestInMemoryPromptStore_UpdateUnknown(t *testing.T) {
	store := NewInMemoryPromptStore()
	if err := store.UpdatePrompt(newPrompt("x")); !errors.Is(err, core.ErrPromptNotFound) {
		t.Errorf("expected ErrPromptNotFound, got %v", err)
	}
}

func TestInMemoryPromptStore_ClearHistory(t *testing.T) {
	store := NewInMemoryPromptStore()
	done := newPrompt("done")
	done.MarkFailed(nil, "boom")
	_ = store.SavePrompt(done)
	_ = store.SavePrompt(newPrompt("queued"))

	if err := store.ClearHistory(); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetPrompt("done"); !errors.Is(err, core.ErrPromptNotFound) {
		t.Error("finished prompt should be gone")
	}
	if _, err := store.GetPrompt("queued"); err != nil {
		t.Error("queued prompt must survive ClearHistory")
	}
}
