package bus

import (
	"testing"
	"time"
)

func TestWaitForMatchesPredicate(t *testing.T) {
	b := New()
	defer b.Destroy()

	go func() {
		time.Sleep(5 * time.Millisecond)
		b.Emit(ToolConfirmationResponse, map[string]string{"id": "other"})
		b.Emit(ToolConfirmationResponse, map[string]string{"id": "wanted"})
	}()

	payload, err := b.WaitFor(ToolConfirmationResponse, func(p any) bool {
		return p.(map[string]string)["id"] == "wanted"
	})
	if err != nil {
		t.Fatalf("WaitFor error: %v", err)
	}
	if payload.(map[string]string)["id"] != "wanted" {
		t.Fatalf("got wrong payload: %v", payload)
	}
}

func TestDestroyResolvesOutstandingWaits(t *testing.T) {
	b := New()
	done := make(chan error, 1)
	go func() {
		_, err := b.WaitFor(AskUserRequest, func(any) bool { return true })
		done <- err
	}()
	time.Sleep(5 * time.Millisecond)
	b.Destroy()

	select {
	case err := <-done:
		if err != ErrBusDestroyed {
			t.Fatalf("expected ErrBusDestroyed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitFor did not unblock after Destroy")
	}
}

func TestEmitAfterDestroyIsNoop(t *testing.T) {
	b := New()
	b.Destroy()
	b.Emit(ToolCallsUpdate, "ignored") // must not panic
}
