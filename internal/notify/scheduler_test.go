package notify

import (
	"sync"
	"testing"
	"time"
)

type recordingSender struct {
	mu    sync.Mutex
	sent  []string
	fired chan struct{}
}

func newRecordingSender() *recordingSender {
	return &recordingSender{fired: make(chan struct{}, 16)}
}

func (s *recordingSender) Send(chatID int64, text string) error {
	s.mu.Lock()
	s.sent = append(s.sent, text)
	s.mu.Unlock()
	s.fired <- struct{}{}
	return nil
}

func (s *recordingSender) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

func TestSchedulePastInstantFires(t *testing.T) {
	sender := newRecordingSender()
	sched := NewScheduler(sender)
	defer sched.Stop()

	handle, err := sched.Schedule("Standup", "Scheduled in 5 minutes: Standup", time.Now().Add(-time.Minute), 42)
	if err != nil {
		t.Fatal(err)
	}
	if handle == "" {
		t.Fatal("empty handle")
	}

	select {
	case <-sender.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("reminder never fired")
	}

	got := sender.messages()
	if len(got) != 1 {
		t.Fatalf("sent %d messages, want 1", len(got))
	}
	want := "🔔 Standup\nScheduled in 5 minutes: Standup"
	if got[0] != want {
		t.Errorf("sent %q, want %q", got[0], want)
	}

	// The handle is gone once fired; cancelling it is still a no-op.
	if err := sched.Cancel(handle); err != nil {
		t.Errorf("cancel after fire: %v", err)
	}
}

func TestCancelDisarms(t *testing.T) {
	sender := newRecordingSender()
	sched := NewScheduler(sender)
	defer sched.Stop()

	handle, err := sched.Schedule("Trip", "1 day left to Trip", time.Now().Add(time.Hour), 42)
	if err != nil {
		t.Fatal(err)
	}
	if sched.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", sched.Pending())
	}

	if err := sched.Cancel(handle); err != nil {
		t.Fatal(err)
	}
	if sched.Pending() != 0 {
		t.Fatalf("pending after cancel = %d, want 0", sched.Pending())
	}
	if len(sender.messages()) != 0 {
		t.Error("cancelled reminder was delivered")
	}
}

func TestCancelUnknownHandle(t *testing.T) {
	sched := NewScheduler(newRecordingSender())
	if err := sched.Cancel("not-a-handle"); err != nil {
		t.Errorf("cancel unknown handle: %v", err)
	}
	if err := sched.Cancel(""); err != nil {
		t.Errorf("cancel empty handle: %v", err)
	}
}

func TestStopDisarmsEverything(t *testing.T) {
	sender := newRecordingSender()
	sched := NewScheduler(sender)

	for i := 0; i < 3; i++ {
		if _, err := sched.Schedule("t", "b", time.Now().Add(time.Hour), 1); err != nil {
			t.Fatal(err)
		}
	}
	sched.Stop()
	if sched.Pending() != 0 {
		t.Fatalf("pending after stop = %d, want 0", sched.Pending())
	}
}
