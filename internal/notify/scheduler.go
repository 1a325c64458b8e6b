// Package notify schedules one-shot reminder deliveries. A scheduled
// reminder is identified by an opaque handle stored on the record it belongs
// to; cancelling an unknown or already-fired handle is a no-op, so callers
// can cancel unconditionally before rescheduling.
package notify

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sender delivers a rendered notification to a user's chat.
type Sender interface {
	Send(chatID int64, text string) error
}

// Scheduler arms an in-process timer per reminder. Timers do not survive a
// restart; the service layer re-arms them from persisted records on boot.
type Scheduler struct {
	sender Sender

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewScheduler(sender Sender) *Scheduler {
	return &Scheduler{
		sender: sender,
		timers: make(map[string]*time.Timer),
	}
}

// Schedule arms a reminder firing at the given instant and returns its
// handle. An instant already in the past fires immediately.
func (s *Scheduler) Schedule(title, body string, at time.Time, chatID int64) (string, error) {
	handle := uuid.NewString()
	text := render(title, body)

	s.mu.Lock()
	s.timers[handle] = time.AfterFunc(time.Until(at), func() {
		s.mu.Lock()
		delete(s.timers, handle)
		s.mu.Unlock()
		if err := s.sender.Send(chatID, text); err != nil {
			log.Printf("notify: deliver reminder %s: %v", handle, err)
		}
	})
	s.mu.Unlock()

	return handle, nil
}

// Cancel disarms the reminder with the given handle. Unknown and
// already-fired handles return nil.
func (s *Scheduler) Cancel(handle string) error {
	if handle == "" {
		return nil
	}
	s.mu.Lock()
	timer, ok := s.timers[handle]
	if ok {
		delete(s.timers, handle)
	}
	s.mu.Unlock()
	if ok {
		timer.Stop()
	}
	return nil
}

// Pending returns the number of armed timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop disarms every pending timer, for shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for handle, timer := range s.timers {
		timer.Stop()
		delete(s.timers, handle)
	}
}

func render(title, body string) string {
	if body == "" {
		return "🔔 " + title
	}
	return "🔔 " + title + "\n" + body
}
