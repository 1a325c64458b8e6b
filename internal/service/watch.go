package service

import (
	"context"
	"sync"
	"time"

	"pocket-planner/internal/model"
	"pocket-planner/internal/repository"
	"pocket-planner/internal/schedule"
)

// Collection names used for change notifications.
const (
	CollectionTasks      = "tasks"
	CollectionSubtasks   = "subtasks"
	CollectionCountdowns = "countdowns"
)

// Hub broadcasts record-change events to live subscribers. Writers publish
// after persisting; subscribers re-query on each event, so a notification is
// a hint, never a payload.
type Hub struct {
	mu   sync.Mutex
	next int
	subs map[int]hubSub
}

type hubSub struct {
	collection string
	userID     uint
	ch         chan struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]hubSub)}
}

// Publish signals every subscriber watching (collection, userID). The signal
// is dropped when a subscriber's buffer is full: a pending tick already
// guarantees a re-query.
func (h *Hub) Publish(collection string, userID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		if sub.collection != collection || sub.userID != userID {
			continue
		}
		select {
		case sub.ch <- struct{}{}:
		default:
		}
	}
}

func (h *Hub) subscribe(collection string, userID uint) (<-chan struct{}, func()) {
	h.mu.Lock()
	id := h.next
	h.next++
	ch := make(chan struct{}, 1)
	h.subs[id] = hubSub{collection: collection, userID: userID, ch: ch}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

// TaskSnapshot is one delivery of a live "today" view.
type TaskSnapshot struct {
	Date  string
	Tasks []model.Task
}

// WatchService attaches live views over the task store. Subscribing first
// kicks off the recurrence materializer without awaiting it, so newly due
// occurrences surface in a follow-up snapshot as soon as their writes land.
type WatchService struct {
	tasks *repository.TaskRepository
	mat   *Materializer
	hub   *Hub
}

func NewWatchService(tasks *repository.TaskRepository, mat *Materializer, hub *Hub) *WatchService {
	return &WatchService{tasks: tasks, mat: mat, hub: hub}
}

// SubscribeToday delivers snapshots of the user's tasks due today: one
// immediately, then one per change, until ctx is done or the returned stop
// function is called. The first snapshot may race the materializer; the hub
// tick after materialization delivers the corrected view. The day itself is
// recomputed per delivery, so a subscription held across midnight switches to
// the new date on its next tick.
func (w *WatchService) SubscribeToday(ctx context.Context, user *model.User, now time.Time) (<-chan TaskSnapshot, func(), error) {
	if user == nil || user.ID == 0 {
		return nil, nil, ErrNoOwner
	}

	// Fire and forget: attachment must not wait for the catch-up pass.
	go func() {
		mctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = w.mat.EnsureTaskRecurrences(mctx, user, now)
	}()

	events, unsubscribe := w.hub.subscribe(CollectionTasks, user.ID)
	out := make(chan TaskSnapshot, 1)
	started := time.Now()

	stopCtx, stop := context.WithCancel(ctx)
	go func() {
		defer close(out)
		defer unsubscribe()

		deliver := func() bool {
			// The day follows the subscription clock plus elapsed wall
			// time, not the day the subscription was opened on.
			day := schedule.DateOnly(now.Add(time.Since(started)))
			tasks, err := w.tasks.ListByDate(stopCtx, user.ID, day)
			if err != nil {
				return stopCtx.Err() == nil
			}
			select {
			case out <- TaskSnapshot{Date: day, Tasks: tasks}:
				return true
			case <-stopCtx.Done():
				return false
			}
		}

		if !deliver() {
			return
		}
		for {
			select {
			case <-stopCtx.Done():
				return
			case <-events:
				if !deliver() {
					return
				}
			}
		}
	}()

	return out, stop, nil
}
