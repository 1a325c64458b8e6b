package service

import (
	"context"
	"testing"
	"time"
)

func TestSubscribeTodayDeliversChanges(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hub := NewHub()
	f.mat.hub = hub
	watch := NewWatchService(f.tasks, f.mat, hub)
	taskSvc := NewTaskService(f.tasks, f.subtasks, f.notifier, hub)

	snapshots, stop, err := watch.SubscribeToday(ctx, f.user, tuesday)
	if err != nil {
		t.Fatal(err)
	}
	defer stop()

	// The first snapshot arrives without waiting for any write.
	select {
	case <-snapshots:
	case <-ctx.Done():
		t.Fatal("no initial snapshot")
	}

	if _, err := taskSvc.CreateTask(ctx, f.user, TaskInput{
		Title: "Pick up parcel",
		Date:  "2024-03-12",
	}); err != nil {
		t.Fatal(err)
	}

	// A follow-up snapshot eventually reflects the write. Intervening
	// snapshots from the fire-and-forget catch-up pass are fine.
	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				t.Fatal("snapshot stream closed early")
			}
			for _, task := range snap.Tasks {
				if task.Title == "Pick up parcel" {
					return
				}
			}
		case <-ctx.Done():
			t.Fatal("created task never surfaced in a snapshot")
		}
	}
}

func TestSubscribeTodayTracksDayRollover(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hub := NewHub()
	f.mat.hub = hub
	watch := NewWatchService(f.tasks, f.mat, hub)
	taskSvc := NewTaskService(f.tasks, f.subtasks, f.notifier, hub)

	if _, err := taskSvc.CreateTask(ctx, f.user, TaskInput{
		Title: "Water plants",
		Date:  "2024-03-13",
	}); err != nil {
		t.Fatal(err)
	}

	// Subscribe just before midnight; once the clock crosses it, snapshots
	// must switch to Wednesday instead of querying Tuesday forever.
	nearMidnight := time.Date(2024, time.March, 12, 23, 59, 59, 900_000_000, time.Local)
	snapshots, stop, err := watch.SubscribeToday(ctx, f.user, nearMidnight)
	if err != nil {
		t.Fatal(err)
	}
	defer stop()

	time.Sleep(300 * time.Millisecond)
	hub.Publish(CollectionTasks, f.user.ID)

	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				t.Fatal("snapshot stream closed early")
			}
			if snap.Date != "2024-03-13" {
				continue
			}
			for _, task := range snap.Tasks {
				if task.Title == "Water plants" {
					return
				}
			}
			t.Fatalf("Wednesday snapshot is missing the task: %+v", snap.Tasks)
		case <-ctx.Done():
			t.Fatal("snapshots never rolled over to the next day")
		}
	}
}

func TestSubscribeTodayRequiresOwner(t *testing.T) {
	f := newFixture(t)
	hub := NewHub()
	watch := NewWatchService(f.tasks, f.mat, hub)

	if _, _, err := watch.SubscribeToday(context.Background(), nil, tuesday); err == nil {
		t.Error("nil user should fail fast")
	}
}

func TestHubPublishDoesNotBlock(t *testing.T) {
	hub := NewHub()
	ch, unsubscribe := hub.subscribe(CollectionTasks, 1)
	defer unsubscribe()

	// Nobody is draining; repeated publishes must not deadlock.
	for i := 0; i < 10; i++ {
		hub.Publish(CollectionTasks, 1)
	}
	select {
	case <-ch:
	default:
		t.Error("expected a pending tick")
	}

	// Other scopes are not signalled.
	hub.Publish(CollectionCountdowns, 1)
	hub.Publish(CollectionTasks, 2)
	select {
	case <-ch:
		t.Error("tick delivered for a foreign scope")
	default:
	}
}
