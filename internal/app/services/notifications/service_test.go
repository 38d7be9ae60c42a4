package notifications

import (
	"context"
	"testing"

	"github.com/letsbefriends/platform/internal/app/domain/notification"
	"github.com/letsbefriends/platform/internal/app/realtime"
	"github.com/letsbefriends/platform/internal/app/storage/memory"
	apperrors "github.com/letsbefriends/platform/internal/errors"
)

func TestNotifySkipsSelf(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	sent, err := svc.Notify(ctx, notification.Notification{UserID: "u1", ActorID: "u1", Type: notification.TypeLike})
	if err != nil || sent {
		t.Fatalf("self notification: sent=%v err=%v", sent, err)
	}
	sent, err = svc.Notify(ctx, notification.Notification{UserID: "u1", ActorID: "u2", Type: notification.TypeLike, Message: "liked your post"})
	if err != nil || !sent {
		t.Fatalf("notify: sent=%v err=%v", sent, err)
	}
	count, _ := svc.UnreadCount(ctx, "u1")
	if count != 1 {
		t.Fatalf("unread = %d, want 1", count)
	}
}

func TestNotifyPushesToHub(t *testing.T) {
	hub := realtime.NewHub(4, nil)
	sub := hub.Subscribe("u1")
	defer sub.Close()
	svc := New(memory.New(), nil)
	svc.SetPublisher(hub)
	ctx := context.Background()

	if _, err := svc.Notify(ctx, notification.Notification{UserID: "u1", ActorID: "u1", Type: notification.TypeLike}); err != nil {
		t.Fatalf("self notify: %v", err)
	}
	if len(sub.Events()) != 0 {
		t.Fatal("skipped notification must not be pushed")
	}

	if _, err := svc.Notify(ctx, notification.Notification{UserID: "u1", ActorID: "u2", Type: notification.TypeFollow}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	ev := <-sub.Events()
	n, ok := ev.Payload.(notification.Notification)
	if ev.Type != realtime.EventNotification || !ok || n.ID == "" || n.Type != notification.TypeFollow {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestNotifyValidation(t *testing.T) {
	svc := New(memory.New(), nil)
	if _, err := svc.Notify(context.Background(), notification.Notification{Type: notification.TypeLike}); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNotifyManyDedupesAndSkipsActor(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	sent, err := svc.NotifyMany(ctx, []string{"a", "b", "a", "author"}, notification.Notification{
		ActorID: "author", Type: notification.TypeNewPost, EntityID: "p1",
	})
	if err != nil {
		t.Fatalf("notify many: %v", err)
	}
	if sent != 2 {
		t.Fatalf("sent = %d, want 2", sent)
	}
	list, _ := svc.List(ctx, "a", false, 0)
	if len(list) != 1 || list[0].EntityID != "p1" {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestMarkRead(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Notify(ctx, notification.Notification{UserID: "u1", ActorID: "u2", Type: notification.TypeFollow}); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}
	list, _ := svc.List(ctx, "u1", true, 10)
	if len(list) != 3 {
		t.Fatalf("unread list = %d", len(list))
	}

	if err := svc.MarkRead(ctx, "u2", list[0].ID); !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := svc.MarkRead(ctx, "u1", list[0].ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if count, _ := svc.UnreadCount(ctx, "u1"); count != 2 {
		t.Fatalf("unread = %d, want 2", count)
	}

	marked, err := svc.MarkAllRead(ctx, "u1")
	if err != nil || marked != 2 {
		t.Fatalf("mark all: marked=%d err=%v", marked, err)
	}
	if unread, _ := svc.List(ctx, "u1", true, 10); len(unread) != 0 {
		t.Fatalf("expected no unread, got %d", len(unread))
	}
}

func TestClampLimit(t *testing.T) {
	cases := map[int]int{0: 20, -1: 20, 5: 5, 100: 100, 500: 100}
	for in, want := range cases {
		if got := clampLimit(in); got != want {
			t.Errorf("clampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
