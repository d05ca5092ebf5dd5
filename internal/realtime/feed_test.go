package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func TestRedisFeedDeliversAfterSubscribe(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	feed := NewRedisFeed(client, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := feed.Subscribe(ctx, TableNegotiations, "org-1")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Close()

	other, err := NewEvent(Insert, TableNegotiations, "org-2", "n-2", nil)
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	if err := feed.Publish(ctx, other); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	ev, err := NewEvent(Update, TableNegotiations, "org-1", "n-1", map[string]string{"status": "resolved"})
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	if err := feed.Publish(ctx, ev); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-sub.Events():
		if got.ID != "n-1" || got.Type != Update || got.OrganizationID != "org-1" {
			t.Fatalf("unexpected event: %+v", got)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestSelectionNotifiesListeners(t *testing.T) {
	sel := NewSelection()
	var got []string
	stop := sel.Listen(func(org string) { got = append(got, org) })

	sel.Set("org-a")
	sel.Set("org-a")
	sel.Set("org-b")
	stop()
	sel.Set("org-c")

	if len(got) != 2 || got[0] != "org-a" || got[1] != "org-b" {
		t.Fatalf("listener saw %v", got)
	}
	if sel.Current() != "org-c" {
		t.Fatalf("Current() = %q", sel.Current())
	}
}
