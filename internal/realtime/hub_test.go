package realtime

import (
	"context"
	"sync"
	"testing"
	"time"
)

func recv(t *testing.T, sub *Subscription) (int64, bool) {
	t.Helper()
	select {
	case id, ok := <-sub.C():
		return id, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for signal")
		return 0, false
	}
}

func assertEmpty(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case id, ok := <-sub.C():
		if ok {
			t.Fatalf("unexpected signal %d", id)
		}
	default:
	}
}

func TestPublishReachesCurrentSubscribers(t *testing.T) {
	h := NewHub(4, nil)
	a := h.Subscribe(AllProjects)
	b := h.Subscribe(AllProjects)

	if n := h.Publish(1); n != 2 {
		t.Fatalf("delivered = %d, want 2", n)
	}
	for _, sub := range []*Subscription{a, b} {
		if id, _ := recv(t, sub); id != 1 {
			t.Errorf("got %d, want 1", id)
		}
	}
}

func TestNoReplayForLateSubscriber(t *testing.T) {
	h := NewHub(4, nil)
	h.Publish(1)

	late := h.Subscribe(AllProjects)
	assertEmpty(t, late)

	h.Publish(2)
	if id, _ := recv(t, late); id != 2 {
		t.Errorf("got %d, want 2", id)
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	h := NewHub(4, nil)
	sub := h.Subscribe(AllProjects)

	h.Unsubscribe(sub)
	h.Unsubscribe(sub)

	if _, ok := recv(t, sub); ok {
		t.Error("channel should be closed")
	}
	if h.Len() != 0 {
		t.Errorf("Len = %d", h.Len())
	}
	if n := h.Publish(1); n != 0 {
		t.Errorf("delivered = %d after unsubscribe", n)
	}
}

func TestSignalsArriveInPublishOrder(t *testing.T) {
	h := NewHub(64, nil)
	sub := h.Subscribe(AllProjects)

	for i := int64(1); i <= 50; i++ {
		h.Publish(i)
	}
	for i := int64(1); i <= 50; i++ {
		if id, _ := recv(t, sub); id != i {
			t.Fatalf("signal %d arrived as %d", i, id)
		}
	}
}

func TestProjectFilter(t *testing.T) {
	h := NewHub(4, nil)
	only7 := h.Subscribe(7)
	all := h.Subscribe(AllProjects)

	h.Publish(3)
	h.Publish(7)

	if id, _ := recv(t, only7); id != 7 {
		t.Errorf("filtered subscriber got %d", id)
	}
	assertEmpty(t, only7)

	if id, _ := recv(t, all); id != 3 {
		t.Errorf("global subscriber got %d first", id)
	}
	if id, _ := recv(t, all); id != 7 {
		t.Errorf("global subscriber got %d second", id)
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	h := NewHub(1, nil)
	slow := h.Subscribe(AllProjects)
	fast := h.Subscribe(AllProjects)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := int64(1); i <= 10; i++ {
			h.Publish(i)
			<-fast.C()
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}

	// only the first signal fit in the slow buffer
	if id, _ := recv(t, slow); id != 1 {
		t.Errorf("slow subscriber got %d", id)
	}
	assertEmpty(t, slow)
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	h := NewHub(8, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(id int64) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				h.Publish(id)
			}
		}(int64(i))
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				h.Unsubscribe(h.Subscribe(AllProjects))
			}
		}()
	}
	wg.Wait()
	if h.Len() != 0 {
		t.Errorf("Len = %d", h.Len())
	}
}

func TestCloseEndsSubscriptions(t *testing.T) {
	h := NewHub(4, nil)
	sub := h.Subscribe(AllProjects)
	h.Close()

	if _, ok := recv(t, sub); ok {
		t.Error("subscription should be closed")
	}
	after := h.Subscribe(AllProjects)
	if _, ok := recv(t, after); ok {
		t.Error("subscribe after close should yield a closed channel")
	}
	h.BoardChanged(context.Background(), 1)
}
