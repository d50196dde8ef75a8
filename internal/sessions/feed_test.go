package sessions_test

import (
	"testing"

	"github.com/fastertools/ftl-tool-think/internal/sessions"
	"github.com/fastertools/ftl-tool-think/pkg/models"
)

func event(n int) models.FeedEvent {
	return models.FeedEvent{SessionID: "s", Step: models.RenderedStep{Thought: models.Thought{Seq: n}}}
}

func TestFeed_RingBuffer(t *testing.T) {
	f := sessions.NewFeed(3)
	for i := 1; i <= 5; i++ {
		f.Publish(event(i))
	}

	all := f.Recent(0)
	if len(all) != 3 {
		t.Fatalf("Recent(0) len = %d, want 3", len(all))
	}
	for i, want := range []int{3, 4, 5} {
		if all[i].Step.Thought.Seq != want {
			t.Errorf("Recent(0)[%d].Seq = %d, want %d", i, all[i].Step.Thought.Seq, want)
		}
	}

	last := f.Recent(1)
	if len(last) != 1 || last[0].Step.Thought.Seq != 5 {
		t.Errorf("Recent(1) = %+v, want seq 5", last)
	}
}

func TestFeed_SubscribeUnsubscribe(t *testing.T) {
	f := sessions.NewFeed(10)
	ch := f.Subscribe()
	if f.Subscribers() != 1 {
		t.Fatalf("Subscribers() = %d, want 1", f.Subscribers())
	}

	f.Publish(event(1))
	if got := <-ch; got.Step.Thought.Seq != 1 {
		t.Errorf("received seq %d, want 1", got.Step.Thought.Seq)
	}

	f.Unsubscribe(ch)
	f.Unsubscribe(ch) // second call is a no-op
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Unsubscribe")
	}
	if f.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d, want 0", f.Subscribers())
	}
}

func TestFeed_SlowSubscriberDoesNotBlock(t *testing.T) {
	f := sessions.NewFeed(100)
	ch := f.Subscribe()
	defer f.Unsubscribe(ch)

	for i := 0; i < 100; i++ {
		f.Publish(event(i))
	}
	if got := len(f.Recent(0)); got != 100 {
		t.Errorf("Recent(0) len = %d, want 100", got)
	}
}

func TestFeed_Close(t *testing.T) {
	f := sessions.NewFeed(5)
	ch := f.Subscribe()
	f.Close()

	if _, ok := <-ch; ok {
		t.Error("subscriber should be closed by Close")
	}
	f.Publish(event(1))
	if got := len(f.Recent(0)); got != 0 {
		t.Errorf("publish after Close stored %d events", got)
	}
	late := f.Subscribe()
	if _, ok := <-late; ok {
		t.Error("Subscribe after Close should return a closed channel")
	}
}

func TestFeed_SubscribeRecentDoesNotRepeatHistory(t *testing.T) {
	f := sessions.NewFeed(10)
	f.Publish(event(1))
	f.Publish(event(2))

	history, ch := f.SubscribeRecent(0)
	defer f.Unsubscribe(ch)
	if len(history) != 2 || history[1].Step.Thought.Seq != 2 {
		t.Fatalf("history = %+v, want seqs 1 and 2", history)
	}
	if len(ch) != 0 {
		t.Fatalf("channel holds %d events already in history", len(ch))
	}

	f.Publish(event(3))
	if got := <-ch; got.Step.Thought.Seq != 3 {
		t.Errorf("received seq %d, want 3", got.Step.Thought.Seq)
	}
	if len(ch) != 0 {
		t.Errorf("channel holds %d extra events", len(ch))
	}
}

func TestFeed_SubscribeRecentLimits(t *testing.T) {
	f := sessions.NewFeed(10)
	for i := 1; i <= 4; i++ {
		f.Publish(event(i))
	}

	last, ch := f.SubscribeRecent(1)
	f.Unsubscribe(ch)
	if len(last) != 1 || last[0].Step.Thought.Seq != 4 {
		t.Errorf("SubscribeRecent(1) history = %+v, want seq 4", last)
	}

	none, ch := f.SubscribeRecent(-1)
	f.Unsubscribe(ch)
	if len(none) != 0 {
		t.Errorf("SubscribeRecent(-1) history len = %d, want 0", len(none))
	}

	f.Close()
	history, closed := f.SubscribeRecent(0)
	if _, ok := <-closed; ok {
		t.Error("SubscribeRecent after Close should return a closed channel")
	}
	if len(history) != 4 {
		t.Errorf("history after Close len = %d, want 4", len(history))
	}
}
