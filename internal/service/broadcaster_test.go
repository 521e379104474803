package service

import (
	"context"
	"testing"

	"news-agent/internal/model"
)

func TestBroadcasterDeliversToSubscribers(t *testing.T) {
	b := NewBroadcaster(4, nil)
	first, cancelFirst := b.Subscribe()
	second, cancelSecond := b.Subscribe()
	defer cancelSecond()

	if b.Subscribers() != 2 {
		t.Fatalf("expected 2 subscribers")
	}

	_ = b.PublishArticles(context.Background(), []model.Article{{Title: "a"}, {Title: "b"}})
	_ = b.PublishAlert(context.Background(), model.Alert{Title: "alert"})

	for _, ch := range []<-chan Event{first, second} {
		for _, want := range []string{EventNewArticle, EventNewArticle, EventNewAlert} {
			ev := <-ch
			if ev.Type != want {
				t.Fatalf("got event %s, want %s", ev.Type, want)
			}
		}
	}

	cancelFirst()
	cancelFirst()
	if _, open := <-first; open {
		t.Fatalf("channel should be closed after cancel")
	}
	if b.Subscribers() != 1 {
		t.Fatalf("expected 1 subscriber after cancel")
	}
}

func TestBroadcasterDropsForSlowSubscriber(t *testing.T) {
	b := NewBroadcaster(1, nil)
	ch, cancel := b.Subscribe()
	defer cancel()

	for range 5 {
		b.Publish(Event{Type: EventNewArticle})
	}
	if len(ch) != 1 {
		t.Fatalf("buffer should hold exactly one event, got %d", len(ch))
	}
}
