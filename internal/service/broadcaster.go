package service

import (
	"context"
	"log/slog"
	"sync"

	"news-agent/internal/logging"
	"news-agent/internal/model"
)

// 推送给实时订阅者的事件类型
const (
	EventNewArticle = "new_article"
	EventNewAlert   = "new_alert"
)

const defaultSubscriberBuffer = 64

// Event 实时推送的一条消息
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Publisher receives newly persisted items for live delivery.
// Implementations must not block; a returned error is logged and ignored.
type Publisher interface {
	PublishArticles(ctx context.Context, articles []model.Article) error
	PublishAlert(ctx context.Context, alert model.Alert) error
}

// Broadcaster fans events out to in-process subscribers such as SSE streams.
// A subscriber that cannot keep up loses events instead of stalling publishers.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	buffer int
	logger *slog.Logger
}

var _ Publisher = (*Broadcaster)(nil)

func NewBroadcaster(buffer int, logger *slog.Logger) *Broadcaster {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Broadcaster{
		subs:   make(map[chan Event]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe 注册订阅者,返回事件通道和取消函数
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	total := len(b.subs)
	b.mu.Unlock()
	b.logger.Info("live subscriber connected", "total", total)

	var once sync.Once
	return ch, func() {
		once.Do(func() { b.unsubscribe(ch) })
	}
}

func (b *Broadcaster) unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.subs, ch)
	total := len(b.subs)
	close(ch)
	b.mu.Unlock()
	b.logger.Info("live subscriber disconnected", "total", total)
}

// Subscribers 当前订阅者数量
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish 非阻塞投递,订阅者缓冲区满时丢弃
func (b *Broadcaster) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Debug("live subscriber too slow, event dropped", "type", ev.Type)
		}
	}
}

func (b *Broadcaster) PublishArticles(_ context.Context, articles []model.Article) error {
	for _, a := range articles {
		b.Publish(Event{Type: EventNewArticle, Data: a})
	}
	return nil
}

func (b *Broadcaster) PublishAlert(_ context.Context, alert model.Alert) error {
	b.Publish(Event{Type: EventNewAlert, Data: alert})
	return nil
}
