package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"news-agent/internal/database"
	"news-agent/internal/model"
	"news-agent/internal/notifier"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func insertArticle(t *testing.T, db *gorm.DB, a model.Article) model.Article {
	t.Helper()
	if a.Source == "" {
		a.Source = "test"
	}
	if a.FetchedAt.IsZero() {
		a.FetchedAt = time.Now().UTC()
	}
	if err := db.Create(&a).Error; err != nil {
		t.Fatalf("insert article: %v", err)
	}
	return a
}

func countRows(t *testing.T, db *gorm.DB, m any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	q := db.Model(m)
	if where != "" {
		q = q.Where(where, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

type fakeSource struct {
	name  string
	key   string
	items []model.Candidate
	err   error
	panic bool
	calls int
}

func (f *fakeSource) Name() string       { return f.name }
func (f *fakeSource) EnabledKey() string { return f.key }

func (f *fakeSource) Fetch(context.Context) ([]model.Candidate, error) {
	f.calls++
	if f.panic {
		panic("boom")
	}
	return f.items, f.err
}

type recordingPublisher struct {
	mu       sync.Mutex
	articles [][]model.Article
	alerts   []model.Alert
	err      error
}

func (p *recordingPublisher) PublishArticles(_ context.Context, articles []model.Article) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.articles = append(p.articles, articles)
	return p.err
}

func (p *recordingPublisher) PublishAlert(_ context.Context, alert model.Alert) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, alert)
	return p.err
}

// fakeAI answers ChatJSON with jsonFn and Chat with text.
type fakeAI struct {
	mu        sync.Mutex
	jsonFn    func(req ChatRequest) (map[string]any, bool)
	text      string
	chatCalls int
	jsonCalls int
}

func (f *fakeAI) Chat(_ context.Context, _ ChatRequest) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatCalls++
	return f.text, f.text != ""
}

func (f *fakeAI) ChatJSON(_ context.Context, req ChatRequest) (map[string]any, bool) {
	f.mu.Lock()
	f.jsonCalls++
	fn := f.jsonFn
	f.mu.Unlock()
	if fn == nil {
		return nil, false
	}
	return fn(req)
}

type fakeNotifier struct {
	name      string
	ok        bool
	panic     bool
	mu        sync.Mutex
	sent      []string
	markdowns []string
}

var _ notifier.Notifier = (*fakeNotifier)(nil)

func (f *fakeNotifier) Name() string { return f.name }

func (f *fakeNotifier) Send(_ context.Context, title, _, _ string) bool {
	if f.panic {
		panic("channel exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, title)
	return f.ok
}

func (f *fakeNotifier) SendMarkdown(_ context.Context, title, body string) bool {
	if f.panic {
		panic("channel exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markdowns = append(f.markdowns, title+"\n"+body)
	return f.ok
}

func staticChannels(channels ...notifier.Notifier) ChannelResolver {
	return ChannelResolverFunc(func(context.Context) []notifier.Notifier { return channels })
}

var errFake = errors.New("fake failure")
