package service

import (
	"context"
	"strings"
	"testing"

	"news-agent/internal/model"
	"news-agent/internal/settings"
	"news-agent/internal/source"
)

func TestFetchAllSavesOnlyNewURLs(t *testing.T) {
	db := newTestDB(t)
	insertArticle(t, db, model.Article{Title: "old", URL: "https://n/3"})

	src := &fakeSource{name: "feed", items: []model.Candidate{
		{Title: "one", URL: "https://n/1", Source: "feed"},
		{Title: "two", URL: "https://n/2", Source: "feed"},
		{Title: "three", URL: "https://n/3", Source: "feed"},
	}}
	pub := &recordingPublisher{}
	m := NewSourceManager(db, settings.NewMap(nil), []source.Source{src}, pub, nil)

	stats, err := m.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if stats.TotalFetched != 3 || stats.TotalSaved != 2 {
		t.Fatalf("expected fetched=3 saved=2, got %+v", stats)
	}
	if stats.Sources["feed"].Fetched != 3 {
		t.Fatalf("unexpected per-source stats: %+v", stats.Sources)
	}
	if n := countRows(t, db, &model.Article{}, ""); n != 3 {
		t.Fatalf("expected 3 rows, got %d", n)
	}
	if len(pub.articles) != 1 || len(pub.articles[0]) != 2 {
		t.Fatalf("expected one publish of 2 articles, got %v", pub.articles)
	}
	if pub.articles[0][0].ID == 0 {
		t.Fatalf("published articles should carry their ids")
	}

	// 同样的数据再抓一次不会新增
	stats, err = m.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("second FetchAll: %v", err)
	}
	if stats.TotalFetched != 3 || stats.TotalSaved != 0 {
		t.Fatalf("rerun should save nothing, got %+v", stats)
	}
	if n := countRows(t, db, &model.Article{}, ""); n != 3 {
		t.Fatalf("expected 3 rows after rerun, got %d", n)
	}
	if len(pub.articles) != 1 {
		t.Fatalf("nothing new should not be published")
	}
}

func TestFetchAllIsolatesFailingSources(t *testing.T) {
	db := newTestDB(t)

	good := &fakeSource{name: "good", items: []model.Candidate{{Title: "ok", URL: "https://g/1"}}}
	failing := &fakeSource{name: "failing", err: errFake}
	panicking := &fakeSource{name: "panicking", panic: true}
	disabled := &fakeSource{name: "disabled", key: "source_disabled_enabled", items: []model.Candidate{{Title: "x", URL: "https://d/1"}}}

	p := settings.NewMap(map[string]string{"source_disabled_enabled": "false"})
	m := NewSourceManager(db, p, []source.Source{failing, good, panicking, disabled}, nil, nil)

	stats, err := m.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if stats.TotalSaved != 1 || stats.TotalFetched != 1 {
		t.Fatalf("unexpected totals: %+v", stats)
	}
	if got := stats.Sources["failing"].Error; got != errFake.Error() {
		t.Fatalf("failing source error = %q", got)
	}
	if got := stats.Sources["panicking"].Error; !strings.Contains(got, "panic") {
		t.Fatalf("panicking source error = %q", got)
	}
	if _, ok := stats.Sources["disabled"]; ok || disabled.calls != 0 {
		t.Fatalf("disabled source should not run")
	}
}

func TestSaveSkipsInvalidAndBatchDuplicates(t *testing.T) {
	db := newTestDB(t)
	m := NewSourceManager(db, settings.NewMap(nil), nil, nil, nil)

	saved, err := m.Save(context.Background(), []model.Candidate{
		{Title: "", URL: "https://s/1"},
		{Title: "no url"},
		{Title: "a", URL: "https://s/2"},
		{Title: "a again", URL: "https://s/2"},
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(saved) != 1 || saved[0].Title != "a" {
		t.Fatalf("unexpected saved set: %+v", saved)
	}
	if saved[0].Category != "general" || saved[0].Pushed || saved[0].Importance != 0 {
		t.Fatalf("unexpected defaults: %+v", saved[0])
	}
}

func TestFetchAllIgnoresPublishFailure(t *testing.T) {
	db := newTestDB(t)
	src := &fakeSource{name: "feed", items: []model.Candidate{{Title: "a", URL: "https://p/1"}}}
	pub := &recordingPublisher{err: errFake}
	m := NewSourceManager(db, settings.NewMap(nil), []source.Source{src}, pub, nil)

	stats, err := m.FetchAll(context.Background())
	if err != nil || stats.TotalSaved != 1 {
		t.Fatalf("publish failure must not fail the fetch: %+v, %v", stats, err)
	}
}

func TestEnabledDefaultsToOn(t *testing.T) {
	p := settings.NewMap(map[string]string{"k_off": "false", "k_on": "true", "k_upper": "TRUE"})
	m := NewSourceManager(nil, p, []source.Source{
		&fakeSource{name: "missing", key: "k_missing"},
		&fakeSource{name: "off", key: "k_off"},
		&fakeSource{name: "on", key: "k_on"},
		&fakeSource{name: "upper", key: "k_upper"},
		&fakeSource{name: "always"},
	}, nil, nil)

	var names []string
	for _, s := range m.Enabled(context.Background()) {
		names = append(names, s.Name())
	}
	if strings.Join(names, ",") != "missing,on,always" {
		t.Fatalf("unexpected enabled sources: %v", names)
	}
}
