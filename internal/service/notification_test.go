package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"news-agent/internal/model"
	"news-agent/internal/settings"
)

func TestPushImportantMarksPushedWhenEveryChannelFails(t *testing.T) {
	db := newTestDB(t)
	a5 := insertArticle(t, db, model.Article{Title: "大事", URL: "https://p/5", Importance: 5, Summary: "摘要"})
	a3 := insertArticle(t, db, model.Article{Title: "中事", URL: "https://p/3", Importance: 3})
	a2 := insertArticle(t, db, model.Article{Title: "小事", URL: "https://p/2", Importance: 2})

	tg := &fakeNotifier{name: "Telegram", ok: false}
	qq := &fakeNotifier{name: "QQ", panic: true}
	wx := &fakeNotifier{name: "WeChat", ok: false}
	svc := NewNotificationService(db, settings.NewMap(nil), staticChannels(tg, qq, wx), nil)

	n, err := svc.PushImportant(context.Background())
	if err != nil {
		t.Fatalf("PushImportant: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 articles pushed, got %d", n)
	}
	if len(tg.sent) != 2 || len(wx.sent) != 2 {
		t.Fatalf("every healthy channel should be tried for every article: tg=%d wx=%d", len(tg.sent), len(wx.sent))
	}
	if tg.sent[0] != "🚨 大事" || tg.sent[1] != "📢 中事" {
		t.Fatalf("unexpected titles %v", tg.sent)
	}

	for _, id := range []uint{a5.ID, a3.ID} {
		if c := countRows(t, db, &model.Article{}, "id = ? AND pushed = ?", id, true); c != 1 {
			t.Fatalf("article %d should be marked pushed", id)
		}
	}
	if c := countRows(t, db, &model.Article{}, "id = ? AND pushed = ?", a2.ID, false); c != 1 {
		t.Fatalf("low importance article should stay unpushed")
	}

	n, err = svc.PushImportant(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("already pushed articles must not be sent again, got %d, %v", n, err)
	}
}

func TestPushImportantGates(t *testing.T) {
	db := newTestDB(t)
	insertArticle(t, db, model.Article{Title: "大事", URL: "https://g/5", Importance: 5})
	ctx := context.Background()

	none := NewNotificationService(db, settings.NewMap(nil), staticChannels(), nil)
	if n, err := none.PushImportant(ctx); err != nil || n != 0 {
		t.Fatalf("no channels should push nothing, got %d, %v", n, err)
	}

	ch := &fakeNotifier{name: "QQ", ok: true}
	p := settings.NewMap(map[string]string{model.SettingPushImportant: "false"})
	off := NewNotificationService(db, p, staticChannels(ch), nil)
	if n, _ := off.PushImportant(ctx); n != 0 || len(ch.sent) != 0 {
		t.Fatalf("immediate push disabled should send nothing")
	}

	if c := countRows(t, db, &model.Article{}, "pushed = ?", false); c != 1 {
		t.Fatalf("article should still be unpushed")
	}

	p.Set(model.SettingPushImportant, "true")
	if n, _ := off.PushImportant(ctx); n != 1 || len(ch.sent) != 1 {
		t.Fatalf("re-enabled setting should apply on next call")
	}
}

func TestPushDigest(t *testing.T) {
	db := newTestDB(t)
	insertArticle(t, db, model.Article{Title: "重要", URL: "https://d/1", Importance: 4})
	insertArticle(t, db, model.Article{Title: "普通", URL: "https://d/2", Importance: 1})
	old := insertArticle(t, db, model.Article{Title: "过期", URL: "https://d/3", FetchedAt: time.Now().UTC().Add(-2 * time.Hour)})

	a := &fakeNotifier{name: "A", ok: true}
	b := &fakeNotifier{name: "B", ok: false}
	svc := NewNotificationService(db, settings.NewMap(nil), staticChannels(a, b), nil)

	n, err := svc.PushDigest(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("expected 2 articles in digest, got %d, %v", n, err)
	}
	if len(a.markdowns) != 1 || len(b.markdowns) != 1 {
		t.Fatalf("one digest per channel expected")
	}
	want := "新闻摘要\n📰 *新闻摘要* (2 条)\n\n🔴 重要\n🔵 普通"
	if a.markdowns[0] != want {
		t.Fatalf("digest = %q, want %q", a.markdowns[0], want)
	}
	if c := countRows(t, db, &model.Article{}, "pushed = ?", true); c != 2 {
		t.Fatalf("digest articles should be marked pushed, got %d", c)
	}
	if c := countRows(t, db, &model.Article{}, "id = ? AND pushed = ?", old.ID, false); c != 1 {
		t.Fatalf("articles outside the window stay unpushed")
	}

	if n, _ := svc.PushDigest(context.Background()); n != 0 || len(a.markdowns) != 1 {
		t.Fatalf("empty digest should not be sent")
	}
}

func TestPushAlertAndReport(t *testing.T) {
	ok := &fakeNotifier{name: "ok", ok: true}
	bad := &fakeNotifier{name: "bad", panic: true}
	svc := NewNotificationService(nil, settings.NewMap(nil), staticChannels(bad, ok), nil)
	ctx := context.Background()

	alert := model.Alert{Level: model.AlertCritical, Title: "暴跌", Description: "d"}
	if got := svc.PushAlert(ctx, alert); got != 1 {
		t.Fatalf("expected 1 delivery, got %d", got)
	}
	// 预警推送不做去重
	svc.PushAlert(ctx, alert)
	if len(ok.sent) != 2 || ok.sent[0] != "🚨 预警: 暴跌" {
		t.Fatalf("unexpected alert pushes %v", ok.sent)
	}

	report := model.DailyReport{Title: "2025-06-02 早间市场日报", Content: "## 市场概览"}
	if got := svc.PushReport(ctx, report); got != 1 {
		t.Fatalf("expected 1 report delivery, got %d", got)
	}
	if !strings.HasPrefix(ok.markdowns[0], "2025-06-02 早间市场日报\n") {
		t.Fatalf("unexpected report push %q", ok.markdowns[0])
	}
}

func TestEmoji(t *testing.T) {
	if importanceEmoji(4) != "⚠️" || importanceEmoji(1) != "📰" {
		t.Fatalf("unexpected importance emoji")
	}
	if alertEmoji(model.AlertLow) != "ℹ️" || alertEmoji(model.AlertMedium) != "📢" {
		t.Fatalf("unexpected alert emoji")
	}
}
