package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"news-agent/config"
	"news-agent/internal/model"
	"news-agent/internal/service"
	"news-agent/internal/settings"
)

type fakeIngester struct {
	saved int
	err   error
	calls atomic.Int32
	block chan struct{}
	start chan struct{}
}

func (f *fakeIngester) FetchAll(ctx context.Context) (*service.FetchStats, error) {
	f.calls.Add(1)
	if f.start != nil {
		f.start <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &service.FetchStats{TotalFetched: f.saved, TotalSaved: f.saved}, nil
}

type fakeSkills struct {
	scored    atomic.Int32
	anomalies []model.Alert
	report    *model.DailyReport
	reports   []model.ReportType
	panic     bool
}

func (f *fakeSkills) ScoreImportance(context.Context) (int, error) {
	f.scored.Add(1)
	return 1, nil
}

func (f *fakeSkills) DetectAnomalies(context.Context) ([]model.Alert, error) {
	if f.panic {
		panic("detector exploded")
	}
	return f.anomalies, nil
}

func (f *fakeSkills) GenerateReport(_ context.Context, t model.ReportType) (*model.DailyReport, error) {
	f.reports = append(f.reports, t)
	return f.report, nil
}

type fakeNotify struct {
	mu        sync.Mutex
	important int
	digests   int
	alerts    []model.Alert
	reports   []model.DailyReport
}

func (f *fakeNotify) PushImportant(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.important++
	return 0, nil
}

func (f *fakeNotify) PushDigest(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.digests++
	return 0, nil
}

func (f *fakeNotify) PushAlert(_ context.Context, a model.Alert) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, a)
	return 1
}

func (f *fakeNotify) PushReport(_ context.Context, r model.DailyReport) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
	return 1
}

type fakeCleaner struct{ calls int }

func (f *fakeCleaner) Cleanup(context.Context) (int64, error) {
	f.calls++
	return 3, nil
}

type fakePublisher struct{ alerts []model.Alert }

func (f *fakePublisher) PublishArticles(context.Context, []model.Article) error { return nil }

func (f *fakePublisher) PublishAlert(_ context.Context, a model.Alert) error {
	f.alerts = append(f.alerts, a)
	return errors.New("nobody listening")
}

// 测试中任务不会按时间触发
func quietConfig() config.CronConfig {
	cfg := config.Default().Cron
	cfg.Ingest = "@every 1h"
	cfg.PushImportant = "@every 1h"
	cfg.PushDigest = "@every 1h"
	cfg.AnomalyCheck = "@every 1h"
	cfg.JobTimeout = time.Minute
	return cfg
}

type fixture struct {
	sched     *Scheduler
	ingester  *fakeIngester
	skills    *fakeSkills
	notify    *fakeNotify
	cleaner   *fakeCleaner
	publisher *fakePublisher
	settings  *settings.Map
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ingester:  &fakeIngester{},
		skills:    &fakeSkills{},
		notify:    &fakeNotify{},
		cleaner:   &fakeCleaner{},
		publisher: &fakePublisher{},
		settings:  settings.NewMap(nil),
	}
	sched, err := NewScheduler(quietConfig(), Deps{
		Sources:   f.ingester,
		Skills:    f.skills,
		Notify:    f.notify,
		Retention: f.cleaner,
		Publisher: f.publisher,
		Settings:  f.settings,
	}, nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	f.sched = sched
	return f
}

func TestNewSchedulerRegistersSevenJobs(t *testing.T) {
	f := newFixture(t)
	want := []string{JobIngest, JobPushImportant, JobPushDigest, JobAnomalyCheck, JobMorningReport, JobEveningReport, JobCleanup}
	got := f.sched.Jobs()
	if len(got) != len(want) {
		t.Fatalf("expected %d jobs, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("job %d = %s, want %s", i, got[i], want[i])
		}
	}

	f.sched.Start()
	defer f.sched.Stop(context.Background())
	next := f.sched.NextRuns()
	if len(next) != 7 || next[JobIngest].IsZero() {
		t.Fatalf("next runs should be known after start: %v", next)
	}
}

func TestNewSchedulerRejectsBadSpec(t *testing.T) {
	cfg := quietConfig()
	cfg.Cleanup = "every day at noon"
	if _, err := NewScheduler(cfg, Deps{}, nil); err == nil {
		t.Fatalf("expected error for invalid spec")
	}
}

func TestIngestScoresOnlyWhenSomethingWasSaved(t *testing.T) {
	f := newFixture(t)

	if err := f.sched.RunNow(JobIngest); err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if f.skills.scored.Load() != 0 {
		t.Fatalf("nothing saved should not trigger scoring")
	}

	f.ingester.saved = 2
	_ = f.sched.RunNow(JobIngest)
	if f.skills.scored.Load() != 1 {
		t.Fatalf("new articles should trigger scoring")
	}

	f.ingester.err = errors.New("db down")
	_ = f.sched.RunNow(JobIngest)
	if f.skills.scored.Load() != 1 {
		t.Fatalf("failed ingest should not score")
	}
}

func TestAnomalyCheckPushesAndPublishesNewAlerts(t *testing.T) {
	f := newFixture(t)
	f.skills.anomalies = []model.Alert{{ID: 1, Title: "a"}, {ID: 2, Title: "b"}}

	_ = f.sched.RunNow(JobAnomalyCheck)
	if len(f.notify.alerts) != 2 || len(f.publisher.alerts) != 2 {
		t.Fatalf("each alert should be pushed and published: pushed=%d published=%d", len(f.notify.alerts), len(f.publisher.alerts))
	}
}

func TestReportPushFollowsSetting(t *testing.T) {
	f := newFixture(t)
	f.skills.report = &model.DailyReport{ID: 7, ReportType: model.ReportMorning, Title: "t", Content: "c"}

	_ = f.sched.RunNow(JobMorningReport)
	if len(f.notify.reports) != 0 {
		t.Fatalf("report should not be pushed by default")
	}

	f.settings.Set(model.SettingPushMorningReport, "true")
	_ = f.sched.RunNow(JobMorningReport)
	_ = f.sched.RunNow(JobEveningReport)
	if len(f.notify.reports) != 1 {
		t.Fatalf("only the morning report should be pushed, got %d", len(f.notify.reports))
	}
	if len(f.skills.reports) != 3 || f.skills.reports[2] != model.ReportEvening {
		t.Fatalf("unexpected report calls %v", f.skills.reports)
	}
}

func TestOtherJobs(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{JobPushImportant, JobPushDigest, JobCleanup} {
		if err := f.sched.RunNow(name); err != nil {
			t.Fatalf("RunNow(%s): %v", name, err)
		}
	}
	if f.notify.important != 1 || f.notify.digests != 1 || f.cleaner.calls != 1 {
		t.Fatalf("unexpected calls: important=%d digests=%d cleanup=%d", f.notify.important, f.notify.digests, f.cleaner.calls)
	}
	if err := f.sched.RunNow("nope"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("expected ErrUnknownJob, got %v", err)
	}
}

func TestPanickingJobIsContained(t *testing.T) {
	f := newFixture(t)
	f.skills.panic = true

	if err := f.sched.RunNow(JobAnomalyCheck); err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	// 其他任务不受影响,同一任务下次照常执行
	if err := f.sched.RunNow(JobPushImportant); err != nil || f.notify.important != 1 {
		t.Fatalf("sibling job should still run")
	}
	_ = f.sched.RunNow(JobAnomalyCheck)

	f.skills.panic = false
	f.skills.anomalies = []model.Alert{{ID: 3}}
	for i := 0; i < 3; i++ {
		if err := f.sched.RunNow(JobAnomalyCheck); err != nil {
			t.Fatalf("RunNow: %v", err)
		}
	}
	if len(f.notify.alerts) != 3 {
		t.Fatalf("every run after a panic should execute, pushed %d alerts", len(f.notify.alerts))
	}
}

func TestOverlappingRunIsSkipped(t *testing.T) {
	f := newFixture(t)
	f.ingester.block = make(chan struct{})
	f.ingester.start = make(chan struct{}, 1)

	done := make(chan struct{})
	go func() {
		_ = f.sched.RunNow(JobIngest)
		close(done)
	}()
	<-f.ingester.start

	if err := f.sched.RunNow(JobIngest); err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if got := f.ingester.calls.Load(); got != 1 {
		t.Fatalf("second run should be skipped while the first is active, calls=%d", got)
	}

	close(f.ingester.block)
	<-done
}

func TestStopCancelsRunningJobsAfterDeadline(t *testing.T) {
	f := newFixture(t)
	f.ingester.block = make(chan struct{})
	f.ingester.start = make(chan struct{}, 1)

	go func() { _ = f.sched.RunNow(JobIngest) }()
	<-f.ingester.start

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := f.sched.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if err := f.sched.RunNow(JobIngest); !errors.Is(err, ErrStopped) {
		t.Fatalf("runs after stop should be rejected, got %v", err)
	}
	if _, err := f.sched.Trigger("nope"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("expected ErrUnknownJob, got %v", err)
	}
}
