package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"news-agent/config"
	"news-agent/internal/logging"
	"news-agent/internal/model"
	"news-agent/internal/service"
	"news-agent/internal/settings"
)

// 任务名称
const (
	JobIngest        = "ingest"
	JobPushImportant = "push_important"
	JobPushDigest    = "push_digest"
	JobAnomalyCheck  = "anomaly_check"
	JobMorningReport = "morning_report"
	JobEveningReport = "evening_report"
	JobCleanup       = "cleanup"
)

// 截止时间到达后,取消运行中任务再等待的时长
const cancelGrace = 5 * time.Second

var (
	ErrUnknownJob = errors.New("unknown job")
	ErrStopped    = errors.New("scheduler stopped")
)

type Ingester interface {
	FetchAll(ctx context.Context) (*service.FetchStats, error)
}

type Skills interface {
	ScoreImportance(ctx context.Context) (int, error)
	DetectAnomalies(ctx context.Context) ([]model.Alert, error)
	GenerateReport(ctx context.Context, reportType model.ReportType) (*model.DailyReport, error)
}

type Notifications interface {
	PushImportant(ctx context.Context) (int, error)
	PushDigest(ctx context.Context) (int, error)
	PushAlert(ctx context.Context, alert model.Alert) int
	PushReport(ctx context.Context, report model.DailyReport) int
}

type Cleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

// Deps 任务依赖的服务
type Deps struct {
	Sources   Ingester
	Skills    Skills
	Notify    Notifications
	Retention Cleaner
	Publisher service.Publisher
	Settings  settings.Provider
}

type jobFunc func(ctx context.Context, logger *slog.Logger) error

type job struct {
	name  string
	spec  string
	entry cron.EntryID
}

// Scheduler 持有七个固定任务。
// 同一任务上一次未结束时跳过本次触发,任务 panic 被恢复并记录。
type Scheduler struct {
	cron    *cron.Cron
	deps    Deps
	timeout time.Duration
	logger  *slog.Logger
	jobs    []*job
	byName  map[string]*job

	baseCtx context.Context
	cancel  context.CancelFunc

	mu       sync.Mutex
	stopping bool
	manual   sync.WaitGroup
}

var _ service.JobSchedule = (*Scheduler)(nil)

func NewScheduler(cfg config.CronConfig, deps Deps, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	cronLogger := logging.NewCronLogger(logger)
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(cfg.Location()),
			cron.WithLogger(cronLogger),
			// Recover 必须在 SkipIfStillRunning 内层,panic 后运行令牌才会归还
			cron.WithChain(cron.SkipIfStillRunning(cronLogger), cron.Recover(cronLogger)),
		),
		deps:    deps,
		timeout: cfg.JobTimeout,
		logger:  logger,
		byName:  make(map[string]*job),
		baseCtx: ctx,
		cancel:  cancel,
	}

	table := []struct {
		name string
		spec string
		fn   jobFunc
	}{
		{JobIngest, cfg.Ingest, s.ingest},
		{JobPushImportant, cfg.PushImportant, s.pushImportant},
		{JobPushDigest, cfg.PushDigest, s.pushDigest},
		{JobAnomalyCheck, cfg.AnomalyCheck, s.anomalyCheck},
		{JobMorningReport, cfg.MorningReport, s.report(model.ReportMorning, model.SettingPushMorningReport)},
		{JobEveningReport, cfg.EveningReport, s.report(model.ReportEvening, model.SettingPushEveningReport)},
		{JobCleanup, cfg.Cleanup, s.cleanup},
	}
	for _, t := range table {
		id, err := s.cron.AddJob(t.spec, s.wrap(t.name, t.fn))
		if err != nil {
			cancel()
			return nil, fmt.Errorf("schedule %s (%q): %w", t.name, t.spec, err)
		}
		j := &job{name: t.name, spec: t.spec, entry: id}
		s.jobs = append(s.jobs, j)
		s.byName[t.name] = j
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	for _, j := range s.jobs {
		s.logger.Info("job scheduled", "job", j.name, "spec", j.spec)
	}
}

// Jobs 任务名称,按注册顺序
func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.jobs))
	for _, j := range s.jobs {
		names = append(names, j.name)
	}
	return names
}

// NextRuns 每个任务的下次运行时间
func (s *Scheduler) NextRuns() map[string]time.Time {
	out := make(map[string]time.Time, len(s.jobs))
	for _, j := range s.jobs {
		out[j.name] = s.cron.Entry(j.entry).Next
	}
	return out
}

// RunNow 立即同步执行一次任务,与定时触发共用跳过规则
func (s *Scheduler) RunNow(name string) error {
	j, ok := s.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return ErrStopped
	}
	s.manual.Add(1)
	s.mu.Unlock()
	defer s.manual.Done()

	s.cron.Entry(j.entry).WrappedJob.Run()
	return nil
}

// Trigger 后台执行一次任务,返回触发 ID
func (s *Scheduler) Trigger(name string) (string, error) {
	if _, ok := s.byName[name]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	triggerID := uuid.NewString()
	s.logger.Info("manual trigger", "job", name, "trigger_id", triggerID)
	go func() {
		if err := s.RunNow(name); err != nil {
			s.logger.Warn("manual trigger rejected", "job", name, "trigger_id", triggerID, "error", err)
		}
	}()
	return triggerID, nil
}

// Stop 停止新的触发并等待运行中的任务。ctx 到期后取消任务上下文再等待片刻。
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()

	cronDone := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.manual.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
	}

	s.logger.Warn("shutdown deadline reached, cancelling running jobs")
	s.cancel()
	select {
	case <-done:
		return nil
	case <-time.After(cancelGrace):
		return errors.New("jobs still running after cancel")
	}
}

func (s *Scheduler) wrap(name string, fn jobFunc) cron.Job {
	return cron.FuncJob(func() {
		logger := s.logger.With("job", name, "run_id", uuid.NewString())

		ctx := s.baseCtx
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}

		start := time.Now()
		logger.Debug("job started")
		if err := fn(ctx, logger); err != nil {
			logger.Error("job failed", "error", err, "duration", time.Since(start))
			return
		}
		logger.Info("job finished", "duration", time.Since(start))
	})
}

func (s *Scheduler) ingest(ctx context.Context, logger *slog.Logger) error {
	stats, err := s.deps.Sources.FetchAll(ctx)
	if err != nil {
		return err
	}
	logger.Info("fetch stats", "fetched", stats.TotalFetched, "saved", stats.TotalSaved, "sources", len(stats.Sources))
	if stats.TotalSaved == 0 {
		return nil
	}
	scored, err := s.deps.Skills.ScoreImportance(ctx)
	if err != nil {
		return fmt.Errorf("score new articles: %w", err)
	}
	logger.Info("new articles scored", "scored", scored)
	return nil
}

func (s *Scheduler) pushImportant(ctx context.Context, logger *slog.Logger) error {
	n, err := s.deps.Notify.PushImportant(ctx)
	if n > 0 {
		logger.Info("important articles pushed", "count", n)
	}
	return err
}

func (s *Scheduler) pushDigest(ctx context.Context, logger *slog.Logger) error {
	n, err := s.deps.Notify.PushDigest(ctx)
	if n > 0 {
		logger.Info("digest pushed", "count", n)
	}
	return err
}

func (s *Scheduler) anomalyCheck(ctx context.Context, logger *slog.Logger) error {
	alerts, err := s.deps.Skills.DetectAnomalies(ctx)
	for _, alert := range alerts {
		delivered := s.deps.Notify.PushAlert(ctx, alert)
		logger.Info("alert raised", "alert_id", alert.ID, "level", alert.Level, "delivered", delivered)
		if s.deps.Publisher != nil {
			if perr := s.deps.Publisher.PublishAlert(ctx, alert); perr != nil {
				logger.Warn("publish alert failed", "alert_id", alert.ID, "error", perr)
			}
		}
	}
	return err
}

func (s *Scheduler) report(reportType model.ReportType, pushKey string) jobFunc {
	return func(ctx context.Context, logger *slog.Logger) error {
		report, err := s.deps.Skills.GenerateReport(ctx, reportType)
		if err != nil || report == nil {
			return err
		}
		logger.Info("report stored", "report_id", report.ID, "date", report.ReportDate)
		if s.deps.Settings != nil && settings.Bool(ctx, s.deps.Settings, pushKey, false) {
			delivered := s.deps.Notify.PushReport(ctx, *report)
			logger.Info("report pushed", "report_id", report.ID, "delivered", delivered)
		}
		return nil
	}
}

func (s *Scheduler) cleanup(ctx context.Context, logger *slog.Logger) error {
	removed, err := s.deps.Retention.Cleanup(ctx)
	if err != nil {
		return err
	}
	logger.Info("retention sweep done", "removed", removed)
	return nil
}
