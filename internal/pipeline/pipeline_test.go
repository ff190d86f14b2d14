package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain/domaintest"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/feed"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOrchestratorRegister(t *testing.T) {
	o := NewOrchestrator(domaintest.NewLocks(), time.Minute, discardLogger())
	noop := func(context.Context) error { return nil }

	tests := []struct {
		name    string
		job     Job
		wantErr bool
	}{
		{"six fields", Job{Name: "a", Schedule: "0 */5 * * * *", Run: noop}, false},
		{"descriptor", Job{Name: "b", Schedule: "@hourly", Run: noop}, false},
		{"manual only", Job{Name: "c", Run: noop}, false},
		{"five fields", Job{Name: "d", Schedule: "*/5 * * * *", Run: noop}, true},
		{"garbage", Job{Name: "e", Schedule: "every tuesday", Run: noop}, true},
		{"duplicate", Job{Name: "a", Run: noop}, true},
		{"no func", Job{Name: "f"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := o.Register(tt.job)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Register err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, o.Jobs()); diff != "" {
		t.Errorf("jobs (-want +got):\n%s", diff)
	}
}

func TestOrchestratorRunJobLocked(t *testing.T) {
	locks := domaintest.NewLocks()
	o := NewOrchestrator(locks, time.Minute, discardLogger())
	runs := 0
	if err := o.Register(Job{Name: JobIngest, Run: func(context.Context) error { runs++; return nil }}); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := o.RunJob(ctx, JobIngest); err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	// The lock is released after a run.
	if err := o.RunJob(ctx, JobIngest); err != nil {
		t.Fatalf("second RunJob: %v", err)
	}

	locks.Hold("job:" + JobIngest)
	if err := o.RunJob(ctx, JobIngest); !errors.Is(err, domain.ErrLockHeld) {
		t.Fatalf("held lock: err = %v, want ErrLockHeld", err)
	}
	if runs != 2 {
		t.Errorf("runs = %d, want 2", runs)
	}
	if err := o.RunJob(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown job: err = %v", err)
	}
}

func TestOrchestratorTrigger(t *testing.T) {
	o := NewOrchestrator(domaintest.NewLocks(), time.Minute, discardLogger())
	done := make(chan struct{})
	if err := o.Register(Job{Name: JobArchive, Run: func(context.Context) error {
		close(done)
		return nil
	}}); err != nil {
		t.Fatal(err)
	}
	if err := o.Trigger("nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown trigger: err = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- o.Run(ctx) }()

	if err := o.Trigger(JobArchive); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("triggered job did not run")
	}

	cancel()
	select {
	case err := <-stopped:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

type stubFetcher struct {
	res feed.Result
	err error
}

func (f stubFetcher) FetchAll(context.Context) (feed.Result, error) { return f.res, f.err }

func TestIngesterRun(t *testing.T) {
	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	items := []domain.NewsItem{
		{FeedURL: "https://news.example/rss", GUID: "1", Title: "Eskom update", PublishedAt: now},
		{FeedURL: "https://news.example/rss", GUID: "2", Title: "Rand slips", PublishedAt: now},
	}

	t.Run("stores items", func(t *testing.T) {
		news := &domaintest.News{}
		ing := NewIngester(stubFetcher{res: feed.Result{Items: items, Feeds: 2, Failed: 1}}, news, discardLogger())
		if err := ing.Run(context.Background()); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if len(news.Items) != 2 {
			t.Errorf("stored %d items, want 2", len(news.Items))
		}
		// A second pass over the same feed adds nothing.
		if err := ing.Run(context.Background()); err != nil {
			t.Fatalf("second Run: %v", err)
		}
		if len(news.Items) != 2 {
			t.Errorf("stored %d items after rerun, want 2", len(news.Items))
		}
	})

	t.Run("all feeds failed", func(t *testing.T) {
		ing := NewIngester(stubFetcher{res: feed.Result{Feeds: 3, Failed: 3}}, &domaintest.News{}, discardLogger())
		if err := ing.Run(context.Background()); err == nil {
			t.Fatal("expected error when every feed fails")
		}
	})
}

type stubArchiver struct {
	newsBefore, snapsBefore time.Time
	err                     error
}

func (a *stubArchiver) ArchiveNews(_ context.Context, before time.Time) (int64, error) {
	a.newsBefore = before
	return 3, a.err
}

func (a *stubArchiver) ArchiveSnapshots(_ context.Context, before time.Time) (int64, error) {
	a.snapsBefore = before
	return 5, nil
}

func TestArchiverRun(t *testing.T) {
	stub := &stubArchiver{}
	a := NewArchiver(stub, 30, discardLogger())
	a.now = func() time.Time { return time.Date(2026, 3, 31, 3, 0, 0, 0, time.UTC) }

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	if !stub.newsBefore.Equal(want) || !stub.snapsBefore.Equal(want) {
		t.Errorf("cutoffs = %v / %v, want %v", stub.newsBefore, stub.snapsBefore, want)
	}

	stub.err = errors.New("s3 down")
	if err := a.Run(context.Background()); err == nil {
		t.Error("expected archive error")
	}
}

type recordingReports struct {
	mu    sync.Mutex
	calls []string
	weeks []time.Time
	fail  map[string]error
}

func (r *recordingReports) Generate(_ context.Context, tenant domain.Tenant, kind domain.ReportKind, weekOf time.Time) (domain.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := tenant.Slug + "/" + string(kind)
	r.calls = append(r.calls, key)
	r.weeks = append(r.weeks, weekOf)
	if err := r.fail[key]; err != nil {
		return domain.Report{}, err
	}
	return domain.Report{ID: key}, nil
}

type recordingAttention struct {
	tenants []string
	err     error
}

func (a *recordingAttention) Run(_ context.Context, tenant domain.Tenant) ([]domain.AttentionEstimate, error) {
	a.tenants = append(a.tenants, tenant.Slug)
	return nil, a.err
}

type stubSyncer struct{ calls int }

func (s *stubSyncer) SyncChain(context.Context) (service.SyncResult, error) {
	s.calls++
	return service.SyncResult{Synced: 1}, nil
}

func jobByName(t *testing.T, jobs []Job, name string) Job {
	t.Helper()
	for _, j := range jobs {
		if j.Name == name {
			return j
		}
	}
	t.Fatalf("job %s not built", name)
	return Job{}
}

func TestStandardJobs(t *testing.T) {
	tenants := []domain.Tenant{
		{Slug: "augurion", ReportKinds: []domain.ReportKind{domain.ReportTraderPulse, domain.ReportExecutiveBrief}},
		{Slug: "pulse", ReportKinds: []domain.ReportKind{domain.ReportTraderPulse}},
		// No kinds configured means every kind, as in manual generation.
		{Slug: "sport"},
	}
	reports := &recordingReports{fail: map[string]error{
		"augurion/executive_brief": domain.ErrInvalidTransition,
	}}
	attention := &recordingAttention{}
	syncer := &stubSyncer{}
	deps := Deps{
		Markets:   syncer,
		Reports:   reports,
		Attention: attention,
		Tenants:   tenants,
		Logger:    discardLogger(),
		// Wednesday; the last completed week started on Monday 23 Feb.
		Now: func() time.Time { return time.Date(2026, 3, 4, 6, 0, 0, 0, time.UTC) },
	}

	jobs := StandardJobs(deps, Schedules{Reports: "0 0 6 * * MON"})
	var names []string
	for _, j := range jobs {
		names = append(names, j.Name)
	}
	if diff := cmp.Diff([]string{JobChainSync, JobReports, JobAttention}, names); diff != "" {
		t.Fatalf("jobs (-want +got):\n%s", diff)
	}
	ctx := context.Background()

	if err := jobByName(t, jobs, JobReports).Run(ctx); err != nil {
		t.Fatalf("reports job: %v", err)
	}
	wantCalls := []string{
		"augurion/trader_pulse", "augurion/executive_brief", "pulse/trader_pulse",
		"sport/trader_pulse", "sport/executive_brief",
	}
	if diff := cmp.Diff(wantCalls, reports.calls); diff != "" {
		t.Errorf("generate calls (-want +got):\n%s", diff)
	}
	wantWeek := time.Date(2026, 2, 23, 0, 0, 0, 0, time.UTC)
	for _, w := range reports.weeks {
		if !w.Equal(wantWeek) {
			t.Errorf("week = %v, want %v", w, wantWeek)
		}
	}

	reports.fail["pulse/trader_pulse"] = errors.New("db gone")
	if err := jobByName(t, jobs, JobReports).Run(ctx); err == nil {
		t.Error("expected report failure to surface")
	}

	if err := jobByName(t, jobs, JobAttention).Run(ctx); err != nil {
		t.Fatalf("attention job: %v", err)
	}
	if diff := cmp.Diff([]string{"augurion", "pulse", "sport"}, attention.tenants); diff != "" {
		t.Errorf("attention tenants (-want +got):\n%s", diff)
	}

	attention.tenants = nil
	attention.err = domain.ErrLLMUnavailable
	if err := jobByName(t, jobs, JobAttention).Run(ctx); err != nil {
		t.Errorf("attention without llm: err = %v, want nil", err)
	}
	if len(attention.tenants) != 1 {
		t.Errorf("attention kept going after ErrLLMUnavailable: %v", attention.tenants)
	}

	if err := jobByName(t, jobs, JobChainSync).Run(ctx); err != nil || syncer.calls != 1 {
		t.Errorf("chain sync job: err = %v, calls = %d", err, syncer.calls)
	}
}
