package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Refresher is anything with a Refresh method, typically a *Feed.
type Refresher interface {
	Name() string
	Refresh(ctx context.Context) error
}

// Scheduler refreshes feeds on cron schedules.
type Scheduler struct {
	cron    *cron.Cron
	log     *slog.Logger
	timeout time.Duration

	mu   sync.Mutex
	jobs []Refresher
	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

// NewScheduler returns a Scheduler; each refresh is bounded by timeout.
func NewScheduler(timeout time.Duration, log *slog.Logger) *Scheduler {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:     log.With("component", "feed-scheduler"),
		timeout: timeout,
		ctx:     ctx,
		stop:    cancel,
	}
}

// Add schedules r with a cron spec such as "@every 30s".
func (s *Scheduler) Add(spec string, r Refresher) error {
	if _, err := s.cron.AddFunc(spec, func() { s.refresh(r) }); err != nil {
		return fmt.Errorf("schedule %s %q: %w", r.Name(), spec, err)
	}
	s.mu.Lock()
	s.jobs = append(s.jobs, r)
	s.mu.Unlock()
	s.log.Info("feed scheduled", "feed", r.Name(), "spec", spec)
	return nil
}

func (s *Scheduler) refresh(r Refresher) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	// errors are logged and counted by the feed itself
	_ = r.Refresh(ctx)
}

// Start refreshes every feed once in the background, then starts the
// cron schedule.
func (s *Scheduler) Start() {
	s.mu.Lock()
	jobs := append([]Refresher(nil), s.jobs...)
	s.mu.Unlock()

	for _, r := range jobs {
		s.wg.Add(1)
		go func(r Refresher) {
			defer s.wg.Done()
			s.refresh(r)
		}(r)
	}
	s.cron.Start()
}

// Stop cancels in-flight refreshes and waits for running jobs.
func (s *Scheduler) Stop() {
	s.stop()
	<-s.cron.Stop().Done()
	s.wg.Wait()
}
