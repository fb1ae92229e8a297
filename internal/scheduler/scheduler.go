package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Job is the periodic work. It receives a context cancelled on Stop.
type Job func(ctx context.Context) error

// Scheduler runs a Job on a cron schedule, never two runs at once.
type Scheduler struct {
	Cron *cron.Cron

	name    string
	job     Job
	running sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler for job. Schedules use the standard five-field cron syntax.
func New(name string, job Job) *Scheduler {
	logger := cron.PrintfLogger(log.StandardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		Cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		name:   name,
		job:    job,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds the job under the given schedule.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, func() { s.RunNow() }); err != nil {
		return fmt.Errorf("register %s task: %w", s.name, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Infof("%s scheduler started", s.name)
}

// Stop cancels a run in progress and waits for it to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.Cron.Stop().Done()
	s.running.Lock()
	s.running.Unlock()
	log.Infof("%s scheduler stopped", s.name)
}

// RunNow executes the job immediately unless a run is already in progress.
// It reports whether the job ran.
func (s *Scheduler) RunNow() bool {
	if !s.running.TryLock() {
		log.Warnf("%s still running, skipping this run", s.name)
		return false
	}
	defer s.running.Unlock()

	if s.ctx.Err() != nil {
		return false
	}
	if err := s.job(s.ctx); err != nil {
		log.Errorf("%s failed: %v", s.name, err)
	}
	return true
}
