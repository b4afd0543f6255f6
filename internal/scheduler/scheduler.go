// Package scheduler runs periodic passes. Each job is single-flight: a
// tick that arrives while the previous run of the same job is still busy
// is dropped, not queued.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/court-booking/internal/metrics"
)

// Job is one named periodic pass.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error

	mu sync.Mutex
}

// Trigger runs the job now unless a run is in progress. It reports
// whether the job ran.
func (j *Job) Trigger(ctx context.Context, log logrus.FieldLogger) bool {
	if !j.mu.TryLock() {
		metrics.PassSkipped(j.Name)
		log.WithField("pass", j.Name).Warn("previous run still active, tick skipped")
		return false
	}
	defer j.mu.Unlock()

	started := time.Now()
	if err := j.Run(ctx); err != nil {
		log.WithField("pass", j.Name).WithError(err).Error("pass failed")
	}
	metrics.PassRan(j.Name, started)
	log.WithFields(logrus.Fields{"pass": j.Name, "took": time.Since(started).String()}).Debug("pass finished")
	return true
}

type Scheduler struct {
	jobs []*Job
	log  logrus.FieldLogger
	wg   sync.WaitGroup
}

func New(log logrus.FieldLogger) *Scheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{log: log}
}

// Add registers a job. Jobs with a non-positive interval are ignored.
func (s *Scheduler) Add(name string, interval time.Duration, run func(ctx context.Context) error) *Job {
	j := &Job{Name: name, Interval: interval, Run: run}
	if interval > 0 {
		s.jobs = append(s.jobs, j)
	}
	return j
}

// Start launches one ticker per job. It returns immediately; cancel ctx
// and call Wait to stop.
func (s *Scheduler) Start(ctx context.Context) {
	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, j)
	}
}

func (s *Scheduler) loop(ctx context.Context, j *Job) {
	defer s.wg.Done()
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	s.log.WithFields(logrus.Fields{"pass": j.Name, "interval": j.Interval.String()}).Info("pass scheduled")
	for {
		select {
		case <-ctx.Done():
			s.log.WithField("pass", j.Name).Info("pass stopped")
			return
		case <-ticker.C:
			// an overrunning pass turns later ticks into skips
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				j.Trigger(ctx, s.log)
			}()
		}
	}
}

// Wait blocks until every loop and in-flight run has returned.
func (s *Scheduler) Wait() { s.wg.Wait() }
