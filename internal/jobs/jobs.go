package jobs

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"
)

// InsightWarmer recomputes cached advisory insights.
type InsightWarmer interface {
	RefreshBasic(ctx context.Context) error
}

type Scheduler struct {
	sched *gocron.Scheduler
}

// Start runs the warmer immediately and then every interval until Stop.
func Start(warmer InsightWarmer, interval time.Duration, timeout time.Duration) (*Scheduler, error) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	_, err := s.Every(interval).Tag("insight-warmup").Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		started := time.Now()
		if err := warmer.RefreshBasic(ctx); err != nil {
			log.Warn().Err(err).Msg("insight warmup failed")
			return
		}
		log.Debug().Dur("took", time.Since(started)).Msg("insight cache warmed")
	})
	if err != nil {
		return nil, err
	}

	s.StartAsync()
	return &Scheduler{sched: s}, nil
}

func (s *Scheduler) Stop() {
	if s == nil || s.sched == nil {
		return
	}
	s.sched.Stop()
}
