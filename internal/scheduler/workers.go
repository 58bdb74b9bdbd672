package scheduler

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spigell/jobradar/internal/logger"
	"github.com/spigell/jobradar/internal/pipeline"
)

func (s *Scheduler) startWorkers(ctx context.Context, queue <-chan request) {
	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for req := range queue {
				s.execute(ctx, req)
				s.mu.Lock()
				delete(s.pending, req.userID)
				s.mu.Unlock()
			}
		}()
	}
}

func (s *Scheduler) execute(ctx context.Context, req request) pipeline.Report {
	var opts []pipeline.RunOption
	if req.manual {
		opts = append(opts, pipeline.Manual())
	}

	report := s.runner.Run(ctx, req.userID, opts...)
	log := s.logger.With(logger.RunFields(req.userID, report.RunID)...)
	if report.State == pipeline.StateFailed {
		log.Warn("run failed", zap.String(logger.FieldRunState, string(report.State)), zap.String("error", report.Error))
	} else {
		log.Debug("run completed", zap.String(logger.FieldRunState, string(report.State)))
	}
	return report
}

// runPool feeds ids through a fresh queue to a bounded set of workers.
func (s *Scheduler) runPool(ctx context.Context, ids []string) []pipeline.Report {
	type indexed struct {
		i  int
		id string
	}

	queue := make(chan indexed)
	reports := make([]pipeline.Report, len(ids))

	var wg sync.WaitGroup
	for w := 0; w < min(s.cfg.Workers, len(ids)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range queue {
				reports[item.i] = s.execute(ctx, request{userID: item.id})
			}
		}()
	}

	for i, id := range ids {
		queue <- indexed{i: i, id: id}
	}
	close(queue)
	wg.Wait()

	return reports
}
