package queue

import (
	"github.com/hibiken/asynq"
)

type HandlersRegistry struct {
	mux *asynq.ServeMux
}

func NewHandlersRegistry() *HandlersRegistry {
	return &HandlersRegistry{
		mux: asynq.NewServeMux(),
	}
}

func (r *HandlersRegistry) Register(taskType string, handler asynq.Handler) {
	r.mux.Handle(taskType, handler)
}

func (r *HandlersRegistry) Mux() *asynq.ServeMux {
	return r.mux
}

// NewScheduler registers the periodic tasks. cron accepts asynq's spec
// syntax, e.g. "@every 1h" or "0 * * * *".
func NewScheduler(cfg asynq.RedisConnOpt, trialSweepCron string) (*asynq.Scheduler, error) {
	s := asynq.NewScheduler(cfg, nil)
	if _, err := s.Register(trialSweepCron, asynq.NewTask(TypeExpireTrials, nil), asynq.MaxRetry(1)); err != nil {
		return nil, err
	}
	return s, nil
}
