package trading

import (
	"context"

	"github.com/rs/zerolog"
)

// Job runs the trading cycle on a schedule. Cycle errors are returned to
// the scheduler, which logs them; they never stop the schedule itself.
type Job struct {
	cycle *Cycle
	log   zerolog.Logger
}

// NewJob creates a scheduled trading job
func NewJob(cycle *Cycle, log zerolog.Logger) *Job {
	return &Job{
		cycle: cycle,
		log:   log.With().Str("job", "trading_cycle").Logger(),
	}
}

// Name returns the job name
func (j *Job) Name() string {
	return "trading_cycle"
}

// Run executes one trading cycle
func (j *Job) Run() error {
	return j.cycle.Run(context.Background())
}
