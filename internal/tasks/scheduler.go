package tasks

import (
	"fmt"

	"tern/internal/utils/logger"

	"github.com/hibiken/asynq"
)

// Scheduler handles periodic task scheduling
type Scheduler struct {
	scheduler *asynq.Scheduler
	logger    *logger.Logger
}

// NewScheduler creates a new task scheduler
func NewScheduler(redisAddr, username, password string, db int, logger *logger.Logger) *Scheduler {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{
			Addr:     redisAddr,
			Username: username,
			Password: password,
			DB:       db,
		},
		&asynq.SchedulerOpts{},
	)

	return &Scheduler{
		scheduler: scheduler,
		logger:    logger,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	if err := s.registerTasks(); err != nil {
		return fmt.Errorf("failed to register tasks: %w", err)
	}

	s.logger.Info("starting task scheduler")
	return s.scheduler.Run()
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Shutdown()
	s.logger.Info("task scheduler stopped")
}

// registerTasks registers all periodic tasks
func (s *Scheduler) registerTasks() error {
	// Due campaign scan (every minute)
	entryID, err := s.scheduler.Register("*/1 * * * *", asynq.NewTask(
		TaskTypeCampaignSchedule,
		nil,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(RetryDefault),
		asynq.Timeout(TimeoutMedium),
	))
	if err != nil {
		return fmt.Errorf("failed to register campaign scheduler: %w", err)
	}
	s.logger.Debug("registered campaign scheduler %s", entryID)

	// Message queue drain (every 5 minutes)
	entryID, err = s.scheduler.Register("*/5 * * * *", asynq.NewTask(
		TaskTypeMessageQueue,
		nil,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(RetryDefault),
		asynq.Timeout(TimeoutMedium),
	))
	if err != nil {
		return fmt.Errorf("failed to register queue drain scheduler: %w", err)
	}
	s.logger.Debug("registered queue drain scheduler %s", entryID)

	// Stats recompute (nightly at 01:00)
	entryID, err = s.scheduler.Register("0 1 * * *", asynq.NewTask(
		TaskTypeStatsCompute,
		nil,
		asynq.Queue(QueueLow),
		asynq.MaxRetry(RetryMin),
		asynq.Timeout(TimeoutLong),
	))
	if err != nil {
		return fmt.Errorf("failed to register stats scheduler: %w", err)
	}
	s.logger.Debug("registered stats scheduler %s", entryID)

	// Domain re-checks (daily at midnight)
	entryID, err = s.scheduler.Register("0 0 * * *", asynq.NewTask(
		TaskTypeDomainCheck,
		nil,
		asynq.Queue(QueueLow),
		asynq.MaxRetry(RetryMin),
		asynq.Timeout(TimeoutLong),
	))
	if err != nil {
		return fmt.Errorf("failed to register domain check scheduler: %w", err)
	}
	s.logger.Debug("registered domain check scheduler %s", entryID)

	s.logger.Info("registered all periodic tasks")
	return nil
}

// RegisterCustomTask registers a custom periodic task
func (s *Scheduler) RegisterCustomTask(spec string, taskType string, payload []byte, opts ...asynq.Option) error {
	entryID, err := s.scheduler.Register(spec, asynq.NewTask(taskType, payload, opts...))
	if err != nil {
		return fmt.Errorf("failed to register custom task: %w", err)
	}

	s.logger.Info("registered custom task %s %s %s", taskType, spec, entryID)
	return nil
}
