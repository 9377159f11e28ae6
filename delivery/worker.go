// Package delivery drains the issue delivery queue. Each task is claimed
// with a row lock that concurrent workers skip, attempted at most once, and
// removed in the same transaction whatever the outcome of the send.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"newsletter-backend/apperror"
	"newsletter-backend/config"
	"newsletter-backend/email"
	"newsletter-backend/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultPollInterval = 10 * time.Second
	defaultErrorBackoff = time.Second
	defaultConcurrency  = 1
)

type ExecutionOutcome int

const (
	TaskCompleted ExecutionOutcome = iota + 1
	EmptyQueue
)

func (o ExecutionOutcome) String() string {
	switch o {
	case TaskCompleted:
		return "task_completed"
	case EmptyQueue:
		return "empty_queue"
	default:
		return "unknown"
	}
}

// Config controls the polling loop.
type Config struct {
	// Concurrency is the number of loops Run starts.
	Concurrency int
	// PollInterval is the pause after finding the queue empty.
	PollInterval time.Duration
	// ErrorBackoff is the pause after a failed iteration.
	ErrorBackoff time.Duration
	// MaxConsecutiveErrors makes a loop give up and return its last error.
	// Zero retries forever.
	MaxConsecutiveErrors int
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = defaultErrorBackoff
	}
	return c
}

// ConfigFromSettings maps the worker section of the settings file.
func ConfigFromSettings(s config.WorkerSettings) Config {
	return Config{
		Concurrency:          s.Concurrency,
		PollInterval:         s.PollInterval,
		ErrorBackoff:         s.ErrorBackoff,
		MaxConsecutiveErrors: s.MaxConsecutiveErrors,
	}
}

type Worker struct {
	db     *gorm.DB
	sender email.Sender
	logger *zap.Logger
	cfg    Config
}

func NewWorker(db *gorm.DB, sender email.Sender, logger *zap.Logger, cfg Config) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		db:     db,
		sender: sender,
		logger: logger.Named("delivery"),
		cfg:    cfg.withDefaults(),
	}
}

// TryExecuteTask claims one pending delivery, attempts it and removes it.
// An invalid stored address or a failed send is logged and the task is still
// removed. Only storage failures are returned; the task then stays pending.
func (w *Worker) TryExecuteTask(ctx context.Context) (ExecutionOutcome, error) {
	tx := w.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return 0, apperror.Storage("begin dequeue", tx.Error)
	}

	var task models.IssueDeliveryQueueItem
	res := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Limit(1).
		Find(&task)
	if res.Error != nil {
		tx.Rollback()
		return 0, apperror.Storage("dequeue task", res.Error)
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return EmptyQueue, nil
	}

	log := w.logger.With(
		zap.String("newsletter_issue_id", task.NewsletterIssueID),
		zap.String("subscriber_email", task.SubscriberEmail),
	)

	var issue models.NewsletterIssue
	if err := tx.Where("newsletter_issue_id = ?", task.NewsletterIssueID).Take(&issue).Error; err != nil {
		tx.Rollback()
		return 0, apperror.Storage("load newsletter issue", err)
	}

	w.deliver(ctx, log, task, issue)

	err := tx.Where("newsletter_issue_id = ? AND subscriber_email = ?", task.NewsletterIssueID, task.SubscriberEmail).
		Delete(&models.IssueDeliveryQueueItem{}).Error
	if err != nil {
		tx.Rollback()
		return 0, apperror.Storage("delete task", err)
	}
	if err := tx.Commit().Error; err != nil {
		return 0, apperror.Storage("commit task", err)
	}
	return TaskCompleted, nil
}

func (w *Worker) deliver(ctx context.Context, log *zap.Logger, task models.IssueDeliveryQueueItem, issue models.NewsletterIssue) {
	to, err := email.ParseAddress(task.SubscriberEmail)
	if err != nil {
		log.Error("skipping a confirmed subscriber, their stored email address is invalid", zap.Error(err))
		return
	}
	if err := w.sender.Send(ctx, to, issue.Title, issue.HTMLContent, issue.TextContent); err != nil {
		log.Error("failed to deliver issue to a confirmed subscriber, skipping", zap.Error(err))
		return
	}
	log.Debug("issue delivered")
}

// Drain executes tasks until the queue is empty and returns how many were
// completed.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	n := 0
	for {
		outcome, err := w.TryExecuteTask(ctx)
		if err != nil {
			return n, err
		}
		if outcome == EmptyQueue {
			return n, nil
		}
		n++
	}
}

// Run starts Concurrency polling loops and blocks until ctx is cancelled or
// a loop gives up. Cancellation returns nil.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Concurrency; i++ {
		loop := i
		g.Go(func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					w.logger.Error("delivery loop panic", zap.Int("loop", loop), zap.Any("panic", rec))
					err = fmt.Errorf("delivery loop %d panicked: %v", loop, rec)
				}
			}()
			return w.loop(ctx, loop)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Worker) loop(ctx context.Context, id int) error {
	log := w.logger.With(zap.Int("loop", id))
	log.Info("delivery loop started")
	defer log.Info("delivery loop stopped")

	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		outcome, err := w.TryExecuteTask(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			log.Warn("delivery iteration failed", zap.Error(err), zap.Int("consecutive_failures", failures))
			if w.cfg.MaxConsecutiveErrors > 0 && failures >= w.cfg.MaxConsecutiveErrors {
				return fmt.Errorf("delivery loop %d gave up after %d consecutive failures: %w", id, failures, err)
			}
			if err := sleep(ctx, w.cfg.ErrorBackoff); err != nil {
				return err
			}
		case outcome == EmptyQueue:
			failures = 0
			if err := sleep(ctx, w.cfg.PollInterval); err != nil {
				return err
			}
		default:
			failures = 0
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
