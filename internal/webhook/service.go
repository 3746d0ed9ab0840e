// Package webhook is the dispatch façade: it fans a domain event out to the
// subscribed endpoints, processes queued jobs, and owns the retry policy.
package webhook

import (
	"context"
	"time"

	"github.com/ferriqa/ferriqa/internal/deliverer"
	"github.com/ferriqa/ferriqa/internal/deliveryq"
	"github.com/ferriqa/ferriqa/internal/idgen"
	"github.com/ferriqa/ferriqa/internal/logging"
	"github.com/ferriqa/ferriqa/internal/logstore"
	"github.com/ferriqa/ferriqa/internal/models"
	"github.com/ferriqa/ferriqa/internal/registry"
	"go.uber.org/zap"
)

const (
	DefaultMaxAttempts = 5
	DefaultTimeout     = 30 * time.Second
	DefaultPriority    = 1

	// delayWarnThreshold flags runaway backoff configurations. The delay is
	// still honored; only the log level changes.
	delayWarnThreshold = time.Hour
)

type Config struct {
	TickInterval             time.Duration
	MaxConcurrent            int
	DefaultMaxAttempts       int
	DefaultTimeout           time.Duration
	DefaultInitialDelay      time.Duration
	DefaultBackoffMultiplier int
}

func (c *Config) withDefaults() Config {
	cfg := *c
	if cfg.DefaultMaxAttempts <= 0 {
		cfg.DefaultMaxAttempts = DefaultMaxAttempts
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultTimeout
	}
	if cfg.DefaultInitialDelay <= 0 {
		cfg.DefaultInitialDelay = DefaultInitialDelay
	}
	if cfg.DefaultBackoffMultiplier <= 0 {
		cfg.DefaultBackoffMultiplier = DefaultBackoffMultiplier
	}
	return cfg
}

// DispatchOptions tune a single dispatch call. Zero values fall back to the
// service defaults.
type DispatchOptions struct {
	MaxAttempts       int
	Timeout           time.Duration
	InitialDelay      time.Duration
	BackoffMultiplier int
	Priority          int
}

type DispatchResult struct {
	Queued int `json:"queued"`
}

// TestResult is the synchronous outcome of a single-shot test delivery.
type TestResult struct {
	DeliveryID string `json:"deliveryId"`
	Success    bool   `json:"success"`
	StatusCode int    `json:"statusCode,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration"`
}

type ServiceStats struct {
	Queue      deliveryq.Stats `json:"queue"`
	Deliveries logstore.Stats  `json:"deliveries"`
}

type Service struct {
	store     registry.Store
	history   logstore.LogStore
	deliverer *deliverer.Deliverer
	queue     *deliveryq.Queue
	hooks     Hooks
	logger    *logging.Logger
	cfg       Config

	now func() time.Time
}

type Option func(*Service)

func WithHooks(hooks Hooks) Option {
	return func(s *Service) {
		s.hooks = hooks
	}
}

func NewService(store registry.Store, history logstore.LogStore, dlv *deliverer.Deliverer, logger *logging.Logger, cfg Config, opts ...Option) *Service {
	s := &Service{
		store:     store,
		history:   history,
		deliverer: dlv,
		hooks:     NopHooks{},
		logger:    logger,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	crashPolicy := NewRetryPolicy(s.cfg.DefaultInitialDelay, s.cfg.DefaultBackoffMultiplier)
	queueOpts := []deliveryq.Option{
		deliveryq.WithCrashHook(s.logCrashedAttempt),
		deliveryq.WithCrashDelay(crashPolicy.Delay),
	}
	if s.cfg.TickInterval > 0 {
		queueOpts = append(queueOpts, deliveryq.WithTickInterval(s.cfg.TickInterval))
	}
	if s.cfg.MaxConcurrent > 0 {
		queueOpts = append(queueOpts, deliveryq.WithMaxConcurrent(s.cfg.MaxConcurrent))
	}
	s.queue = deliveryq.New(logger, queueOpts...)
	s.queue.SetProcessor(s)
	return s
}

func (s *Service) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

func (s *Service) Stop() {
	s.queue.Stop()
}

// Dispatch enqueues one delivery job per active subscriber of the event and
// returns the count. It never blocks on network I/O; per-job outcomes land in
// the delivery history.
func (s *Service) Dispatch(ctx context.Context, event string, data models.Data, opts *DispatchOptions) (*DispatchResult, error) {
	if !models.IsValidEvent(event) {
		s.logger.Ctx(ctx).Warn("dispatching unknown event", zap.String("event", event))
	}

	subscribers, err := s.store.FindActiveForEvent(ctx, event)
	if err != nil {
		return nil, err
	}

	now := s.now()
	for _, subscriber := range subscribers {
		job := s.buildJob(subscriber.ID, event, data, now, opts)
		s.queue.Enqueue(job)
		s.logger.Ctx(ctx).Debug("delivery queued",
			zap.String("delivery_id", job.DeliveryID),
			zap.Int64("webhook_id", job.WebhookID),
			zap.String("event", event))
	}
	return &DispatchResult{Queued: len(subscribers)}, nil
}

func (s *Service) buildJob(webhookID int64, event string, data models.Data, now time.Time, opts *DispatchOptions) *models.DeliveryJob {
	job := &models.DeliveryJob{
		DeliveryID:        idgen.DeliveryID(),
		WebhookID:         webhookID,
		Event:             event,
		Data:              data.Clone(),
		Attempt:           1,
		MaxAttempts:       s.cfg.DefaultMaxAttempts,
		InitialDelay:      s.cfg.DefaultInitialDelay,
		BackoffMultiplier: s.cfg.DefaultBackoffMultiplier,
		Timeout:           s.cfg.DefaultTimeout,
		Priority:          DefaultPriority,
		ScheduledFor:      now,
	}
	if opts == nil {
		return job
	}
	if opts.MaxAttempts > 0 {
		job.MaxAttempts = opts.MaxAttempts
	}
	if opts.Timeout > 0 {
		job.Timeout = opts.Timeout
	}
	if opts.InitialDelay > 0 {
		job.InitialDelay = opts.InitialDelay
	}
	if opts.BackoffMultiplier > 0 {
		job.BackoffMultiplier = opts.BackoffMultiplier
	}
	if opts.Priority > 0 {
		job.Priority = opts.Priority
	}
	return job
}

// ProcessJob is the queue's worker callback: one HTTP attempt, one history
// row, and possibly one scheduled retry. HTTP failures are handled here and
// never returned; a non-nil error means a bug and trips the queue's fallback.
func (s *Service) ProcessJob(ctx context.Context, job *models.DeliveryJob) error {
	jobStart := s.now()

	webhook, err := s.store.Get(ctx, job.WebhookID)
	if err != nil {
		return err
	}
	if webhook == nil {
		// Deleted mid-flight. No record is written for a ghost job.
		s.logger.Ctx(ctx).Info("webhook deleted before delivery, dropping job",
			zap.String("delivery_id", job.DeliveryID),
			zap.Int64("webhook_id", job.WebhookID))
		return nil
	}

	payload := models.NewWebhookPayload(job.Event, job.DeliveryID, job.Data, jobStart)
	payload = s.hooks.BeforeSend(ctx, webhook, payload)

	result := s.deliverer.Deliver(ctx, webhook, payload, job.Timeout, job.Attempt)

	s.logDelivery(ctx, job, jobStart, result)
	s.hooks.AfterSend(ctx, webhook, result)

	if result.Success {
		return nil
	}

	policy := NewRetryPolicy(job.InitialDelay, job.BackoffMultiplier)
	if !policy.ShouldRetry(result.StatusCode, result.Err) {
		return nil
	}
	if policy.IsFinalFailure(job.Attempt, job.MaxAttempts) {
		s.logger.Ctx(ctx).Info("delivery failed permanently, attempts exhausted",
			zap.String("delivery_id", job.DeliveryID),
			zap.Int64("webhook_id", job.WebhookID),
			zap.Int("attempt", job.Attempt))
		return nil
	}

	delay := policy.Delay(job.Attempt)
	if delay > delayWarnThreshold {
		s.logger.Ctx(ctx).Warn("retry delay exceeds an hour, check backoff settings",
			zap.Int64("webhook_id", job.WebhookID),
			zap.Duration("delay", delay))
	}
	s.queue.ScheduleRetry(job, delay)
	return nil
}

// Test sends one synchronous attempt outside the queue. It never retries;
// admins use it to probe an endpoint.
func (s *Service) Test(ctx context.Context, webhookID int64, event string, data models.Data) (*TestResult, error) {
	webhook, err := s.store.Get(ctx, webhookID)
	if err != nil {
		return nil, err
	}
	if webhook == nil {
		return nil, registry.ErrWebhookNotFound
	}

	jobStart := s.now()
	deliveryID := idgen.DeliveryID()
	payload := models.NewWebhookPayload(event, deliveryID, data, jobStart)

	result := s.deliverer.Deliver(ctx, webhook, payload, s.cfg.DefaultTimeout, 1)

	job := &models.DeliveryJob{
		DeliveryID: deliveryID,
		WebhookID:  webhookID,
		Event:      event,
		Attempt:    1,
	}
	s.logDelivery(ctx, job, jobStart, result)

	return &TestResult{
		DeliveryID: deliveryID,
		Success:    result.Success,
		StatusCode: result.StatusCode,
		Error:      result.ErrorMessage(),
		DurationMS: result.Duration.Milliseconds(),
	}, nil
}

func (s *Service) GetDeliveries(ctx context.Context, webhookID int64, page, limit int) (*logstore.ListResponse, error) {
	return s.history.List(ctx, logstore.ListRequest{WebhookID: webhookID, Page: page, Limit: limit})
}

func (s *Service) GetStats(ctx context.Context) (*ServiceStats, error) {
	deliveries, err := s.history.Stats(ctx, 0)
	if err != nil {
		return nil, err
	}
	return &ServiceStats{Queue: s.queue.Stats(), Deliveries: *deliveries}, nil
}

// logDelivery persists the attempt record. Storage failures are logged, never
// propagated: the HTTP send already happened and a missing audit row is the
// lesser harm.
func (s *Service) logDelivery(ctx context.Context, job *models.DeliveryJob, jobStart time.Time, result *models.AttemptResult) {
	completedAt := result.CompletedAt
	record := &models.DeliveryRecord{
		DeliveryID:  job.DeliveryID,
		WebhookID:   job.WebhookID,
		Event:       job.Event,
		StatusCode:  result.StatusCode,
		Success:     result.Success,
		Attempt:     job.Attempt,
		Response:    result.Response,
		DurationMS:  result.Duration.Milliseconds(),
		Error:       result.ErrorMessage(),
		CreatedAt:   jobStart,
		CompletedAt: &completedAt,
	}
	if err := s.history.Insert(ctx, record); err != nil {
		s.logger.Ctx(ctx).Error("failed to persist delivery record",
			zap.String("delivery_id", job.DeliveryID),
			zap.Int64("webhook_id", job.WebhookID),
			zap.Error(err))
	}
}

// logCrashedAttempt is the queue's crash hook: a processor bug still produces
// a failed history row.
func (s *Service) logCrashedAttempt(ctx context.Context, job *models.DeliveryJob, cause error) {
	now := s.now()
	record := &models.DeliveryRecord{
		DeliveryID:  job.DeliveryID,
		WebhookID:   job.WebhookID,
		Event:       job.Event,
		Success:     false,
		Attempt:     job.Attempt,
		Error:       cause.Error(),
		CreatedAt:   now,
		CompletedAt: &now,
	}
	if err := s.history.Insert(ctx, record); err != nil {
		s.logger.Ctx(ctx).Error("failed to persist crash record",
			zap.String("delivery_id", job.DeliveryID),
			zap.Error(err))
	}
}
