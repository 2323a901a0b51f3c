// Package job runs the background proposal pipeline. One job per accepted
// slash-command invocation: fetch the deal snapshot, generate proposal
// content, publish the quote, then deliver exactly one delayed response.
package job

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"proposalbot/pkg/apierrors"
	"proposalbot/pkg/catalog"
	"proposalbot/pkg/hubspot"
	"proposalbot/pkg/logx"
	"proposalbot/pkg/metrics"
	"proposalbot/pkg/proposal"
	"proposalbot/pkg/slack"
)

// Stage names as they appear in failure messages.
const (
	StageFetching   = "Fetching"
	StageGenerating = "Generating"
	StagePublishing = "Publishing"
)

const (
	// DefaultGenerateTimeout bounds the generation stage.
	DefaultGenerateTimeout = 60 * time.Second
	// DefaultJobDeadline is the overall ceiling for one job, kept under the
	// chat platform's 30-minute response_url window and well under the point
	// where users give up waiting.
	DefaultJobDeadline = 170 * time.Second
	// deliveryTimeout bounds the response_url POST. Delivery runs on a fresh
	// context because the job deadline may already be exhausted.
	deliveryTimeout = 10 * time.Second
)

// Request is one accepted invocation handed to the background pipeline.
type Request struct {
	DealID      string
	UserID      string
	ResponseURL string
}

// Fetcher assembles a deal snapshot from the CRM.
type Fetcher interface {
	FetchSnapshot(ctx context.Context, dealID string) (*hubspot.DealSnapshot, error)
}

// Generator produces proposal content from a snapshot and recommendation.
type Generator interface {
	Generate(ctx context.Context, snapshot *hubspot.DealSnapshot, rec catalog.Recommendation) (*proposal.Content, error)
}

// Publisher creates the quote and returns its shareable URL.
type Publisher interface {
	Publish(ctx context.Context, snapshot *hubspot.DealSnapshot, content *proposal.Content, rec catalog.Recommendation) (string, error)
}

// Responder delivers the single delayed response for an invocation.
type Responder interface {
	Respond(ctx context.Context, msg slack.Message) error
}

// Orchestrator drives jobs through the pipeline stages in strict order.
// Safe for concurrent use; each Run call is one independent job.
type Orchestrator struct {
	fetcher   Fetcher
	catalog   *catalog.Catalog
	generator Generator
	publisher Publisher
	recorder  *metrics.Recorder
	logger    *logx.Logger

	newResponder func(responseURL string) Responder

	generateTimeout time.Duration
	jobDeadline     time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithGenerateTimeout overrides the generation stage bound.
func WithGenerateTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.generateTimeout = d }
}

// WithJobDeadline overrides the overall job ceiling.
func WithJobDeadline(d time.Duration) Option {
	return func(o *Orchestrator) { o.jobDeadline = d }
}

// WithResponderFactory overrides how delayed responders are built. Test use.
func WithResponderFactory(build func(responseURL string) Responder) Option {
	return func(o *Orchestrator) { o.newResponder = build }
}

// NewOrchestrator wires the pipeline stages together.
func NewOrchestrator(fetcher Fetcher, cat *catalog.Catalog, generator Generator, publisher Publisher, recorder *metrics.Recorder, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		fetcher:   fetcher,
		catalog:   cat,
		generator: generator,
		publisher: publisher,
		recorder:  recorder,
		logger:    logx.NewLogger("job"),
		newResponder: func(responseURL string) Responder {
			return slack.NewOnceResponder(responseURL, nil)
		},
		generateTimeout: DefaultGenerateTimeout,
		jobDeadline:     DefaultJobDeadline,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one job to completion. The job runs under its own deadline,
// detached from the HTTP request that accepted it, and always delivers
// exactly one delayed response before returning.
func (o *Orchestrator) Run(req Request) {
	jobID := uuid.NewString()[:8]
	logger := o.logger.WithJob(jobID)

	o.recorder.JobStarted()
	defer o.recorder.JobFinished()

	ctx, cancel := context.WithTimeout(context.Background(), o.jobDeadline)
	defer cancel()

	responder := o.newResponder(req.ResponseURL)
	logger.Info("started for deal %s (user %s)", req.DealID, req.UserID)

	snapshot, err := o.fetch(ctx, req.DealID)
	if err != nil {
		o.fail(logger, responder, StageFetching, err)
		return
	}
	logger.Info("fetched %q: %d transcript(s), %d contact(s)",
		snapshot.DealName, len(snapshot.Transcripts), len(snapshot.Contacts))

	rec := o.catalog.Recommend(snapshot.Transcripts)
	logger.Info("recommending %d service(s) at $%d/mo", len(rec.Services), rec.TotalMonthly)

	content, err := o.generate(ctx, snapshot, rec)
	if err != nil {
		o.fail(logger, responder, StageGenerating, err)
		return
	}

	quoteURL, err := o.publish(ctx, snapshot, content, rec)
	if err != nil {
		o.fail(logger, responder, StagePublishing, err)
		return
	}

	names := make([]string, 0, len(rec.Services))
	for _, svc := range rec.Services {
		names = append(names, svc.Name)
	}
	o.deliver(logger, responder, slack.SuccessMessage(snapshot.CompanyName(), rec.TotalMonthly, names, quoteURL))
	o.recorder.ObserveJob("success", "")
	logger.Info("completed: %s", quoteURL)
}

func (o *Orchestrator) fetch(ctx context.Context, dealID string) (*hubspot.DealSnapshot, error) {
	start := time.Now()
	snapshot, err := o.fetcher.FetchSnapshot(ctx, dealID)
	o.recorder.ObserveStage(StageFetching, err == nil, time.Since(start))
	return snapshot, err
}

func (o *Orchestrator) generate(ctx context.Context, snapshot *hubspot.DealSnapshot, rec catalog.Recommendation) (*proposal.Content, error) {
	stageCtx, cancel := context.WithTimeout(ctx, o.generateTimeout)
	defer cancel()

	start := time.Now()
	content, err := o.generator.Generate(stageCtx, snapshot, rec)
	o.recorder.ObserveStage(StageGenerating, err == nil, time.Since(start))
	return content, err
}

func (o *Orchestrator) publish(ctx context.Context, snapshot *hubspot.DealSnapshot, content *proposal.Content, rec catalog.Recommendation) (string, error) {
	start := time.Now()
	quoteURL, err := o.publisher.Publish(ctx, snapshot, content, rec)
	o.recorder.ObserveStage(StagePublishing, err == nil, time.Since(start))
	return quoteURL, err
}

// fail reports the failing stage to the user and records the outcome. A stage
// failure is terminal; the pipeline never resumes or restarts across stages.
func (o *Orchestrator) fail(logger *logx.Logger, responder Responder, stage string, err error) {
	logger.Error("failed at %s: %v", stage, err)
	o.deliver(logger, responder, slack.FailureMessage(stage, failureReason(err)))
	o.recorder.ObserveJob("failure", stage)
}

// deliver posts the delayed response on a fresh context so an exhausted job
// deadline never suppresses the user-facing result.
func (o *Orchestrator) deliver(logger *logx.Logger, responder Responder, msg slack.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()
	if err := responder.Respond(ctx, msg); err != nil {
		o.recorder.DeliveryError()
		logger.Error("delayed response delivery failed: %v", err)
	}
}

// failureReason turns a stage error into the short human reason shown in
// chat, preferring the upstream message over wrapped error chains.
func failureReason(err error) string {
	var apiErr *apierrors.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	return err.Error()
}
