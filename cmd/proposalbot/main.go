// Command proposalbot serves the /cgo-proposal Slack slash command: it
// verifies inbound requests, acknowledges them immediately, and generates the
// proposal quote in the background.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"proposalbot/pkg/apierrors"
	"proposalbot/pkg/catalog"
	"proposalbot/pkg/config"
	"proposalbot/pkg/hubspot"
	"proposalbot/pkg/job"
	"proposalbot/pkg/logx"
	"proposalbot/pkg/metrics"
	"proposalbot/pkg/proposal"
	"proposalbot/pkg/quote"
	"proposalbot/pkg/server"
	"proposalbot/pkg/slack"
)

// shutdownGrace bounds draining on SIGINT/SIGTERM. Generous enough for an
// in-flight generation call to finish.
const shutdownGrace = 60 * time.Second

func main() {
	if err := run(); err != nil {
		logx.Errorf("fatal: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	cat, err := catalog.Load()
	if err != nil {
		return err
	}

	recorder := metrics.NewRecorder()

	crm := hubspot.NewClient(cfg.HubSpotBaseURL, cfg.HubSpotAPIKey, cfg.HubSpotPortalID,
		hubspot.WithHTTPClient(&http.Client{Timeout: cfg.CRMTimeout}),
		hubspot.WithRetryObserver(func(errType apierrors.ErrorType, attempt int) {
			recorder.ObserveRetry("hubspot", errType.String())
		}))

	generator := proposal.NewGenerator(cfg.AnthropicAPIKey, cfg.AnthropicModel,
		proposal.WithRetryObserver(func(errType apierrors.ErrorType, attempt int) {
			recorder.ObserveRetry("anthropic", errType.String())
		}))

	publisher := quote.NewPublisher(crm)

	orch := job.NewOrchestrator(crm, cat, generator, publisher, recorder,
		job.WithGenerateTimeout(cfg.GenerateTimeout),
		job.WithJobDeadline(cfg.JobDeadline))
	pool := job.NewPool(orch, cfg.WorkerPoolSize, job.DefaultQueueDepth)
	pool.Start()

	srv := server.New(":"+strconv.Itoa(cfg.Port), slack.NewVerifier(cfg.SlackSigningSecret), pool, cfg.HubSpotPortalID)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logx.Infof("received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	// Stop accepting new commands first, then drain in-flight jobs so every
	// accepted invocation still gets its delayed response.
	if err := srv.Shutdown(ctx); err != nil {
		logx.Warnf("server shutdown: %v", err)
	}
	if err := pool.Shutdown(ctx); err != nil {
		return err
	}
	logx.Infof("shutdown complete")
	return nil
}
