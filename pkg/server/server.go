// Package server is the synchronous HTTP boundary: the slash-command
// endpoint, liveness, and metrics. Handlers here never perform network
// calls; anything slow is handed to the background pool so the
// acknowledgment always beats Slack's 3-second deadline.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"proposalbot/pkg/command"
	"proposalbot/pkg/job"
	"proposalbot/pkg/logx"
	"proposalbot/pkg/slack"
)

// maxBodyBytes caps inbound request bodies. Slash-command forms are tiny.
const maxBodyBytes = 64 << 10

// SlashCommandPath is the endpoint Slack posts slash commands to.
const SlashCommandPath = "/slack/cgo-proposal"

// Server owns the HTTP listener and routes.
type Server struct {
	verifier *slack.Verifier
	pool     *job.Pool
	portalID string
	logger   *logx.Logger
	httpSrv  *http.Server
}

// New builds the server on addr ("host:port").
func New(addr string, verifier *slack.Verifier, pool *job.Pool, portalID string) *Server {
	s := &Server{
		verifier: verifier,
		pool:     pool,
		portalID: portalID,
		logger:   logx.NewLogger("server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(SlashCommandPath, s.handleSlashCommand)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleRoot)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the route table for handler-level tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Start serves until Shutdown. A clean shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("listening on %s", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// handleSlashCommand is the synchronous path: verify, parse, submit, ack.
// Everything here resolves in memory; the background pool does the waiting.
func (s *Server) handleSlashCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	if err := s.verifier.Verify(body,
		r.Header.Get("X-Slack-Request-Timestamp"),
		r.Header.Get("X-Slack-Signature")); err != nil {
		s.logger.Warn("rejected unverified request: %v", err)
		http.Error(w, "invalid request signature", http.StatusUnauthorized)
		return
	}

	cmd, err := slack.ParseSlashCommand(body)
	if err != nil {
		http.Error(w, "malformed form body", http.StatusBadRequest)
		return
	}

	ref, err := command.ParseDealRef(cmd.Text)
	if err != nil {
		s.writeMessage(w, slack.UsageMessage())
		return
	}
	if err := ref.CheckPortal(s.portalID); err != nil {
		s.writeMessage(w, slack.ErrorMessage("That deal link points at a different HubSpot portal than this bot is configured for."))
		return
	}
	if cmd.ResponseURL == "" {
		http.Error(w, "missing response_url", http.StatusBadRequest)
		return
	}

	req := job.Request{DealID: ref.DealID, UserID: cmd.UserID, ResponseURL: cmd.ResponseURL}
	if err := s.pool.Submit(req); err != nil {
		s.logger.Warn("submission rejected for deal %s: %v", ref.DealID, err)
		s.writeMessage(w, slack.ErrorMessage("Too many proposals are being generated right now. Try again in a minute."))
		return
	}

	s.logger.Info("accepted deal %s from user %s", ref.DealID, cmd.UserID)
	s.writeMessage(w, slack.AckMessage())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"service": "CGO Proposal Bot",
		"status":  "running",
	})
}

// writeMessage renders an inline Slack message. Inline replies are always
// HTTP 200; Slack shows the payload, not the status code.
func (s *Server) writeMessage(w http.ResponseWriter, msg slack.Message) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(msg)
}
