// Package handlers implements the HTTP trigger endpoints: a synchronous
// processing trigger, a Gmail push-notification webhook that schedules
// background runs, and job status lookups.
package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Wimboro/finmail/internal/api/middleware"
	"github.com/Wimboro/finmail/internal/jobs"
	"github.com/Wimboro/finmail/internal/pipeline"
)

// Runner executes one pipeline run for an account.
type Runner interface {
	Run(ctx context.Context, account string) (pipeline.Result, error)
}

// ProcessHandler handles the synchronous processing trigger.
type ProcessHandler struct {
	runner   Runner
	accounts []string
	log      zerolog.Logger
}

// NewProcessHandler creates a new process handler.
func NewProcessHandler(runner Runner, accounts []string, log zerolog.Logger) *ProcessHandler {
	return &ProcessHandler{runner: runner, accounts: accounts, log: log}
}

// Process handles GET and POST /api/process. It runs the pipeline for every
// configured account before responding, so callers see the final counts.
func (h *ProcessHandler) Process(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	ctx := r.Context()

	var results []pipeline.Result
	processed := 0
	for _, account := range h.accounts {
		res, err := h.runner.Run(ctx, account)
		if err != nil {
			h.writeRunError(w, account, err)
			return
		}
		results = append(results, res)
		processed += res.Processed
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message":   fmt.Sprintf("Successfully processed %d transactions", processed),
		"processed": processed,
		"results":   results,
	})
}

func (h *ProcessHandler) writeRunError(w http.ResponseWriter, account string, err error) {
	h.log.Error().Err(err).Str("account", account).Msg("Pipeline run failed")

	var setupErr *pipeline.SetupError
	if errors.As(err, &setupErr) {
		middleware.WriteError(w, http.StatusUnauthorized,
			fmt.Sprintf("Setup failed for account %s: %v", account, setupErr.Err))
		return
	}

	var commitErr *pipeline.CommitError
	if errors.As(err, &commitErr) {
		middleware.WriteError(w, http.StatusInternalServerError,
			fmt.Sprintf("Commit failed for account %s with %d staged transactions", account, commitErr.Staged))
		return
	}

	middleware.WriteError(w, http.StatusInternalServerError,
		fmt.Sprintf("Processing failed for account %s", account))
}

// WebhookHandler handles Gmail push notifications delivered through Pub/Sub.
type WebhookHandler struct {
	publisher jobs.Publisher
	accounts  []string
	log       zerolog.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(publisher jobs.Publisher, accounts []string, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{publisher: publisher, accounts: accounts, log: log}
}

// pubSubEnvelope is the Pub/Sub push wrapper around a Gmail notification.
type pubSubEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
}

// gmailNotification is the decoded Gmail push payload.
type gmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// Webhook handles GET and POST /api/webhook. GET reports endpoint status;
// POST decodes the push notification and, when it carries a history id,
// schedules a background run per configured account and acknowledges
// immediately. Anything undecodable is acknowledged with 200 so Pub/Sub
// does not redeliver it forever.
func (h *WebhookHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"message":   "Gmail to Sheets Webhook Endpoint",
			"status":    "active",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	case http.MethodPost:
		h.handleNotification(w, r)
	default:
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *WebhookHandler) handleNotification(w http.ResponseWriter, r *http.Request) {
	notification, ok := h.decodeNotification(r)
	if !ok || notification.HistoryID == 0 {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"message":   "Webhook received but no processing required",
			"timestamp": time.Now().Format(time.RFC3339),
		})
		return
	}

	h.log.Info().
		Str("email_address", notification.EmailAddress).
		Uint64("history_id", notification.HistoryID).
		Msg("Gmail push notification received")

	var jobIDs []string
	for _, account := range h.accounts {
		job := &jobs.ProcessAccountJob{
			Account:   account,
			Trigger:   "webhook",
			HistoryID: notification.HistoryID,
		}
		if err := h.publisher.PublishProcessAccount(r.Context(), job); err != nil {
			h.log.Error().Err(err).Str("account", account).Msg("Failed to schedule processing job")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to schedule processing")
			return
		}
		jobIDs = append(jobIDs, job.JobID)
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "Processing scheduled",
		"job_ids": jobIDs,
	})
}

func (h *WebhookHandler) decodeNotification(r *http.Request) (gmailNotification, bool) {
	var notification gmailNotification

	var envelope pubSubEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		h.log.Warn().Err(err).Msg("Invalid JSON in webhook payload")
		return notification, false
	}
	if envelope.Message.Data == "" {
		return notification, false
	}

	decoded, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to decode notification data")
		return notification, false
	}
	if err := json.Unmarshal(decoded, &notification); err != nil {
		h.log.Warn().Err(err).Msg("Failed to parse notification data")
		return notification, false
	}
	return notification, true
}

// JobsHandler exposes job status lookups for scheduled runs.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// Jobs handles GET /api/jobs and GET /api/jobs/{id}.
func (h *JobsHandler) Jobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if id := strings.TrimPrefix(r.URL.Path, "/api/jobs/"); id != "" && id != r.URL.Path && !strings.Contains(id, "/") {
		job, err := h.store.GetJob(r.Context(), id)
		if err != nil {
			middleware.WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, job)
		return
	}

	filter := jobs.JobFilter{
		Account: r.URL.Query().Get("account"),
		Status:  jobs.JobStatus(r.URL.Query().Get("status")),
		Limit:   50,
	}
	list, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}

// Health handles GET /health.
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
