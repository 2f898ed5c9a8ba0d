package httptransport

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"seller-export-service/internal/entity"
	"seller-export-service/internal/service"
)

type Handler struct {
	jobs      *service.JobService
	reconcile *service.ReconcileService
	export    *service.ExportService
}

func NewHandler(jobs *service.JobService, reconcile *service.ReconcileService, export *service.ExportService) *Handler {
	return &Handler{jobs: jobs, reconcile: reconcile, export: export}
}

type createJobDTO struct {
	Keywords    []string `json:"keywords"`
	Marketplace string   `json:"marketplace,omitempty"` // "com" (default) or "co.uk"
	PageDepth   *int     `json:"pageDepth,omitempty"`
	MaxItems    *int     `json:"maxItems,omitempty"`
}

type createJobResp struct {
	JobID string `json:"jobId"`
}

type listJobsResp struct {
	Jobs []*entity.Job `json:"jobs"`
}

// CreateJob godoc
// @Summary Submit a scrape job
// @Description Persists a job and starts the stage-1 product search run; progress arrives via webhooks.
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body createJobDTO true "job parameters"
// @Success 202 {object} createJobResp
// @Failure 400 {object} apiError
// @Failure 502 {object} apiError
// @Router /jobs [post]
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var dto createJobDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeFailure(w, service.Fail(service.CodeValidation, "invalid json"))
		return
	}

	req := service.CreateJobRequest{
		Keywords:    dto.Keywords,
		Marketplace: dto.Marketplace,
	}
	if dto.PageDepth != nil {
		req.PageDepth = *dto.PageDepth
	}
	if dto.MaxItems != nil {
		if *dto.MaxItems <= 0 {
			writeFailure(w, service.Fail(service.CodeValidation, "maxItems must be a positive integer"))
			return
		}
		req.MaxItems = *dto.MaxItems
	}

	jobID, err := h.jobs.Create(r.Context(), req)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, createJobResp{JobID: jobID})
}

// GetJob godoc
// @Summary Get job snapshot
// @Description Returns the persisted job, augmented with live progress counters while a stage is running.
// @Tags jobs
// @Produce json
// @Param id path string true "job id"
// @Success 200 {object} service.JobView
// @Failure 404 {object} apiError
// @Router /jobs/{id} [get]
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	view, err := h.jobs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ListJobs godoc
// @Summary List jobs
// @Tags jobs
// @Produce json
// @Success 200 {object} listJobsResp
// @Router /jobs [get]
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobs.List(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	if jobs == nil {
		jobs = []*entity.Job{}
	}
	writeJSON(w, http.StatusOK, listJobsResp{Jobs: jobs})
}

// DeleteJob godoc
// @Summary Delete a job
// @Description Removes the job and its run mappings; external datasets are deleted best effort. Idempotent.
// @Tags jobs
// @Produce json
// @Param id path string true "job id"
// @Success 200 {object} okResp
// @Router /jobs/{id} [delete]
func (h *Handler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := h.jobs.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResp{OK: true})
}

// Stage1Webhook godoc
// @Summary Stage-1 completion webhook
// @Description Consumes the product-search completion notification and advances the job to stage 2.
// @Tags webhooks
// @Accept json
// @Produce json
// @Success 200 {object} okResp
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Failure 422 {object} apiError
// @Failure 502 {object} apiError
// @Router /webhooks/stage1 [post]
func (h *Handler) Stage1Webhook(w http.ResponseWriter, r *http.Request) {
	h.webhook(w, r, "stage1", h.reconcile.Stage1)
}

// Stage2Webhook godoc
// @Summary Stage-2 completion webhook
// @Description Consumes the seller-lookup completion notification and marks the job SUCCEEDED.
// @Tags webhooks
// @Accept json
// @Produce json
// @Success 200 {object} okResp
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /webhooks/stage2 [post]
func (h *Handler) Stage2Webhook(w http.ResponseWriter, r *http.Request) {
	h.webhook(w, r, "stage2", h.reconcile.Stage2)
}

func (h *Handler) webhook(w http.ResponseWriter, r *http.Request, stage string, run func(ctx context.Context, raw []byte) error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeFailure(w, service.Fail(service.CodeWebhookMalformed, "failed to read body"))
		return
	}
	log.Printf("[webhook] stage=%s received bytes=%d", stage, len(raw))

	if err := run(r.Context(), raw); err != nil {
		f := service.AsFailure(err)
		if f.Code == service.CodeWebhookMalformed {
			// Replay aid for malformed deliveries.
			log.Printf("[webhook] stage=%s rejected reason=%q reproduce with:\n%s",
				stage, f.Reason, reproCurl(webhookEndpoint(r, stage), raw))
		} else {
			log.Printf("[webhook] stage=%s failed code=%s reason=%q", stage, f.Code, f.Reason)
		}
		writeFailure(w, f)
		return
	}
	writeJSON(w, http.StatusOK, okResp{OK: true})
}

func webhookEndpoint(r *http.Request, stage string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/webhooks/" + stage
}

// WebhookProbe answers the GET/HEAD/OPTIONS pings webhook validators send.
func (h *Handler) WebhookProbe(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "POST, GET, HEAD, OPTIONS")
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":   true,
			"info": "Use POST with application/json to deliver webhooks.",
		})
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// Export godoc
// @Summary Download the merged spreadsheet
// @Description Streams an xlsx with one row per retained merged record. The job must be SUCCEEDED.
// @Tags export
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "job id"
// @Success 200 {file} binary
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Failure 502 {object} apiError
// @Router /export/{id} [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	filename, data, err := h.export.Export(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Printf("[export] write response failed: %v", err)
	}
}
