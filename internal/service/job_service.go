package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"seller-export-service/internal/apify"
	"seller-export-service/internal/entity"
	"seller-export-service/internal/repository"
	"seller-export-service/internal/store"
)

const (
	DefaultPageDepth   = 7
	DefaultMarketplace = "com"
)

// Actors is the small surface of the scraping platform the job service
// needs (implementation: apify.Client).
type Actors interface {
	StartProductRun(ctx context.Context, input apify.ProductRunInput) (string, error)
	StartSellerRun(ctx context.Context, input apify.SellerRunInput) (string, error)
	RunInfo(ctx context.Context, runID string) (*apify.RunStatus, error)
	DatasetItemCount(ctx context.Context, datasetID string) (int, error)
	DeleteDataset(ctx context.Context, datasetID string) error
}

type JobService struct {
	repo        *repository.JobRepository
	actors      Actors
	webhookBase string // public base URL the platform posts webhooks to
}

func NewJobService(repo *repository.JobRepository, actors Actors, webhookBase string) *JobService {
	return &JobService{
		repo:        repo,
		actors:      actors,
		webhookBase: strings.TrimRight(webhookBase, "/"),
	}
}

type CreateJobRequest struct {
	Keywords    []string
	Marketplace string
	PageDepth   int
	MaxItems    int
}

// Create validates the request, persists the job and submits the stage-1
// run. The run mapping is written at submission time so the completion
// webhook can find its way back.
func (s *JobService) Create(ctx context.Context, req CreateJobRequest) (string, error) {
	keywords := make([]string, 0, len(req.Keywords))
	for _, k := range req.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	if len(keywords) == 0 {
		return "", Fail(CodeValidation, "keywords required")
	}

	mkt := req.Marketplace
	if mkt == "" {
		mkt = DefaultMarketplace
	}
	if mkt != "com" && mkt != "co.uk" {
		return "", Failf(CodeValidation, "unsupported marketplace %q", mkt)
	}

	pageDepth := req.PageDepth
	if pageDepth <= 0 {
		pageDepth = DefaultPageDepth
	}
	if req.MaxItems < 0 {
		return "", Fail(CodeValidation, "maxItems must be a positive integer")
	}

	now := time.Now().UTC()
	job := &entity.Job{
		ID:          uuid.NewString(),
		CreatedAt:   now,
		UpdatedAt:   now,
		Status:      entity.StatusPending,
		Keywords:    keywords,
		Marketplace: mkt,
		PageDepth:   pageDepth,
		MaxItems:    req.MaxItems,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return "", err
	}
	log.Printf("[jobs] job_id=%s created keywords=%d marketplace=%s page_depth=%d max_items=%d",
		job.ID, len(keywords), mkt, pageDepth, req.MaxItems)

	input := apify.ProductRunInput{
		Search:      strings.Join(keywords, " "),
		Marketplace: mkt,
		EndPage:     pageDepth,
		MaxItems:    req.MaxItems,
		Webhooks:    []apify.WebhookTarget{apify.NewRunWebhook(s.webhookBase + "/webhooks/stage1")},
	}
	runID, err := s.actors.StartProductRun(ctx, input)
	if err != nil {
		// No partial advance: the job stays PENDING without a run id.
		s.recordError(ctx, job.ID, "stage-1 submission failed: "+err.Error())
		if errors.Is(err, apify.ErrNoRunID) {
			return "", FailWrap(CodeUpstreamSubmission, "stage-1 run created without a run id", err)
		}
		return "", FailWrap(CodeUpstreamSubmission, "stage-1 submission failed", err)
	}

	if err := s.repo.MapRun(ctx, runID, job.ID); err != nil {
		return "", err
	}
	if _, err := s.repo.Update(ctx, job.ID, func(j *entity.Job) error {
		j.Stage1RunID = runID
		j.Status = entity.StatusRunningStage1
		return nil
	}); err != nil {
		return "", err
	}

	log.Printf("[jobs] job_id=%s stage1_run_id=%s submitted, waiting for webhook", job.ID, runID)
	return job.ID, nil
}

// recordError stores the latest error text without advancing the status.
func (s *JobService) recordError(ctx context.Context, jobID, msg string) {
	if _, err := s.repo.Update(ctx, jobID, func(j *entity.Job) error {
		j.Error = msg
		return nil
	}); err != nil {
		log.Printf("[jobs] job_id=%s record error failed: %v", jobID, err)
	}
}

// JobView is a job snapshot augmented with live progress counters probed
// from the external platform when the persisted record does not know them
// yet.
type JobView struct {
	*entity.Job
	ProductCountLive *int `json:"productCountLive,omitempty"`
	SellerCountLive  *int `json:"sellerCountLive,omitempty"`
	SellerTotal      *int `json:"sellerTotal,omitempty"`
}

func (s *JobService) Get(ctx context.Context, id string) (*JobView, error) {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, Fail(CodeJobNotFound, "job not found")
		}
		return nil, err
	}

	view := &JobView{Job: job}
	switch job.Status {
	case entity.StatusRunningStage1:
		if n, ok := s.liveCount(ctx, job.ID, job.Stage1RunID, job.Stage1DatasetID, func(j *entity.Job, ds string) bool {
			if j.Stage1DatasetID != "" {
				return false
			}
			j.Stage1DatasetID = ds
			return true
		}); ok {
			view.ProductCountLive = &n
		}
	case entity.StatusRunningStage2:
		total := len(job.Stage2Input)
		view.SellerTotal = &total
		if n, ok := s.liveCount(ctx, job.ID, job.Stage2RunID, job.Stage2DatasetID, func(j *entity.Job, ds string) bool {
			if j.Stage2DatasetID != "" {
				return false
			}
			j.Stage2DatasetID = ds
			return true
		}); ok {
			view.SellerCountLive = &n
		}
	}
	return view, nil
}

// liveCount resolves a run's dataset and its current item count. A dataset
// id learned here is persisted opportunistically as a merge; when the
// webhook path already filled the field the write is skipped entirely.
func (s *JobService) liveCount(ctx context.Context, jobID, runID, datasetID string, setDataset func(*entity.Job, string) bool) (int, bool) {
	if runID == "" {
		return 0, false
	}
	if datasetID == "" {
		info, err := s.actors.RunInfo(ctx, runID)
		if err != nil {
			log.Printf("[jobs] job_id=%s run_id=%s live probe failed: %v", jobID, runID, err)
			return 0, false
		}
		datasetID = info.DefaultDatasetID
		if datasetID == "" {
			return 0, false
		}
		ds := datasetID
		if _, err := s.repo.Update(ctx, jobID, func(j *entity.Job) error {
			if !setDataset(j, ds) {
				return store.ErrSkipWrite
			}
			return nil
		}); err != nil {
			log.Printf("[jobs] job_id=%s persist live dataset id failed: %v", jobID, err)
		}
	}
	n, err := s.actors.DatasetItemCount(ctx, datasetID)
	if err != nil {
		log.Printf("[jobs] job_id=%s dataset=%s live count failed: %v", jobID, datasetID, err)
		return 0, false
	}
	return n, true
}

func (s *JobService) List(ctx context.Context) ([]*entity.Job, error) {
	return s.repo.List(ctx)
}

// Delete removes a job, its run mappings and, best effort, its external
// datasets. Deleting an unknown job succeeds.
func (s *JobService) Delete(ctx context.Context, id string) error {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	for _, ds := range []string{job.Stage1DatasetID, job.Stage2DatasetID} {
		if ds == "" {
			continue
		}
		if err := s.actors.DeleteDataset(ctx, ds); err != nil {
			log.Printf("[jobs] job_id=%s dataset=%s delete failed (ignored): %v", id, ds, err)
		}
	}
	return s.repo.Delete(ctx, job)
}
