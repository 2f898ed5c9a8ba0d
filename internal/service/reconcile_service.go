package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"seller-export-service/internal/apify"
	"seller-export-service/internal/entity"
	"seller-export-service/internal/marketplace"
	"seller-export-service/internal/repository"
)

const upstreamSucceeded = "SUCCEEDED"

// ReconcileService consumes stage completion notifications and drives the
// job state machine forward. Deliveries are at-least-once; the processed
// marker keeps a duplicate stage-1 delivery from submitting stage 2 twice.
type ReconcileService struct {
	repo        *repository.JobRepository
	client      *apify.Client
	policy      apify.RetryPolicy
	webhookBase string
}

func NewReconcileService(repo *repository.JobRepository, client *apify.Client, policy apify.RetryPolicy, webhookBase string) *ReconcileService {
	return &ReconcileService{
		repo:        repo,
		client:      client,
		policy:      policy,
		webhookBase: strings.TrimRight(webhookBase, "/"),
	}
}

// resolve runs the shared head of both pipelines: parse, status gate,
// required fields, run mapping, job lookup. It never mutates state.
func (s *ReconcileService) resolve(ctx context.Context, stage string, raw []byte) (apify.WebhookPayload, *entity.Job, error) {
	payload, ok := apify.ParseWebhookPayload(raw)
	if !ok {
		return payload, nil, Fail(CodeWebhookMalformed, "body empty or not a JSON object")
	}

	if payload.Status != "" && payload.Status != upstreamSucceeded {
		f := Failf(CodeUpstreamNotSucceeded, "%s run is not SUCCEEDED (status=%s)", stage, payload.Status)
		if payload.ErrorMessage != "" {
			f = f.WithMeta("upstreamError", payload.ErrorMessage)
		}
		return payload, nil, f
	}

	if payload.RunID == "" || payload.DatasetID == "" {
		return payload, nil, Fail(CodeWebhookMalformed, "missing runId or datasetId in webhook payload").
			WithMeta("haveRunId", payload.RunID != "").
			WithMeta("haveDatasetId", payload.DatasetID != "")
	}

	jobID, err := s.repo.ResolveRun(ctx, payload.RunID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return payload, nil, Failf(CodeRunNotMapped, "no job mapped for run %s", payload.RunID)
		}
		return payload, nil, err
	}

	job, err := s.repo.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return payload, nil, Failf(CodeJobNotFound, "run %s maps to job %s but the job record is missing", payload.RunID, jobID)
		}
		return payload, nil, err
	}
	return payload, job, nil
}

// Stage1 handles a stage-1 completion: fetch the full product dataset,
// derive the deduplicated seller list, advance the job to RUNNING_STAGE2 and
// submit stage 2.
func (s *ReconcileService) Stage1(ctx context.Context, raw []byte) error {
	payload, job, err := s.resolve(ctx, "stage1", raw)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		// A replayed delivery for a finished job. Acknowledged without
		// side effects: a FAILED job must not get an external run started.
		log.Printf("[reconcile] job_id=%s status=%s terminal, ignoring stage-1 delivery run_id=%s",
			job.ID, job.Status, payload.RunID)
		return nil
	}

	items, err := apify.FetchAllItems[entity.ProductItem](ctx, s.client, payload.DatasetID, s.policy)
	if err != nil {
		return FailWrap(CodeDatasetFetch, "stage-1 dataset fetch failed", err).
			WithMeta("datasetId", payload.DatasetID)
	}
	log.Printf("[reconcile] job_id=%s stage1 dataset=%s items=%d", job.ID, payload.DatasetID, len(items))

	if len(items) == 0 {
		// Legitimate terminal outcome (the search matched nothing); the job
		// cannot advance, so it fails with the reason stored.
		if _, uerr := s.repo.Update(ctx, job.ID, func(j *entity.Job) error {
			j.Status = entity.StatusFailed
			j.Error = "stage-1 dataset contained 0 items after retries"
			return nil
		}); uerr != nil {
			log.Printf("[reconcile] job_id=%s mark failed error: %v", job.ID, uerr)
		}
		return Fail(CodeDatasetEmpty, "dataset contains 0 items after retries").
			WithMeta("datasetId", payload.DatasetID)
	}

	sellerInput, emptyIDs, duplicates := deriveSellerInput(items, job.MaxItems)
	log.Printf("[reconcile] job_id=%s seller_input=%d empty_seller_ids=%d duplicates=%d",
		job.ID, len(sellerInput), emptyIDs, duplicates)

	if _, err := s.repo.Update(ctx, job.ID, func(j *entity.Job) error {
		j.Status = entity.StatusRunningStage2
		j.Stage1DatasetID = payload.DatasetID
		j.ProductCount = len(items)
		j.Stage2Input = sellerInput
		j.EmptySellerIDCount = emptyIDs
		j.DuplicateSellerCount = duplicates
		return nil
	}); err != nil {
		return err
	}

	// Claim the processed marker only now: a failed fetch above stays
	// retryable, while two concurrent deliveries that both got this far race
	// on the atomic set-add and only one submits stage 2.
	first, err := s.repo.MarkProcessed(ctx, "stage1", payload.RunID)
	if err != nil {
		return err
	}
	if !first {
		log.Printf("[reconcile] job_id=%s run_id=%s duplicate stage-1 delivery, stage 2 already submitted", job.ID, payload.RunID)
		return nil
	}

	stage2RunID, err := s.client.StartSellerRun(ctx, apify.SellerRunInput{
		Input:    sellerInput,
		Webhooks: []apify.WebhookTarget{apify.NewRunWebhook(s.webhookBase + "/webhooks/stage2")},
	})
	if err != nil {
		// The job is parked in RUNNING_STAGE2 without a stage-2 run: a
		// degraded state surfaced to operators, not auto-retried here.
		s.recordError(ctx, job.ID, "stage-2 submission failed: "+err.Error())
		if errors.Is(err, apify.ErrNoRunID) {
			return FailWrap(CodeStage2NoRunID, "stage-2 run created without a run id", err)
		}
		return FailWrap(CodeStage2Submission, "stage-2 submission failed", err)
	}

	if err := s.repo.MapRun(ctx, stage2RunID, job.ID); err != nil {
		return err
	}
	if _, err := s.repo.Update(ctx, job.ID, func(j *entity.Job) error {
		j.Stage2RunID = stage2RunID
		return nil
	}); err != nil {
		return err
	}

	log.Printf("[reconcile] job_id=%s stage2_run_id=%s submitted, waiting for webhook", job.ID, stage2RunID)
	return nil
}

// Stage2 handles a stage-2 completion: the job reaches its terminal success
// state. The export flow fetches the dataset on demand.
func (s *ReconcileService) Stage2(ctx context.Context, raw []byte) error {
	payload, job, err := s.resolve(ctx, "stage2", raw)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		log.Printf("[reconcile] job_id=%s status=%s terminal, ignoring stage-2 delivery run_id=%s",
			job.ID, job.Status, payload.RunID)
		return nil
	}

	// No processed marker here: the SUCCEEDED persist is idempotent under
	// the repository merge, and a marker claimed before a failed persist
	// would swallow the sender's retry and wedge the job.
	if _, err := s.repo.Update(ctx, job.ID, func(j *entity.Job) error {
		j.Status = entity.StatusSucceeded
		j.Stage2DatasetID = payload.DatasetID
		return nil
	}); err != nil {
		return err
	}
	log.Printf("[reconcile] job_id=%s marked SUCCEEDED dataset=%s", job.ID, payload.DatasetID)
	return nil
}

func (s *ReconcileService) recordError(ctx context.Context, jobID, msg string) {
	if _, err := s.repo.Update(ctx, jobID, func(j *entity.Job) error {
		j.Error = msg
		return nil
	}); err != nil {
		log.Printf("[reconcile] job_id=%s record error failed: %v", jobID, err)
	}
}

// deriveSellerInput builds the stage-2 input: one entry per distinct
// (sellerId, domainCode) pair, first-seen order, truncated to maxItems when
// a cap is set. Items without a resolvable seller id are dropped and
// counted.
func deriveSellerInput(items []entity.ProductItem, maxItems int) (input []entity.SellerRef, emptyIDs, duplicates int) {
	seen := make(map[string]struct{}, len(items))
	for i := range items {
		it := &items[i]
		sellerID := it.SellerID()
		if sellerID == "" {
			emptyIDs++
			continue
		}
		dc := marketplace.DomainCodeFromURL(it.BestURL())
		key := sellerID + "::" + dc
		if _, dup := seen[key]; dup {
			duplicates++
			continue
		}
		seen[key] = struct{}{}
		input = append(input, entity.SellerRef{SellerID: sellerID, DomainCode: dc})
	}
	if maxItems > 0 && len(input) > maxItems {
		input = input[:maxItems]
	}
	return input, emptyIDs, duplicates
}
