// Package repository persists jobs and run-ID mappings through the store
// primitives. It owns the state-machine guarantees: monotonic status, never
// retracted correlation IDs, non-decreasing updatedAt, versioned writes.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"seller-export-service/internal/entity"
	"seller-export-service/internal/store"
)

var ErrNotFound = errors.New("not found")

const (
	jobKeyPrefix = "job:"
	runKeyPrefix = "run:"
	jobIndexKey  = "jobs"
)

type JobRepository struct {
	store store.Store
}

func NewJobRepository(s store.Store) *JobRepository {
	return &JobRepository{store: s}
}

func jobKey(id string) string    { return jobKeyPrefix + id }
func runKey(runID string) string { return runKeyPrefix + runID }

// Create persists a brand-new job and registers it in the listing index.
func (r *JobRepository) Create(ctx context.Context, job *entity.Job) error {
	job.Version = 1
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, jobKey(job.ID), raw); err != nil {
		return err
	}
	if _, err := r.store.SAdd(ctx, jobIndexKey, job.ID); err != nil {
		return err
	}
	return nil
}

func (r *JobRepository) Get(ctx context.Context, id string) (*entity.Job, error) {
	raw, err := r.store.Get(ctx, jobKey(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var job entity.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

// Update atomically re-reads the job, applies mutate and writes the result
// back. The merge rules hold regardless of what mutate did: status never
// regresses, run/dataset IDs never go back to empty, updatedAt never
// decreases, version always bumps. A mutate returning store.ErrSkipWrite
// leaves the record untouched and returns the current snapshot.
func (r *JobRepository) Update(ctx context.Context, id string, mutate func(j *entity.Job) error) (*entity.Job, error) {
	var result *entity.Job
	err := r.store.Update(ctx, jobKey(id), func(old []byte) ([]byte, error) {
		if old == nil {
			return nil, ErrNotFound
		}
		var prev entity.Job
		if err := json.Unmarshal(old, &prev); err != nil {
			return nil, fmt.Errorf("decode job %s: %w", id, err)
		}

		next := prev
		next.Stage2Input = append([]entity.SellerRef(nil), prev.Stage2Input...)
		next.Keywords = append([]string(nil), prev.Keywords...)
		if err := mutate(&next); err != nil {
			if errors.Is(err, store.ErrSkipWrite) {
				result = &prev
			}
			return nil, err
		}

		if !entity.CanTransition(prev.Status, next.Status) {
			next.Status = prev.Status
		}
		keepNonEmpty(&next.Stage1RunID, prev.Stage1RunID)
		keepNonEmpty(&next.Stage1DatasetID, prev.Stage1DatasetID)
		keepNonEmpty(&next.Stage2RunID, prev.Stage2RunID)
		keepNonEmpty(&next.Stage2DatasetID, prev.Stage2DatasetID)

		now := time.Now().UTC()
		if now.After(prev.UpdatedAt) {
			next.UpdatedAt = now
		} else {
			next.UpdatedAt = prev.UpdatedAt
		}
		next.CreatedAt = prev.CreatedAt
		next.Version = prev.Version + 1

		result = &next
		return json.Marshal(&next)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func keepNonEmpty(field *string, prev string) {
	if *field == "" && prev != "" {
		*field = prev
	}
}

// Delete removes the job record, its run mappings and its index entry.
// Deleting an unknown job is a no-op.
func (r *JobRepository) Delete(ctx context.Context, job *entity.Job) error {
	keys := []string{jobKey(job.ID)}
	if job.Stage1RunID != "" {
		keys = append(keys, runKey(job.Stage1RunID))
	}
	if job.Stage2RunID != "" {
		keys = append(keys, runKey(job.Stage2RunID))
	}
	if err := r.store.Del(ctx, keys...); err != nil {
		return err
	}
	return r.store.SRem(ctx, jobIndexKey, job.ID)
}

// List returns all indexed jobs, newest updatedAt first. Index entries whose
// job record is gone are skipped.
func (r *JobRepository) List(ctx context.Context) ([]*entity.Job, error) {
	ids, err := r.store.SMembers(ctx, jobIndexKey)
	if err != nil {
		return nil, err
	}
	jobs := make([]*entity.Job, 0, len(ids))
	for _, id := range ids {
		job, err := r.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].UpdatedAt.After(jobs[j].UpdatedAt)
	})
	return jobs, nil
}

// MapRun records runID -> jobID so a completion webhook, which only knows
// the external run, can be resolved back to its job.
func (r *JobRepository) MapRun(ctx context.Context, runID, jobID string) error {
	return r.store.Set(ctx, runKey(runID), []byte(jobID))
}

func (r *JobRepository) ResolveRun(ctx context.Context, runID string) (string, error) {
	raw, err := r.store.Get(ctx, runKey(runID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return string(raw), nil
}

// MarkProcessed claims the processed-notification marker for a run within a
// stage. It reports true exactly once per (stage, runID), which is what
// keeps a duplicate stage-1 delivery from submitting stage 2 twice.
func (r *JobRepository) MarkProcessed(ctx context.Context, stage, runID string) (bool, error) {
	return r.store.SAdd(ctx, "processed:"+stage, runID)
}
