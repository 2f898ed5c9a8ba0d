package repository

import (
	"context"
	"testing"
	"time"

	"seller-export-service/internal/entity"
	"seller-export-service/internal/store"
)

func newRepo() *JobRepository {
	return NewJobRepository(store.NewMemory())
}

func seedJob(t *testing.T, r *JobRepository, id string) *entity.Job {
	t.Helper()
	now := time.Now().UTC()
	job := &entity.Job{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		Status:    entity.StatusPending,
		Keywords:  []string{"desk lamp"},
	}
	if err := r.Create(context.Background(), job); err != nil {
		t.Fatalf("create: %v", err)
	}
	return job
}

func TestCreateAndGet(t *testing.T) {
	r := newRepo()
	seedJob(t, r, "j1")

	got, err := r.Get(context.Background(), "j1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != entity.StatusPending {
		t.Fatalf("expected PENDING, got %s", got.Status)
	}
	if got.Version != 1 {
		t.Fatalf("expected version 1, got %d", got.Version)
	}
}

func TestGetUnknown(t *testing.T) {
	r := newRepo()
	if _, err := r.Get(context.Background(), "nope"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateStatusNeverRegresses(t *testing.T) {
	r := newRepo()
	ctx := context.Background()
	seedJob(t, r, "j1")

	if _, err := r.Update(ctx, "j1", func(j *entity.Job) error {
		j.Status = entity.StatusRunningStage2
		return nil
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	// A late stage-1 write must not pull the job backwards.
	got, err := r.Update(ctx, "j1", func(j *entity.Job) error {
		j.Status = entity.StatusRunningStage1
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Status != entity.StatusRunningStage2 {
		t.Fatalf("expected RUNNING_STAGE2 to stick, got %s", got.Status)
	}
}

func TestUpdateTerminalStatusSticks(t *testing.T) {
	r := newRepo()
	ctx := context.Background()
	seedJob(t, r, "j1")

	if _, err := r.Update(ctx, "j1", func(j *entity.Job) error {
		j.Status = entity.StatusFailed
		return nil
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := r.Update(ctx, "j1", func(j *entity.Job) error {
		j.Status = entity.StatusSucceeded
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Status != entity.StatusFailed {
		t.Fatalf("expected FAILED to stick, got %s", got.Status)
	}
}

func TestUpdateNeverRetractsIDs(t *testing.T) {
	r := newRepo()
	ctx := context.Background()
	seedJob(t, r, "j1")

	if _, err := r.Update(ctx, "j1", func(j *entity.Job) error {
		j.Stage1RunID = "run-1"
		j.Stage1DatasetID = "ds-1"
		return nil
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := r.Update(ctx, "j1", func(j *entity.Job) error {
		j.Stage1RunID = ""
		j.Stage1DatasetID = ""
		j.Stage2RunID = "run-2"
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Stage1RunID != "run-1" || got.Stage1DatasetID != "ds-1" {
		t.Fatalf("stage-1 IDs retracted: run=%q dataset=%q", got.Stage1RunID, got.Stage1DatasetID)
	}
	if got.Stage2RunID != "run-2" {
		t.Fatalf("expected stage-2 run to be set, got %q", got.Stage2RunID)
	}
}

func TestUpdateBumpsVersionAndUpdatedAt(t *testing.T) {
	r := newRepo()
	ctx := context.Background()
	job := seedJob(t, r, "j1")

	got, err := r.Update(ctx, "j1", func(j *entity.Job) error { return nil })
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Version != 2 {
		t.Fatalf("expected version 2, got %d", got.Version)
	}
	if got.UpdatedAt.Before(job.UpdatedAt) {
		t.Fatalf("updatedAt went back: %s -> %s", job.UpdatedAt, got.UpdatedAt)
	}
	if !got.CreatedAt.Equal(job.CreatedAt) {
		t.Fatalf("createdAt changed: %s -> %s", job.CreatedAt, got.CreatedAt)
	}
}

func TestUpdateSkipWriteLeavesRecordUntouched(t *testing.T) {
	r := newRepo()
	ctx := context.Background()
	seedJob(t, r, "j1")

	got, err := r.Update(ctx, "j1", func(j *entity.Job) error {
		return store.ErrSkipWrite
	})
	if err != nil {
		t.Fatalf("skip write should not error, got %v", err)
	}
	if got == nil || got.Version != 1 {
		t.Fatalf("expected current snapshot at version 1, got %+v", got)
	}

	stored, err := r.Get(ctx, "j1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Version != 1 {
		t.Fatalf("skipped write must not bump version, got %d", stored.Version)
	}
}

func TestUpdateUnknownJob(t *testing.T) {
	r := newRepo()
	_, err := r.Update(context.Background(), "nope", func(j *entity.Job) error { return nil })
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	r := newRepo()
	ctx := context.Background()
	seedJob(t, r, "old")
	seedJob(t, r, "new")

	// Touch "old" last so it sorts first.
	time.Sleep(2 * time.Millisecond)
	if _, err := r.Update(ctx, "old", func(j *entity.Job) error { return nil }); err != nil {
		t.Fatalf("update: %v", err)
	}

	jobs, err := r.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != "old" {
		t.Fatalf("expected most recently touched job first, got %s", jobs[0].ID)
	}
}

func TestDeleteRemovesRunMappings(t *testing.T) {
	r := newRepo()
	ctx := context.Background()
	seedJob(t, r, "j1")
	if err := r.MapRun(ctx, "run-1", "j1"); err != nil {
		t.Fatalf("map run: %v", err)
	}

	job, _ := r.Update(ctx, "j1", func(j *entity.Job) error {
		j.Stage1RunID = "run-1"
		return nil
	})
	if err := r.Delete(ctx, job); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := r.Get(ctx, "j1"); err != ErrNotFound {
		t.Fatalf("expected job gone, got %v", err)
	}
	if _, err := r.ResolveRun(ctx, "run-1"); err != ErrNotFound {
		t.Fatalf("expected run mapping gone, got %v", err)
	}
	jobs, err := r.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected empty list, got %d", len(jobs))
	}
}

func TestResolveRun(t *testing.T) {
	r := newRepo()
	ctx := context.Background()
	if err := r.MapRun(ctx, "run-9", "j9"); err != nil {
		t.Fatalf("map run: %v", err)
	}
	id, err := r.ResolveRun(ctx, "run-9")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id != "j9" {
		t.Fatalf("expected j9, got %s", id)
	}
	if _, err := r.ResolveRun(ctx, "unknown"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkProcessedOnce(t *testing.T) {
	r := newRepo()
	ctx := context.Background()

	first, err := r.MarkProcessed(ctx, "stage1", "run-1")
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if !first {
		t.Fatal("first claim should succeed")
	}
	again, err := r.MarkProcessed(ctx, "stage1", "run-1")
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if again {
		t.Fatal("second claim for the same run should report false")
	}
	other, err := r.MarkProcessed(ctx, "stage2", "run-1")
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if !other {
		t.Fatal("same run in a different stage is a fresh claim")
	}
}
