package service

import (
	"context"
	"errors"
	"log"

	"seller-export-service/internal/apify"
	"seller-export-service/internal/country"
	"seller-export-service/internal/entity"
	"seller-export-service/internal/excel"
	"seller-export-service/internal/merge"
	"seller-export-service/internal/repository"
	"seller-export-service/internal/store"
)

// ExportService re-fetches both datasets on demand, filters sellers by
// country and serializes the merged rows into a workbook.
type ExportService struct {
	repo   *repository.JobRepository
	client *apify.Client
}

func NewExportService(repo *repository.JobRepository, client *apify.Client) *ExportService {
	return &ExportService{repo: repo, client: client}
}

// exportFetchPolicy pages without settle delays: by the time a job is
// SUCCEEDED both datasets have long been consistent.
func exportFetchPolicy() apify.RetryPolicy {
	p := apify.DefaultRetryPolicy()
	p.InitialDelay = 0
	p.MaxWait = 0
	return p
}

// Export builds the spreadsheet for a terminal successful job. Rows whose
// matched seller sits outside the allowed countries are dropped; products
// with no matched seller are kept.
func (s *ExportService) Export(ctx context.Context, jobID string) (filename string, data []byte, err error) {
	job, err := s.repo.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, Fail(CodeJobNotFound, "job not found")
		}
		return "", nil, err
	}
	if job.Status != entity.StatusSucceeded || job.Stage1DatasetID == "" || job.Stage2DatasetID == "" {
		return "", nil, Failf(CodeValidation, "job not ready for export (status=%s)", job.Status)
	}

	policy := exportFetchPolicy()
	products, err := apify.FetchAllItems[entity.ProductItem](ctx, s.client, job.Stage1DatasetID, policy)
	if err != nil {
		return "", nil, FailWrap(CodeDatasetFetch, "product dataset fetch failed", err)
	}
	sellers, err := apify.FetchAllItems[entity.SellerDetail](ctx, s.client, job.Stage2DatasetID, policy)
	if err != nil {
		return "", nil, FailWrap(CodeDatasetFetch, "seller dataset fetch failed", err)
	}
	log.Printf("[export] job_id=%s products=%d sellers=%d", jobID, len(products), len(sellers))

	rows := merge.Rows(products, sellers)
	kept := rows[:0]
	outOfCountry := 0
	for i := range rows {
		if keepRow(&rows[i]) {
			kept = append(kept, rows[i])
		} else {
			outOfCountry++
		}
	}

	if _, uerr := s.repo.Update(ctx, jobID, func(j *entity.Job) error {
		if j.SellersOutOfCountryCount == outOfCountry {
			return store.ErrSkipWrite
		}
		j.SellersOutOfCountryCount = outOfCountry
		return nil
	}); uerr != nil {
		log.Printf("[export] job_id=%s persist out-of-country count failed: %v", jobID, uerr)
	}

	data, err = excel.Workbook(kept)
	if err != nil {
		return "", nil, FailWrap(CodeInternal, "workbook serialization failed", err)
	}
	log.Printf("[export] job_id=%s rows=%d filtered_out=%d bytes=%d", jobID, len(kept), outOfCountry, len(data))

	return "seller-export-" + jobID + ".xlsx", data, nil
}

func keepRow(r *merge.Row) bool {
	if r.Seller == nil {
		// No matched profile means no address to judge by.
		return true
	}
	return country.IsAllowed(country.FromBusinessAddress(r.Seller.SellerDetails))
}
