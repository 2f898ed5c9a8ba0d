package entity

import (
	"time"
)

type JobStatus string

const (
	StatusPending       JobStatus = "PENDING"
	StatusRunningStage1 JobStatus = "RUNNING_STAGE1"
	StatusRunningStage2 JobStatus = "RUNNING_STAGE2"
	StatusSucceeded     JobStatus = "SUCCEEDED"
	StatusFailed        JobStatus = "FAILED"
)

// statusRank orders the forward progression. FAILED sits at terminal rank so
// a failure can land from any running state but never be overwritten back.
var statusRank = map[JobStatus]int{
	StatusPending:       0,
	StatusRunningStage1: 1,
	StatusRunningStage2: 2,
	StatusSucceeded:     3,
	StatusFailed:        3,
}

// CanTransition reports whether moving from -> next keeps the status
// progression monotonic.
func CanTransition(from, next JobStatus) bool {
	if from == next {
		return true
	}
	if from.Terminal() {
		return false
	}
	return statusRank[next] > statusRank[from]
}

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// SellerRef is one stage-2 input entry: a seller to look up on a given
// marketplace domain.
type SellerRef struct {
	SellerID   string `json:"sellerId"`
	DomainCode string `json:"domainCode"`
}

type Job struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Status    JobStatus `json:"status"`

	Keywords    []string `json:"keywords"`
	Marketplace string   `json:"marketplace"` // "com" or "co.uk"
	PageDepth   int      `json:"pageDepth"`
	MaxItems    int      `json:"maxItems,omitempty"` // 0 = no cap

	// External correlation, populated progressively, never retracted.
	Stage1RunID     string `json:"stage1RunId,omitempty"`
	Stage1DatasetID string `json:"stage1DatasetId,omitempty"`
	Stage2RunID     string `json:"stage2RunId,omitempty"`
	Stage2DatasetID string `json:"stage2DatasetId,omitempty"`

	ProductCount int         `json:"productCount,omitempty"`
	Stage2Input  []SellerRef `json:"stage2Input,omitempty"`
	Error        string      `json:"error,omitempty"`

	// Summary counters gathered while deriving stage-2 input and exporting.
	EmptySellerIDCount       int `json:"emptySellerIdCount,omitempty"`
	DuplicateSellerCount     int `json:"duplicateSellerCount,omitempty"`
	SellersOutOfCountryCount int `json:"sellersOutOfCountryCount,omitempty"`

	// Version counts successful writes; the repository uses it for
	// conditional updates.
	Version int `json:"version"`
}
