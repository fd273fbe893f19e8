// Package router validates incoming research queries, deduplicates
// concurrent requests for the same work, and caches completed SERP
// results (spec §4.11).
package router

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brunobiangulo/acctplan"
	"github.com/brunobiangulo/acctplan/cache"
)

const maxQueryLength = 1000

var suspiciousPatterns = []string{"<script", "javascript:", "onerror=", "onload="}

// Router validates, deduplicates and caches research requests.
type Router struct {
	mu         sync.Mutex
	activeJobs map[string]*acctplan.Job // keyed by query hash
	serpCache  *cache.Cache
	serpTTL    time.Duration
}

// New returns a Router. serpTTL is the SERP-result cache lifetime
// (spec §9 resolves the source material's ambiguous 1-6h default to a
// single fixed value, passed in via config).
func New(serpCache *cache.Cache, serpTTL time.Duration) *Router {
	return &Router{
		activeJobs: make(map[string]*acctplan.Job),
		serpCache:  serpCache,
		serpTTL:    serpTTL,
	}
}

// RouteResult is what Route returns: either a cache hit, a reference
// to an already in-flight duplicate job, or a freshly created job.
type RouteResult struct {
	Cached      bool
	CachedValue any
	Duplicate   bool
	Job         *acctplan.Job
}

// Route validates the query, then returns a cache hit, the existing
// in-flight job for a duplicate query, or a newly created job.
func (r *Router) Route(query, userID, companyName string) (RouteResult, error) {
	if err := validateQuery(query); err != nil {
		return RouteResult{}, err
	}

	queryHash := QueryHash(query, companyName, userID)
	cacheKey := "serp:" + queryHash

	r.mu.Lock()
	if existing, ok := r.activeJobs[queryHash]; ok {
		r.mu.Unlock()
		return RouteResult{Duplicate: true, Job: existing}, nil
	}
	r.mu.Unlock()

	if v, ok := r.serpCache.Get(cacheKey); ok {
		return RouteResult{Cached: true, CachedValue: v}, nil
	}

	job := &acctplan.Job{
		JobID:       uuid.NewString(),
		QueryHash:   queryHash,
		UserID:      userID,
		CompanyName: companyName,
		Status:      acctplan.JobQueued,
		CreatedAt:   time.Now().UTC(),
	}

	r.mu.Lock()
	r.activeJobs[queryHash] = job
	r.mu.Unlock()

	return RouteResult{Job: job}, nil
}

// MarkComplete transitions a job to completed, stores its result, and
// caches the result under the job's SERP cache key for serpTTL.
func (r *Router) MarkComplete(queryHash string, result any) {
	r.mu.Lock()
	job, ok := r.activeJobs[queryHash]
	if ok {
		job.Status = acctplan.JobCompleted
		job.CompletedAt = time.Now().UTC()
		job.Result = result
	}
	r.mu.Unlock()

	if ok {
		r.serpCache.Set("serp:"+queryHash, result, r.serpTTL)
	}
}

// MarkFailed transitions a job to failed with the given error message.
func (r *Router) MarkFailed(queryHash string, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.activeJobs[queryHash]; ok {
		job.Status = acctplan.JobFailed
		job.CompletedAt = time.Now().UTC()
		job.Err = errMsg
	}
}

// JobStatus returns the job with the given job id, if one is tracked.
func (r *Router) JobStatus(jobID string) (*acctplan.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, job := range r.activeJobs {
		if job.JobID == jobID {
			return job, true
		}
	}
	return nil, false
}

// CleanupOldJobs removes completed or failed jobs older than maxAge.
func (r *Router) CleanupOldJobs(maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for hash, job := range r.activeJobs {
		if job.Status != acctplan.JobCompleted && job.Status != acctplan.JobFailed {
			continue
		}
		if !job.CompletedAt.IsZero() && job.CompletedAt.Before(cutoff) {
			delete(r.activeJobs, hash)
			removed++
		}
	}
	return removed
}

func validateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return acctplan.ErrEmptyQuery
	}
	if len(query) > maxQueryLength {
		return acctplan.ErrQueryTooLong
	}
	lower := strings.ToLower(query)
	for _, p := range suspiciousPatterns {
		if strings.Contains(lower, p) {
			return acctplan.ErrUnsafeQuery
		}
	}
	return nil
}

// QueryHash derives a stable deduplication/cache key from the query,
// company name and user id.
func QueryHash(query, companyName, userID string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	if companyName != "" {
		normalized += fmt.Sprintf(":%s", strings.ToLower(strings.TrimSpace(companyName)))
	}
	normalized += ":" + userID

	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
