package document

import (
	"fmt"
	"time"

	"github.com/fichesante/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ItemResult is the outcome of one position of a batch.
// Exactly one of Artifact and Err is set once the position is recorded.
type ItemResult struct {
	Position int
	ID       string
	Artifact *Artifact
	Err      *GenerationError
}

// Succeeded reports whether the item produced an artifact
func (r ItemResult) Succeeded() bool {
	return r.Artifact != nil
}

// BatchJob is a multi-record generation request.
// Every requested position keeps its own result; none is discarded.
type BatchJob struct {
	JobID     uuid.UUID
	IDs       []string
	Variant   Variant
	Category  string
	CreatedAt time.Time
	Results   []ItemResult
}

// NewBatchJob creates a batch job; an empty category falls back to the variant default
func NewBatchJob(ids []string, v Variant, category string, now time.Time) (*BatchJob, error) {
	if !v.IsValid() {
		return nil, &InvalidVariantError{Value: string(v)}
	}
	if category == "" {
		category = v.DefaultCategory()
	}
	job := &BatchJob{
		JobID:     uuid.New(),
		IDs:       append([]string(nil), ids...),
		Variant:   v,
		Category:  category,
		CreatedAt: now,
		Results:   make([]ItemResult, len(ids)),
	}
	for i, id := range ids {
		job.Results[i] = ItemResult{Position: i, ID: id}
	}
	return job, nil
}

// Record stores the outcome of a position.
// Concurrent calls are safe as long as they target distinct positions.
func (j *BatchJob) Record(pos int, artifact *Artifact, genErr *GenerationError) error {
	if pos < 0 || pos >= len(j.Results) {
		return shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("batch position %d out of range", pos))
	}
	if (artifact == nil) == (genErr == nil) {
		return shared.NewDomainError(shared.CodeInvalidInput, "exactly one of artifact or error is required")
	}
	j.Results[pos].Artifact = artifact
	j.Results[pos].Err = genErr
	return nil
}

// Successes returns the positions that produced an artifact, in request order
func (j *BatchJob) Successes() []ItemResult {
	out := make([]ItemResult, 0, len(j.Results))
	for _, r := range j.Results {
		if r.Succeeded() {
			out = append(out, r)
		}
	}
	return out
}

// Failures returns the recorded errors, in request order
func (j *BatchJob) Failures() []*GenerationError {
	out := make([]*GenerationError, 0)
	for _, r := range j.Results {
		if r.Err != nil {
			out = append(out, r.Err)
		}
	}
	return out
}

// ArchiveName returns "{brand}-{category}-{YYYY-MM-DD}.zip" for the job creation date
func (j *BatchJob) ArchiveName(brand string) string {
	return fmt.Sprintf("%s-%s-%s.zip", brand, j.Category, j.CreatedAt.Format("2006-01-02"))
}
