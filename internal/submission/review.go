package submission

import (
	"context"

	"github.com/mind-engage/mindengage-learn/internal/apiclient"
	"github.com/mind-engage/mindengage-learn/internal/course"
	"github.com/mind-engage/mindengage-learn/internal/grading"
	"github.com/mind-engage/mindengage-learn/internal/platform/logger"
)

type ReviewAPI interface {
	TheorySubmissions(ctx context.Context, taskID course.TaskID) ([]course.TheorySubmission, error)
	ReviewTheory(ctx context.Context, id course.SubmissionID, rv apiclient.Review) error
}

// Reviewer is the grading side of theory tasks. It is stateless; callers
// construct one per request with the reviewer's credentials.
type Reviewer struct {
	api ReviewAPI
	log *logger.Logger
}

func NewReviewer(api ReviewAPI, log *logger.Logger) *Reviewer {
	return &Reviewer{api: api, log: logger.OrNop(log)}
}

func (r *Reviewer) List(ctx context.Context, taskID course.TaskID) ([]course.TheorySubmission, error) {
	subs, err := r.api.TheorySubmissions(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if subs == nil {
		subs = []course.TheorySubmission{}
	}
	return subs, nil
}

// Review grades a submission. The status is always derived from the
// percentage so reviewers and learners see the same verdict.
func (r *Reviewer) Review(ctx context.Context, id course.SubmissionID, percentage float64, feedback string) (apiclient.Review, error) {
	if err := grading.ValidatePercentage(percentage); err != nil {
		return apiclient.Review{}, err
	}
	rv := apiclient.Review{
		Percentage: percentage,
		Feedback:   feedback,
		Status:     grading.ReviewStatus(percentage),
	}
	if err := r.api.ReviewTheory(ctx, id, rv); err != nil {
		r.log.Warn("review write failed", "submission_id", id, "error", err)
		return apiclient.Review{}, err
	}
	return rv, nil
}
