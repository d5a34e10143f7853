package models

import "time"

// ReviewStatus is the state of a review record. REJECTED and PUBLISHED are
// terminal; a rejected submission cycle produces a new version and a new
// review.
type ReviewStatus string

const (
	ReviewPending   ReviewStatus = "PENDING"
	ReviewApproved  ReviewStatus = "APPROVED"
	ReviewRejected  ReviewStatus = "REJECTED"
	ReviewPublished ReviewStatus = "PUBLISHED"
)

// reviewEdges defines the one-way review lifecycle.
var reviewEdges = map[ReviewStatus][]ReviewStatus{
	ReviewPending:  {ReviewApproved, ReviewRejected},
	ReviewApproved: {ReviewPublished},
}

// CanReviewTransition reports whether a review may move between the two
// statuses. Re-applying a transition to an already-advanced review is a
// caller error, never a no-op.
func CanReviewTransition(from, to ReviewStatus) bool {
	for _, next := range reviewEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Review evaluates one document version. Exactly one review may exist per
// (document, version) pair, enforced by a storage uniqueness constraint.
type Review struct {
	ID         string       `db:"id" json:"id"`
	DocumentID string       `db:"document_id" json:"document_id"`
	VersionID  string       `db:"version_id" json:"version_id"`
	ReviewerID string       `db:"reviewer_id" json:"reviewer_id"`
	Status     ReviewStatus `db:"status" json:"status"`
	Comment    *string      `db:"comment" json:"comment,omitempty"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time    `db:"updated_at" json:"updated_at"`
}

// ReviewDetail joins a review with its reviewer and document title.
type ReviewDetail struct {
	Review
	ReviewerName  string `db:"reviewer_name" json:"reviewer_name"`
	DocumentTitle string `db:"document_title" json:"document_title"`
}

// ReviewFilter captures listing criteria for reviews.
type ReviewFilter struct {
	DocumentID string
	VersionID  string
	ReviewerID string
	Status     ReviewStatus
	Page       int
	PageSize   int
}
