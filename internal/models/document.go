package models

import "time"

// DocumentStatus is the coarse workflow stage of a document.
type DocumentStatus string

const (
	StatusDraft              DocumentStatus = "DRAFT"
	StatusPendingTranslation DocumentStatus = "PENDING_TRANSLATION"
	StatusInTranslation      DocumentStatus = "IN_TRANSLATION"
	StatusPendingReview      DocumentStatus = "PENDING_REVIEW"
	StatusApproved           DocumentStatus = "APPROVED"
	StatusPublished          DocumentStatus = "PUBLISHED"
)

// Valid reports whether s is a known document status.
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPendingTranslation, StatusInTranslation,
		StatusPendingReview, StatusApproved, StatusPublished:
		return true
	}
	return false
}

// lifecycleEdges enumerates the only legal document status transitions.
// PENDING_REVIEW -> PENDING_TRANSLATION is the rejection rework path.
var lifecycleEdges = map[DocumentStatus][]DocumentStatus{
	StatusDraft:              {StatusPendingTranslation},
	StatusPendingTranslation: {StatusInTranslation},
	StatusInTranslation:      {StatusPendingTranslation, StatusPendingReview},
	StatusPendingReview:      {StatusApproved, StatusPendingTranslation},
	StatusApproved:           {StatusPublished},
}

// CanTransition reports whether the lifecycle permits moving from one status
// to another. PUBLISHED is terminal and has no outgoing edges.
func CanTransition(from, to DocumentStatus) bool {
	for _, next := range lifecycleEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Document is a source text moving through the translation workflow.
type Document struct {
	ID               string         `db:"id" json:"id"`
	Title            string         `db:"title" json:"title"`
	OriginalURL      string         `db:"original_url" json:"original_url"`
	SourceLang       string         `db:"source_lang" json:"source_lang"`
	TargetLang       string         `db:"target_lang" json:"target_lang"`
	CategoryID       *string        `db:"category_id" json:"category_id,omitempty"`
	Status           DocumentStatus `db:"status" json:"status"`
	CurrentVersionID *string        `db:"current_version_id" json:"current_version_id,omitempty"`
	EstimatedLength  *int           `db:"estimated_length" json:"estimated_length,omitempty"`
	CreatedBy        string         `db:"created_by" json:"created_by"`
	LastModifiedBy   *string        `db:"last_modified_by" json:"last_modified_by,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// DocumentDetail joins a document with its creator and last modifier.
type DocumentDetail struct {
	Document
	CreatorName       string  `db:"creator_name" json:"creator_name"`
	CreatorEmail      string  `db:"creator_email" json:"creator_email"`
	LastModifierName  *string `db:"last_modifier_name" json:"last_modifier_name,omitempty"`
	LastModifierEmail *string `db:"last_modifier_email" json:"last_modifier_email,omitempty"`
}

// DocumentFilter captures listing criteria for documents.
type DocumentFilter struct {
	Status     DocumentStatus
	CategoryID string
	CreatedBy  string
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
