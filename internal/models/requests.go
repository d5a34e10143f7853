package models

// CreateDocumentRequest registers a new source document.
type CreateDocumentRequest struct {
	Title           string  `json:"title" validate:"required,max=255"`
	OriginalURL     string  `json:"original_url" validate:"omitempty,url"`
	SourceLang      string  `json:"source_lang" validate:"required,max=10"`
	TargetLang      string  `json:"target_lang" validate:"required,max=10"`
	CategoryID      *string `json:"category_id" validate:"omitempty,uuid"`
	EstimatedLength *int    `json:"estimated_length" validate:"omitempty,min=0"`
}

// UpdateDocumentRequest edits document metadata. Nil fields are left as is.
type UpdateDocumentRequest struct {
	Title           *string `json:"title" validate:"omitempty,max=255"`
	OriginalURL     *string `json:"original_url" validate:"omitempty,url"`
	CategoryID      *string `json:"category_id" validate:"omitempty,uuid"`
	EstimatedLength *int    `json:"estimated_length" validate:"omitempty,min=0"`
}

// SaveProgressRequest is the autosave snapshot body.
type SaveProgressRequest struct {
	CompletedParagraphs []int `json:"completed_paragraphs" validate:"dive,min=0"`
}

// HandoverRequest releases a lock while leaving context for the next
// translator.
type HandoverRequest struct {
	Memo                string  `json:"memo" validate:"required,max=2000"`
	Terms               *string `json:"terms" validate:"omitempty,max=4000"`
	CompletedParagraphs []int   `json:"completed_paragraphs" validate:"dive,min=0"`
}

// CompleteTranslationRequest finishes the translation pass and submits the
// content for review.
type CompleteTranslationRequest struct {
	Content             string `json:"content" validate:"required"`
	CompletedParagraphs []int  `json:"completed_paragraphs" validate:"dive,min=0"`
}

// CreateVersionRequest stores a new content version of a document.
type CreateVersionRequest struct {
	VersionType VersionType `json:"version_type" validate:"required"`
	Content     string      `json:"content" validate:"required"`
}

// CreateReviewRequest opens a review for a document version.
type CreateReviewRequest struct {
	DocumentID string  `json:"document_id" validate:"required,uuid"`
	VersionID  string  `json:"version_id" validate:"required,uuid"`
	Comment    *string `json:"comment" validate:"omitempty,max=4000"`
}

// UpdateReviewRequest edits the comment of a pending review.
type UpdateReviewRequest struct {
	Comment *string `json:"comment" validate:"required,max=4000"`
}

// ReviewDecisionRequest carries the optional note on approve and reject.
type ReviewDecisionRequest struct {
	Comment *string `json:"comment" validate:"omitempty,max=4000"`
}
