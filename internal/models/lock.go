package models

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// DocumentLock is the exclusive work claim on a document. At most one row
// exists per document; the UNIQUE constraint on document_id is the final
// arbiter when acquisitions race.
type DocumentLock struct {
	ID                  string         `db:"id" json:"id"`
	DocumentID          string         `db:"document_id" json:"document_id"`
	LockedBy            string         `db:"locked_by" json:"locked_by"`
	LockedAt            time.Time      `db:"locked_at" json:"locked_at"`
	HandoverMemo        *string        `db:"handover_memo" json:"handover_memo,omitempty"`
	CompletedParagraphs types.JSONText `db:"completed_paragraphs" json:"completed_paragraphs,omitempty"`
}

// DocumentLockDetail resolves a lock together with its owner and the
// document status in one consistent read, so callers never chase a
// dangling reference afterwards.
type DocumentLockDetail struct {
	DocumentLock
	OwnerName      string         `db:"owner_name" json:"owner_name"`
	OwnerEmail     string         `db:"owner_email" json:"owner_email"`
	DocumentStatus DocumentStatus `db:"document_status" json:"document_status"`
}

// Paragraphs decodes the completed-paragraph snapshot. A missing or
// malformed snapshot degrades to empty rather than failing the read.
func (l *DocumentLock) Paragraphs() []int {
	return DecodeParagraphs(l.CompletedParagraphs)
}

// DecodeParagraphs unmarshals a stored snapshot, degrading to empty on bad
// data.
func DecodeParagraphs(raw types.JSONText) []int {
	if len(raw) == 0 {
		return []int{}
	}
	var out []int
	if err := json.Unmarshal(raw, &out); err != nil {
		return []int{}
	}
	return out
}

// EncodeParagraphs marshals a completed-paragraph snapshot for storage.
func EncodeParagraphs(paragraphs []int) (types.JSONText, error) {
	if len(paragraphs) == 0 {
		return types.JSONText(`[]`), nil
	}
	raw, err := json.Marshal(paragraphs)
	if err != nil {
		return nil, err
	}
	return types.JSONText(raw), nil
}

// LockOwnerInfo identifies the current lock holder in status views.
type LockOwnerInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// LockStatus is the read-only view returned by status polling. It is always
// constructible: internal failures degrade to an unlocked view.
type LockStatus struct {
	Locked              bool           `json:"locked"`
	LockedBy            *LockOwnerInfo `json:"locked_by,omitempty"`
	LockedAt            *time.Time     `json:"locked_at,omitempty"`
	CanEdit             bool           `json:"can_edit"`
	CompletedParagraphs []int          `json:"completed_paragraphs"`
}

// UnlockedStatus is the degraded view used when no lock exists or the
// lookup failed.
func UnlockedStatus() *LockStatus {
	return &LockStatus{Locked: false, CanEdit: false, CompletedParagraphs: []int{}}
}
