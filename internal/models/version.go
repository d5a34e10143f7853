package models

import "time"

// VersionType categorises how a document version was produced.
type VersionType string

const (
	VersionOriginal          VersionType = "ORIGINAL"
	VersionAIDraft           VersionType = "AI_DRAFT"
	VersionManualTranslation VersionType = "MANUAL_TRANSLATION"
	VersionFinal             VersionType = "FINAL"
)

// Valid reports whether t is a known version type.
func (t VersionType) Valid() bool {
	switch t {
	case VersionOriginal, VersionAIDraft, VersionManualTranslation, VersionFinal:
		return true
	}
	return false
}

// DocumentVersion is an immutable content snapshot of a document.
type DocumentVersion struct {
	ID          string      `db:"id" json:"id"`
	DocumentID  string      `db:"document_id" json:"document_id"`
	VersionType VersionType `db:"version_type" json:"version_type"`
	Content     string      `db:"content" json:"content"`
	IsFinal     bool        `db:"is_final" json:"is_final"`
	CreatedBy   string      `db:"created_by" json:"created_by"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
}
