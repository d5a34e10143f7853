package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// HandoverEvent is one immutable entry in the handover ledger. Rows are
// inserted when an editor passes unfinished work on and are never updated
// or deleted.
type HandoverEvent struct {
	ID                  string         `db:"id" json:"id"`
	DocumentID          string         `db:"document_id" json:"document_id"`
	HandedOverBy        string         `db:"handed_over_by" json:"handed_over_by"`
	Memo                string         `db:"memo" json:"memo"`
	Terms               *string        `db:"terms" json:"terms,omitempty"`
	CompletedParagraphs types.JSONText `db:"completed_paragraphs" json:"completed_paragraphs,omitempty"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
}

// HandoverEventDetail joins the event with the acting user.
type HandoverEventDetail struct {
	HandoverEvent
	ActorName  string `db:"actor_name" json:"actor_name"`
	ActorEmail string `db:"actor_email" json:"actor_email"`
}
