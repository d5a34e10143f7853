package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transflow/transflow-api/internal/models"
	appErrors "github.com/transflow/transflow-api/pkg/errors"
)

func (m *memDocumentRepo) FindDetailByID(ctx context.Context, id string) (*models.DocumentDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, exists := m.docs[id]
	if !exists {
		return nil, sql.ErrNoRows
	}
	return &models.DocumentDetail{Document: doc, CreatorName: "Kim Minjun", CreatorEmail: "minjun@example.com"}, nil
}

func (m *memDocumentRepo) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Document
	for _, doc := range m.docs {
		if filter.Status != "" && doc.Status != filter.Status {
			continue
		}
		out = append(out, doc)
	}
	return out, len(out), nil
}

func (m *memDocumentRepo) Create(ctx context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.ID == "" {
		doc.ID = "doc-new"
	}
	m.docs[doc.ID] = *doc
	return nil
}

func (m *memDocumentRepo) Update(ctx context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[doc.ID]; !exists {
		return sql.ErrNoRows
	}
	m.docs[doc.ID] = *doc
	return nil
}

func (m *memDocumentRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	return nil
}

func newTestDocumentService(docs *memDocumentRepo, locks *memLockRepo) *DocumentService {
	return NewDocumentService(docs, locks, nil, nil, nil)
}

func TestDocumentServiceCreateStartsInDraft(t *testing.T) {
	docs := newMemDocumentRepo()
	svc := newTestDocumentService(docs, newMemLockRepo())

	doc, err := svc.Create(context.Background(), &models.CreateDocumentRequest{
		Title:      "Community Guide",
		SourceLang: "en",
		TargetLang: "ko",
	}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, doc.Status)
	assert.Equal(t, "user-1", doc.CreatedBy)
}

func TestDocumentServiceCreateValidation(t *testing.T) {
	svc := newTestDocumentService(newMemDocumentRepo(), newMemLockRepo())

	_, err := svc.Create(context.Background(), &models.CreateDocumentRequest{SourceLang: "en", TargetLang: "ko"}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceTransitionTable(t *testing.T) {
	cases := []struct {
		name string
		from models.DocumentStatus
		to   models.DocumentStatus
		ok   bool
	}{
		{"draft to pending translation", models.StatusDraft, models.StatusPendingTranslation, true},
		{"pending translation to in translation", models.StatusPendingTranslation, models.StatusInTranslation, true},
		{"in translation back to queue", models.StatusInTranslation, models.StatusPendingTranslation, true},
		{"in translation to review", models.StatusInTranslation, models.StatusPendingReview, true},
		{"review approved", models.StatusPendingReview, models.StatusApproved, true},
		{"review rework", models.StatusPendingReview, models.StatusPendingTranslation, true},
		{"approved to published", models.StatusApproved, models.StatusPublished, true},
		{"draft straight to review", models.StatusDraft, models.StatusPendingReview, false},
		{"skip review", models.StatusInTranslation, models.StatusApproved, false},
		{"published is terminal", models.StatusPublished, models.StatusDraft, false},
		{"review cannot restart translation directly", models.StatusPendingReview, models.StatusInTranslation, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			docs := newMemDocumentRepo(models.Document{ID: "doc-1", Title: "Guide", Status: tc.from, CreatedBy: "user-1"})
			svc := newTestDocumentService(docs, newMemLockRepo())

			doc, err := svc.Transition(context.Background(), "doc-1", tc.to, "user-1")
			if tc.ok {
				require.NoError(t, err)
				assert.Equal(t, tc.to, doc.Status)
				assert.Equal(t, tc.to, docs.statusOf("doc-1"))
			} else {
				require.Error(t, err)
				assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
				assert.Equal(t, tc.from, docs.statusOf("doc-1"))
			}
		})
	}
}

func TestDocumentServiceTransitionUnknownStatus(t *testing.T) {
	docs := newMemDocumentRepo(pendingDoc("doc-1"))
	svc := newTestDocumentService(docs, newMemLockRepo())

	_, err := svc.Transition(context.Background(), "doc-1", "ARCHIVED", "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceUpdateMetadata(t *testing.T) {
	docs := newMemDocumentRepo(pendingDoc("doc-1"))
	svc := newTestDocumentService(docs, newMemLockRepo())

	title := "Revised Guide"
	doc, err := svc.Update(context.Background(), "doc-1", &models.UpdateDocumentRequest{Title: &title}, "user-2")
	require.NoError(t, err)
	assert.Equal(t, "Revised Guide", doc.Title)
	require.NotNil(t, doc.LastModifiedBy)
	assert.Equal(t, "user-2", *doc.LastModifiedBy)
	// Status is untouched by metadata edits.
	assert.Equal(t, models.StatusPendingTranslation, doc.Status)
}

func TestDocumentServiceDeleteBlockedByLock(t *testing.T) {
	locks := newMemLockRepo()
	locks.owners["user-1"] = models.User{ID: "user-1", FullName: "Kim Minjun"}
	docs := newMemDocumentRepo(pendingDoc("doc-1"))
	svc := newTestDocumentService(docs, locks)

	lockSvc := newTestLockService(locks, docs)
	_, err := lockSvc.Acquire(context.Background(), "doc-1", "user-1")
	require.NoError(t, err)

	err = svc.Delete(context.Background(), "doc-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrLockHeld.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "Kim Minjun")

	require.NoError(t, lockSvc.Release(context.Background(), "doc-1", "user-1", false))
	assert.NoError(t, svc.Delete(context.Background(), "doc-1"))
}

func TestDocumentServiceGetNotFound(t *testing.T) {
	svc := newTestDocumentService(newMemDocumentRepo(), newMemLockRepo())

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
