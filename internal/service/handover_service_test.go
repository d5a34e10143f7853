package service

import (
	"context"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transflow/transflow-api/internal/models"
	appErrors "github.com/transflow/transflow-api/pkg/errors"
)

func newTestHandoverService(handovers *memHandoverRepo, docs *memDocumentRepo) *HandoverService {
	return NewHandoverService(handovers, docs, nil)
}

func TestHandoverServiceHistory(t *testing.T) {
	handovers := &memHandoverRepo{}
	docs := newMemDocumentRepo(pendingDoc("doc-1"))
	svc := newTestHandoverService(handovers, docs)

	require.NoError(t, svc.Record(context.Background(), &models.HandoverEvent{
		DocumentID: "doc-1", HandedOverBy: "user-1", Memo: "first pass done",
	}))

	events, err := svc.History(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "first pass done", events[0].Memo)
}

func TestHandoverServiceHistoryDocumentNotFound(t *testing.T) {
	svc := newTestHandoverService(&memHandoverRepo{}, newMemDocumentRepo())

	_, err := svc.History(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestHandoverServiceHistoryEmptyNotNil(t *testing.T) {
	svc := newTestHandoverService(&memHandoverRepo{}, newMemDocumentRepo(pendingDoc("doc-1")))

	events, err := svc.History(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestHandoverServiceLatestNoEntries(t *testing.T) {
	svc := newTestHandoverService(&memHandoverRepo{}, newMemDocumentRepo(pendingDoc("doc-1")))

	_, err := svc.Latest(context.Background(), "doc-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestHandoverServiceExportCSV(t *testing.T) {
	handovers := &memHandoverRepo{}
	docs := newMemDocumentRepo(pendingDoc("doc-1"))
	svc := newTestHandoverService(handovers, docs)

	require.NoError(t, svc.Record(context.Background(), &models.HandoverEvent{
		DocumentID:          "doc-1",
		HandedOverBy:        "user-1",
		Memo:                "stopped at section 3",
		CompletedParagraphs: types.JSONText(`[1,2,3]`),
	}))

	payload, contentType, err := svc.Export(context.Background(), "doc-1", ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)

	body := string(payload)
	assert.True(t, strings.HasPrefix(body, "Date,Handed Over By,Email,Memo,Terms,Completed Paragraphs"))
	assert.Contains(t, body, "stopped at section 3")
	assert.Contains(t, body, "1 2 3")
}

func TestHandoverServiceExportPDF(t *testing.T) {
	svc := newTestHandoverService(&memHandoverRepo{}, newMemDocumentRepo(pendingDoc("doc-1")))

	payload, contentType, err := svc.Export(context.Background(), "doc-1", ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.True(t, strings.HasPrefix(string(payload), "%PDF"))
}

func TestHandoverServiceExportUnsupportedFormat(t *testing.T) {
	svc := newTestHandoverService(&memHandoverRepo{}, newMemDocumentRepo(pendingDoc("doc-1")))

	_, _, err := svc.Export(context.Background(), "doc-1", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
