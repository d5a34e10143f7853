package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/transflow/transflow-api/internal/models"
	appErrors "github.com/transflow/transflow-api/pkg/errors"
	"github.com/transflow/transflow-api/pkg/export"
)

type handoverRepository interface {
	Create(ctx context.Context, event *models.HandoverEvent) error
	ListByDocument(ctx context.Context, documentID string) ([]models.HandoverEventDetail, error)
	FindLatestByDocument(ctx context.Context, documentID string) (*models.HandoverEventDetail, error)
	ListByUser(ctx context.Context, userID string) ([]models.HandoverEventDetail, error)
}

type handoverDocumentReader interface {
	FindByID(ctx context.Context, id string) (*models.Document, error)
}

// ExportFormat selects the rendering for handover history exports.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// HandoverService reads and appends the handover ledger. The ledger is the
// institutional memory of a document: every entry survives even after the
// document is published.
type HandoverService struct {
	handovers handoverRepository
	documents handoverDocumentReader
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	logger    *zap.Logger
}

// NewHandoverService constructs HandoverService.
func NewHandoverService(handovers handoverRepository, documents handoverDocumentReader, logger *zap.Logger) *HandoverService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HandoverService{
		handovers: handovers,
		documents: documents,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		logger:    logger,
	}
}

// Record appends an event to the ledger.
func (s *HandoverService) Record(ctx context.Context, event *models.HandoverEvent) error {
	if err := s.handovers.Create(ctx, event); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record handover")
	}
	s.logger.Info("handover recorded",
		zap.String("document_id", event.DocumentID), zap.String("handed_over_by", event.HandedOverBy))
	return nil
}

// History returns every handover for a document, newest first.
func (s *HandoverService) History(ctx context.Context, documentID string) ([]models.HandoverEventDetail, error) {
	if _, err := s.documents.FindByID(ctx, documentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	events, err := s.handovers.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list handovers")
	}
	if events == nil {
		events = []models.HandoverEventDetail{}
	}
	return events, nil
}

// Latest returns the most recent handover for a document, or NotFound when
// the ledger has no entry yet.
func (s *HandoverService) Latest(ctx context.Context, documentID string) (*models.HandoverEventDetail, error) {
	event, err := s.handovers.FindLatestByDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no handover recorded for this document")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load latest handover")
	}
	return event, nil
}

// ByUser returns every handover a user has recorded, newest first.
func (s *HandoverService) ByUser(ctx context.Context, userID string) ([]models.HandoverEventDetail, error) {
	events, err := s.handovers.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list handovers")
	}
	if events == nil {
		events = []models.HandoverEventDetail{}
	}
	return events, nil
}

// Export renders a document's handover history as CSV or PDF bytes.
func (s *HandoverService) Export(ctx context.Context, documentID string, format ExportFormat) ([]byte, string, error) {
	doc, err := s.documents.FindByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	events, err := s.handovers.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list handovers")
	}

	dataset := buildHandoverDataset(events)

	switch format {
	case ExportFormatCSV:
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", nil
	case ExportFormatPDF:
		payload, err := s.pdf.Render(dataset, fmt.Sprintf("Handover History - %s", doc.Title))
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func buildHandoverDataset(events []models.HandoverEventDetail) export.Dataset {
	headers := []string{"Date", "Handed Over By", "Email", "Memo", "Terms", "Completed Paragraphs"}
	rows := make([]map[string]string, 0, len(events))
	for _, event := range events {
		terms := ""
		if event.Terms != nil {
			terms = *event.Terms
		}
		var parts []string
		for _, p := range models.DecodeParagraphs(event.HandoverEvent.CompletedParagraphs) {
			parts = append(parts, strconv.Itoa(p))
		}
		completed := strings.Join(parts, " ")
		rows = append(rows, map[string]string{
			"Date":                 event.CreatedAt.Format("2006-01-02 15:04"),
			"Handed Over By":       event.ActorName,
			"Email":                event.ActorEmail,
			"Memo":                 event.Memo,
			"Terms":                terms,
			"Completed Paragraphs": completed,
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
