package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"docuchat/internal/config"
	"docuchat/internal/middleware"
)

// Status is the document lifecycle state. PROCESSING is set on upload;
// READY and FAILED are terminal and only the pipeline moves a document
// into them. UPLOADING exists as a transient pre-persist label only.
type Status string

const (
	StatusUploading  Status = "UPLOADING"
	StatusProcessing Status = "PROCESSING"
	StatusReady      Status = "READY"
	StatusFailed     Status = "FAILED"
)

type Document struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	FilePath     string    `json:"-"`
	FileSize     int64     `json:"file_size"`
	Status       Status    `json:"status"`
	PageCount    int       `json:"page_count"`
	ChunkCount   int       `json:"chunk_count"`
	ErrorMessage string    `json:"error_message,omitempty"`
	UploadDate   time.Time `json:"upload_date"`
	UpdatedAt    time.Time `json:"updated_at"`
}

var (
	ErrNotFound        = errors.New("document not found")
	ErrInvalidDocument = errors.New("invalid document")
)

type Repository interface {
	Save(ctx context.Context, doc *Document) error
	Get(ctx context.Context, id string) (*Document, error)
	List(ctx context.Context) ([]Document, error)
	Delete(ctx context.Context, id string) error
}

// FileStore persists raw uploads, addressed by document id.
type FileStore interface {
	Store(id string, r io.Reader) (path string, size int64, err error)
	Delete(id string) error
}

// VectorDeleter removes every indexed vector belonging to a document.
type VectorDeleter interface {
	DeleteAll(ctx context.Context, documentID string) error
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

// Prober verifies that a stored file is a readable PDF and reports its
// page count. Extraction proper happens later, in the pipeline.
type Prober func(path string) (int, error)

type Service struct {
	repo           Repository
	files          FileStore
	vectors        VectorDeleter
	pub            EventPublisher
	probe          Prober
	maxUploadBytes int64
}

func NewService(repo Repository, files FileStore, vectors VectorDeleter, pub EventPublisher, probe Prober, maxUploadSizeMB int64) *Service {
	return &Service{
		repo:           repo,
		files:          files,
		vectors:        vectors,
		pub:            pub,
		probe:          probe,
		maxUploadBytes: maxUploadSizeMB << 20,
	}
}

// Upload validates and stores a PDF, persists the document in PROCESSING
// state, and only then enqueues the ingestion task. The publish is strictly
// sequenced after Save so the pipeline never reads an unwritten row.
func (s *Service) Upload(ctx context.Context, filename string, size int64, r io.Reader) (*Document, error) {
	if err := validateUpload(filename, size, s.maxUploadBytes); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	path, written, err := s.files.Store(id, r)
	if err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}

	if _, err := s.probe(path); err != nil {
		s.cleanupFile(id)
		return nil, fmt.Errorf("%w: not a readable PDF: %v", ErrInvalidDocument, err)
	}

	doc := &Document{
		ID:         id,
		Filename:   filename,
		FilePath:   path,
		FileSize:   written,
		Status:     StatusProcessing,
		UploadDate: time.Now(),
	}

	if err := s.repo.Save(ctx, doc); err != nil {
		s.cleanupFile(id)
		return nil, err
	}

	payload, _ := json.Marshal(map[string]any{
		"document_id":    doc.ID,
		"correlation_id": middleware.GetCorrelationID(ctx),
	})
	if err := s.pub.Publish(config.TopicDocumentProcess, payload); err != nil {
		// Without a task the document would sit in PROCESSING forever, so
		// undo the upload and report the failure.
		if delErr := s.repo.Delete(ctx, doc.ID); delErr != nil {
			slog.ErrorContext(ctx, "failed to roll back document after publish failure", "error", delErr, "document_id", doc.ID)
		}
		s.cleanupFile(id)
		return nil, fmt.Errorf("enqueue processing: %w", err)
	}

	slog.InfoContext(ctx, "document uploaded", "document_id", doc.ID, "filename", filename, "size", written)
	return doc, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Document, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Document, error) {
	return s.repo.List(ctx)
}

// Delete removes a document and everything derived from it. Vectors go
// first: if vector deletion fails we abort before touching metadata, so a
// partial delete can never leave a document row pointing at nothing while
// its vectors linger unreferenced.
func (s *Service) Delete(ctx context.Context, id string) error {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.vectors.DeleteAll(ctx, doc.ID); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}

	if err := s.files.Delete(doc.ID); err != nil {
		slog.WarnContext(ctx, "failed to delete stored file", "error", err, "document_id", doc.ID)
	}

	if err := s.repo.Delete(ctx, doc.ID); err != nil {
		return err
	}

	slog.InfoContext(ctx, "document deleted", "document_id", doc.ID)
	return nil
}

// StatusMessage returns the human-readable label shown alongside a status.
func StatusMessage(doc *Document) string {
	switch doc.Status {
	case StatusUploading:
		return "Document is being uploaded"
	case StatusProcessing:
		return "Document is being processed"
	case StatusReady:
		return "Document is ready for querying"
	case StatusFailed:
		return "Document processing failed"
	default:
		return ""
	}
}

func validateUpload(filename string, size, maxBytes int64) error {
	if size <= 0 {
		return fmt.Errorf("%w: file is empty", ErrInvalidDocument)
	}
	if strings.TrimSpace(filename) == "" {
		return fmt.Errorf("%w: invalid filename", ErrInvalidDocument)
	}
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return fmt.Errorf("%w: only PDF files are allowed", ErrInvalidDocument)
	}
	if size > maxBytes {
		return fmt.Errorf("%w: file size exceeds maximum limit of %dMB", ErrInvalidDocument, maxBytes>>20)
	}
	return nil
}

func (s *Service) cleanupFile(id string) {
	if err := s.files.Delete(id); err != nil {
		slog.Warn("failed to clean up stored file", "error", err, "document_id", id)
	}
}
