package models

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

// DocumentType categorises an uploaded file.
type DocumentType string

const (
	DocumentTypeCV               DocumentType = "CV"
	DocumentTypeMotivationLetter DocumentType = "MOTIVATION_LETTER"
	DocumentTypeDiploma          DocumentType = "DIPLOMA"
	DocumentTypeOther            DocumentType = "OTHER"
)

// DocumentStatus is the outcome of synchronous validation at attach time.
type DocumentStatus string

const (
	DocumentStatusValid   DocumentStatus = "VALID"
	DocumentStatusInvalid DocumentStatus = "INVALID"
)

// MaxDocumentSizeBytes caps every upload at 10 MiB.
const MaxDocumentSizeBytes int64 = 10 * 1024 * 1024

const (
	mimePDF  = "application/pdf"
	mimeDoc  = "application/msword"
	mimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeJPEG = "image/jpeg"
	mimePNG  = "image/png"
)

// Document is one uploaded file evidencing a claim on an application.
type Document struct {
	ID            string         `db:"id" json:"id"`
	ApplicationID string         `db:"application_id" json:"application_id"`
	DocumentType  DocumentType   `db:"document_type" json:"document_type"`
	FileName      string         `db:"file_name" json:"file_name"`
	StorageKey    string         `db:"storage_key" json:"storage_key"`
	FileSize      int64          `db:"file_size" json:"file_size"`
	MimeType      string         `db:"mime_type" json:"mime_type"`
	Status        DocumentStatus `db:"status" json:"status"`
	UploadDate    time.Time      `db:"upload_date" json:"upload_date"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// allowedDocumentMIMEs lists the acceptable MIME types per document type.
// OTHER additionally accepts any image/* subtype.
var allowedDocumentMIMEs = map[DocumentType][]string{
	DocumentTypeCV:               {mimePDF, mimeDoc, mimeDocx},
	DocumentTypeMotivationLetter: {mimePDF, mimeDoc, mimeDocx},
	DocumentTypeDiploma:          {mimePDF, mimeJPEG, mimePNG},
	DocumentTypeOther:            {mimePDF, mimeDoc, mimeDocx},
}

// ValidateDocument checks size and MIME type against the per-type rules.
// It never fails hard: the caller decides whether INVALID blocks the
// operation or is persisted with a visible status.
func ValidateDocument(docType DocumentType, mimeType string, size int64) (DocumentStatus, string) {
	if size > MaxDocumentSizeBytes {
		return DocumentStatusInvalid, "file exceeds the maximum size of 10 MiB"
	}
	normalized := normalizeMIME(mimeType)
	if docType == DocumentTypeOther && strings.HasPrefix(normalized, "image/") {
		return DocumentStatusValid, ""
	}
	for _, allowed := range allowedDocumentMIMEs[docType] {
		if normalized == allowed {
			return DocumentStatusValid, ""
		}
	}
	return DocumentStatusInvalid, fmt.Sprintf("mime type %s is not allowed for %s documents", normalized, docType)
}

// DetectMIME sniffs the content type from the first bytes and falls back to
// the filename extension when sniffing is inconclusive (docx and doc files
// sniff as zip or octet-stream).
func DetectMIME(fileName string, data []byte) string {
	detected := normalizeMIME(http.DetectContentType(data))
	switch detected {
	case "application/zip", "application/octet-stream", "text/plain":
	default:
		return detected
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".pdf":
		return mimePDF
	case ".doc":
		return mimeDoc
	case ".docx":
		return mimeDocx
	case ".jpg", ".jpeg":
		return mimeJPEG
	case ".png":
		return mimePNG
	}
	if byExt := normalizeMIME(mime.TypeByExtension(ext)); byExt != "" {
		return byExt
	}
	return detected
}

// StorageKey derives the deterministic blob name for a document:
// {announcement}_{candidate}_{document}.{ext}. The triple of IDs guarantees
// collision-freedom and traceability.
func StorageKey(announcementID, candidateID, documentID, fileName string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%s_%s_%s.%s", announcementID, candidateID, documentID, ext)
}

func normalizeMIME(mimeType string) string {
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	return strings.TrimSpace(strings.ToLower(mimeType))
}
