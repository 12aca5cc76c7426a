package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateDocumentSizeLimit(t *testing.T) {
	status, _ := ValidateDocument(DocumentTypeCV, "application/pdf", MaxDocumentSizeBytes)
	assert.Equal(t, DocumentStatusValid, status)

	status, reason := ValidateDocument(DocumentTypeCV, "application/pdf", MaxDocumentSizeBytes+1)
	assert.Equal(t, DocumentStatusInvalid, status)
	assert.Contains(t, reason, "maximum size")
}

func TestValidateDocumentMIMERules(t *testing.T) {
	cases := []struct {
		docType DocumentType
		mime    string
		valid   bool
	}{
		{DocumentTypeCV, "application/pdf", true},
		{DocumentTypeCV, "application/msword", true},
		{DocumentTypeCV, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", true},
		{DocumentTypeCV, "image/png", false},
		{DocumentTypeMotivationLetter, "application/pdf", true},
		{DocumentTypeMotivationLetter, "image/jpeg", false},
		{DocumentTypeDiploma, "application/pdf", true},
		{DocumentTypeDiploma, "image/jpeg", true},
		{DocumentTypeDiploma, "image/png", true},
		{DocumentTypeDiploma, "application/msword", false},
		{DocumentTypeOther, "application/pdf", true},
		{DocumentTypeOther, "image/gif", true},
		{DocumentTypeOther, "application/zip", false},
	}

	for _, tc := range cases {
		status, _ := ValidateDocument(tc.docType, tc.mime, 1024)
		expected := DocumentStatusInvalid
		if tc.valid {
			expected = DocumentStatusValid
		}
		assert.Equal(t, expected, status, "%s %s", tc.docType, tc.mime)
	}
}

func TestValidateDocumentNormalisesMIME(t *testing.T) {
	status, _ := ValidateDocument(DocumentTypeCV, "Application/PDF; charset=binary", 1024)
	assert.Equal(t, DocumentStatusValid, status)
}

func TestDetectMIME(t *testing.T) {
	pdf := []byte("%PDF-1.4 fake content")
	assert.Equal(t, "application/pdf", DetectMIME("cv.pdf", pdf))

	// docx bytes sniff as zip, the extension decides.
	zipHeader := []byte{0x50, 0x4b, 0x03, 0x04, 0, 0, 0, 0}
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", DetectMIME("letter.docx", zipHeader))

	plain := []byte("just some text")
	assert.Equal(t, "application/msword", DetectMIME("cv.doc", plain))
}

func TestStorageKey(t *testing.T) {
	key := StorageKey("ann-1", "cand-2", "doc-3", "My CV.PDF")
	assert.Equal(t, "ann-1_cand-2_doc-3.pdf", key)

	key = StorageKey("a", "b", "c", "noextension")
	assert.Equal(t, "a_b_c.bin", key)
}
