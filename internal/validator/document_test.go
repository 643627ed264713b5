package validator_test

import (
	"bytes"
	"testing"

	"github.com/Pratik1445/skillfolio/internal/apperr"
	"github.com/Pratik1445/skillfolio/internal/validator"
	"github.com/stretchr/testify/assert"
)

var pdfBody = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

func TestDocument(t *testing.T) {
	tests := []struct {
		name        string
		file        *validator.File
		reason      string
		contentType string
	}{
		{
			name:        "pdf within limit",
			file:        &validator.File{Name: "cv.pdf", ContentType: "application/pdf", Size: 2 * 1024 * 1024, Body: bytes.NewReader(pdfBody)},
			contentType: "application/pdf",
		},
		{
			name:        "docx",
			file:        &validator.File{Name: "cv.docx", ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", Size: 10, Body: bytes.NewReader(nil)},
			contentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		},
		{
			name:        "sniffed pdf",
			file:        &validator.File{Name: "upload", ContentType: "application/octet-stream", Size: int64(len(pdfBody)), Body: bytes.NewReader(pdfBody)},
			contentType: "application/pdf",
		},
		{
			name:   "image rejected",
			file:   &validator.File{Name: "a.png", ContentType: "image/png", Size: 10, Body: bytes.NewReader(nil)},
			reason: "Please upload only PDF or DOC files",
		},
		{
			name:   "sniffed text rejected",
			file:   &validator.File{Name: "notes", Size: 5, Body: bytes.NewReader([]byte("hello"))},
			reason: "Please upload only PDF or DOC files",
		},
		{
			name:   "too large",
			file:   &validator.File{Name: "big.pdf", ContentType: "application/pdf", Size: 5*1024*1024 + 1, Body: bytes.NewReader(pdfBody)},
			reason: "File size should be less than 5MB",
		},
		{
			name:   "missing",
			file:   nil,
			reason: "Please fill in all fields and upload a file",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := validator.Document(tc.file, 0)
			if tc.reason == "" {
				assert.NoError(t, err)
				assert.Equal(t, tc.contentType, tc.file.ContentType)
				return
			}

			assert.True(t, apperr.IsValidation(err))
			assert.Equal(t, tc.reason, apperr.Banner(err))
		})
	}
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "pdf", (&validator.File{Name: "CV.PDF"}).Extension())
	assert.Equal(t, "pdf", (&validator.File{Name: "upload", ContentType: "application/pdf"}).Extension())
	assert.Equal(t, "bin", (&validator.File{Name: "upload"}).Extension())
}
