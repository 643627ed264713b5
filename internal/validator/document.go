package validator

import (
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/Pratik1445/skillfolio/internal/apperr"
	"github.com/gabriel-vasile/mimetype"
)

const DefaultMaxDocumentBytes = 5 * 1024 * 1024

var documentTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// File is an upload as received from the client.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.ReadSeeker
}

// Extension is the lowercase extension without the dot, taken from the file
// name or, failing that, from the detected type.
func (f *File) Extension() string {
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(f.Name)), "."); ext != "" {
		return ext
	}
	if m := mimetype.Lookup(f.ContentType); m != nil {
		return strings.TrimPrefix(m.Extension(), ".")
	}
	return "bin"
}

// Document accepts pdf, doc and docx files up to maxBytes. A missing or
// generic content type is replaced by the one sniffed from the body.
func Document(f *File, maxBytes int64) error {
	if f == nil || f.Body == nil {
		return apperr.Validation("file", "Please fill in all fields and upload a file")
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxDocumentBytes
	}

	contentType := f.ContentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = parsed
	}

	if contentType == "" || contentType == "application/octet-stream" {
		detected, err := mimetype.DetectReader(f.Body)
		if err != nil {
			return err
		}
		if _, err := f.Body.Seek(0, io.SeekStart); err != nil {
			return err
		}
		contentType = detected.String()
		if !mimetype.EqualsAny(contentType, documentTypes...) {
			for parent := detected.Parent(); parent != nil; parent = parent.Parent() {
				if mimetype.EqualsAny(parent.String(), documentTypes...) {
					contentType = parent.String()
					break
				}
			}
		}
	}

	if !mimetype.EqualsAny(contentType, documentTypes...) {
		return apperr.Validation("file", "Please upload only PDF or DOC files")
	}
	f.ContentType = contentType

	if f.Size > maxBytes {
		return apperr.Validation("file", "File size should be less than 5MB")
	}
	return nil
}
