package handlers

import (
	"errors"
	"net/http"

	"github.com/Pratik1445/skillfolio/internal/apperr"
	"github.com/Pratik1445/skillfolio/internal/validator"
)

// room for the other form fields next to the file
const formOverhead = 1 << 20

// parseUpload reads a multipart form with at most one file under "file". The
// returned file is nil when none was sent; release frees its temp storage.
func (h *Handlers) parseUpload(w http.ResponseWriter, r *http.Request) (file *validator.File, release func(), err error) {
	release = func() {}

	limit := h.Config.MaxUploadBytes + formOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	err = r.ParseMultipartForm(limit)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, release, apperr.Validation("file", "File size should be less than 5MB")
		}
		return nil, release, apperr.Validation("", "Please fill in all fields and upload a file")
	}
	release = func() {
		_ = r.MultipartForm.RemoveAll()
	}

	body, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, release, nil
	} else if err != nil {
		return nil, release, err
	}

	previous := release
	release = func() {
		body.Close()
		previous()
	}

	return &validator.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        body,
	}, release, nil
}
