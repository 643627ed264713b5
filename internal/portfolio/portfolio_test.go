package portfolio_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Pratik1445/skillfolio/internal/apperr"
	"github.com/Pratik1445/skillfolio/internal/portfolio"
	"github.com/Pratik1445/skillfolio/internal/testutil"
	"github.com/Pratik1445/skillfolio/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc() *validator.File {
	body := []byte("%PDF-1.4\nportfolio")
	return &validator.File{Name: "cv.pdf", ContentType: "application/pdf", Size: int64(len(body)), Body: bytes.NewReader(body)}
}

var form = portfolio.UploadForm{Title: "My CV", Description: "Resume", Category: "Data Science"}

func TestUploadListDelete(t *testing.T) {
	ctx := context.Background()
	env := testutil.New(t)
	svc := portfolio.New(env.Docs, env.Objects, 0, env.Sugar)
	owner := env.SignUp(t, "own@example.com", "Owner")
	other := env.SignUp(t, "oth@example.com", "Other")

	p, err := svc.Upload(ctx, owner, form, doc())
	require.NoError(t, err)
	assert.Equal(t, owner.UserID, p.OwnerID)
	assert.Equal(t, "Owner", p.OwnerName)
	assert.Equal(t, "cv.pdf", p.FileName)
	assert.Equal(t, "application/pdf", p.FileType)
	assert.Regexp(t, `^`+owner.UserID+`/\d+\.pdf$`, p.StoragePath)
	assert.Contains(t, p.FileURL, "/cdn/portfolios/"+p.StoragePath)
	assert.Zero(t, p.LikeCount)

	second, err := svc.Upload(ctx, other, portfolio.UploadForm{Title: "Deck", Description: "Slides", Category: "Other"}, doc())
	require.NoError(t, err)

	list, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")

	mine, err := svc.List(ctx, owner.UserID)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	err = svc.Delete(ctx, other, p.ID)
	assert.True(t, apperr.IsPermission(err))

	require.NoError(t, svc.Delete(ctx, owner, p.ID))
	_, err = svc.Get(ctx, p.ID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestDeleteRemovesFile(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	env := testutil.New(t)
	objects := testutil.ObjectsAt(t, root)
	svc := portfolio.New(env.Docs, objects, 0, env.Sugar)
	owner := env.SignUp(t, "own@example.com", "Owner")

	p, err := svc.Upload(ctx, owner, form, doc())
	require.NoError(t, err)

	file := filepath.Join(root, portfolio.Bucket, filepath.FromSlash(p.StoragePath))
	_, err = os.Stat(file)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, owner, p.ID))
	_, err = os.Stat(file)
	assert.True(t, os.IsNotExist(err))
}

func TestUploadValidation(t *testing.T) {
	env := testutil.New(t)
	svc := portfolio.New(env.Docs, env.Objects, 0, env.Sugar)
	owner := env.SignUp(t, "own@example.com", "Owner")

	tests := []struct {
		name   string
		form   portfolio.UploadForm
		file   *validator.File
		banner string
	}{
		{name: "missing title", form: portfolio.UploadForm{Description: "d", Category: "Other"}, file: doc(), banner: "Please fill in all fields and upload a file"},
		{name: "missing file", form: form, file: nil, banner: "Please fill in all fields and upload a file"},
		{name: "unknown category", form: portfolio.UploadForm{Title: "t", Description: "d", Category: "Cooking"}, file: doc(), banner: "Please select a category"},
		{
			name:   "wrong type",
			form:   form,
			file:   &validator.File{Name: "a.png", ContentType: "image/png", Size: 1, Body: bytes.NewReader([]byte("x"))},
			banner: "Please upload only PDF or DOC files",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Upload(context.Background(), owner, tc.form, tc.file)
			assert.True(t, apperr.IsValidation(err))
			assert.Equal(t, tc.banner, apperr.Banner(err))
		})
	}

	list, err := svc.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestViewLikeFeatured(t *testing.T) {
	ctx := context.Background()
	env := testutil.New(t)
	svc := portfolio.New(env.Docs, env.Objects, 0, env.Sugar)
	owner := env.SignUp(t, "own@example.com", "Owner")

	featured, err := svc.Featured(ctx)
	require.NoError(t, err)
	assert.Nil(t, featured)

	a, err := svc.Upload(ctx, owner, form, doc())
	require.NoError(t, err)
	b, err := svc.Upload(ctx, owner, form, doc())
	require.NoError(t, err)

	_, err = svc.Like(ctx, b.ID)
	require.NoError(t, err)
	viewed, err := svc.View(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, viewed.ViewCount)

	featured, err = svc.Featured(ctx)
	require.NoError(t, err)
	require.NotNil(t, featured)
	assert.Equal(t, b.ID, featured.ID)
	assert.Equal(t, 1, featured.LikeCount)

	_, err = svc.Like(ctx, "missing")
	assert.True(t, apperr.IsNotFound(err))
}
