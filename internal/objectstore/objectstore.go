// Package objectstore keeps uploaded files on the local disk, grouped in
// buckets, and serves them under a public base url.
package objectstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrExists      = errors.New("object already exists")
	ErrTooLarge    = errors.New("object exceeds size limit")
	ErrInvalidPath = errors.New("invalid object path")
)

// metadata lives next to the buckets under this directory
const metaDir = ".meta"

type UploadOptions struct {
	ContentType string
	// CacheControl is a Cache-Control header value. A bare number of seconds
	// is served as max-age.
	CacheControl string
	// Upsert replaces an existing object instead of failing with ErrExists.
	Upsert   bool
	MaxBytes int64
}

type Handle struct {
	Bucket      string `json:"bucket"`
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	SHA256      string `json:"sha256"`
}

type metadata struct {
	ContentType  string `json:"contentType"`
	CacheControl string `json:"cacheControl"`
}

type Store struct {
	root    string
	baseURL string
	sugar   *zap.SugaredLogger

	mutex sync.Mutex
}

func New(root, baseURL string, sugar *zap.SugaredLogger) (*Store, error) {
	err := os.MkdirAll(root, os.ModePerm)
	if err != nil {
		return nil, err
	}

	return &Store{
		root:    root,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		sugar:   sugar,
	}, nil
}

type Bucket struct {
	store *Store
	name  string
}

func (s *Store) Bucket(name string) *Bucket {
	return &Bucket{store: s, name: name}
}

func (b *Bucket) Name() string {
	return b.name
}

// clean turns an object path into a slash separated key inside the bucket.
func clean(objectPath string) (string, error) {
	cleaned := path.Clean("/" + strings.ReplaceAll(objectPath, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." || strings.HasPrefix(cleaned, metaDir) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, objectPath)
	}
	if cleaned != strings.TrimPrefix(objectPath, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, objectPath)
	}
	return cleaned, nil
}

func (b *Bucket) filePath(key string) string {
	return filepath.Join(b.store.root, b.name, filepath.FromSlash(key))
}

func (b *Bucket) metaPath(key string) string {
	return filepath.Join(b.store.root, metaDir, b.name, filepath.FromSlash(key)+".json")
}

// Upload writes r to objectPath. The object only becomes visible once it was
// completely written.
func (b *Bucket) Upload(ctx context.Context, objectPath string, r io.Reader, opts UploadOptions) (Handle, error) {
	key, err := clean(objectPath)
	if err != nil {
		return Handle{}, err
	}
	if err := ctx.Err(); err != nil {
		return Handle{}, err
	}

	fullPath := b.filePath(key)
	folderPath := filepath.Dir(fullPath)

	// make folders if they don't exist yet
	err = os.MkdirAll(folderPath, os.ModePerm)
	if err != nil {
		return Handle{}, err
	}

	tmp, err := os.CreateTemp(folderPath, ".upload-*")
	if err != nil {
		return Handle{}, err
	}
	defer func() {
		if err := os.Remove(tmp.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			b.store.sugar.Warn(err)
		}
	}()

	hash := sha256.New()
	reader := r
	if opts.MaxBytes > 0 {
		reader = io.LimitReader(r, opts.MaxBytes+1)
	}

	size, err := io.Copy(io.MultiWriter(tmp, hash), reader)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return Handle{}, err
	}
	if opts.MaxBytes > 0 && size > opts.MaxBytes {
		return Handle{}, ErrTooLarge
	}
	if err := ctx.Err(); err != nil {
		return Handle{}, err
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	b.store.mutex.Lock()
	defer b.store.mutex.Unlock()

	if !opts.Upsert {
		_, err = os.Stat(fullPath)
		if err == nil {
			return Handle{}, fmt.Errorf("%s/%s: %w", b.name, key, ErrExists)
		} else if !os.IsNotExist(err) {
			return Handle{}, err
		}
	}

	err = os.Rename(tmp.Name(), fullPath)
	if err != nil {
		return Handle{}, err
	}

	err = b.writeMetadata(key, metadata{ContentType: contentType, CacheControl: opts.CacheControl})
	if err != nil {
		b.store.sugar.Warnf("Couldn't write metadata of %s/%s: %v", b.name, key, err)
	}

	return Handle{
		Bucket:      b.name,
		Path:        key,
		Size:        size,
		ContentType: contentType,
		SHA256:      hex.EncodeToString(hash.Sum(nil)),
	}, nil
}

func (b *Bucket) writeMetadata(key string, meta metadata) error {
	metaPath := b.metaPath(key)
	err := os.MkdirAll(filepath.Dir(metaPath), os.ModePerm)
	if err != nil {
		return err
	}

	bytes, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(metaPath, bytes, 0644)
}

// PublicURL is where the object is downloadable once uploaded.
func (b *Bucket) PublicURL(objectPath string) string {
	key := strings.TrimPrefix(objectPath, "/")
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/%s/%s", b.store.baseURL, url.PathEscape(b.name), strings.Join(segments, "/"))
}

// Remove deletes the objects. Missing objects are skipped.
func (b *Bucket) Remove(ctx context.Context, objectPaths ...string) error {
	b.store.mutex.Lock()
	defer b.store.mutex.Unlock()

	var errs []error
	for _, objectPath := range objectPaths {
		if err := ctx.Err(); err != nil {
			return err
		}

		key, err := clean(objectPath)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		for _, p := range []string{b.filePath(key), b.metaPath(key)} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Handler serves the buckets. Mount it with the public base url's path
// stripped.
func (s *Store) Handler() http.Handler {
	files := http.FileServer(http.Dir(s.root))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if requested == "" || strings.HasPrefix(requested, metaDir) || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}

		bucket, key, found := strings.Cut(requested, "/")
		if !found {
			http.NotFound(w, r)
			return
		}

		metaBytes, err := os.ReadFile(s.Bucket(bucket).metaPath(key))
		if err == nil {
			var meta metadata
			if json.Unmarshal(metaBytes, &meta) == nil {
				if meta.ContentType != "" {
					w.Header().Set("Content-Type", meta.ContentType)
				}
				if meta.CacheControl != "" {
					w.Header().Set("Cache-Control", cacheControl(meta.CacheControl))
				}
			}
		}

		files.ServeHTTP(w, r)
	})
}

func cacheControl(value string) string {
	if _, err := strconv.ParseUint(value, 10, 32); err == nil {
		return "max-age=" + value
	}
	return value
}
