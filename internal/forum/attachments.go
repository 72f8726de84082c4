package forum

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ayush/bugdex-forum/backend/internal/apperr"
	"github.com/ayush/bugdex-forum/backend/internal/models"
	"github.com/ayush/bugdex-forum/backend/internal/response"
	"github.com/ayush/bugdex-forum/backend/internal/store"
)

const (
	MaxImageSize = 5 << 20
	MaxCodeSize  = 2 << 20

	uploadsPath    = "/uploads/"
	maxRequestBody = MaxImageSize + MaxCodeSize + 8<<20
	maxFormMemory  = 32 << 20
)

var imageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

var codeExtensions = map[string]bool{
	".js": true, ".py": true, ".java": true, ".txt": true, ".ts": true,
	".cpp": true, ".c": true, ".json": true, ".html": true, ".css": true,
}

type uploadKind int

const (
	kindImage uploadKind = iota
	kindCode
)

type upload struct {
	kind        uploadKind
	key         string
	name        string
	contentType string
	data        []byte
}

func (u *upload) url() string { return uploadsPath + u.key }

func readMultipartPost(w http.ResponseWriter, r *http.Request) (models.CreatePostRequest, []*upload, error) {
	var req models.CreatePostRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return req, nil, apperr.New(apperr.InvalidInput, "request body too large")
		}
		return req, nil, apperr.Wrap(apperr.InvalidInput, "invalid multipart body", err)
	}
	req.Title = r.FormValue("title")
	req.Content = r.FormValue("content")

	var uploads []*upload
	if fh := formFile(r, "image"); fh != nil {
		u, err := readImage(fh)
		if err != nil {
			return req, nil, err
		}
		uploads = append(uploads, u)
	}
	if fh := formFile(r, "codefile"); fh != nil {
		u, err := readCodeFile(fh)
		if err != nil {
			return req, nil, err
		}
		uploads = append(uploads, u)
	}
	return req, uploads, nil
}

// formFile returns the named non-empty file part, if any.
func formFile(r *http.Request, field string) *multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 || files[0].Size == 0 {
		return nil
	}
	return files[0]
}

func readImage(fh *multipart.FileHeader) (*upload, error) {
	contentType := fh.Header.Get("Content-Type")
	if !imageTypes[contentType] {
		return nil, apperr.New(apperr.InvalidInput, "unsupported image format, upload JPG, PNG, GIF or WebP")
	}
	if fh.Size > MaxImageSize {
		return nil, apperr.New(apperr.InvalidInput, "image too large, upload an image under 5MB")
	}
	return readPart(fh, kindImage, "images", contentType)
}

func readCodeFile(fh *multipart.FileHeader) (*upload, error) {
	if !codeExtensions[strings.ToLower(filepath.Ext(fh.Filename))] {
		return nil, apperr.New(apperr.InvalidInput, "unsupported code file type")
	}
	if fh.Size > MaxCodeSize {
		return nil, apperr.New(apperr.InvalidInput, "code file too large, upload a file under 2MB")
	}
	return readPart(fh, kindCode, "codefiles", "text/plain; charset=utf-8")
}

func readPart(fh *multipart.FileHeader, kind uploadKind, dir, contentType string) (*upload, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	name := filepath.Base(fh.Filename)
	return &upload{
		kind:        kind,
		key:         dir + "/" + uuid.New().String() + "_" + safeName(name),
		name:        name,
		contentType: contentType,
		data:        data,
	}, nil
}

// safeName keeps object keys to URL-safe characters.
func safeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

func (h *Handler) removeUploads(ctx context.Context, uploads []*upload) {
	for _, u := range uploads {
		if err := h.files.Remove(ctx, u.key); err != nil {
			slog.Warn("remove attachment", "key", u.key, "err", err)
		}
	}
}

// ServeUpload streams a stored attachment.
func (h *Handler) ServeUpload(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	data, contentType, err := h.files.Download(r.Context(), key)
	if errors.Is(err, store.ErrNotFound) {
		response.Fail(w, http.StatusNotFound, "file not found")
		return
	}
	if err != nil {
		response.Error(w, r, err)
		return
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(data)
}
