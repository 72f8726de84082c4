package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ayush/bugdex-forum/backend/internal/auth"
	"github.com/ayush/bugdex-forum/backend/internal/config"
	"github.com/ayush/bugdex-forum/backend/internal/mail"
	"github.com/ayush/bugdex-forum/backend/internal/models"
	"github.com/ayush/bugdex-forum/backend/internal/repository"
	"github.com/ayush/bugdex-forum/backend/internal/store"
)

const testSecret = "test-secret"

type fakeMailer struct {
	mu   sync.Mutex
	err  error
	sent []mail.Message
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

type testApp struct {
	handler http.Handler
	kv      *store.MemoryKV
	files   *store.MemoryFileStore
	mailer  *fakeMailer
	repos   *repository.Repositories
	tokens  *auth.TokenEncoder
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:        "test",
		JWTSecret:     testSecret,
		KVBackend:     "memory",
		EmailCodeRate: 100,
	}
}

func newTestApp(t *testing.T, cfg *config.Config, opts ...Option) *testApp {
	t.Helper()
	kv := store.NewMemoryKV()
	files := store.NewMemoryFileStore()
	mailer := &fakeMailer{}
	return &testApp{
		handler: NewRouter(cfg, kv, files, mailer, opts...),
		kv:      kv,
		files:   files,
		mailer:  mailer,
		repos:   repository.New(kv),
		tokens:  auth.NewTokenEncoder(cfg.JWTSecret),
	}
}

// do sends a JSON request; body may be nil.
func (a *testApp) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

// user creates a user with a bcrypt password and returns a credential for it.
func (a *testApp) user(t *testing.T, username, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := &models.User{
		Username: username,
		Email:    username + "@x.com",
		Password: string(hash),
		Bio:      "bio of " + username,
	}
	require.NoError(t, a.repos.Users.Create(context.Background(), u))
	tok, err := a.tokens.Encode(u)
	require.NoError(t, err)
	return tok
}

func (a *testApp) createPost(t *testing.T, token, title string) models.Post {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/posts", map[string]string{"title": title, "content": "content of " + title}, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var p models.Post
	decode(t, rec, &p)
	return p
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

type failure struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func failureOf(t *testing.T, rec *httptest.ResponseRecorder) failure {
	t.Helper()
	var f failure
	decode(t, rec, &f)
	return f
}

type filePart struct {
	field, filename, contentType string
	data                         []byte
}

func multipartRequest(t *testing.T, fields map[string]string, files ...filePart) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.filename))
		h.Set("Content-Type", f.contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/posts", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}
