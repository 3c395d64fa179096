package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/gallery/internal/auth"
	"github.com/utafrali/gallery/internal/domain"
	"github.com/utafrali/gallery/internal/event"
	"github.com/utafrali/gallery/internal/service"
	apperrors "github.com/utafrali/gallery/pkg/errors"
	"github.com/utafrali/gallery/pkg/health"
	"github.com/utafrali/gallery/pkg/middleware"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- In-memory user repository ---

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]domain.User)}
}

func (m *memUserRepo) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return domain.ErrEmailExists()
		}
	}
	m.users[u.ID] = *u
	return nil
}

func (m *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &u, nil
}

func (m *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *memUserRepo) Update(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.users[u.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	existing.Phone, existing.PasswordHash = u.Phone, u.PasswordHash
	m.users[u.ID] = existing
	return nil
}

func (m *memUserRepo) SetRefreshToken(_ context.Context, id string, token *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	u.RefreshToken = token
	m.users[id] = u
	return nil
}

func (m *memUserRepo) RotateRefreshToken(_ context.Context, id, expected, next string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || !u.HasRefreshToken(expected) {
		return false, nil
	}
	u.RefreshToken = &next
	m.users[id] = u
	return true, nil
}

// --- Mock gallery ---

type mockGallery struct {
	mock.Mock
}

func (m *mockGallery) Upload(ctx context.Context, userID string, files []service.UploadFile, titles []string) ([]domain.Image, error) {
	args := m.Called(ctx, userID, files, titles)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Image), args.Error(1)
}

func (m *mockGallery) List(ctx context.Context, userID string) ([]domain.Image, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Image), args.Error(1)
}

func (m *mockGallery) Update(ctx context.Context, userID, id string, input service.UpdateImageInput) (*domain.Image, error) {
	args := m.Called(ctx, userID, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Image), args.Error(1)
}

func (m *mockGallery) Delete(ctx context.Context, userID, id string) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func (m *mockGallery) Rearrange(ctx context.Context, userID string, orders []domain.ImageOrder) error {
	args := m.Called(ctx, userID, orders)
	return args.Error(0)
}

// --- Test server ---

type testServer struct {
	handler http.Handler
	codec   *auth.Codec
	users   *memUserRepo
	gallery *mockGallery
	now     *time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ts := &testServer{now: &now, users: newMemUserRepo(), gallery: new(mockGallery)}

	codec, err := auth.NewCodec(auth.TokenConfig{
		AccessSecret:  "access-secret-for-tests-0123456789",
		RefreshSecret: "refresh-secret-for-tests-987654321",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "gallery-test",
	}, auth.WithClock(func() time.Time { return *ts.now }))
	require.NoError(t, err)
	ts.codec = codec

	logger := newTestLogger()
	sessions := service.NewSessionService(ts.users, codec, auth.BcryptHasher{Cost: bcrypt.MinCost}, event.Noop{}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ts.handler = NewRouter(ctx, RouterConfig{
		ServiceName: "gallery-test",
		Sessions:    sessions,
		Gallery:     ts.gallery,
		Tokens:      codec,
		Health:      health.NewHandler(),
		Cookies: CookieConfig{
			SameSite:   http.SameSiteLaxMode,
			AccessTTL:  codec.AccessTTL(),
			RefreshTTL: codec.RefreshTTL(),
		},
		CORS: middleware.DefaultCORSConfig(),
	}, logger)
	return ts
}

func (ts *testServer) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) postJSON(path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	return ts.sendJSON(http.MethodPost, path, body, cookies...)
}

func (ts *testServer) sendJSON(method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var r io.Reader = http.NoBody
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return ts.do(req, cookies...)
}

// accessCookie mints a valid access token cookie for userID.
func (ts *testServer) accessCookie(t *testing.T, userID string) *http.Cookie {
	t.Helper()
	token, err := ts.codec.CreateAccessToken(domain.Identity{ID: userID, Email: "admin@example.com"})
	require.NoError(t, err)
	return &http.Cookie{Name: middleware.AccessTokenCookie, Value: token}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	env := decodeEnvelope(t, rec)
	if env.Error == nil {
		return ""
	}
	return env.Error.Code
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func sessionCookies(rec *httptest.ResponseRecorder) []*http.Cookie {
	var out []*http.Cookie
	for _, name := range []string{middleware.AccessTokenCookie, RefreshTokenCookie} {
		if c := findCookie(rec, name); c != nil {
			out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
		}
	}
	return out
}

func stringsReader(s string) io.Reader { return bytes.NewBufferString(s) }
