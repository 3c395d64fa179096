package service

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/gallery/internal/auth"
	"github.com/utafrali/gallery/internal/domain"
	"github.com/utafrali/gallery/internal/storage"
	apperrors "github.com/utafrali/gallery/pkg/errors"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testClock is a settable time source shared with the codec.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCodec(t *testing.T) (*auth.Codec, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	codec, err := auth.NewCodec(auth.TokenConfig{
		AccessSecret:  "access-secret-for-tests-0123456789",
		RefreshSecret: "refresh-secret-for-tests-987654321",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "gallery-test",
	}, auth.WithClock(clock.Now))
	require.NoError(t, err)
	return codec, clock
}

func testHasher() auth.PasswordHasher {
	return auth.BcryptHasher{Cost: bcrypt.MinCost}
}

// --- Mock User Repository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) Update(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) SetRefreshToken(ctx context.Context, id string, token *string) error {
	args := m.Called(ctx, id, token)
	return args.Error(0)
}

func (m *mockUserRepository) RotateRefreshToken(ctx context.Context, id, expected, next string) (bool, error) {
	args := m.Called(ctx, id, expected, next)
	return args.Bool(0), args.Error(1)
}

// --- In-memory user store ---

// memUsers is a stateful UserRepository for multi-step scenarios.
type memUsers struct {
	mu     sync.Mutex
	byID   map[string]domain.User
	writes int
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[string]domain.User)}
}

func (s *memUsers) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byID {
		if u.Email == user.Email {
			return domain.ErrEmailExists()
		}
	}
	s.byID[user.ID] = *user
	s.writes++
	return nil
}

func (s *memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &u, nil
}

func (s *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byID {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (s *memUsers) Update(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[user.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	u.Phone = user.Phone
	u.PasswordHash = user.PasswordHash
	s.byID[user.ID] = u
	s.writes++
	return nil
}

func (s *memUsers) SetRefreshToken(_ context.Context, id string, token *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if token != nil {
		t := *token
		token = &t
	}
	u.RefreshToken = token
	s.byID[id] = u
	s.writes++
	return nil
}

func (s *memUsers) RotateRefreshToken(_ context.Context, id, expected, next string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok || u.RefreshToken == nil || *u.RefreshToken != expected {
		return false, nil
	}
	u.RefreshToken = &next
	s.byID[id] = u
	s.writes++
	return true, nil
}

func (s *memUsers) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// --- Events ---

type recordingEvents struct {
	mu       sync.Mutex
	topics   []string
	failWith error
}

func (e *recordingEvents) record(topic string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.topics = append(e.topics, topic)
	return e.failWith
}

func (e *recordingEvents) UserRegistered(context.Context, *domain.User) error {
	return e.record("user.registered")
}

func (e *recordingEvents) PasswordChanged(context.Context, *domain.User) error {
	return e.record("user.password_changed")
}

func (e *recordingEvents) ImageUploaded(context.Context, *domain.Image) error {
	return e.record("image.uploaded")
}

func (e *recordingEvents) ImageDeleted(context.Context, *domain.Image) error {
	return e.record("image.deleted")
}

func (e *recordingEvents) Topics() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.topics...)
}

// --- Throttle ---

type fakeThrottle struct {
	mu       sync.Mutex
	failures map[string]int
	err      error
}

func newFakeThrottle() *fakeThrottle {
	return &fakeThrottle{failures: make(map[string]int)}
}

func (f *fakeThrottle) Failures(_ context.Context, email string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failures[email], f.err
}

func (f *fakeThrottle) RecordFailure(_ context.Context, email string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.failures[email]++
	return f.failures[email], nil
}

func (f *fakeThrottle) Reset(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failures, email)
	return f.err
}

func uploadInput(key string, f UploadFile) *storage.UploadInput {
	return &storage.UploadInput{Key: key, ContentType: f.ContentType, Size: f.Size, Data: f.Data}
}
