package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/gallery/internal/domain"
	"github.com/utafrali/gallery/internal/service"
	apperrors "github.com/utafrali/gallery/pkg/errors"
)

const (
	testUserID  = "0b7c3a52-5f0e-4bb4-8a1c-3f8f4fb6d9a1"
	testImageID = "5e1d7d0c-2b7f-4a57-9d7e-8c1f8e0b9a11"
)

// pngBytes starts with the PNG signature so content sniffing reports image/png.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)

type formFile struct {
	field, name string
	data        []byte
}

func multipartBody(t *testing.T, fields map[string][]string, files ...formFile) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, vs := range fields {
		for _, v := range vs {
			require.NoError(t, mw.WriteField(k, v))
		}
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestListImages(t *testing.T) {
	ts := newTestServer(t)
	images := []domain.Image{{ID: testImageID, UserID: testUserID, Title: "Sunset", Order: 0}}
	ts.gallery.On("List", mock.Anything, testUserID).Return(images, nil)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/images", nil), ts.accessCookie(t, testUserID))

	require.Equal(t, http.StatusOK, rec.Code)
	var got []domain.Image
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &got))
	assert.Equal(t, "Sunset", got[0].Title)
}

func TestListImages_RequiresAuth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/images", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	ts.gallery.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestUploadImages_SniffsContentTypeAndParsesTitles(t *testing.T) {
	ts := newTestServer(t)
	body, ct := multipartBody(t,
		map[string][]string{"titles": {`["Sunset","Beach"]`}},
		formFile{"images", "a.png", pngBytes},
		formFile{"images", "b.png", pngBytes},
	)

	ts.gallery.On("Upload", mock.Anything, testUserID,
		mock.MatchedBy(func(files []service.UploadFile) bool {
			if len(files) != 2 {
				return false
			}
			for _, f := range files {
				if f.ContentType != "image/png" || f.Size != int64(len(pngBytes)) {
					return false
				}
			}
			return true
		}),
		[]string{"Sunset", "Beach"},
	).Return([]domain.Image{{ID: "1"}, {ID: "2"}}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/images/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := ts.do(req, ts.accessCookie(t, testUserID))

	assert.Equal(t, http.StatusCreated, rec.Code)
	ts.gallery.AssertExpectations(t)
}

func TestUploadImages_RepeatedTitleFields(t *testing.T) {
	ts := newTestServer(t)
	body, ct := multipartBody(t,
		map[string][]string{"titles": {"One", "Two"}},
		formFile{"images", "a.png", pngBytes},
		formFile{"images", "b.png", pngBytes},
	)
	ts.gallery.On("Upload", mock.Anything, testUserID, mock.Anything, []string{"One", "Two"}).
		Return([]domain.Image{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/images/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := ts.do(req, ts.accessCookie(t, testUserID))

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestUploadImages_IndexKeyedTitlesObject(t *testing.T) {
	ts := newTestServer(t)
	body, ct := multipartBody(t,
		map[string][]string{"titles": {`{"1":"second","0":"first"}`}},
		formFile{"images", "a.png", pngBytes},
		formFile{"images", "b.png", pngBytes},
	)
	ts.gallery.On("Upload", mock.Anything, testUserID, mock.Anything, []string{"first", "second"}).
		Return([]domain.Image{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/images/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := ts.do(req, ts.accessCookie(t, testUserID))

	assert.Equal(t, http.StatusCreated, rec.Code)
	ts.gallery.AssertExpectations(t)
}

func TestParseTitles(t *testing.T) {
	tests := []struct {
		name    string
		values  []string
		want    []string
		wantErr bool
	}{
		{"json array", []string{`["a","b"]`}, []string{"a", "b"}, false},
		{"index object", []string{`{"0":"first","1":"second"}`}, []string{"first", "second"}, false},
		{"single plain title", []string{"Sunset"}, []string{"Sunset"}, false},
		{"repeated fields", []string{"One", "Two"}, []string{"One", "Two"}, false},
		{"object with gap", []string{`{"0":"a","2":"c"}`}, nil, true},
		{"object with name key", []string{`{"first":"a"}`}, nil, true},
		{"object with non-string value", []string{`{"0":1}`}, nil, true},
		{"broken object", []string{`{"0":"a"`}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTitles(tt.values)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUploadImages_DeclaredTypeIsIgnored(t *testing.T) {
	ts := newTestServer(t)
	body, ct := multipartBody(t,
		map[string][]string{"titles": {`["Fake"]`}},
		formFile{"images", "evil.png", []byte("<html><script>alert(1)</script></html>")},
	)
	ts.gallery.On("Upload", mock.Anything, testUserID,
		mock.MatchedBy(func(files []service.UploadFile) bool {
			return len(files) == 1 && files[0].ContentType != "image/png"
		}),
		[]string{"Fake"},
	).Return(nil, domain.ErrRequiredData("unused"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/images/upload", body)
	req.Header.Set("Content-Type", ct)
	ts.do(req, ts.accessCookie(t, testUserID))

	ts.gallery.AssertExpectations(t)
}

func TestUploadImages_BadTitlesJSON(t *testing.T) {
	ts := newTestServer(t)
	body, ct := multipartBody(t,
		map[string][]string{"titles": {`["unterminated`}},
		formFile{"images", "a.png", pngBytes},
	)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/images/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := ts.do(req, ts.accessCookie(t, testUserID))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	ts.gallery.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUploadImages_NotMultipart(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.postJSON("/api/v1/images/upload", map[string]string{"x": "y"}, ts.accessCookie(t, testUserID))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateImage_JSONTitle(t *testing.T) {
	ts := newTestServer(t)
	title := "Renamed"
	ts.gallery.On("Update", mock.Anything, testUserID, testImageID, service.UpdateImageInput{Title: &title}).
		Return(&domain.Image{ID: testImageID, Title: title}, nil)

	rec := ts.sendJSON(http.MethodPut, "/api/v1/images/"+testImageID, map[string]string{"title": title},
		ts.accessCookie(t, testUserID))

	assert.Equal(t, http.StatusOK, rec.Code)
	ts.gallery.AssertExpectations(t)
}

func TestUpdateImage_MultipartFile(t *testing.T) {
	ts := newTestServer(t)
	body, ct := multipartBody(t, nil, formFile{"image", "new.png", pngBytes})
	ts.gallery.On("Update", mock.Anything, testUserID, testImageID,
		mock.MatchedBy(func(in service.UpdateImageInput) bool {
			return in.Title == nil && in.File != nil && in.File.ContentType == "image/png"
		}),
	).Return(&domain.Image{ID: testImageID}, nil)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/images/"+testImageID, body)
	req.Header.Set("Content-Type", ct)
	rec := ts.do(req, ts.accessCookie(t, testUserID))

	assert.Equal(t, http.StatusOK, rec.Code)
	ts.gallery.AssertExpectations(t)
}

func TestUpdateImage_InvalidID(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.sendJSON(http.MethodPut, "/api/v1/images/not-a-uuid", map[string]string{"title": "x"},
		ts.accessCookie(t, testUserID))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PARAMETER", errorCode(t, rec))
}

func TestUpdateImage_NotFound(t *testing.T) {
	ts := newTestServer(t)
	ts.gallery.On("Update", mock.Anything, testUserID, testImageID, mock.Anything).
		Return(nil, domain.ErrImageNotFound())

	rec := ts.sendJSON(http.MethodPut, "/api/v1/images/"+testImageID, map[string]string{"title": "x"},
		ts.accessCookie(t, testUserID))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, domain.CodeImageNotFound, errorCode(t, rec))
}

func TestDeleteImage(t *testing.T) {
	ts := newTestServer(t)
	ts.gallery.On("Delete", mock.Anything, testUserID, testImageID).Return(nil)

	rec := ts.do(httptest.NewRequest(http.MethodDelete, "/api/v1/images/"+testImageID, nil),
		ts.accessCookie(t, testUserID))

	assert.Equal(t, http.StatusOK, rec.Code)
	ts.gallery.AssertExpectations(t)
}

func TestRearrangeImages(t *testing.T) {
	ts := newTestServer(t)
	orders := []domain.ImageOrder{{ID: testImageID, Order: 1}}
	ts.gallery.On("Rearrange", mock.Anything, testUserID, orders).Return(nil)

	rec := ts.sendJSON(http.MethodPut, "/api/v1/images/rearrange",
		map[string]any{"image_order": orders}, ts.accessCookie(t, testUserID))

	assert.Equal(t, http.StatusOK, rec.Code)
	ts.gallery.AssertExpectations(t)
}

func TestRearrangeImages_InvalidEntry(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.sendJSON(http.MethodPut, "/api/v1/images/rearrange",
		map[string]any{"image_order": []map[string]any{{"id": "nope", "order": -2}}},
		ts.accessCookie(t, testUserID))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
	ts.gallery.AssertNotCalled(t, "Rearrange", mock.Anything, mock.Anything, mock.Anything)
}

func TestRearrangeImages_ServiceError(t *testing.T) {
	ts := newTestServer(t)
	ts.gallery.On("Rearrange", mock.Anything, testUserID, mock.Anything).
		Return(domain.ErrImageOrderWrong("image order must not be empty"))

	rec := ts.sendJSON(http.MethodPut, "/api/v1/images/rearrange",
		map[string]any{"image_order": []any{}}, ts.accessCookie(t, testUserID))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.CodeImageOrderWrong, errorCode(t, rec))
}
