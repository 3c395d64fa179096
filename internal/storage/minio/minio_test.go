package minio

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	minioLib "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/gallery/internal/storage"
)

// fakeMinio implements minioAPI for testing without network.
type fakeMinio struct {
	bucketExists    bool
	bucketExistsErr error
	makeBucketErr   error
	madeBucket      string

	putErr     error
	putKey     string
	putSize    int64
	putOpts    minioLib.PutObjectOptions
	putPayload string

	removeErr error
	removed   []string

	statErr error
}

func (f *fakeMinio) BucketExists(_ context.Context, _ string) (bool, error) {
	return f.bucketExists, f.bucketExistsErr
}

func (f *fakeMinio) MakeBucket(_ context.Context, bucket string, _ minioLib.MakeBucketOptions) error {
	f.madeBucket = bucket
	return f.makeBucketErr
}

func (f *fakeMinio) PutObject(_ context.Context, _ string, key string, r io.Reader, size int64, opts minioLib.PutObjectOptions) (minioLib.UploadInfo, error) {
	if f.putErr != nil {
		return minioLib.UploadInfo{}, f.putErr
	}
	b, _ := io.ReadAll(r)
	f.putKey, f.putSize, f.putOpts, f.putPayload = key, size, opts, string(b)
	return minioLib.UploadInfo{Key: key, Size: int64(len(b))}, nil
}

func (f *fakeMinio) RemoveObject(_ context.Context, _ string, key string, _ minioLib.RemoveObjectOptions) error {
	f.removed = append(f.removed, key)
	return f.removeErr
}

func (f *fakeMinio) StatObject(_ context.Context, _ string, _ string, _ minioLib.StatObjectOptions) (minioLib.ObjectInfo, error) {
	return minioLib.ObjectInfo{}, f.statErr
}

func TestNewWithAPI_CreatesMissingBucket(t *testing.T) {
	api := &fakeMinio{}
	_, err := newWithAPI(context.Background(), api, "gallery", "http://cdn")
	require.NoError(t, err)
	assert.Equal(t, "gallery", api.madeBucket)
}

func TestNewWithAPI_ExistingBucket(t *testing.T) {
	api := &fakeMinio{bucketExists: true}
	_, err := newWithAPI(context.Background(), api, "gallery", "http://cdn")
	require.NoError(t, err)
	assert.Empty(t, api.madeBucket)
}

func TestNewWithAPI_Errors(t *testing.T) {
	_, err := newWithAPI(context.Background(), &fakeMinio{bucketExistsErr: errors.New("dial tcp")}, "b", "")
	require.Error(t, err)

	_, err = newWithAPI(context.Background(), &fakeMinio{makeBucketErr: errors.New("denied")}, "b", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create bucket")
}

func TestStorage_Upload(t *testing.T) {
	api := &fakeMinio{bucketExists: true}
	s, err := newWithAPI(context.Background(), api, "gallery", "http://localhost:9000/")
	require.NoError(t, err)

	res, err := s.Upload(context.Background(), &storage.UploadInput{
		Key:         "users/u-1/a.webp",
		ContentType: "image/webp",
		Size:        4,
		Data:        strings.NewReader("webp"),
	})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/gallery/users/u-1/a.webp", res.URL)
	assert.Equal(t, "users/u-1/a.webp", api.putKey)
	assert.Equal(t, int64(4), api.putSize)
	assert.Equal(t, "image/webp", api.putOpts.ContentType)
	assert.Equal(t, "webp", api.putPayload)
}

func TestStorage_Upload_UnknownSizeStreams(t *testing.T) {
	api := &fakeMinio{bucketExists: true}
	s, err := newWithAPI(context.Background(), api, "gallery", "")
	require.NoError(t, err)

	_, err = s.Upload(context.Background(), &storage.UploadInput{Key: "k.png", Data: strings.NewReader("x")})
	require.NoError(t, err)
	assert.Equal(t, int64(-1), api.putSize)
}

func TestStorage_Upload_Error(t *testing.T) {
	api := &fakeMinio{bucketExists: true, putErr: errors.New("slow down")}
	s, err := newWithAPI(context.Background(), api, "gallery", "")
	require.NoError(t, err)

	_, err = s.Upload(context.Background(), &storage.UploadInput{Key: "k.png", Data: strings.NewReader("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "put object")
}

func TestStorage_Delete(t *testing.T) {
	api := &fakeMinio{bucketExists: true}
	s, err := newWithAPI(context.Background(), api, "gallery", "")
	require.NoError(t, err)

	require.NoError(t, s.Delete(context.Background(), "users/u-1/a.png"))
	assert.Equal(t, []string{"users/u-1/a.png"}, api.removed)
}

func TestStorage_GetURL_NoSuchKey(t *testing.T) {
	api := &fakeMinio{bucketExists: true, statErr: minioLib.ErrorResponse{Code: "NoSuchKey"}}
	s, err := newWithAPI(context.Background(), api, "gallery", "http://cdn")
	require.NoError(t, err)

	_, err = s.GetURL(context.Background(), "missing.png")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestStorage_Ping(t *testing.T) {
	api := &fakeMinio{bucketExists: true}
	s, err := newWithAPI(context.Background(), api, "gallery", "")
	require.NoError(t, err)
	assert.NoError(t, s.Ping(context.Background()))

	api.bucketExists = false
	assert.Error(t, s.Ping(context.Background()))
}
