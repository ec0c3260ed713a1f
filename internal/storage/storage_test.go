package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CollComm/werewolf-sign/internal/models"
)

func TestStagingSave(t *testing.T) {
	s, err := NewStaging(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)

	upload, err := s.Save(strings.NewReader("video-bytes"), "../../etc/My Clip.MP4")
	require.NoError(t, err)

	assert.NotEmpty(t, upload.ID)
	assert.Equal(t, filepath.Join(s.Dir(), upload.ID+".mp4"), upload.Path)
	assert.Equal(t, "My Clip.MP4", upload.OriginalName)
	assert.Equal(t, int64(11), upload.SizeBytes)
	assert.Equal(t, filepath.Join(s.Dir(), upload.ID+"_frames"), upload.FramesDir())

	data, err := os.ReadFile(upload.Path)
	require.NoError(t, err)
	assert.Equal(t, "video-bytes", string(data))
}

func TestStagingSaveUniqueNames(t *testing.T) {
	s, err := NewStaging(t.TempDir())
	require.NoError(t, err)

	a, err := s.Save(strings.NewReader("a"), "clip.mp4")
	require.NoError(t, err)
	b, err := s.Save(strings.NewReader("b"), "clip.mp4")
	require.NoError(t, err)

	assert.NotEqual(t, a.Path, b.Path)
}

func TestStagingSaveEmpty(t *testing.T) {
	s, err := NewStaging(t.TempDir())
	require.NoError(t, err)

	_, err = s.Save(bytes.NewReader(nil), "clip.mp4")
	assert.ErrorIs(t, err, models.ErrUploadMissing)

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStagingSaveFileCopies(t *testing.T) {
	src := filepath.Join(t.TempDir(), "original.webm")
	require.NoError(t, os.WriteFile(src, []byte("webm"), 0644))

	s, err := NewStaging(t.TempDir())
	require.NoError(t, err)

	upload, err := s.SaveFile(src)
	require.NoError(t, err)
	assert.NotEqual(t, src, upload.Path)
	assert.True(t, strings.HasSuffix(upload.Path, ".webm"))
	assert.FileExists(t, src)

	_, err = s.SaveFile(filepath.Join(t.TempDir(), "missing.mp4"))
	assert.ErrorIs(t, err, models.ErrUploadMissing)
}

func TestSanitizeExt(t *testing.T) {
	assert.Equal(t, ".mp4", sanitizeExt("clip.mp4"))
	assert.Equal(t, ".mov", sanitizeExt("CLIP.MOV"))
	assert.Equal(t, "", sanitizeExt("clip"))
	assert.Equal(t, "", sanitizeExt("clip.m p4"))
	assert.Equal(t, "", sanitizeExt("clip.$(rm)"))
	assert.Equal(t, "", sanitizeExt("clip.averyverylongext"))
}

type fakeGetter struct {
	body string
	err  error
	in   *s3.GetObjectInput
}

func (f *fakeGetter) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func TestS3SourceFetch(t *testing.T) {
	staging, err := NewStaging(t.TempDir())
	require.NoError(t, err)

	getter := &fakeGetter{body: "remote-video"}
	src := &S3Source{client: getter}

	upload, err := src.Fetch(context.Background(), "s3://gestures/sessions/night-1.mp4", staging)
	require.NoError(t, err)

	assert.Equal(t, "gestures", *getter.in.Bucket)
	assert.Equal(t, "sessions/night-1.mp4", *getter.in.Key)
	assert.Equal(t, "night-1.mp4", upload.OriginalName)
	assert.Equal(t, int64(len("remote-video")), upload.SizeBytes)
}

func TestS3SourceFetchMissingObject(t *testing.T) {
	staging, err := NewStaging(t.TempDir())
	require.NoError(t, err)

	src := &S3Source{client: &fakeGetter{err: &s3types.NoSuchKey{}}}
	_, err = src.Fetch(context.Background(), "s3://gestures/missing.mp4", staging)
	assert.ErrorIs(t, err, models.ErrUploadMissing)

	src = &S3Source{client: &fakeGetter{err: errors.New("access denied")}}
	_, err = src.Fetch(context.Background(), "s3://gestures/private.mp4", staging)
	assert.ErrorContains(t, err, "access denied")
}

func TestParseS3URI(t *testing.T) {
	bucket, key, err := ParseS3URI("s3://b/k/v.mp4")
	require.NoError(t, err)
	assert.Equal(t, "b", bucket)
	assert.Equal(t, "k/v.mp4", key)

	for _, bad := range []string{"http://b/k", "s3://", "s3://bucket", "s3:///key"} {
		_, _, err := ParseS3URI(bad)
		assert.Error(t, err, bad)
	}

	assert.True(t, IsS3URI("s3://b/k"))
	assert.False(t, IsS3URI("/tmp/v.mp4"))
}
