package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CollComm/werewolf-sign/internal/models"
)

// fakeFFmpeg writes FAKE_FRAMES numbered jpgs next to the output pattern (the last argument)
// and exits with FAKE_EXIT. FAKE_FRAMES_FALLBACK is used when the call has no fps filter.
const fakeFFmpeg = `#!/bin/sh
for last; do :; done
dir=$(dirname "$last")
count=${FAKE_FRAMES:-0}
case "$*" in
  *fps=*) ;;
  *) count=${FAKE_FRAMES_FALLBACK:-0} ;;
esac
i=0
while [ "$i" -lt "$count" ]; do
  printf 'jpeg-%d' "$i" > "$dir/$(printf 'frame_%04d.jpg' "$i")"
  i=$((i+1))
done
if [ -n "$FAKE_EXIT" ]; then
  echo "simulated ffmpeg error" >&2
  exit "$FAKE_EXIT"
fi
exit 0
`

func newTestExtractor(t *testing.T, maxFrames int) (*Extractor, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake ffmpeg needs a POSIX shell")
	}

	dir := t.TempDir()
	bin := filepath.Join(dir, "ffmpeg")
	require.NoError(t, os.WriteFile(bin, []byte(fakeFFmpeg), 0755))

	video := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(video, []byte("not really a video"), 0644))

	e := New(Options{FFmpegPath: bin, Interval: 1, MaxFrames: maxFrames}, nil)
	e.probe = func(string) (float64, error) { return 0, errors.New("no ffprobe in tests") }
	return e, video
}

func TestExtractOrdersFrames(t *testing.T) {
	e, video := newTestExtractor(t, 30)
	t.Setenv("FAKE_FRAMES", "12")

	out := filepath.Join(filepath.Dir(video), "frames")
	frames, err := e.Extract(context.Background(), video, out)
	require.NoError(t, err)
	require.Len(t, frames, 12)

	for i, f := range frames {
		assert.Equal(t, i, f.Index)
		assert.Equal(t, filepath.Join(out, fmt.Sprintf("frame_%04d.jpg", i)), f.Path)
		assert.Nil(t, f.RawBytes)
	}
}

func TestExtractTruncatesToMaxFrames(t *testing.T) {
	e, video := newTestExtractor(t, 3)
	t.Setenv("FAKE_FRAMES", "5")

	frames, err := e.Extract(context.Background(), video, filepath.Join(filepath.Dir(video), "frames"))
	require.NoError(t, err)
	assert.Len(t, frames, 3)
	assert.Equal(t, 2, frames[2].Index)
}

func TestExtractFallsBackToFirstFrame(t *testing.T) {
	e, video := newTestExtractor(t, 30)
	t.Setenv("FAKE_FRAMES", "0")
	t.Setenv("FAKE_FRAMES_FALLBACK", "1")

	frames, err := e.Extract(context.Background(), video, filepath.Join(filepath.Dir(video), "frames"))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, 0, frames[0].Index)
}

func TestExtractZeroFrames(t *testing.T) {
	e, video := newTestExtractor(t, 30)
	t.Setenv("FAKE_FRAMES", "0")

	_, err := e.Extract(context.Background(), video, filepath.Join(filepath.Dir(video), "frames"))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNoFrames)
	assert.ErrorIs(t, err, models.ErrExtraction)
}

func TestExtractToolFailure(t *testing.T) {
	e, video := newTestExtractor(t, 30)
	t.Setenv("FAKE_EXIT", "1")

	_, err := e.Extract(context.Background(), video, filepath.Join(filepath.Dir(video), "frames"))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrExtraction)
	assert.Contains(t, err.Error(), "simulated ffmpeg error")
}

func TestExtractMissingVideo(t *testing.T) {
	e, video := newTestExtractor(t, 30)

	_, err := e.Extract(context.Background(), video+".missing", t.TempDir())
	assert.ErrorIs(t, err, models.ErrExtraction)
}

func TestExtractInvalidOptions(t *testing.T) {
	e, video := newTestExtractor(t, 0)

	_, err := e.Extract(context.Background(), video, t.TempDir())
	assert.ErrorIs(t, err, models.ErrExtraction)
}

func TestExtractPassesHostileNamesAsSingleArguments(t *testing.T) {
	e, video := newTestExtractor(t, 30)
	t.Setenv("FAKE_FRAMES", "1")

	hostile := filepath.Join(filepath.Dir(video), "a; touch pwned && echo $(id).mp4")
	require.NoError(t, os.Rename(video, hostile))

	_, err := e.Extract(context.Background(), hostile, filepath.Join(filepath.Dir(video), "frames"))
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(video), "pwned"))
}

func TestSampleArgs(t *testing.T) {
	args := SampleArgs("/tmp/up/abc.mp4", "/tmp/up/abc_frames", 1.5, 30)
	joined := strings.Join(args, " ")

	assert.Contains(t, args, "file:/tmp/up/abc.mp4")
	assert.Contains(t, joined, "-i file:/tmp/up/abc.mp4")
	assert.Contains(t, joined, "-vf fps=1/1.5")
	assert.Contains(t, joined, "-frames:v 30")
	assert.Contains(t, joined, "-start_number 0")
	assert.Equal(t, "/tmp/up/abc_frames/frame_%04d.jpg", args[len(args)-1])
	assert.Equal(t, "-hide_banner", args[0])
}

func TestFirstFrameArgs(t *testing.T) {
	args := FirstFrameArgs("/tmp/up/abc.mp4", "/tmp/up/abc_frames")
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "-frames:v 1")
	assert.NotContains(t, joined, "fps=")
}

func TestCollectFramesSortsNumerically(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"frame_0010.jpg", "frame_0002.jpg", "frame_10000.jpg", "frame_0000.jpg", "notes.txt", "frame_x.jpg"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	frames, err := collectFrames(dir, 0)
	require.NoError(t, err)
	require.Len(t, frames, 4)

	names := make([]string, len(frames))
	for i, f := range frames {
		names[i] = filepath.Base(f.Path)
		assert.Equal(t, i, f.Index)
	}
	assert.Equal(t, []string{"frame_0000.jpg", "frame_0002.jpg", "frame_0010.jpg", "frame_10000.jpg"}, names)
}

func TestExpectedFrames(t *testing.T) {
	assert.Equal(t, 1, expectedFrames(0.4, 1, 30))
	assert.Equal(t, 10, expectedFrames(10, 1, 30))
	assert.Equal(t, 30, expectedFrames(30, 1, 30))
	assert.Equal(t, 30, expectedFrames(90, 1, 30))
	assert.Equal(t, 4, expectedFrames(7, 2, 30))
}
