package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noisyImage is hard to compress, which forces the quality loop to step down.
func noisyImage(w, h int) []byte {
	rng := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func TestCompressReportsSourceDimensions(t *testing.T) {
	data, size, err := Compress(noisyImage(320, 200), DefaultMaxSize)
	require.NoError(t, err)

	assert.NotEmpty(t, data)
	assert.Equal(t, 320.0, size.Width)
	assert.Equal(t, 200.0, size.Height)
}

func TestCompressRespectsByteBudget(t *testing.T) {
	budget := 24 * 1024
	data, _, err := Compress(noisyImage(512, 512), budget)
	require.NoError(t, err)

	assert.LessOrEqual(t, len(data), budget)
}

func TestCompressStopsAtQualityFloor(t *testing.T) {
	// An impossible budget: the loop must stop at the floor, not spin.
	data, _, err := Compress(noisyImage(256, 256), 1)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestCompressRejectsGarbage(t *testing.T) {
	_, _, err := Compress([]byte("not an image"), DefaultMaxSize)
	assert.Error(t, err)
}

func TestCacheSaveKeyedByMessageID(t *testing.T) {
	cache := NewCache(t.TempDir(), time.Hour)

	pathA, err := cache.Save("msg-a", []byte("aaa"))
	require.NoError(t, err)
	pathB, err := cache.Save("msg-b", []byte("bbb"))
	require.NoError(t, err)

	assert.NotEqual(t, pathA, pathB)
	assert.Equal(t, pathA, cache.Path("msg-a"))

	content, err := os.ReadFile(pathA)
	require.NoError(t, err)
	assert.Equal(t, []byte("aaa"), content)
}

func TestCacheSweepEvictsExpired(t *testing.T) {
	dir := t.TempDir()
	cache := NewCache(dir, time.Minute)

	stale, err := cache.Save("old", []byte("old"))
	require.NoError(t, err)
	require.NoError(t, os.Chtimes(stale, time.Now().Add(-2*time.Hour), time.Now().Add(-2*time.Hour)))

	fresh, err := cache.Save("new", []byte("new"))
	require.NoError(t, err)

	removed := cache.Sweep()
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
}
