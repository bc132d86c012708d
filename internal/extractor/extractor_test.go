package extractor

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/ragcore/internal/config"
	"github.com/yungbote/ragcore/internal/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	require.NoError(t, err)
	return log
}

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestExtractImage_DerivesDimensionsAndOrientationTag(t *testing.T) {
	e := New(nil, nil, nil, config.IngestConfig{}, testLogger(t))
	data := solidPNG(t, 40, 20, color.RGBA{R: 200, G: 30, B: 30, A: 255})

	res, err := e.Extract(context.Background(), "sunset-beach.png", "image/png", "key", data)
	require.NoError(t, err)
	assert.Equal(t, 40, res.NativeWidth)
	assert.Equal(t, 20, res.NativeHeight)
	assert.Contains(t, res.ImageTags, "landscape")
	assert.Contains(t, res.ImageTags, "red")
}

func TestExtractImage_FilenameTokensBecomeTags(t *testing.T) {
	e := New(nil, nil, nil, config.IngestConfig{}, testLogger(t))
	data := solidPNG(t, 10, 10, color.RGBA{R: 10, G: 10, B: 10, A: 255})

	res, err := e.Extract(context.Background(), "team_offsite_photo_2024.png", "image/png", "key", data)
	require.NoError(t, err)
	assert.Contains(t, res.ImageTags, "team")
	assert.Contains(t, res.ImageTags, "offsite")
	assert.Contains(t, res.ImageTags, "photo")
	assert.NotContains(t, res.ImageTags, "2024", "mostly-numeric tokens are noise and should be dropped")
}

func TestExtractImage_TagsAreCappedAndDeduped(t *testing.T) {
	e := New(nil, nil, nil, config.IngestConfig{}, testLogger(t))
	data := solidPNG(t, 10, 10, color.RGBA{G: 200, A: 255})

	res, err := e.Extract(context.Background(), "green-green-square-square.png", "image/png", "key", data)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(res.ImageTags), maxImageTags)

	seen := map[string]bool{}
	for _, tag := range res.ImageTags {
		assert.False(t, seen[tag], "tag %q should not repeat", tag)
		seen[tag] = true
	}
}

func TestOrientationTag(t *testing.T) {
	assert.Equal(t, "square", orientationTag(10, 10))
	assert.Equal(t, "landscape", orientationTag(20, 10))
	assert.Equal(t, "portrait", orientationTag(10, 20))
}

func TestClassifyColor(t *testing.T) {
	assert.Equal(t, "white", classifyColor(250, 250, 250))
	assert.Equal(t, "black", classifyColor(5, 5, 5))
	assert.Equal(t, "gray", classifyColor(120, 120, 120))
	assert.Equal(t, "red", classifyColor(220, 20, 20))
	assert.Equal(t, "green", classifyColor(20, 220, 20))
	assert.Equal(t, "blue", classifyColor(20, 20, 220))
}

func TestFilenameTokens_DropsShortAndNumericFragments(t *testing.T) {
	out := filenameTokens("IMG_2024_final-v2.jpg")
	assert.Contains(t, out, "final")
	assert.NotContains(t, out, "2024", "mostly-numeric fragments are dropped")
	assert.NotContains(t, out, "v2", "fragments shorter than 3 runes are dropped")
}

func TestOCRTokens_FiltersNumericNoise(t *testing.T) {
	out := ocrTokens("Invoice Total 48213957 due thanks")
	assert.Contains(t, out, "invoice")
	assert.Contains(t, out, "total")
	assert.Contains(t, out, "thanks")
	assert.NotContains(t, out, "48213957")
}

func TestIsNumericNoise(t *testing.T) {
	assert.True(t, isNumericNoise("48213957"))
	assert.True(t, isNumericNoise("a1b2c3d4"))
	assert.False(t, isNumericNoise("invoice"))
}

func TestDedupTags_PreservesFirstOccurrenceOrder(t *testing.T) {
	out := dedupTags([]string{"red", "square", "red", "", "square", "photo"})
	assert.Equal(t, []string{"red", "square", "photo"}, out)
}

func TestClassify_DispatchesByExtensionAndMimeType(t *testing.T) {
	assert.Equal(t, "image", classify("photo.png", "", nil))
	assert.Equal(t, "pdf", classify("report.pdf", "", nil))
	assert.Equal(t, "xlsx", classify("data.xlsx", "", nil))
	assert.Equal(t, "csv", classify("rows.csv", "", nil))
	assert.Equal(t, "audio", classify("clip.mp3", "", nil))
	assert.Equal(t, "video", classify("movie.mp4", "", nil))
	assert.Equal(t, "text", classify("notes.txt", "", nil))
}
