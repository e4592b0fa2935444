package cloudinarytools

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noiseJPEG produces bytes that compress badly, so the quality schedule
// actually has work to do.
func noiseJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestEncodeReturnsImmediatelyUnderCeiling(t *testing.T) {
	content := testJPEG(t, 32, 32)

	encoded, err := NewEncoder(MaxFileSize).Encode(content)
	require.NoError(t, err)

	assert.Equal(t, 0, encoded.Quality, "default-quality attempt must be the only one")
	assert.False(t, encoded.SizeUnmet)
	assert.Equal(t, int64(len(encoded.Bytes)), encoded.Size)
	assert.LessOrEqual(t, encoded.Size, MaxFileSize)

	_, err = jpeg.Decode(bytes.NewReader(encoded.Bytes))
	assert.NoError(t, err, "output must be independently decodable")
}

func TestEncodeReducesQualityUntilCeiling(t *testing.T) {
	content := noiseJPEG(t, 256, 256)

	// Unconstrained run gives the default-quality baseline, a one-step
	// schedule gives the quality-95 baseline.
	baseline, err := NewEncoder(1 << 40).Encode(content)
	require.NoError(t, err)
	firstAttempt, err := (&Encoder{MaxBytes: 1, StartQuality: 95, QualityStep: 95}).Encode(content)
	require.NoError(t, err)

	ceiling := baseline.Size / 2
	encoded, err := NewEncoder(ceiling).Encode(content)
	require.NoError(t, err)

	assert.Greater(t, encoded.Quality, 0)
	assert.LessOrEqual(t, encoded.Size, firstAttempt.Size,
		"result can never exceed the first schedule attempt")
	if !encoded.SizeUnmet {
		assert.LessOrEqual(t, encoded.Size, ceiling)
	}

	_, err = jpeg.Decode(bytes.NewReader(encoded.Bytes))
	assert.NoError(t, err)
}

func TestEncodeExhaustsSchedule(t *testing.T) {
	content := noiseJPEG(t, 128, 128)

	encoded, err := NewEncoder(100).Encode(content)
	require.NoError(t, err)

	// 95, 90, ..., 5: the schedule ends without an error.
	assert.True(t, encoded.SizeUnmet)
	assert.Equal(t, 5, encoded.Quality)
	assert.Greater(t, encoded.Size, int64(100))

	_, err = jpeg.Decode(bytes.NewReader(encoded.Bytes))
	assert.NoError(t, err, "best-effort output is still a complete JPEG")
}

func TestEncodePreservesExifMetadata(t *testing.T) {
	content := exifJPEG(t, fullCameraEntries())

	encoded, err := NewEncoder(MaxFileSize).Encode(content)
	require.NoError(t, err)

	bag, err := ExtractMetadata(encoded.Bytes)
	require.NoError(t, err)
	model, ok := bag.lookup("Model")
	require.True(t, ok, "EXIF block must survive re-encoding")
	assert.Equal(t, "NIKON Z f", model.Text)
}

func TestEncodePreservesExifAcrossScheduleIterations(t *testing.T) {
	payload := append(append([]byte{}, exifHeader...), buildTIFF(fullCameraEntries())...)
	content := spliceExifSegment(noiseJPEG(t, 128, 128), payload)

	encoded, err := NewEncoder(100).Encode(content)
	require.NoError(t, err)
	require.True(t, encoded.SizeUnmet)

	bag, err := ExtractMetadata(encoded.Bytes)
	require.NoError(t, err)
	_, ok := bag.lookup("Model")
	assert.True(t, ok)
}

func TestEncodePNGSource(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 24, 24))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	encoded, err := NewEncoder(MaxFileSize).Encode(buf.Bytes())
	require.NoError(t, err)

	_, err = jpeg.Decode(bytes.NewReader(encoded.Bytes))
	assert.NoError(t, err, "non-JPEG sources are re-encoded as JPEG")
}

func TestEncodeRejectsNonImageContent(t *testing.T) {
	_, err := NewEncoder(MaxFileSize).Encode([]byte("not an image"))
	assert.Error(t, err)
}

func TestRawExifPayloadRoundTrip(t *testing.T) {
	payload := append(append([]byte{}, exifHeader...), buildTIFF(fullCameraEntries())...)
	spliced := spliceExifSegment(testJPEG(t, 16, 16), payload)

	assert.Equal(t, payload, rawExifPayload(spliced))
	assert.Nil(t, rawExifPayload(testJPEG(t, 16, 16)))
	assert.Nil(t, rawExifPayload([]byte("no jpeg here")))
}

func TestSpliceExifSegmentGuards(t *testing.T) {
	jpegData := testJPEG(t, 16, 16)

	assert.Equal(t, jpegData, spliceExifSegment(jpegData, nil))

	oversized := make([]byte, 0x10000)
	assert.Equal(t, jpegData, spliceExifSegment(jpegData, oversized))
}
