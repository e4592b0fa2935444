// encoder.go
package cloudinarytools

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	// Registers webp decoding for imaging.Decode; the other source formats
	// come with imaging itself.
	_ "golang.org/x/image/webp"
)

const (
	markerSOI  = 0xFFD8
	markerAPP1 = 0xFFE1
	markerSOS  = 0xFFDA

	defaultStartQuality = 95
	defaultQualityStep  = 5
)

var exifHeader = []byte("Exif\x00\x00")

// EncodedImage is a complete, independently decodable JPEG stream produced
// by the encoder, with the quality it was last encoded at (0 meaning the
// library default). SizeUnmet is set when the quality schedule ran out
// before the stream fit under the ceiling.
type EncodedImage struct {
	Bytes     []byte
	Size      int64
	Quality   int
	SizeUnmet bool
}

// Encoder re-encodes images as JPEG under a byte-size ceiling using a
// monotonically decreasing quality schedule. The embedded EXIF block of the
// source is carried into every output.
type Encoder struct {
	MaxBytes     int64
	StartQuality int
	QualityStep  int
}

func NewEncoder(maxBytes int64) *Encoder {
	return &Encoder{
		MaxBytes:     maxBytes,
		StartQuality: defaultStartQuality,
		QualityStep:  defaultQualityStep,
	}
}

// NewProfileEncoder builds an encoder from an encoding profile, falling
// back to the defaults for unset schedule values.
func NewProfileEncoder(profile EncodingProfile) *Encoder {
	e := NewEncoder(profile.MaxFileSize)
	if e.MaxBytes <= 0 {
		e.MaxBytes = MaxFileSize
	}
	if profile.StartQuality > 0 {
		e.StartQuality = profile.StartQuality
	}
	if profile.QualityStep > 0 {
		e.QualityStep = profile.QualityStep
	}
	return e
}

// Encode re-encodes content as JPEG. The first attempt uses the library
// default quality; if the result already fits under MaxBytes it is returned
// as is. Otherwise the original decoded pixels are re-encoded at
// StartQuality, then QualityStep lower per attempt, until the stream fits
// or the schedule reaches zero. The schedule running out is not an error:
// the smallest stream achieved is returned with SizeUnmet set.
func (e *Encoder) Encode(content []byte) (*EncodedImage, error) {
	img, err := imaging.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %v", err)
	}

	// The raw APP1 payload of the source survives every re-encode.
	exifPayload := rawExifPayload(content)

	data, err := e.encodeJPEG(img, 0, exifPayload)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) <= e.MaxBytes {
		return &EncodedImage{Bytes: data, Size: int64(len(data))}, nil
	}

	quality := e.StartQuality
	lastQuality := 0
	for int64(len(data)) > e.MaxBytes && quality > 0 {
		data, err = e.encodeJPEG(img, quality, exifPayload)
		if err != nil {
			return nil, err
		}
		lastQuality = quality
		quality -= e.QualityStep
	}

	return &EncodedImage{
		Bytes:     data,
		Size:      int64(len(data)),
		Quality:   lastQuality,
		SizeUnmet: int64(len(data)) > e.MaxBytes,
	}, nil
}

func (e *Encoder) encodeJPEG(img image.Image, quality int, exifPayload []byte) ([]byte, error) {
	var buf bytes.Buffer
	var opts []imaging.EncodeOption
	if quality > 0 {
		opts = append(opts, imaging.JPEGQuality(quality))
	}
	if err := imaging.Encode(&buf, img, imaging.JPEG, opts...); err != nil {
		return nil, fmt.Errorf("failed to encode image: %v", err)
	}
	return spliceExifSegment(buf.Bytes(), exifPayload), nil
}

// rawExifPayload scans the JPEG segment chain of data and returns the APP1
// EXIF payload (including the "Exif\x00\x00" header), or nil when data is
// not a JPEG or carries no EXIF segment.
func rawExifPayload(data []byte) []byte {
	if len(data) < 4 || binary.BigEndian.Uint16(data[0:2]) != markerSOI {
		return nil
	}
	offset := 2
	for offset+4 <= len(data) {
		marker := binary.BigEndian.Uint16(data[offset : offset+2])
		if marker&0xFF00 != 0xFF00 || marker == markerSOS {
			return nil
		}
		length := int(binary.BigEndian.Uint16(data[offset+2 : offset+4]))
		if length < 2 || offset+2+length > len(data) {
			return nil
		}
		segment := data[offset+4 : offset+2+length]
		if marker == markerAPP1 && bytes.HasPrefix(segment, exifHeader) {
			payload := make([]byte, len(segment))
			copy(payload, segment)
			return payload
		}
		offset += 2 + length
	}
	return nil
}

// spliceExifSegment inserts payload as an APP1 segment right after the SOI
// marker of jpegData. Payloads that would not fit the 16-bit segment length
// are dropped so the output stays a valid JPEG.
func spliceExifSegment(jpegData, payload []byte) []byte {
	if len(payload) == 0 {
		return jpegData
	}
	if len(jpegData) < 2 || binary.BigEndian.Uint16(jpegData[0:2]) != markerSOI {
		return jpegData
	}
	segmentLength := len(payload) + 2
	if segmentLength > 0xFFFF {
		return jpegData
	}

	out := make([]byte, 0, len(jpegData)+4+len(payload))
	out = append(out, jpegData[:2]...)
	out = append(out, 0xFF, 0xE1, byte(segmentLength>>8), byte(segmentLength&0xFF))
	out = append(out, payload...)
	out = append(out, jpegData[2:]...)
	return out
}
