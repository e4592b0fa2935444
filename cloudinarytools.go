// cloudinarytools.go
// Package cloudinarytools prepares photographs for CDN upload: it extracts
// the camera metadata embedded in an image, normalizes it into the flat
// context record the CDN stores alongside the asset, and re-encodes the
// image under the upload size ceiling when needed. Network transport and
// credential handling live in the callers, not here.
package cloudinarytools

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// MaxFileSize is the hard upload ceiling enforced by the CDN, in bytes.
const MaxFileSize int64 = 10_485_760

var (
	ErrEmptyContent    = errors.New("image content is empty")
	ErrProfileNotFound = errors.New("encoding profile not found")
)

// MissingFieldError reports a metadata tag that normalization must reformat
// but that is absent from the extracted bag.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("required metadata field missing: %s", e.Field)
}

// Pipeline runs the per-image processing chain: metadata extraction,
// normalization and size-constrained re-encoding. A Pipeline is safe to
// share across goroutines once configured; images are independent of each
// other and may be processed concurrently by the caller.
type Pipeline struct {
	profile  EncodingProfile
	profiles map[string]EncodingProfile
	log      *logrus.Logger
}

func NewPipeline(log *logrus.Logger) *Pipeline {
	if log == nil {
		log = logrus.New()
	}
	return &Pipeline{
		profile:  DefaultEncodingProfile(),
		profiles: make(map[string]EncodingProfile),
		log:      log,
	}
}

// UseProfile switches the pipeline to a previously loaded encoding profile.
func (p *Pipeline) UseProfile(name string) error {
	profile, ok := p.profiles[name]
	if !ok {
		return ErrProfileNotFound
	}
	p.profile = profile
	return nil
}

// Profile returns the encoding profile currently applied to processed images.
func (p *Pipeline) Profile() EncodingProfile {
	return p.profile
}

// Process turns raw image bytes into an upload-ready Asset. The normalized
// context and the re-encoded content are produced independently from the
// same source bytes, exactly as the upload collaborator consumes them.
func (p *Pipeline) Process(fileName string, content []byte) (*Asset, error) {
	if len(content) == 0 {
		return nil, ErrEmptyContent
	}

	bag, err := ExtractMetadata(content)
	if err != nil {
		return nil, fmt.Errorf("failed to extract metadata: %v", err)
	}

	context, err := Normalize(bag)
	if err != nil {
		return nil, err
	}

	encoder := NewProfileEncoder(p.profile)
	encoded, err := encoder.Encode(content)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %v", err)
	}

	asset := &Asset{
		FileName:  fileName,
		PublicID:  publicIDForFile(fileName),
		Content:   encoded.Bytes,
		FileSize:  encoded.Size,
		Context:   context,
		Quality:   encoded.Quality,
		SizeUnmet: encoded.SizeUnmet,
	}
	asset.UpdateMimeType()

	p.log.WithFields(logrus.Fields{
		"file":     fileName,
		"publicId": asset.PublicID,
		"size":     asset.FileSize,
		"quality":  asset.Quality,
		"model":    context.Model,
	}).Info("image processed")

	if encoded.SizeUnmet {
		p.log.WithFields(logrus.Fields{
			"file":    fileName,
			"size":    encoded.Size,
			"ceiling": p.profile.MaxFileSize,
		}).Warn("quality schedule exhausted, encoded size still above ceiling")
	}

	return asset, nil
}

// ProcessReader reads the full image from r and processes it.
func (p *Pipeline) ProcessReader(fileName string, r io.Reader) (*Asset, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image content: %v", err)
	}
	return p.Process(fileName, content)
}

// ProcessFile processes a local image file.
func (p *Pipeline) ProcessFile(path string) (*Asset, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %v", err)
	}
	return p.Process(filepath.Base(path), content)
}

func publicIDForFile(fileName string) string {
	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	if base == "" || base == "." {
		return NID("asset", 16)
	}
	return base
}
