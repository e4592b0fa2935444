package cloudinarytools

import (
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// Asset is one processed image, ready for the upload collaborator: the
// re-encoded content plus the normalized context record the CDN stores
// with it.
type Asset struct {
	FileName  string   `json:"fileName"`
	PublicID  string   `json:"publicId"`
	Folder    string   `json:"folder"`
	MimeType  string   `json:"mimetype"`
	FileSize  int64    `json:"fileSize"`
	Quality   int      `json:"quality"`
	SizeUnmet bool     `json:"sizeUnmet"`
	Context   *Context `json:"context"`
	Content   []byte   `json:"-"`
}

// ContextString renders the pipe-delimited context attribute for the upload
// call. Assets without a context yield the empty string.
func (a *Asset) ContextString() string {
	if a.Context == nil {
		return ""
	}
	return a.Context.ContextString()
}

// UpdateMimeType sniffs the MIME type from the asset content.
func (a *Asset) UpdateMimeType() string {
	if len(a.Content) == 0 {
		return a.MimeType
	}
	a.MimeType = mimetype.Detect(a.Content).String()
	return a.MimeType
}

// Save writes the asset content to localFilePath, creating parent
// directories as needed.
func (a *Asset) Save(localFilePath string) error {
	err := os.MkdirAll(filepath.Dir(localFilePath), os.ModePerm)
	if err != nil {
		return err
	}

	outputFile, err := os.Create(localFilePath)
	if err != nil {
		return err
	}
	defer outputFile.Close()

	_, err = outputFile.Write(a.Content)
	if err != nil {
		return err
	}

	a.FileSize = int64(len(a.Content))
	return nil
}
