// Package documents holds the client-side types for knowledge-base documents:
// the file handed to an upload, the processing result, and listing summaries.
package documents

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	ContentTypePDF  = "application/pdf"
	ContentTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	ContentTypeText = "text/plain"
)

// AcceptedContentTypes lists the declared content types the backend can ingest.
var AcceptedContentTypes = []string{ContentTypePDF, ContentTypeDOCX, ContentTypeText}

var ErrUnsupportedFileType = errors.New("unsupported file type")

// UnsupportedFileTypeError reports a file whose declared content type is not accepted.
type UnsupportedFileTypeError struct {
	Name        string
	ContentType string
}

func (e *UnsupportedFileTypeError) Error() string {
	if e == nil {
		return ErrUnsupportedFileType.Error()
	}
	if e.ContentType == "" {
		return fmt.Sprintf("%s: %q has no declared content type", ErrUnsupportedFileType, e.Name)
	}
	return fmt.Sprintf("%s: %q is %s", ErrUnsupportedFileType, e.Name, e.ContentType)
}

func (e *UnsupportedFileTypeError) Is(target error) bool { return target == ErrUnsupportedFileType }

// File is a document ready to be uploaded.
type File struct {
	// Name is the display name, also sent as the multipart filename.
	Name string
	// ContentType is the declared media type, as a browser would report it.
	ContentType string
	Size        int64
	Content     io.Reader
}

// IsSupported reports whether contentType is one of AcceptedContentTypes.
// Media type parameters (e.g. "; charset=utf-8") are ignored.
func IsSupported(contentType string) bool {
	mediaType := strings.TrimSpace(contentType)
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = parsed
	}
	mediaType = strings.ToLower(mediaType)
	for _, accepted := range AcceptedContentTypes {
		if mediaType == accepted {
			return true
		}
	}
	return false
}

// ContentTypeForName derives the declared content type from the file extension.
func ContentTypeForName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return ContentTypePDF
	case ".docx":
		return ContentTypeDOCX
	case ".txt":
		return ContentTypeText
	default:
		return mime.TypeByExtension(filepath.Ext(name))
	}
}

// Open opens the file at path. The caller owns the returned closer.
func Open(path string) (*File, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "could not open %s", path)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, errors.Wrapf(err, "could not stat %s", path)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, nil, errors.Errorf("%s is a directory", path)
	}

	name := filepath.Base(path)
	return &File{
		Name:        name,
		ContentType: ContentTypeForName(name),
		Size:        info.Size(),
		Content:     f,
	}, f, nil
}

// UploadResult is what the backend reports after ingesting a document.
type UploadResult struct {
	DocumentID string `json:"document_id" yaml:"document_id"`
	Filename   string `json:"filename" yaml:"filename"`
	Status     string `json:"status" yaml:"status"`
	Chunks     int    `json:"chunks" yaml:"chunks"`
}

// Summary is the listing metadata of an uploaded document.
type Summary struct {
	ID         string    `json:"id" yaml:"id"`
	Filename   string    `json:"filename" yaml:"filename"`
	FileType   string    `json:"file_type" yaml:"file_type"`
	FileSize   int64     `json:"file_size" yaml:"file_size"`
	Status     string    `json:"status" yaml:"status"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
	ChunkCount int       `json:"chunk_count" yaml:"chunk_count"`
}
