// Package upload drives the lifecycle of a document upload and exposes it as
// a small status machine: idle, uploading, then success or error, which fall
// back to idle after a display window.
package upload

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-go-golems/docchat/pkg/documents"
	"github.com/go-go-golems/docchat/pkg/events"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseUploading Phase = "uploading"
	PhaseSuccess   Phase = "success"
	PhaseError     Phase = "error"
)

const (
	DefaultDisplayWindow = 5 * time.Second

	UnsupportedTypeMessage = "Please upload a PDF, DOCX, or TXT file"
)

var ErrUploadInProgress = errors.New("an upload is already in progress")

// Status is an immutable copy of the controller state.
type Status struct {
	Version  uint64 `json:"version"`
	Phase    Phase  `json:"phase"`
	Message  string `json:"message,omitempty"`
	FileName string `json:"file_name,omitempty"`
}

func (s Status) IsTerminal() bool {
	return s.Phase == PhaseSuccess || s.Phase == PhaseError
}

// DocumentAPI is the part of the backend the controller talks to.
type DocumentAPI interface {
	UploadDocument(ctx context.Context, userID string, file documents.File) (*documents.UploadResult, error)
}

type Controller struct {
	api    DocumentAPI
	sink   events.Sink
	clock  clockwork.Clock
	window time.Duration

	mu     sync.Mutex
	status Status
	reset  clockwork.Timer
}

type Option func(*Controller)

func WithSink(sink events.Sink) Option {
	return func(c *Controller) {
		if sink != nil {
			c.sink = sink
		}
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithDisplayWindow sets how long success and error statuses stay visible.
func WithDisplayWindow(window time.Duration) Option {
	return func(c *Controller) {
		if window > 0 {
			c.window = window
		}
	}
}

func NewController(api DocumentAPI, options ...Option) *Controller {
	ret := &Controller{
		api:    api,
		sink:   events.NewNullSink(),
		clock:  clockwork.NewRealClock(),
		window: DefaultDisplayWindow,
		status: Status{Phase: PhaseIdle},
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Upload validates file and sends it to the backend on behalf of userID. It
// blocks until the backend answered and returns the resulting status.
//
// Unsupported content types fail with *documents.UnsupportedFileTypeError
// before anything is sent. While another upload is running, Upload fails with
// ErrUploadInProgress and leaves the status alone.
func (c *Controller) Upload(ctx context.Context, userID string, file documents.File) (Status, error) {
	c.mu.Lock()
	if c.status.Phase == PhaseUploading {
		status := c.status
		c.mu.Unlock()
		return status, ErrUploadInProgress
	}

	if !documents.IsSupported(file.ContentType) {
		status := c.setLocked(PhaseError, UnsupportedTypeMessage, file.Name)
		c.mu.Unlock()
		c.publish(status)
		log.Debug().Str("file", file.Name).Str("content_type", file.ContentType).Msg("Rejected unsupported file")
		return status, &documents.UnsupportedFileTypeError{Name: file.Name, ContentType: file.ContentType}
	}

	status := c.setLocked(PhaseUploading, "", file.Name)
	c.mu.Unlock()
	c.publish(status)

	start := c.clock.Now()
	result, err := c.api.UploadDocument(ctx, userID, file)
	if err == nil && result == nil {
		err = errors.New("backend returned no upload result")
	}

	c.mu.Lock()
	if err != nil {
		status = c.setLocked(PhaseError, fmt.Sprintf("Upload failed: %s", err.Error()), file.Name)
	} else {
		status = c.setLocked(PhaseSuccess,
			fmt.Sprintf("Document \"%s\" uploaded successfully! %d chunks processed.", file.Name, result.Chunks),
			file.Name)
	}
	c.mu.Unlock()
	c.publish(status)

	if err != nil {
		log.Warn().Err(err).Str("file", file.Name).Msg("Upload failed")
		return status, errors.Wrapf(err, "could not upload %s", file.Name)
	}
	log.Debug().
		Str("file", file.Name).
		Str("document_id", result.DocumentID).
		Int("chunks", result.Chunks).
		Dur("duration", c.clock.Since(start)).
		Msg("Uploaded document")
	return status, nil
}

// setLocked moves to a new status. Any pending reset is cancelled, terminal
// phases schedule a new one.
func (c *Controller) setLocked(phase Phase, message string, fileName string) Status {
	if c.reset != nil {
		c.reset.Stop()
		c.reset = nil
	}

	c.status = Status{
		Version:  c.status.Version + 1,
		Phase:    phase,
		Message:  message,
		FileName: fileName,
	}

	if c.status.IsTerminal() {
		version := c.status.Version
		c.reset = c.clock.AfterFunc(c.window, func() {
			c.resetTo(version)
		})
	}

	return c.status
}

func (c *Controller) resetTo(version uint64) {
	c.mu.Lock()
	if c.status.Version != version {
		// superseded
		c.mu.Unlock()
		return
	}
	c.reset = nil
	c.status = Status{
		Version: c.status.Version + 1,
		Phase:   PhaseIdle,
	}
	status := c.status
	c.mu.Unlock()

	c.publish(status)
}

func (c *Controller) publish(status Status) {
	if err := c.sink.Publish(events.EventTypeUploadUpdated, status); err != nil {
		log.Warn().Err(err).Uint64("version", status.Version).Msg("Could not publish upload status")
	}
}
