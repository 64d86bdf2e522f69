// Package api is a typed client for the assistant backend: chat operations are
// JSON over HTTP, document uploads are multipart form posts.
//
// The client keeps no state besides its configuration. It does not cache and
// does not retry; every call is exactly one HTTP round trip.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/go-go-golems/docchat/pkg/conversation"
	"github.com/go-go-golems/docchat/pkg/documents"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL = "http://localhost:8000"

	maxErrorBodySize = 4096
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// NewClient creates a client for the backend at baseURL. An empty baseURL
// selects DefaultBaseURL.
func NewClient(baseURL string, options ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	ret := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		userAgent:  "go-go-golems/docchat",
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// SendMessage posts text to the conversation identified by conversationID, or
// starts a new conversation when conversationID is empty. The text is sent as is.
func (c *Client) SendMessage(ctx context.Context, userID string, conversationID string, text string) (*conversation.Reply, error) {
	const op = "send message"

	request := sendMessageRequest{
		UserID:  userID,
		Message: text,
	}
	if conversationID != "" {
		request.ConversationID = &conversationID
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: errors.Wrap(err, "could not encode request")}
	}

	var response sendMessageResponse
	err = c.do(ctx, op, http.MethodPost, "/api/chat/message", nil, bytes.NewReader(body), "application/json", &response)
	if err != nil {
		return nil, err
	}
	if response.ConversationID == "" {
		return nil, &NetworkError{Op: op, Err: errors.New("response has no conversation_id")}
	}

	return &conversation.Reply{
		ConversationID: response.ConversationID,
		Text:           response.Response,
		ToolCalls:      response.ToolCalls,
	}, nil
}

// ListConversations returns the conversations of userID, most recent first.
func (c *Client) ListConversations(ctx context.Context, userID string) ([]conversation.Summary, error) {
	const op = "list conversations"

	var records []conversationRecord
	err := c.do(ctx, op, http.MethodGet, "/api/chat/conversations/"+url.PathEscape(userID), nil, nil, "", &records)
	if err != nil {
		return nil, err
	}

	ret := make([]conversation.Summary, 0, len(records))
	for _, r := range records {
		ret = append(ret, r.toSummary())
	}
	return ret, nil
}

// ListMessages returns the messages of a conversation in server order.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]conversation.Message, error) {
	const op = "list messages"

	var records []messageRecord
	path := fmt.Sprintf("/api/chat/conversations/%s/messages", url.PathEscape(conversationID))
	err := c.do(ctx, op, http.MethodGet, path, nil, nil, "", &records)
	if err != nil {
		return nil, err
	}

	ret := make([]conversation.Message, 0, len(records))
	for _, r := range records {
		ret = append(ret, r.toMessage())
	}
	return ret, nil
}

// UploadDocument streams file as a multipart form, next to the user_id field.
func (c *Client) UploadDocument(ctx context.Context, userID string, file documents.File) (*documents.UploadResult, error) {
	const op = "upload document"

	if file.Content == nil {
		return nil, &NetworkError{Op: op, Err: errors.Errorf("file %q has no content", file.Name)}
	}

	pr, pw := io.Pipe()
	defer func() {
		_ = pr.Close()
	}()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeUploadForm(mw, userID, file))
	}()

	// the backend reads user_id from the query string, the form field is kept for
	// servers that read it from the body
	query := url.Values{}
	query.Set("user_id", userID)

	var result documents.UploadResult
	err := c.do(ctx, op, http.MethodPost, "/api/documents/upload", query, pr, mw.FormDataContentType(), &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func writeUploadForm(mw *multipart.Writer, userID string, file documents.File) error {
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(file.Name)))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return errors.Wrap(err, "could not create file part")
	}
	if _, err := io.Copy(part, file.Content); err != nil {
		return errors.Wrap(err, "could not write file part")
	}
	if err := mw.WriteField("user_id", userID); err != nil {
		return errors.Wrap(err, "could not write user_id field")
	}
	return mw.Close()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// ListDocuments returns the documents uploaded by userID.
func (c *Client) ListDocuments(ctx context.Context, userID string) ([]documents.Summary, error) {
	const op = "list documents"

	var records []documentRecord
	err := c.do(ctx, op, http.MethodGet, "/api/documents/"+url.PathEscape(userID), nil, nil, "", &records)
	if err != nil {
		return nil, err
	}

	ret := make([]documents.Summary, 0, len(records))
	for _, r := range records {
		ret = append(ret, r.toSummary())
	}
	return ret, nil
}

// Health checks that the backend answers on /health.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, "health", http.MethodGet, "/health", nil, nil, "", nil)
}

func (c *Client) endpoint(path string, query url.Values) string {
	ret := c.baseURL + path
	if len(query) > 0 {
		ret += "?" + query.Encode()
	}
	return ret
}

func (c *Client) do(
	ctx context.Context,
	op string,
	method string,
	path string,
	query url.Values,
	body io.Reader,
	contentType string,
	out interface{},
) error {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).
			Str("method", method).
			Str("path", path).
			Dur("duration", time.Since(start)).
			Msg("request failed")
		return &NetworkError{Op: op, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("request done")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return &ServerError{Op: op, Status: resp.StatusCode, Body: errorDetail(b)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &NetworkError{Op: op, Err: errors.Wrap(err, "could not decode response")}
	}
	return nil
}

// errorDetail extracts FastAPI style {"detail": ...} bodies, falling back to the raw text.
func errorDetail(b []byte) string {
	var response errorResponse
	if err := json.Unmarshal(b, &response); err == nil && len(response.Detail) > 0 {
		var s string
		if err := json.Unmarshal(response.Detail, &s); err == nil {
			return s
		}
		return string(response.Detail)
	}
	return strings.TrimSpace(string(b))
}
