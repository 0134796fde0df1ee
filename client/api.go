// Package client is a Go client for the chat server. It keeps a local cache
// of the caller's conversations that is updated optimistically while a reply
// streams in.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"capstone/model"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// Conversation is a cache entry. Messages is nil until the conversation
// detail has been fetched.
type Conversation struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	CreatedAt time.Time       `json:"createdAt"`
	Messages  []model.Message `json:"messages,omitempty"`
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

type FileUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

type ChatRequest struct {
	Message        string
	ConversationID string
	APIKey         string
	File           *FileUpload
}

// ChatStream is an open streaming reply. Body must be closed.
type ChatStream struct {
	// ConversationID is set when the server created a conversation.
	ConversationID string
	Body           io.ReadCloser
}

// API talks to the server. Reads are retried; writes are sent once.
type API struct {
	baseURL string
	token   string
	retry   *retryablehttp.Client
}

func NewAPI(baseURL string) *API {
	retry := retryablehttp.NewClient()
	retry.RetryMax = 3
	retry.RetryWaitMin = 200 * time.Millisecond
	retry.RetryWaitMax = 2 * time.Second
	retry.Logger = retryLogger{logrus.WithField("component", "client")}
	retry.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &API{baseURL: strings.TrimRight(baseURL, "/"), retry: retry}
}

func (a *API) SetToken(token string) {
	a.token = token
}

func (a *API) Token() string {
	return a.token
}

func (a *API) Register(ctx context.Context, email, password string) error {
	return a.send(ctx, http.MethodPost, "/register", map[string]string{"email": email, "password": password}, nil)
}

// Login authenticates and keeps the token for later calls.
func (a *API) Login(ctx context.Context, email, password string) error {
	var out struct {
		Token string `json:"token"`
	}
	if err := a.send(ctx, http.MethodPost, "/login", map[string]string{"email": email, "password": password}, &out); err != nil {
		return err
	}
	a.token = out.Token
	return nil
}

func (a *API) ValidateKey(ctx context.Context, apiKey string) error {
	return a.send(ctx, http.MethodPost, "/validate-key", map[string]string{"apiKey": apiKey}, nil)
}

func (a *API) ListConversations(ctx context.Context) ([]Conversation, error) {
	var out []Conversation
	if err := a.send(ctx, http.MethodGet, "/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) CreateConversation(ctx context.Context) (*Conversation, error) {
	var out Conversation
	if err := a.send(ctx, http.MethodPost, "/conversations", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetConversation returns the conversation with its messages loaded.
func (a *API) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var out Conversation
	if err := a.send(ctx, http.MethodGet, "/conversations/"+id, nil, &out); err != nil {
		return nil, err
	}
	if out.Messages == nil {
		out.Messages = []model.Message{}
	}
	return &out, nil
}

func (a *API) DeleteConversation(ctx context.Context, id string) error {
	return a.send(ctx, http.MethodDelete, "/conversations/"+id, nil, nil)
}

// Chat posts a message and returns the reply stream once the server has
// accepted it.
func (a *API) Chat(ctx context.Context, in ChatRequest) (*ChatStream, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fields := map[string]string{
		"message":        in.Message,
		"conversationId": in.ConversationID,
		"apiKey":         in.APIKey,
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := mw.WriteField(name, value); err != nil {
			return nil, err
		}
	}
	if in.File != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, in.File.Filename))
		contentType := in.File.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(in.File.Data); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	a.authorize(req.Header)

	resp, err := a.retry.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, errorFrom(resp)
	}
	return &ChatStream{
		ConversationID: resp.Header.Get("x-conversation-id"),
		Body:           resp.Body,
	}, nil
}

func (a *API) authorize(h http.Header) {
	if a.token != "" {
		h.Set("Authorization", "Bearer "+a.token)
	}
}

func (a *API) send(ctx context.Context, method, path string, in, out interface{}) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return err
		}
	}

	var resp *http.Response
	// Only reads are retried.
	if method == http.MethodGet {
		req, err := retryablehttp.NewRequestWithContext(ctx, method, a.baseURL+path, payload)
		if err != nil {
			return err
		}
		a.authorize(req.Header)
		if resp, err = a.retry.Do(req); err != nil {
			return err
		}
	} else {
		req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		a.authorize(req.Header)
		if resp, err = a.retry.HTTPClient.Do(req); err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFrom(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func errorFrom(resp *http.Response) error {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: body.Error}
		}
		if body.Message != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: body.Message}
		}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
}

// retryLogger sends retry diagnostics to logrus at debug level.
type retryLogger struct {
	entry *logrus.Entry
}

func (l retryLogger) fields(keysAndValues []interface{}) *logrus.Entry {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return l.entry.WithFields(fields)
}

func (l retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Error(msg)
}

func (l retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Debug(msg)
}

func (l retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Debug(msg)
}

func (l retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Warn(msg)
}
