package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/rfpgpt/rfpgpt/internal/chat"
)

// sessionPayload is the wire shape of a chat session.
type sessionPayload struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Archived  bool      `json:"archived"`
	Settings  struct {
		Persona       string `json:"persona"`
		ResponseStyle string `json:"responseStyle"`
		CiteSources   bool   `json:"citeSources"`
		FollowUps     bool   `json:"followUpQuestions"`
	} `json:"settings"`
}

func (p *sessionPayload) toSession() *chat.Session {
	return &chat.Session{
		ID:        p.ID,
		Title:     p.Title,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		Archived:  p.Archived,
		Settings: chat.Settings{
			Persona:       p.Settings.Persona,
			ResponseStyle: p.Settings.ResponseStyle,
			CiteSources:   p.Settings.CiteSources,
			FollowUps:     p.Settings.FollowUps,
		},
	}
}

// messagePayload is the wire shape of a transcript message.
type messagePayload struct {
	ID        string       `json:"id"`
	Role      string       `json:"role"`
	Content   string       `json:"content"`
	Status    string       `json:"status"`
	Sources   []SourceMeta `json:"sources,omitempty"`
	FollowUps []string     `json:"followUpQuestions,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}

func (p *messagePayload) toMessage() *chat.Message {
	status := chat.MessageStatus(p.Status)
	if status == "" {
		// History entries are settled by definition.
		status = chat.StatusDelivered
	}
	return &chat.Message{
		ID:        p.ID,
		Role:      chat.Role(p.Role),
		Content:   p.Content,
		Status:    status,
		Sources:   MapSources(p.Sources),
		FollowUps: p.FollowUps,
		CreatedAt: p.CreatedAt,
	}
}

// documentPayload is the wire shape of a processed document.
type documentPayload struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"processingStatus"`
	Pages    int    `json:"pageCount"`
	Chunks   int    `json:"chunkCount"`
	Metadata struct {
		Keywords   []string `json:"keywords"`
		Summary    string   `json:"summary"`
		Confidence float64  `json:"confidence"`
	} `json:"metadata"`
}

func (p *documentPayload) toDocument() *chat.DocumentContext {
	return &chat.DocumentContext{
		ID:         p.ID,
		Title:      p.Title,
		Status:     chat.ProcessingStatus(p.Status),
		Pages:      p.Pages,
		Chunks:     p.Chunks,
		Keywords:   p.Metadata.Keywords,
		Summary:    p.Metadata.Summary,
		Confidence: p.Metadata.Confidence,
	}
}

// MapSources converts wire citations to domain sources, tolerating
// missing fields with defaults.
func MapSources(in []SourceMeta) []chat.Source {
	if in == nil {
		return nil
	}
	out := make([]chat.Source, 0, len(in))
	for _, s := range in {
		title := s.Title
		if title == "" {
			title = "Untitled document"
		}
		out = append(out, chat.Source{
			ID:      s.ID,
			Title:   title,
			Excerpt: s.Excerpt,
			Score:   s.Score,
		})
	}
	return out
}

// CreateChat creates a new session on the backend.
func (c *Client) CreateChat(ctx context.Context, title string, settings chat.Settings) (*chat.Session, error) {
	body := map[string]any{
		"title": title,
		"settings": map[string]any{
			"persona":           settings.Persona,
			"responseStyle":     settings.ResponseStyle,
			"citeSources":       settings.CiteSources,
			"followUpQuestions": settings.FollowUps,
		},
	}
	raw, err := c.Request(ctx, http.MethodPost, "/api/rfp-gpt/chats", body)
	if err != nil {
		return nil, err
	}
	var payload sessionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return payload.toSession(), nil
}

// DeleteChat deletes a session on the backend.
func (c *Client) DeleteChat(ctx context.Context, id string) error {
	_, err := c.Request(ctx, http.MethodDelete, "/api/rfp-gpt/chats/"+url.PathEscape(id), nil)
	return err
}

// ListChats returns all sessions, newest first.
func (c *Client) ListChats(ctx context.Context) ([]*chat.Session, error) {
	raw, err := c.Request(ctx, http.MethodGet, "/api/rfp-gpt/chats", nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Chats []sessionPayload `json:"chats"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}
	sessions := make([]*chat.Session, 0, len(resp.Chats))
	for i := range resp.Chats {
		sessions = append(sessions, resp.Chats[i].toSession())
	}
	return sessions, nil
}

// ListMessages returns the message history of a session in insertion order.
func (c *Client) ListMessages(ctx context.Context, sessionID string) ([]*chat.Message, error) {
	raw, err := c.Request(ctx, http.MethodGet,
		fmt.Sprintf("/api/rfp-gpt/chats/%s/messages", url.PathEscape(sessionID)), nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Messages []messagePayload `json:"messages"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	msgs := make([]*chat.Message, 0, len(resp.Messages))
	for i := range resp.Messages {
		msgs = append(msgs, resp.Messages[i].toMessage())
	}
	return msgs, nil
}

// ChatReply is the non-streaming send response.
type ChatReply struct {
	Response     string       `json:"response"`
	Sources      []SourceMeta `json:"sources,omitempty"`
	ContextFound bool         `json:"contextFound"`
	Confidence   *float64     `json:"confidence,omitempty"`
}

// SendMessage performs a non-streaming send; the streaming path falls back
// to this when the stream endpoint is unavailable.
func (c *Client) SendMessage(ctx context.Context, sessionID, content string) (*ChatReply, error) {
	raw, err := c.Request(ctx, http.MethodPost,
		fmt.Sprintf("/api/rfp-gpt/chats/%s/messages", url.PathEscape(sessionID)),
		sendBody{Message: content})
	if err != nil {
		return nil, err
	}
	var reply ChatReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	return &reply, nil
}

// ListDocuments returns the documents attached to a session.
func (c *Client) ListDocuments(ctx context.Context, sessionID string) ([]*chat.DocumentContext, error) {
	raw, err := c.Request(ctx, http.MethodGet,
		"/api/rfp-gpt/documents?sessionId="+url.QueryEscape(sessionID), nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Documents []documentPayload `json:"documents"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	docs := make([]*chat.DocumentContext, 0, len(resp.Documents))
	for i := range resp.Documents {
		docs = append(docs, resp.Documents[i].toDocument())
	}
	return docs, nil
}

// SearchDocuments runs a relevance search across a session's documents.
func (c *Client) SearchDocuments(ctx context.Context, sessionID, query string) ([]chat.Source, error) {
	raw, err := c.Request(ctx, http.MethodPost, "/api/rfp-gpt/documents/search", map[string]string{
		"sessionId": sessionID,
		"query":     query,
	})
	if err != nil {
		return nil, err
	}
	var resp struct {
		Results []SourceMeta `json:"results"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode search results: %w", err)
	}
	return MapSources(resp.Results), nil
}

// AnalyzeDocument requests a fresh analysis of an uploaded document.
func (c *Client) AnalyzeDocument(ctx context.Context, documentID string) (*chat.DocumentContext, error) {
	raw, err := c.Request(ctx, http.MethodPost,
		"/api/rfp-gpt/documents/"+url.PathEscape(documentID)+"/analyze", nil)
	if err != nil {
		return nil, err
	}
	var payload documentPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	return payload.toDocument(), nil
}

// UploadResult describes an accepted document upload.
type UploadResult struct {
	ID               string `json:"id"`
	Filename         string `json:"filename"`
	Size             int64  `json:"size"`
	Type             string `json:"type"`
	ProcessingStatus string `json:"processingStatus"`
}

// UploadDocument uploads a file as multipart form data. sessionID is
// optional on the wire; callers enforce their own session requirements.
func (c *Client) UploadDocument(ctx context.Context, filename string, content io.Reader, sessionID string) (*UploadResult, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("copy file content: %w", err)
	}
	if sessionID != "" {
		if err := w.WriteField("sessionId", sessionID); err != nil {
			return nil, fmt.Errorf("write session field: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	body := buf.Bytes()
	token := c.tokens.Get()
	raw, status, statusText, err := c.doUpload(ctx, body, w.FormDataContentType(), token)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		newToken, err := c.refreshOnce(ctx, token)
		if err != nil {
			return nil, err
		}
		raw, status, statusText, err = c.doUpload(ctx, body, w.FormDataContentType(), newToken)
		if err != nil {
			return nil, err
		}
	}
	if status < 200 || status > 299 {
		return nil, &APIError{Status: status, StatusText: statusText}
	}

	var result UploadResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode upload result: %w", err)
	}
	return &result, nil
}

func (c *Client) doUpload(ctx context.Context, body []byte, contentType, token string) (json.RawMessage, int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/rfp-gpt/upload", bytes.NewReader(body))
	if err != nil {
		return nil, 0, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, "", fmt.Errorf("upload: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, "", fmt.Errorf("read response: %w", err)
	}
	return raw, resp.StatusCode, resp.Status, nil
}
