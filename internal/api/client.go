// Package api is the HTTP and WebSocket client for the heyrag backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"heyrag/internal/models"
)

// Upload constraints enforced client-side; the server validates further.
const (
	MaxUploadBytes = 50 << 20
)

var allowedUploadExts = map[string]bool{
	".pdf":  true,
	".docx": true,
	".txt":  true,
	".md":   true,
}

// Client talks to the heyrag backend. Safe for concurrent use.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
}

func NewClient(baseURL, wsURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		wsURL:   strings.TrimRight(wsURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError extracts {detail} from an error response, falling back to
// the status-code message the backend's own UI uses.
func apiError(resp *http.Response) error {
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Detail != "" {
		return fmt.Errorf("%s", body.Detail)
	}
	return fmt.Errorf("Erreur %d", resp.StatusCode)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	var out []models.Project
	err := c.doJSON(ctx, http.MethodGet, "/api/projects/", nil, &out)
	return out, err
}

func (c *Client) CreateProject(ctx context.Context, name, systemPrompt string) (*models.Project, error) {
	in := map[string]string{"name": name, "system_prompt": systemPrompt}
	var out models.Project
	if err := c.doJSON(ctx, http.MethodPost, "/api/projects/", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProject sends a partial update; nil fields are left untouched.
func (c *Client) UpdateProject(ctx context.Context, projectID string, name, systemPrompt *string) (*models.Project, error) {
	in := map[string]string{}
	if name != nil {
		in["name"] = *name
	}
	if systemPrompt != nil {
		in["system_prompt"] = *systemPrompt
	}
	var out models.Project
	if err := c.doJSON(ctx, http.MethodPatch, "/api/projects/"+projectID, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteProject(ctx context.Context, projectID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/projects/"+projectID, nil, nil)
}

func (c *Client) ListConversations(ctx context.Context, projectID string) ([]models.Conversation, error) {
	var out []models.Conversation
	err := c.doJSON(ctx, http.MethodGet, "/api/projects/"+projectID+"/conversations", nil, &out)
	return out, err
}

func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/projects/conversations/"+conversationID, nil, nil)
}

func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var out []models.Message
	err := c.doJSON(ctx, http.MethodGet, "/api/projects/conversations/"+conversationID+"/messages", nil, &out)
	return out, err
}

func (c *Client) ListModels(ctx context.Context) ([]models.ModelInfo, error) {
	var out listModelsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/chat/models", nil, &out); err != nil {
		return nil, err
	}
	return out.Models, nil
}

func (c *Client) ListDocuments(ctx context.Context, projectID string) ([]models.DocumentInfo, error) {
	var out []models.DocumentInfo
	err := c.doJSON(ctx, http.MethodGet, "/api/documents/?project_id="+url.QueryEscape(projectID), nil, &out)
	return out, err
}

func (c *Client) DeleteDocument(ctx context.Context, documentID, projectID string) error {
	path := "/api/documents/" + documentID + "?project_id=" + url.QueryEscape(projectID)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// UploadDocument streams a local file to the backend as multipart form data.
func (c *Client) UploadDocument(ctx context.Context, projectID, filePath string) (*UploadResult, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	if !allowedUploadExts[ext] {
		return nil, fmt.Errorf("type de fichier non supporté: %s", ext)
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() > MaxUploadBytes {
		return nil, fmt.Errorf("fichier trop volumineux (max 50 MB)")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	target := c.baseURL + "/api/documents/upload?project_id=" + url.QueryEscape(projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	// Large uploads can outlive the default timeout.
	uploadClient := &http.Client{Timeout: 5 * time.Minute}
	resp, err := uploadClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apiError(resp)
	}
	var out UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DialVoice opens the voice WebSocket.
func (c *Client) DialVoice(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, c.wsURL+"/ws/voice", nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("voice websocket: Erreur %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("voice websocket: %w", err)
	}
	return conn, nil
}
