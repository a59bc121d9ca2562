package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heyrag/internal/models"
)

func decodeJSONBody(t *testing.T, r *http.Request, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(r.Body).Decode(out))
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat/models", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"mistral","num_ctx":8192},{"name":"llama3","num_ctx":32768}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "ws://unused")
	infos, err := client.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.ModelInfo{
		{Name: "mistral", NumCtx: 8192},
		{Name: "llama3", NumCtx: 32768},
	}, infos)
}

func TestAPIErrorDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"detail":"nom déjà pris"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "ws://unused")
	_, err := client.CreateProject(context.Background(), "doublon", "")
	require.Error(t, err)
	assert.Equal(t, "nom déjà pris", err.Error())
}

func TestAPIErrorFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "ws://unused")
	err := client.DeleteProject(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, "Erreur 404", err.Error())
}

func TestUpdateProjectIsPartial(t *testing.T) {
	var gotMethod string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		decodeJSONBody(t, r, &gotBody)
		_, _ = w.Write([]byte(`{"id":"p1","name":"docs","system_prompt":"new"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "ws://unused")
	prompt := "new"
	project, err := client.UpdateProject(context.Background(), "p1", nil, &prompt)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, map[string]string{"system_prompt": "new"}, gotBody)
	assert.Equal(t, "new", project.SystemPrompt)
}

func TestUploadDocumentRejectsExtension(t *testing.T) {
	client := NewClient("http://unused", "ws://unused")
	_, err := client.UploadDocument(context.Background(), "p1", "/tmp/evil.exe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".exe")
}

func TestUploadDocumentMultipart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# hello"), 0o600))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/documents/upload", r.URL.Path)
		require.Equal(t, "p1", r.URL.Query().Get("project_id"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "notes.md", header.Filename)

		_, _ = w.Write([]byte(`{"document_id":"d1","filename":"notes.md","chunks_count":1}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "ws://unused")
	res, err := client.UploadDocument(context.Background(), "p1", path)
	require.NoError(t, err)
	assert.Equal(t, "d1", res.DocumentID)
	assert.Equal(t, 1, res.ChunksCount)
}

func TestListConversationsAndMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/projects/p1/conversations":
			_, _ = w.Write([]byte(`[{"id":"c1","project_id":"p1","title":"Résumé"}]`))
		case "/api/projects/conversations/c1/messages":
			_, _ = w.Write([]byte(`[{"role":"user","content":"q"},{"role":"assistant","content":"a","sources":[{"filename":"f","chunk_index":0}]}]`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "ws://unused")
	convs, err := client.ListConversations(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "Résumé", convs[0].Title)

	msgs, err := client.ListMessages(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "f", msgs[1].Sources[0].Filename)
}
