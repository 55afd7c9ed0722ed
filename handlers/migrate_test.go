package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"betatrakt/config"
	"betatrakt/models"
	"betatrakt/services/authflow"
	"betatrakt/services/trakt"
)

func newMigrateHandler(t *testing.T) *MigrateHandler {
	t.Helper()
	manager := config.NewManager(filepath.Join(t.TempDir(), "settings.json"))
	flow := authflow.NewService(trakt.NewClient("", ""))
	t.Cleanup(flow.Close)
	return NewMigrateHandler(manager, flow)
}

func csvUpload(t *testing.T, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "export.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/import/shows", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestImportShowsParsesUpload(t *testing.T) {
	h := newMigrateHandler(t)

	req := csvUpload(t, "id;title;status\n123;Dark;100\n456;Severance;0\n")
	rec := httptest.NewRecorder()
	h.ImportShows(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Rows []models.ShowRow `json:"rows"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(body.Rows))
	}
	if body.Rows[0].ID != "123" || body.Rows[0].Title != "Dark" || body.Rows[0].Status != "100" {
		t.Fatalf("unexpected first row: %+v", body.Rows[0])
	}
}

func TestImportShowsRejectsMissingFile(t *testing.T) {
	h := newMigrateHandler(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/import/shows", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	h.ImportShows(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMigrateRequiresCredentials(t *testing.T) {
	h := newMigrateHandler(t)

	payload := `{"shows":[{"id":"1","title":"Dark","status":"100"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/migrate", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	h.Run(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["error"] != "BetaSeries API key is required" {
		t.Fatalf("unexpected error message: %q", body["error"])
	}
}

func TestMigrateRequiresAuthorization(t *testing.T) {
	h := newMigrateHandler(t)

	payload := `{"apiKey":"key","clientId":"cid","shows":[{"id":"1","title":"Dark","status":"100"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/migrate", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	h.Run(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["error"] != "Authorize Trakt before migrating" {
		t.Fatalf("unexpected error message: %q", body["error"])
	}
}
