package mapping

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
)

func newTestApp(f *fixture) *fiber.App {
	ctrl := NewMappingController(f.svc, NewSessionStore(time.Minute))
	app := fiber.New()
	app.Get("/api/mappings/new", ctrl.NewMappingForm)
	app.Post("/api/mappings", ctrl.CreateMapping)
	app.Post("/api/mappings/:id/column-edits", ctrl.OpenColumnEdit)
	app.Patch("/api/column-edits/:session/entries/:key", ctrl.UpdateColumnEntry)
	app.Delete("/api/column-edits/:session/entries/:key", ctrl.RemoveColumnEntry)
	app.Post("/api/column-edits/:session/commit", ctrl.CommitColumnEdit)
	return app
}

func TestNoConnectionRedirects(t *testing.T) {
	app := newTestApp(newFixture(false))

	resp, err := app.Test(httptest.NewRequest("GET", "/api/mappings/new", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusSeeOther {
		t.Errorf("GET /new status = %d, want 303", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != ConnectionCreatePath {
		t.Errorf("Location = %q", loc)
	}

	body := `{"glide_table":"t","supabase_table":"gl_customers"}`
	req := httptest.NewRequest("POST", "/api/mappings", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusSeeOther {
		t.Errorf("POST status = %d, want 303", resp.StatusCode)
	}
}

func TestCreateMappingInvalidConnectionID(t *testing.T) {
	app := newTestApp(newFixture(true))

	body := `{"connection_id":"not-hex","glide_table":"t","supabase_table":"gl_customers"}`
	req := httptest.NewRequest("POST", "/api/mappings", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestColumnEditOverHTTP(t *testing.T) {
	f := newFixture(true)
	m := f.create(t)
	app := newTestApp(f)

	resp, err := app.Test(httptest.NewRequest("POST", "/api/mappings/"+m.ID.Hex()+"/column-edits", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("open status = %d", resp.StatusCode)
	}
	var view SessionView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.State != StateEditing || view.MappingID != m.ID.Hex() {
		t.Errorf("view = %+v", view)
	}

	patch := func(body string) *http.Response {
		req := httptest.NewRequest("PATCH", "/api/column-edits/"+view.ID+"/entries/%24rowID", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test() error = %v", err)
		}
		return resp
	}
	resp = patch(`{"supabase_column_name":"row_key","data_type":"decimal"}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("invalid patch status = %d, want 400", resp.StatusCode)
	}
	resp = patch(`{"supabase_column_name":"row_key"}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("patch status = %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := view.Columns[RowIDKey]; got.SupabaseColumnName != "row_key" || got.DataType != TypeString {
		t.Errorf("$rowID entry after patches = %+v", got)
	}

	resp, _ = app.Test(httptest.NewRequest("DELETE", "/api/column-edits/"+view.ID+"/entries/%24rowID", nil))
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("removing $rowID status = %d, want 400", resp.StatusCode)
	}

	resp, _ = app.Test(httptest.NewRequest("POST", "/api/column-edits/"+view.ID+"/commit", nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("commit status = %d", resp.StatusCode)
	}

	resp, _ = app.Test(httptest.NewRequest("POST", "/api/column-edits/"+view.ID+"/commit", nil))
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("commit of closed session status = %d, want 404", resp.StatusCode)
	}
}
