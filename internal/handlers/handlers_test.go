package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/amcq-expeed/opnxt-core/internal/blob"
	"github.com/amcq-expeed/opnxt-core/internal/generator"
	"github.com/amcq-expeed/opnxt-core/internal/handlers"
	"github.com/amcq-expeed/opnxt-core/internal/models"
	"github.com/amcq-expeed/opnxt-core/internal/phases"
	"github.com/amcq-expeed/opnxt-core/internal/services"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.Project{},
		&models.PhaseTransition{},
		&models.Document{},
		&models.DocumentVersion{},
		&models.ContextRecord{},
		&models.TraceabilityEdge{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

// setupApp wires a Fiber app with the full route set over a test database.
func setupApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	gen, err := generator.NewTemplateGenerator()
	if err != nil {
		t.Fatalf("Failed to build generator: %v", err)
	}
	return setupAppWith(t, gen)
}

// setupAppWith wires the routes over a caller-supplied generator.
func setupAppWith(t *testing.T, gen generator.Generator) (*fiber.App, *gorm.DB) {
	t.Helper()

	db := setupTestDB(t)
	blobs := blob.NewMemoryStore()

	gate := phases.GateConfig{CoverageThreshold: 80}
	orch := &services.Orchestrator{
		DB:    db,
		Blobs: blobs,
		Gen:   gen,
		Gate:  gate,
		Impact: services.ImpactConfig{
			ExactWeight:   0.9,
			GroupWeight:   0.5,
			KeywordWeight: 0.2,
		},
		DefaultTimeout: 5 * time.Second,
	}

	app := fiber.New()
	projectHandler := &handlers.ProjectHandler{DB: db, Gate: gate}
	documentHandler := &handlers.DocumentHandler{Orch: orch}
	contextHandler := &handlers.ContextHandler{DB: db, Orch: orch}

	projects := app.Group("/api/projects")
	projects.Post("/", projectHandler.CreateProject)
	projects.Get("/:id", projectHandler.GetProject)
	projects.Delete("/:id", projectHandler.DeleteProject)
	projects.Put("/:id/advance", projectHandler.AdvanceProject)
	projects.Get("/:id/gate", projectHandler.CanAdvance)
	projects.Get("/:id/transitions", projectHandler.ListTransitions)
	projects.Post("/:id/documents", documentHandler.GenerateDocuments)
	projects.Get("/:id/documents", documentHandler.ListDocuments)
	projects.Get("/:id/documents/:filename", documentHandler.GetDocument)
	projects.Get("/:id/context", contextHandler.GetContext)
	projects.Put("/:id/context", contextHandler.PutContext)
	projects.Post("/:id/impacts", contextHandler.ComputeImpacts)

	return app, db
}

func jsonRequest(t *testing.T, app *fiber.App, method, url string, body interface{}) (*fiber.App, int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, url, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, 10000)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 && raw[0] == '{' {
		_ = json.Unmarshal(raw, &result)
	}
	return app, resp.StatusCode, result
}

func createProjectViaAPI(t *testing.T, app *fiber.App) string {
	t.Helper()
	_, status, result := jsonRequest(t, app, "POST", "/api/projects/", map[string]interface{}{
		"name": "api test project",
	})
	if status != 201 {
		t.Fatalf("Expected status 201, got %d (%v)", status, result)
	}
	id, _ := result["ProjectID"].(string)
	if id == "" {
		t.Fatalf("Expected a project id in response, got %v", result)
	}
	return id
}

func TestCreateAndGetProject(t *testing.T) {
	app, _ := setupApp(t)
	id := createProjectViaAPI(t, app)

	_, status, result := jsonRequest(t, app, "GET", "/api/projects/"+id, nil)
	if status != 200 {
		t.Fatalf("Expected status 200, got %d", status)
	}
	if result["CurrentPhase"] != "charter" {
		t.Errorf("Expected charter phase, got %v", result["CurrentPhase"])
	}
}

func TestCreateProjectRequiresName(t *testing.T) {
	app, _ := setupApp(t)
	_, status, _ := jsonRequest(t, app, "POST", "/api/projects/", map[string]interface{}{})
	if status != 400 {
		t.Errorf("Expected status 400, got %d", status)
	}
}

func TestGetProjectNotFound(t *testing.T) {
	app, _ := setupApp(t)
	_, status, _ := jsonRequest(t, app, "GET", "/api/projects/unknown", nil)
	if status != 404 {
		t.Errorf("Expected status 404, got %d", status)
	}
}

func TestAdvanceBlockedReturnsGateReasons(t *testing.T) {
	app, _ := setupApp(t)
	id := createProjectViaAPI(t, app)

	_, status, result := jsonRequest(t, app, "PUT", "/api/projects/"+id+"/advance", map[string]interface{}{
		"actor": "tester",
	})
	if status != 422 {
		t.Fatalf("Expected status 422, got %d (%v)", status, result)
	}
	reasons, _ := result["reasons"].([]interface{})
	if len(reasons) == 0 {
		t.Errorf("Expected gate reasons in response, got %v", result)
	}
}

func TestGenerateAdvanceAndRetrieveFlow(t *testing.T) {
	app, _ := setupApp(t)
	id := createProjectViaAPI(t, app)

	// Generate the charter artifact.
	_, status, result := jsonRequest(t, app, "POST", "/api/projects/"+id+"/documents", nil)
	if status != 200 {
		t.Fatalf("Expected status 200, got %d (%v)", status, result)
	}

	// Gate now passes.
	_, status, result = jsonRequest(t, app, "GET", "/api/projects/"+id+"/gate", nil)
	if status != 200 || result["pass"] != true {
		t.Fatalf("Expected passing gate, got %d (%v)", status, result)
	}

	// Advance to requirements.
	_, status, result = jsonRequest(t, app, "PUT", "/api/projects/"+id+"/advance", map[string]interface{}{
		"actor": "lead",
	})
	if status != 200 || result["CurrentPhase"] != "requirements" {
		t.Fatalf("Expected advance to requirements, got %d (%v)", status, result)
	}

	// The transition is on the audit log.
	req := httptest.NewRequest("GET", "/api/projects/"+id+"/transitions", nil)
	resp, err := app.Test(req, 10000)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	defer resp.Body.Close()
	var transitions []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&transitions); err != nil {
		t.Fatalf("Failed to decode transitions: %v", err)
	}
	if len(transitions) != 1 || transitions[0]["Actor"] != "lead" {
		t.Errorf("Expected one transition by lead, got %v", transitions)
	}

	// Retrieve the generated document.
	req = httptest.NewRequest("GET", "/api/projects/"+id+"/documents/ProjectCharter.md", nil)
	resp, err = app.Test(req, 10000)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Document-Version") != "1" {
		t.Errorf("Expected version header 1, got %s", resp.Header.Get("X-Document-Version"))
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.HasPrefix(body, []byte("# Project Charter")) {
		t.Errorf("Unexpected document body start: %q", body[:30])
	}
}

func TestGetDocumentVersionQuery(t *testing.T) {
	app, _ := setupApp(t)
	id := createProjectViaAPI(t, app)

	if _, status, _ := jsonRequest(t, app, "POST", "/api/projects/"+id+"/documents", nil); status != 200 {
		t.Fatalf("Generate failed with status %d", status)
	}

	_, status, _ := jsonRequest(t, app, "GET", "/api/projects/"+id+"/documents/ProjectCharter.md?version=9", nil)
	if status != 404 {
		t.Errorf("Expected status 404 for missing version, got %d", status)
	}

	_, status, _ = jsonRequest(t, app, "GET", "/api/projects/"+id+"/documents/ProjectCharter.md?version=abc", nil)
	if status != 400 {
		t.Errorf("Expected status 400 for invalid version, got %d", status)
	}
}

func TestContextRoundTripAndImpacts(t *testing.T) {
	app, _ := setupApp(t)
	id := createProjectViaAPI(t, app)

	_, status, _ := jsonRequest(t, app, "PUT", "/api/projects/"+id+"/context", map[string]interface{}{
		"requirements": map[string]interface{}{
			"FR-101": "store documents immutably",
		},
	})
	if status != 200 {
		t.Fatalf("Expected status 200, got %d", status)
	}

	_, status, result := jsonRequest(t, app, "GET", "/api/projects/"+id+"/context", nil)
	if status != 200 {
		t.Fatalf("Expected status 200, got %d", status)
	}
	data, _ := result["data"].(map[string]interface{})
	if data["requirements"] == nil {
		t.Errorf("Expected requirements in context, got %v", result)
	}

	// A single changed id may arrive as a bare string.
	req := httptest.NewRequest("POST", "/api/projects/"+id+"/impacts",
		bytes.NewReader([]byte(`{"changed":"FR-101"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, 10000)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	var report map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("Failed to decode impact report: %v", err)
	}
	if report["project_id"] != id {
		t.Errorf("Expected project_id %s in report, got %v", id, report["project_id"])
	}
	if _, ok := report["impacts"].([]interface{}); !ok {
		t.Errorf("Expected an impacts array in report, got %v", report["impacts"])
	}
}

// slowGenerator stalls until its delay elapses or the context expires.
type slowGenerator struct {
	delay time.Duration
}

func (g *slowGenerator) Generate(ctx context.Context, artifact string, project models.Project, projCtx map[string]interface{}) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(g.delay):
		return []byte("# " + artifact), nil
	}
}

func TestGenerateDocumentsRequestTimeout(t *testing.T) {
	app, _ := setupAppWith(t, &slowGenerator{delay: 2 * time.Second})
	id := createProjectViaAPI(t, app)

	// timeout_ms tolerates the string form of the number.
	_, status, result := jsonRequest(t, app, "POST", "/api/projects/"+id+"/documents", map[string]interface{}{
		"timeout_ms": "50",
	})
	if status != 502 {
		t.Fatalf("Expected status 502 when every artifact times out, got %d (%v)", status, result)
	}
	artifacts, _ := result["artifacts"].([]interface{})
	if len(artifacts) == 0 {
		t.Fatalf("Expected artifact statuses in response, got %v", result)
	}
	for _, raw := range artifacts {
		artifact, _ := raw.(map[string]interface{})
		if artifact["status"] != "failed" {
			t.Errorf("Expected failed artifact, got %v", artifact)
		}
	}
	manifest, _ := result["manifest"].(map[string]interface{})
	if len(manifest) != 0 {
		t.Errorf("Expected empty manifest, got %v", manifest)
	}
}

func TestDeleteProjectViaAPI(t *testing.T) {
	app, _ := setupApp(t)
	id := createProjectViaAPI(t, app)

	_, status, _ := jsonRequest(t, app, "DELETE", "/api/projects/"+id, nil)
	if status != 200 {
		t.Fatalf("Expected status 200, got %d", status)
	}
	_, status, _ = jsonRequest(t, app, "GET", "/api/projects/"+id, nil)
	if status != 404 {
		t.Errorf("Expected status 404 after delete, got %d", status)
	}
}
