package generator

import (
	"context"
	"strings"
	"testing"

	"github.com/amcq-expeed/opnxt-core/internal/models"
)

func testProject() models.Project {
	return models.Project{
		ProjectID:    "11111111-1111-1111-1111-111111111111",
		Name:         "billing revamp",
		CurrentPhase: "requirements",
	}
}

func TestTemplateGeneratorRendersContext(t *testing.T) {
	gen, err := NewTemplateGenerator()
	if err != nil {
		t.Fatalf("Failed to build generator: %v", err)
	}

	projCtx := map[string]interface{}{
		"overview": "Replace the legacy billing pipeline.",
		"answers": map[string]interface{}{
			"stakeholders": "finance, ops",
		},
		"requirements": map[string]interface{}{
			"FR-102": "invoices render as PDF",
			"FR-101": "invoices are immutable",
		},
		"uploads": map[string]interface{}{
			"legacy-notes.txt": map[string]interface{}{"size": 120},
		},
	}

	content, err := gen.Generate(context.Background(), "BRD.md", testProject(), projCtx)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	body := string(content)

	if !strings.HasPrefix(body, "# Business Requirements Document") {
		t.Errorf("Expected titled document, got %q", body[:40])
	}
	for _, want := range []string{
		"billing revamp",
		"Replace the legacy billing pipeline.",
		"stakeholders",
		"FR-101",
		"FR-102",
		"legacy-notes.txt",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected rendered document to contain %q", want)
		}
	}

	// Requirements table is sorted by id.
	if strings.Index(body, "FR-101") > strings.Index(body, "FR-102") {
		t.Error("Expected requirements sorted by id")
	}
}

func TestTemplateGeneratorUnknownArtifactFallsBackToFilename(t *testing.T) {
	gen, err := NewTemplateGenerator()
	if err != nil {
		t.Fatalf("Failed to build generator: %v", err)
	}

	content, err := gen.Generate(context.Background(), "RiskRegister.md", testProject(), nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !strings.HasPrefix(string(content), "# RiskRegister") {
		t.Errorf("Expected filename-derived title, got %q", string(content)[:30])
	}
}

func TestTemplateGeneratorHonorsCancelledContext(t *testing.T) {
	gen, err := NewTemplateGenerator()
	if err != nil {
		t.Fatalf("Failed to build generator: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := gen.Generate(ctx, "BRD.md", testProject(), nil); err == nil {
		t.Error("Expected cancelled context to fail generation")
	}
}
