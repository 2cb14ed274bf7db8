// gates.go
//
// Phase-gated SDLC document generation and versioning service
// Copyright (c) 2026 Expeed Software (https://www.expeed.com)
//
// This file is part of opnxt-core.
// opnxt-core is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// opnxt-core is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with opnxt-core.
// If not, see <https://www.gnu.org/licenses/>.

package phases

import (
	"fmt"
	"strings"

	"github.com/amcq-expeed/opnxt-core/internal/models"
)

// GateConfig holds the tunable thresholds gate predicates read.
type GateConfig struct {
	// CoverageThreshold is the minimum recorded test coverage percentage
	// required to move from implementation to testing.
	CoverageThreshold float64
}

// GateInput is everything a gate predicate may inspect. Predicates never
// mutate it.
type GateInput struct {
	Project   models.Project
	Context   map[string]interface{}
	Documents []models.Document
}

// GateResult is the outcome of evaluating one gate predicate.
type GateResult struct {
	Pass    bool
	Missing []string
}

// EvaluateGate evaluates the gate predicate for the transition out of phase
// `from`. The terminal phase has no gate and always fails closed.
func EvaluateGate(from Phase, in GateInput, cfg GateConfig) GateResult {
	var missing []string

	switch from {
	case Charter:
		missing = requireDocument(in.Documents, "ProjectCharter")
	case Requirements:
		missing = requireDocument(in.Documents, "BRD")
	case Specifications:
		missing = requireDocument(in.Documents, "SRS")
	case Design:
		missing = requireDocument(in.Documents, "SDS")
	case Implementation:
		coverage := metricFloat(in.Context, "coverage")
		if coverage < cfg.CoverageThreshold {
			missing = append(missing, fmt.Sprintf(
				"recorded coverage %.1f%% is below the required %.1f%%", coverage, cfg.CoverageThreshold))
		}
		if !metricBool(in.Context, "integrations_green") {
			missing = append(missing, "integration checks are not green")
		}
	case Testing:
		missing = requireDocument(in.Documents, "TestPlan")
		if !metricBool(in.Context, "tests_passed") {
			missing = append(missing, "test run has not passed")
		}
	case Deployment:
		// Closeout to the terminal phase has no preconditions.
	default:
		missing = append(missing, fmt.Sprintf("no transition defined out of phase %q", from))
	}

	return GateResult{Pass: len(missing) == 0, Missing: missing}
}

// requireDocument returns a missing-precondition reason unless a document
// whose filename contains namePart (case-insensitive) exists with at least
// one version.
func requireDocument(docs []models.Document, namePart string) []string {
	for _, doc := range docs {
		if strings.Contains(strings.ToLower(doc.Filename), strings.ToLower(namePart)) &&
			doc.LatestVersion >= 1 {
			return nil
		}
	}
	return []string{fmt.Sprintf("a %q document with at least one version is required", namePart)}
}

// metricFloat reads context data "metrics.<key>" as a float, 0 if absent.
func metricFloat(ctx map[string]interface{}, key string) float64 {
	metrics, ok := ctx["metrics"].(map[string]interface{})
	if !ok {
		return 0
	}
	switch v := metrics[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// metricBool reads context data "metrics.<key>" as a bool, false if absent.
func metricBool(ctx map[string]interface{}, key string) bool {
	metrics, ok := ctx["metrics"].(map[string]interface{})
	if !ok {
		return false
	}
	b, _ := metrics[key].(bool)
	return b
}
