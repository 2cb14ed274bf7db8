// trace_service.go
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

package services

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/amcq-expeed/opnxt-core/internal/blob"
	"github.com/amcq-expeed/opnxt-core/internal/models"
	"github.com/amcq-expeed/opnxt-core/internal/types"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// requirementIDPattern matches the requirement identifiers the traceability
// scanner recognizes: BR-1, FR-006, NFR-12 and so on.
var requirementIDPattern = regexp.MustCompile(`\b(?:BR|FR|NFR)-\d+\b`)

// moduleRefPattern matches inline-code module references such as
// `internal/storage/engine.go` on lines that also carry a requirement id.
var moduleRefPattern = regexp.MustCompile("`([A-Za-z0-9_./-]+\\.[A-Za-z0-9]{1,4})`")

// ImpactConfig holds the heuristic confidence weights. The tiering is a
// reasonable default, not a bit-exact contract; deployments tune it via env.
type ImpactConfig struct {
	ExactWeight   float64
	GroupWeight   float64
	KeywordWeight float64
}

// ImpactItem is one entry of an impact report: an affected artifact or module
// with the confidence of the match. Best-effort signal, not a completeness
// guarantee.
type ImpactItem struct {
	Kind       string  `json:"kind"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// ExtractRequirementIDs returns the unique requirement ids found in content,
// in first-seen order. Upload ingestion uses it to index raw files.
func ExtractRequirementIDs(content []byte) []string {
	return lo.Uniq(requirementIDPattern.FindAllString(string(content), -1))
}

// RebuildDocumentTrace replaces the traceability edge set of one document
// from freshly generated content. Delete and insert happen in a single
// transaction, so readers never observe a half-updated edge set.
func RebuildDocumentTrace(db *gorm.DB, projectID string, documentID uint64, filename string, content []byte, exactWeight float64) error {
	edges := extractEdges(projectID, documentID, filename, content, exactWeight)

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).
			Delete(&models.TraceabilityEdge{}).Error; err != nil {
			return &types.StorageError{Op: "clear trace edges", Err: err}
		}
		if len(edges) == 0 {
			return nil
		}
		if err := tx.Create(&edges).Error; err != nil {
			return &types.StorageError{Op: "insert trace edges", Err: err}
		}
		return nil
	})
}

// extractEdges scans document content for requirement-id tokens. Every match
// yields a doc edge; a match under a markdown heading also yields a section
// edge, and inline-code module references on the same line yield module
// edges. All carry the exact-match weight since the id literally appears.
func extractEdges(projectID string, documentID uint64, filename string, content []byte, exactWeight float64) []models.TraceabilityEdge {
	now := time.Now().UTC()
	seen := map[string]bool{}
	var edges []models.TraceabilityEdge

	add := func(reqID, kind, target string) {
		dedupKey := reqID + "|" + kind + "|" + target
		if seen[dedupKey] {
			return
		}
		seen[dedupKey] = true
		edges = append(edges, models.TraceabilityEdge{
			ProjectID:     projectID,
			DocumentID:    documentID,
			RequirementID: reqID,
			TargetKind:    kind,
			TargetName:    target,
			Confidence:    exactWeight,
			CreatedAt:     now,
		})
	}

	section := ""
	for _, line := range strings.Split(string(content), "\n") {
		if heading := strings.TrimLeft(line, "#"); heading != line {
			section = strings.TrimSpace(heading)
			// The heading line itself may still reference requirements.
		}

		ids := requirementIDPattern.FindAllString(line, -1)
		if len(ids) == 0 {
			continue
		}
		modules := moduleRefPattern.FindAllStringSubmatch(line, -1)

		for _, id := range ids {
			add(id, models.TargetKindDoc, filename)
			if section != "" {
				add(id, models.TargetKindSection, filename+"#"+section)
			}
			for _, m := range modules {
				add(id, models.TargetKindModule, m[1])
			}
		}
	}
	return edges
}

// ComputeImpacts walks the traceability graph for the changed requirement ids
// and returns affected targets ranked by confidence.
//
// Tiering: an exact id match in a document body scores the exact weight;
// targets reached only through a sibling requirement in the same epic group
// (same prefix and hundreds block, e.g. FR-101/FR-105) score the group
// weight; keyword overlap between the requirement text and latest document
// bodies is the low-confidence fallback. Duplicate targets merge by max
// confidence and the result orders by confidence descending, target name
// ascending for determinism.
func ComputeImpacts(ctx context.Context, db *gorm.DB, blobs blob.Store, cfg ImpactConfig, projectID string, changedIDs []string) ([]ImpactItem, error) {
	if _, err := GetProject(db, projectID); err != nil {
		return nil, err
	}

	changed := lo.Uniq(changedIDs)
	if len(changed) == 0 {
		return []ImpactItem{}, nil
	}

	best := map[string]ImpactItem{}
	merge := func(kind, name string, confidence float64) {
		key := kind + "|" + name
		if existing, ok := best[key]; !ok || confidence > existing.Confidence {
			best[key] = ImpactItem{Kind: kind, Name: name, Confidence: confidence}
		}
	}

	// Tier 1: exact edge matches.
	var exact []models.TraceabilityEdge
	err := db.Where("project_id = ? AND requirement_id IN ?", projectID, changed).
		Find(&exact).Error
	if err != nil {
		return nil, &types.StorageError{Op: "query trace edges", Err: err}
	}
	for _, edge := range exact {
		merge(edge.TargetKind, edge.TargetName, edge.Confidence)
	}

	// Tier 2: targets of sibling requirements in the same epic group.
	var allIDs []string
	err = db.Model(&models.TraceabilityEdge{}).
		Where("project_id = ?", projectID).
		Distinct("requirement_id").
		Pluck("requirement_id", &allIDs).Error
	if err != nil {
		return nil, &types.StorageError{Op: "query requirement ids", Err: err}
	}
	changedSet := lo.SliceToMap(changed, func(id string) (string, bool) { return id, true })
	siblings := lo.Filter(allIDs, func(id string, _ int) bool {
		if changedSet[id] {
			return false
		}
		return lo.SomeBy(changed, func(c string) bool { return sameEpicGroup(c, id) })
	})
	if len(siblings) > 0 {
		var grouped []models.TraceabilityEdge
		err = db.Where("project_id = ? AND requirement_id IN ?", projectID, siblings).
			Find(&grouped).Error
		if err != nil {
			return nil, &types.StorageError{Op: "query sibling edges", Err: err}
		}
		for _, edge := range grouped {
			merge(edge.TargetKind, edge.TargetName, cfg.GroupWeight)
		}
	}

	// Tier 3: keyword overlap against latest document bodies.
	if err := keywordFallback(ctx, db, blobs, cfg, projectID, changed, merge); err != nil {
		return nil, err
	}

	items := lo.Values(best)
	sort.Slice(items, func(i, j int) bool {
		if items[i].Confidence != items[j].Confidence {
			return items[i].Confidence > items[j].Confidence
		}
		return items[i].Name < items[j].Name
	})
	return items, nil
}

// keywordFallback scores documents whose latest content shares at least two
// significant keywords with the changed requirement's recorded text.
func keywordFallback(ctx context.Context, db *gorm.DB, blobs blob.Store, cfg ImpactConfig, projectID string, changed []string, merge func(kind, name string, confidence float64)) error {
	ctxData, err := contextData(db, projectID)
	if err != nil {
		return err
	}
	reqTexts, _ := ctxData["requirements"].(map[string]interface{})
	if len(reqTexts) == 0 {
		return nil
	}

	var docs []models.Document
	if err := db.Where("project_id = ? AND latest_version > 0", projectID).Find(&docs).Error; err != nil {
		return &types.StorageError{Op: "list documents", Err: err}
	}

	for _, id := range changed {
		text, _ := reqTexts[id].(string)
		keywords := significantKeywords(text)
		if len(keywords) == 0 {
			continue
		}
		for _, doc := range docs {
			content, _, err := GetDocument(ctx, db, blobs, projectID, doc.Filename, nil)
			if err != nil {
				// A document without retrievable content cannot be scored.
				continue
			}
			body := strings.ToLower(string(content))
			overlap := lo.CountBy(keywords, func(kw string) bool {
				return strings.Contains(body, kw)
			})
			if overlap >= 2 {
				merge(models.TargetKindDoc, doc.Filename, cfg.KeywordWeight)
			}
		}
	}
	return nil
}

// sameEpicGroup reports whether two requirement ids share a prefix and a
// hundreds block, the grouping convention backlog tooling uses for epics.
func sameEpicGroup(a, b string) bool {
	pa, na, ok := splitRequirementID(a)
	if !ok {
		return false
	}
	pb, nb, ok := splitRequirementID(b)
	if !ok {
		return false
	}
	return pa == pb && na/100 == nb/100
}

func splitRequirementID(id string) (prefix string, num int, ok bool) {
	parts := strings.SplitN(id, "-", 2)
	if len(parts) != 2 {
		return "", 0, false
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, false
	}
	return parts[0], n, true
}

// significantKeywords lowercases and filters a requirement's text down to the
// words worth matching on.
func significantKeywords(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	filtered := lo.Filter(words, func(w string, _ int) bool {
		return len(w) > 3 && !stopwords[w]
	})
	return lo.Uniq(filtered)
}

var stopwords = map[string]bool{
	"that": true, "this": true, "with": true, "from": true, "must": true,
	"shall": true, "should": true, "will": true, "have": true, "been": true,
	"when": true, "where": true, "which": true, "their": true, "system": true,
	"user": true, "users": true, "able": true,
}
