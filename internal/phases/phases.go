// phases.go
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

// Package phases implements the SDLC phase state machine: the ordered phase
// enum, the per-transition gate predicates, and the artifact set each phase
// produces. Predicates are pure functions over (project, context, documents)
// so callers can re-evaluate them at will.
package phases

// Phase is one of the ordered SDLC phases a project moves through.
type Phase string

// The phase order is fixed: strictly forward, one step at a time, no skipping.
// End is terminal; no transition is defined out of it.
const (
	Charter        Phase = "charter"
	Requirements   Phase = "requirements"
	Specifications Phase = "specifications"
	Design         Phase = "design"
	Implementation Phase = "implementation"
	Testing        Phase = "testing"
	Deployment     Phase = "deployment"
	End            Phase = "end"
)

// Order is the canonical forward sequence of phases.
var Order = []Phase{
	Charter,
	Requirements,
	Specifications,
	Design,
	Implementation,
	Testing,
	Deployment,
	End,
}

// Initial is the phase every newly created project starts in.
const Initial = Charter

// Index returns the ordinal position of p in the phase order, or -1 if p is
// not a defined phase.
func Index(p Phase) int {
	for i, phase := range Order {
		if phase == p {
			return i
		}
	}
	return -1
}

// Valid reports whether p is one of the defined phase enum values.
func Valid(p Phase) bool {
	return Index(p) >= 0
}

// IsTerminal reports whether p is the terminal phase.
func IsTerminal(p Phase) bool {
	return p == End
}

// Next returns the phase that follows p. ok is false when p is terminal or
// not a defined phase.
func Next(p Phase) (next Phase, ok bool) {
	idx := Index(p)
	if idx < 0 || idx >= len(Order)-1 {
		return "", false
	}
	return Order[idx+1], true
}

// Artifacts maps each phase to the document filenames generation produces
// while the project is in that phase. These are also the documents the next
// gate predicate checks for.
var Artifacts = map[Phase][]string{
	Charter:        {"ProjectCharter.md"},
	Requirements:   {"BRD.md"},
	Specifications: {"SRS.md", "Backlog.md"},
	Design:         {"SDS.md"},
	Implementation: {"ImplementationPlan.md"},
	Testing:        {"TestPlan.md"},
	Deployment:     {"DeploymentGuide.md"},
}

// ArtifactsFor returns the artifact filenames produced in phase p. The
// terminal phase produces nothing.
func ArtifactsFor(p Phase) []string {
	return Artifacts[p]
}
