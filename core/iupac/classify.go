package iupac

import (
	"strings"

	"github.com/FocuswithJustin/GlycoTorsion/core/errors"
)

// MaxBranchSlots is the number of antenna slots recognised after the core.
const MaxBranchSlots = 2

// Token predicates. Residue names are matched by suffix so that stereo
// prefixed names (bDGlcNAc, aDMan) are recognised.

// IsGlcNAc reports whether the residue is an N-acetylglucosamine.
func IsGlcNAc(u Unit) bool { return strings.HasSuffix(u.Residue, "GlcNAc") }

// IsMannose reports whether the residue is a mannose.
func IsMannose(u Unit) bool { return strings.HasSuffix(u.Residue, "Man") }

// IsReducingEnd reports whether u is the GlcNAc bound to the asparagine
// through the open b1- linkage.
func IsReducingEnd(u Unit) bool {
	return IsGlcNAc(u) && u.Linkage == "b1-"
}

// IsChitobioseCore reports whether a followed by b is the Man(b1-4)GlcNAc(b1-4)
// step of the core.
func IsChitobioseCore(a, b Unit) bool {
	return IsMannose(a) && a.Linkage == "b1-4" && IsGlcNAc(b) && b.Linkage == "b1-4"
}

// IsAlphaMannose reports whether u is an alpha linked mannose, the residue
// that closes an antenna.
func IsAlphaMannose(u Unit) bool {
	return IsMannose(u) && strings.HasPrefix(u.Linkage, "a")
}

// isCoreRun reports whether the run holds the reducing end or the
// chitobiose step. final is true for the run that precedes the site.
func isCoreRun(r Run, final bool) bool {
	for i, u := range r.Units {
		if final && i == len(r.Units)-1 && IsReducingEnd(u) {
			return true
		}
		if i+1 < len(r.Units) && IsChitobioseCore(u, r.Units[i+1]) {
			return true
		}
	}
	return false
}

func hasAlphaMannose(r Run) bool {
	for _, u := range r.Units {
		if IsAlphaMannose(u) {
			return true
		}
	}
	return false
}

// Branch is an antenna slot: either Flat or Nested.
type Branch interface {
	branch()
	// Runs returns the runs of the branch in document order.
	Runs() []Run
}

// Flat is an antenna written as one unbranched run.
type Flat struct {
	Run Run
}

// Nested is an antenna whose alpha-mannose carries further sub-branches.
type Nested struct {
	SubCore     Run
	SubBranches []Run
}

func (Flat) branch()   {}
func (Nested) branch() {}

// Runs returns the single run.
func (f Flat) Runs() []Run { return []Run{f.Run} }

// Runs returns the sub-branches followed by the sub-core.
func (n Nested) Runs() []Run {
	out := append([]Run{}, n.SubBranches...)
	return append(out, n.SubCore)
}

// Tree is a glycan split into core, antenna slots and remaining runs.
type Tree struct {
	Glycan    *Glycan
	Core      Run
	Branches  []Branch // at most MaxBranchSlots
	Remaining []Run    // runs not closed by an alpha-mannose, e.g. core fucose
	Dropped   []Branch // antennae beyond MaxBranchSlots
}

// Classify groups the runs of g into the core, antenna slots and the
// remaining slot.
func Classify(g *Glycan) (*Tree, error) {
	t := &Tree{Glycan: g}

	var others []Run
	for i, r := range g.Runs {
		if isCoreRun(r, i == len(g.Runs)-1) {
			t.Core.Units = append(t.Core.Units, r.Units...)
			continue
		}
		others = append(others, r)
	}
	if len(t.Core.Units) == 0 {
		return nil, errors.NewGrammar(g.Source, "no N-glycan core found")
	}
	if !IsReducingEnd(t.Core.Units[len(t.Core.Units)-1]) {
		return nil, errors.NewGrammar(t.Core.String(), "core does not end with GlcNAc(b1- at the attachment site")
	}

	var group []Run
	for _, r := range others {
		group = append(group, r)
		if !hasAlphaMannose(r) {
			continue
		}
		b, err := classifyGroup(group)
		if err != nil {
			return nil, err
		}
		if len(t.Branches) < MaxBranchSlots {
			t.Branches = append(t.Branches, b)
		} else {
			t.Dropped = append(t.Dropped, b)
		}
		group = nil
	}
	t.Remaining = group
	return t, nil
}

// classifyGroup turns a run group closed by an alpha-mannose into a Branch.
func classifyGroup(group []Run) (Branch, error) {
	if len(group) == 1 {
		return Flat{Run: group[0]}, nil
	}
	var n Nested
	var found bool
	for _, r := range group {
		if hasAlphaMannose(r) && !found {
			n.SubCore = r
			found = true
			continue
		}
		n.SubBranches = append(n.SubBranches, r)
	}
	if !found || len(n.SubBranches) == 0 {
		var parts []string
		for _, r := range group {
			parts = append(parts, r.String())
		}
		return nil, errors.NewGrammar(strings.Join(parts, " "), "branch is neither a flat chain nor a sub-core with sub-branches")
	}
	return n, nil
}

// ParseTree parses and classifies s in one step.
func ParseTree(s string, site int) (*Tree, error) {
	g, err := Parse(s, site)
	if err != nil {
		return nil, err
	}
	return Classify(g)
}
