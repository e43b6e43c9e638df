// Package torsion turns a glycan linkage table into atom selections and
// evaluates the phi, psi and omega glycosidic torsions against a structure.
//
// Definitions follow the crystallographic convention:
//
//	phi:   O5-C1-O-C'x
//	psi:   C1-O-C'x-C'x+1
//	omega: O6-C6-C5-O5 of the parent, for 1-6 and 2-6 linkages only
//
// For the N-glycosidic bond the parent atoms are the asparagine side chain
// (ND2, CG, CB).
package torsion

import (
	"fmt"

	"github.com/FocuswithJustin/GlycoTorsion/core/errors"
	"github.com/FocuswithJustin/GlycoTorsion/core/glycan"
)

// Kind is a torsion angle kind.
type Kind string

// Torsion kinds.
const (
	Phi   Kind = "phi"
	Psi   Kind = "psi"
	Omega Kind = "omega"
)

// Kinds lists every torsion kind in evaluation order.
var Kinds = []Kind{Phi, Psi, Omega}

// ParseKind parses "phi", "psi" or "omega".
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", errors.NewValidation("kind", fmt.Sprintf("unknown torsion kind %q (want phi, psi or omega)", s))
}

// Side says which residue of a linkage an atom belongs to.
type Side int

// Sides of a linkage.
const (
	Child Side = iota
	Parent
)

func (s Side) String() string {
	if s == Child {
		return "child"
	}
	return "parent"
}

// AtomRef is an atom name on one side of a linkage.
type AtomRef struct {
	Name string
	Side Side
}

// owners gives the side of each of the four atoms per kind. Phi spans the
// glycosidic oxygen, psi has only the anomeric carbon on the child, and
// omega lies entirely in the parent's exocyclic group.
var owners = map[Kind][4]Side{
	Phi:   {Child, Child, Parent, Parent},
	Psi:   {Child, Parent, Parent, Parent},
	Omega: {Parent, Parent, Parent, Parent},
}

// atomNames holds the four atom names per linkage and kind. The 1- omega
// is the asparagine chi angle; it is kept for reference but is not a
// glycosidic torsion and is never evaluated.
var atomNames = map[glycan.LinkageCode]map[Kind][4]string{
	glycan.LinkageAsn: {
		Phi:   {"O5", "C1", "ND2", "CG"},
		Psi:   {"C1", "ND2", "CG", "CB"},
		Omega: {"ND2", "CG", "CB", "CA"},
	},
	glycan.Linkage12: {
		Phi: {"O5", "C1", "O2", "C2"},
		Psi: {"C1", "O2", "C2", "C3"},
	},
	glycan.Linkage13: {
		Phi: {"O5", "C1", "O3", "C3"},
		Psi: {"C1", "O3", "C3", "C4"},
	},
	glycan.Linkage14: {
		Phi: {"O5", "C1", "O4", "C4"},
		Psi: {"C1", "O4", "C4", "C5"},
	},
	glycan.Linkage16: {
		Phi:   {"O5", "C1", "O6", "C6"},
		Psi:   {"C1", "O6", "C6", "C5"},
		Omega: {"O6", "C6", "C5", "O5"},
	},
	glycan.Linkage23: {
		Phi: {"O6", "C2", "O3", "C3"},
		Psi: {"C2", "O3", "C3", "C4"},
	},
	glycan.Linkage26: {
		Phi:   {"O6", "C2", "O6", "C6"},
		Psi:   {"C2", "O6", "C6", "C5"},
		Omega: {"O6", "C6", "C5", "O5"},
	},
}

// Applicable reports whether kind is evaluated for a linkage code.
func Applicable(kind Kind, code glycan.LinkageCode) bool {
	if kind == Omega {
		return code == glycan.Linkage16 || code == glycan.Linkage26
	}
	_, ok := atomNames[code]
	return ok && (kind == Phi || kind == Psi)
}

// Atoms returns the four atoms defining kind across a linkage. Omega on a
// linkage without an exocyclic C6 returns an error wrapping
// ErrNotApplicable.
func Atoms(kind Kind, code glycan.LinkageCode) ([4]AtomRef, error) {
	var out [4]AtomRef
	table, ok := atomNames[code]
	if !ok {
		return out, errors.NewLookup("linkage", string(code))
	}
	side, ok := owners[kind]
	if !ok {
		return out, errors.NewLookup("torsion kind", string(kind))
	}
	if !Applicable(kind, code) {
		return out, errors.Wrapf(errors.ErrNotApplicable, "%s for %s", kind, code)
	}
	names := table[kind]
	for i := range out {
		out[i] = AtomRef{Name: names[i], Side: side[i]}
	}
	return out, nil
}
