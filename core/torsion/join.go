package torsion

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/FocuswithJustin/GlycoTorsion/core/errors"
	"github.com/FocuswithJustin/GlycoTorsion/core/glycan"
	"github.com/FocuswithJustin/GlycoTorsion/core/structure"
)

// Span is an inclusive range of 1-based atom IDs. It encodes as
// [first, last].
type Span struct {
	First int
	Last  int
}

// MarshalJSON encodes the span as a two element array.
func (s Span) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{s.First, s.Last})
}

// Target locates the atoms of one side of a linkage: an atom span for
// glycan residues, or a residue query for the asparagine.
type Target struct {
	Span  Span
	Query string
}

// Selection returns the query selecting the atom called name.
func (t Target) Selection(name string) string {
	if t.Query != "" {
		return t.Query + " and name " + name
	}
	return fmt.Sprintf("bynum %d:%d and name %s", t.Span.First, t.Span.Last, name)
}

// MarshalJSON encodes a span as [first, last] and a query as ["query"].
func (t Target) MarshalJSON() ([]byte, error) {
	if t.Query != "" {
		return json.Marshal([]string{t.Query})
	}
	return json.Marshal(t.Span)
}

// Entry is one linkage row joined with the atoms of both residues.
type Entry struct {
	Resid2  string             `json:"resid2"`
	Atoms2  Target             `json:"atoms2"`
	Glycan2 string             `json:"glycan2"`
	Index2  string             `json:"index2"`
	Linkage glycan.LinkageCode `json:"linkage"`
	Resid1  string             `json:"resid1"`
	Atoms1  Target             `json:"atoms1"`
	Glycan1 string             `json:"glycan1"`
	Index1  string             `json:"index1"`
}

// Label names the entry as child(code)parent.
func (e Entry) Label() string {
	return fmt.Sprintf("%s(%s)%s", e.Resid2, e.Linkage, e.Resid1)
}

// target returns the atoms of one side.
func (e Entry) target(s Side) Target {
	if s == Child {
		return e.Atoms2
	}
	return e.Atoms1
}

// Join matches each row of c to the atom ranges of gc by residue name and
// chain position. Row 0 is the N-glycosidic bond; its parent is selected
// by residue number.
func Join(c *glycan.Chain, gc structure.GlycanChain) ([]Entry, error) {
	rows := c.Rows()
	out := make([]Entry, 0, len(rows))
	for i, row := range rows {
		child, err := lookupRange(gc, row.Glycan2, row.Index2)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		e := Entry{
			Resid2:  child.Label,
			Atoms2:  Target{Span: Span{child.First, child.Last}},
			Glycan2: row.Glycan2,
			Index2:  row.Index2,
			Linkage: row.Linkage,
			Glycan1: row.Glycan1,
			Index1:  row.Index1,
		}
		if i == 0 {
			e.Resid1 = "ASN_" + strconv.Itoa(c.Site())
			e.Atoms1 = Target{Query: "resid " + strconv.Itoa(c.Site())}
		} else {
			parent, err := lookupRange(gc, row.Glycan1, row.Index1)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			e.Resid1 = parent.Label
			e.Atoms1 = Target{Span: Span{parent.First, parent.Last}}
		}
		out = append(out, e)
	}
	return out, nil
}

func lookupRange(gc structure.GlycanChain, resname, index string) (structure.AtomRange, error) {
	n, err := strconv.Atoi(index)
	if err != nil {
		return structure.AtomRange{}, errors.NewValidation("index", fmt.Sprintf("residue index %q is not a number", index))
	}
	r, ok := gc.Range(resname, n)
	if !ok {
		return structure.AtomRange{}, errors.NewLookup("atom range", fmt.Sprintf("%s%d in %s", resname, n, gc.Name))
	}
	return r, nil
}
