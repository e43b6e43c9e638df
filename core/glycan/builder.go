package glycan

import (
	"fmt"

	"github.com/FocuswithJustin/GlycoTorsion/core/errors"
	"github.com/FocuswithJustin/GlycoTorsion/core/iupac"
	"github.com/FocuswithJustin/GlycoTorsion/core/label"
	"github.com/FocuswithJustin/GlycoTorsion/internal/logging"
)

// Core rows the branch slots hang from.
const (
	reducingEndRow = 0 // GlcNAc1, carries core fucose
	branchingRow   = 2 // beta mannose, carries both antennae
)

// builder accumulates triplets while the cursor advances through the
// core, the antenna slots and the remaining slot.
type builder struct {
	triplets []Triplet
	cursor   Cursor
}

// appendRun numbers run from the residue nearest parent outward and
// appends its triplets. It returns the label of the residue bound to
// parent.
func (b *builder) appendRun(run iupac.Run, parent string) (string, error) {
	doc := run.Tokens()
	tokens := make([]string, 0, len(doc)+1)
	tokens = append(tokens, parent)
	for i := len(doc) - 1; i >= 0; i-- {
		tokens = append(tokens, doc[i])
	}

	numbered, next := Number(tokens, b.cursor)
	trips := Triplets(numbered)
	if len(trips) == 0 {
		return "", errors.NewGrammar(run.String(), "run has no residues")
	}
	b.triplets = append(b.triplets, trips...)
	b.cursor = next
	return trips[0].Child, nil
}

// Build numbers the residues of tree and assembles its linkage table:
// core rows first, then antenna slot 1, slot 2 and the remaining slot.
func Build(key string, tree *iupac.Tree) (*Chain, error) {
	b := &builder{}

	if _, err := b.appendRun(tree.Core, tree.Glycan.SiteLabel()); err != nil {
		return nil, err
	}
	core := append([]Triplet(nil), b.triplets...)

	if len(tree.Branches) > 0 {
		if len(core) <= branchingRow {
			return nil, errors.NewGrammar(tree.Core.String(), "core has no branching mannose for the antennae")
		}
		slotParent := core[branchingRow].Child
		for _, br := range tree.Branches {
			if err := b.appendBranch(br, slotParent); err != nil {
				return nil, err
			}
		}
	}

	for i, br := range tree.Dropped {
		var segment string
		for _, r := range br.Runs() {
			segment += r.String()
		}
		logging.BranchDropped(key, iupac.MaxBranchSlots+i+1, segment)
	}

	for _, r := range tree.Remaining {
		if _, err := b.appendRun(r, core[reducingEndRow].Child); err != nil {
			return nil, err
		}
	}

	chain := &Chain{
		key:     key,
		site:    tree.Glycan.Site,
		source:  tree.Glycan.Source,
		records: make([]Record, 0, len(b.triplets)),
		rows:    make([]Row, 0, len(b.triplets)),
	}
	for i, t := range b.triplets {
		rec, row, err := convertTriplet(t)
		if err != nil {
			return nil, fmt.Errorf("row %d %s(%s)%s: %w", i, t.Child, t.Code, t.Parent, err)
		}
		chain.records = append(chain.records, rec)
		chain.rows = append(chain.rows, row)
	}

	logging.ChainMapped(key, chain.site, len(chain.rows))
	return chain, nil
}

func (b *builder) appendBranch(br iupac.Branch, parent string) error {
	switch br := br.(type) {
	case iupac.Flat:
		_, err := b.appendRun(br.Run, parent)
		return err
	case iupac.Nested:
		subCore, err := b.appendRun(br.SubCore, parent)
		if err != nil {
			return err
		}
		for _, r := range br.SubBranches {
			if _, err := b.appendRun(r, subCore); err != nil {
				return err
			}
		}
		return nil
	default:
		return errors.NewGrammar("", fmt.Sprintf("unknown branch shape %T", br))
	}
}

func convertTriplet(t Triplet) (Record, Row, error) {
	code := LinkageCode(t.Code)
	if !code.Valid() {
		return Record{}, Row{}, errors.NewUnsupported("linkage", t.Code)
	}
	child, err := label.Parse(t.Child)
	if err != nil {
		return Record{}, Row{}, err
	}
	parent, err := label.Parse(t.Parent)
	if err != nil {
		return Record{}, Row{}, err
	}
	c, err := child.Convert(label.ModePDB)
	if err != nil {
		return Record{}, Row{}, err
	}
	p, err := parent.Convert(label.ModePDB)
	if err != nil {
		return Record{}, Row{}, err
	}
	rec := Record{Child: child, Linkage: code, Parent: parent}
	row := Row{
		Glycan2: c.Prefixed(),
		Index2:  c.Index,
		Linkage: code,
		Glycan1: p.Prefixed(),
		Index1:  p.Index,
	}
	return rec, row, nil
}

// Map parses s, classifies it and builds its chain.
func Map(key, s string, site int) (*Chain, error) {
	tree, err := iupac.ParseTree(s, site)
	if err != nil {
		return nil, err
	}
	return Build(key, tree)
}
