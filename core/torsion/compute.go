package torsion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/FocuswithJustin/GlycoTorsion/core/errors"
	"github.com/FocuswithJustin/GlycoTorsion/core/glycan"
	"github.com/FocuswithJustin/GlycoTorsion/core/structure"
	"github.com/FocuswithJustin/GlycoTorsion/internal/logging"
)

// Selector answers atom selection and dihedral queries.
// *structure.Structure satisfies it.
type Selector interface {
	SelectAtoms(query string) ([]int, error)
	Dihedral(atoms [4]int, frame int) (float64, error)
	FrameCount() int
}

var _ Selector = (*structure.Structure)(nil)

// Value is one evaluated torsion: a single angle, a per-frame series, or
// not applicable. It encodes as a number, an array or null.
type Value struct {
	Angle         float64
	Series        []float64
	NotApplicable bool
}

// MarshalJSON encodes the value.
func (v Value) MarshalJSON() ([]byte, error) {
	switch {
	case v.NotApplicable:
		return []byte("null"), nil
	case v.Series != nil:
		return json.Marshal(v.Series)
	}
	return json.Marshal(v.Angle)
}

// Result is the value of one labelled linkage.
type Result struct {
	Label string
	Value Value
}

// Table holds one torsion kind for every entry of a chain, in row order.
type Table struct {
	Chain   string
	Kind    Kind
	Results []Result
}

// Get returns the value for a label.
func (t *Table) Get(label string) (Value, bool) {
	for _, r := range t.Results {
		if r.Label == label {
			return r.Value, true
		}
	}
	return Value{}, false
}

// MarshalJSON encodes the table as an object keyed by label, keeping row
// order.
func (t *Table) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, r := range t.Results {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(r.Label)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Options controls evaluation.
type Options struct {
	// Chain names the table in results and logs.
	Chain string
	// Trajectory evaluates every frame; otherwise only frame 0.
	Trajectory bool
}

// Compute evaluates kind for every entry. Linkages for which kind does not
// exist get a NotApplicable value. An entry that cannot be evaluated is
// also marked NotApplicable and reported in the returned error, which joins
// every such failure. The remaining entries are still evaluated.
func Compute(ctx context.Context, kind Kind, entries []Entry, sel Selector, opts Options) (*Table, error) {
	if _, ok := owners[kind]; !ok {
		return nil, errors.NewLookup("torsion kind", string(kind))
	}
	if sel.FrameCount() == 0 {
		return nil, errors.NewValidation("structure", "no coordinate frames")
	}

	t := &Table{Chain: opts.Chain, Kind: kind, Results: make([]Result, 0, len(entries))}
	var failures []error
	skipped := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		label := e.Label()
		if !Applicable(kind, e.Linkage) {
			t.Results = append(t.Results, Result{Label: label, Value: Value{NotApplicable: true}})
			skipped++
			continue
		}
		v, err := evaluate(ctx, kind, e, sel, opts.Trajectory)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failures = append(failures, fmt.Errorf("%s: %w", label, err))
			t.Results = append(t.Results, Result{Label: label, Value: Value{NotApplicable: true}})
			continue
		}
		t.Results = append(t.Results, Result{Label: label, Value: v})
	}

	logging.TorsionComputed(ctx, opts.Chain, string(kind), len(entries), skipped, "failed", len(failures))
	return t, errors.Join(failures...)
}

func evaluate(ctx context.Context, kind Kind, e Entry, sel Selector, trajectory bool) (Value, error) {
	refs, err := Atoms(kind, e.Linkage)
	if err != nil {
		return Value{}, err
	}
	var idx [4]int
	for i, ref := range refs {
		q := e.target(ref.Side).Selection(ref.Name)
		found, err := sel.SelectAtoms(q)
		if err != nil {
			return Value{}, err
		}
		if len(found) != 1 {
			return Value{}, errors.NewValidation("selection", fmt.Sprintf("%q matched %d atoms, want 1", q, len(found)))
		}
		idx[i] = found[0]
	}

	if !trajectory {
		a, err := sel.Dihedral(idx, 0)
		if err != nil {
			return Value{}, err
		}
		return Value{Angle: a}, nil
	}

	series := make([]float64, sel.FrameCount())
	for f := range series {
		if err := ctx.Err(); err != nil {
			return Value{}, err
		}
		a, err := sel.Dihedral(idx, f)
		if err != nil {
			return Value{}, fmt.Errorf("frame %d: %w", f, err)
		}
		series[f] = a
	}
	return Value{Series: series}, nil
}

// Pair matches mapped chains to the glycan chains found in a structure, in
// order. The counts must agree.
func Pair(chains []*glycan.Chain, found []structure.GlycanChain) ([]Pairing, error) {
	if len(chains) != len(found) {
		return nil, errors.NewValidation("chains", fmt.Sprintf("%d mapped chains but %d glycan chains in structure", len(chains), len(found)))
	}
	out := make([]Pairing, len(chains))
	for i := range chains {
		entries, err := Join(chains[i], found[i])
		if err != nil {
			return nil, fmt.Errorf("chain %s (%s): %w", chains[i].Key(), found[i].Name, err)
		}
		out[i] = Pairing{Chain: chains[i], Found: found[i], Entries: entries}
	}
	return out, nil
}

// Pairing is a mapped chain joined to its atoms.
type Pairing struct {
	Chain   *glycan.Chain
	Found   structure.GlycanChain
	Entries []Entry
}

// ComputeAll evaluates kind for every pairing, keyed by chain key in input
// order. Per-entry failures of all chains are joined into the error.
func ComputeAll(ctx context.Context, kind Kind, pairs []Pairing, sel Selector, trajectory bool) ([]*Table, error) {
	out := make([]*Table, 0, len(pairs))
	var errs []error
	for _, p := range pairs {
		t, err := Compute(ctx, kind, p.Entries, sel, Options{Chain: p.Chain.Key(), Trajectory: trajectory})
		if t == nil {
			return nil, err
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("chain %s: %w", p.Chain.Key(), err))
		}
		out = append(out, t)
	}
	return out, errors.Join(errs...)
}
