package iupac

import (
	"errors"
	"reflect"
	"testing"

	gterrors "github.com/FocuswithJustin/GlycoTorsion/core/errors"
)

const (
	biantennary = "Neu5Ac(a2-6)Gal(b1-4)GlcNAc(b1-2)Man(a1-3)" +
		"[Neu5Ac(a2-6)Gal(b1-4)GlcNAc(b1-2)Man(a1-6)]" +
		"Man(b1-4)GlcNAc(b1-4)[D-Fuc(a1-6)]GlcNAc(b1-"
	nestedArm = "Gal(b1-4)GlcNAc(b1-2)[Gal(b1-4)GlcNAc(b1-4)]Man(a1-3)" +
		"[Gal(b1-4)GlcNAc(b1-2)Man(a1-6)]" +
		"Man(b1-4)GlcNAc(b1-4)GlcNAc(b1-"
)

func runStrings(runs []Run) []string {
	out := make([]string, len(runs))
	for i, r := range runs {
		out[i] = r.String()
	}
	return out
}

func TestParseRuns(t *testing.T) {
	tests := []struct {
		name string
		in   string
		site int
		want []string
	}{
		{
			name: "normalized reducing end",
			in:   "bDGlcNAc b1- N482",
			site: 482,
			want: []string{"bDGlcNAc(b1-"},
		},
		{
			name: "parenthesised reducing end",
			in:   "GlcNAc(b1-",
			site: 17,
			want: []string{"GlcNAc(b1-"},
		},
		{
			name: "split at brackets",
			in:   biantennary,
			site: 482,
			want: []string{
				"Neu5Ac(a2-6)Gal(b1-4)GlcNAc(b1-2)Man(a1-3)",
				"Neu5Ac(a2-6)Gal(b1-4)GlcNAc(b1-2)Man(a1-6)",
				"Man(b1-4)GlcNAc(b1-4)",
				"D-Fuc(a1-6)",
				"GlcNAc(b1-",
			},
		},
		{
			name: "nested brackets flatten",
			in:   "Gal(b1-4)[Gal(b1-4)[Gal(b1-3)]GlcNAc(b1-6)]Man(a1-3)Man(b1-4)GlcNAc(b1-4)GlcNAc(b1-",
			site: 5,
			want: []string{
				"Gal(b1-4)",
				"Gal(b1-4)",
				"Gal(b1-3)",
				"GlcNAc(b1-6)",
				"Man(a1-3)Man(b1-4)GlcNAc(b1-4)GlcNAc(b1-",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Parse(tt.in, tt.site)
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			if got := runStrings(g.Runs); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("runs = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseBracketFlags(t *testing.T) {
	g, err := Parse(biantennary, 482)
	if err != nil {
		t.Fatal(err)
	}
	want := []bool{false, true, false, true, false}
	for i, r := range g.Runs {
		if r.Bracketed != want[i] {
			t.Errorf("run %d Bracketed = %v, want %v", i, r.Bracketed, want[i])
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		site   int
		target error
	}{
		{"empty", "", 1, gterrors.ErrInvalidInput},
		{"zero site", "GlcNAc(b1-", 0, gterrors.ErrInvalidInput},
		{"site mismatch", "GlcNAc b1- N12", 13, gterrors.ErrInvalidInput},
		{"missing linkage", "GlcNAc", 1, gterrors.ErrInvalidInput},
		{"unbalanced bracket", "[Gal(b1-4)GlcNAc(b1-", 1, gterrors.ErrInvalidInput},
		{"bad linkage", "Gal(c1-4)GlcNAc(b1-", 1, gterrors.ErrInvalidInput},
		{"empty branch", "Gal(b1-4)[]GlcNAc(b1-", 1, gterrors.ErrGrammar},
		{"open linkage mid string", "Gal(b1-)GlcNAc(b1-", 1, gterrors.ErrGrammar},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.in, tt.site)
			if err == nil {
				t.Fatalf("Parse(%q) expected error", tt.in)
			}
			if !errors.Is(err, tt.target) {
				t.Errorf("Parse(%q) error = %v, want %v", tt.in, err, tt.target)
			}
		})
	}
}

func TestNormalized(t *testing.T) {
	g, err := Parse("Man(b1-4)GlcNAc(b1-4)GlcNAc(b1-", 482)
	if err != nil {
		t.Fatal(err)
	}
	want := "Man b1-4 GlcNAc b1-4 GlcNAc b1- N482"
	if got := g.Normalized(); got != want {
		t.Errorf("Normalized() = %q, want %q", got, want)
	}
	again, err := Parse(g.Normalized(), 482)
	if err != nil {
		t.Fatalf("re-parse normalized: %v", err)
	}
	if !reflect.DeepEqual(runStrings(again.Runs), runStrings(g.Runs)) {
		t.Errorf("normalized form does not re-parse to the same runs")
	}
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name string
		fn   func(Unit) bool
		u    Unit
		want bool
	}{
		{"reducing end", IsReducingEnd, Unit{Residue: "GlcNAc", Linkage: "b1-"}, true},
		{"reducing end stereo prefix", IsReducingEnd, Unit{Residue: "bDGlcNAc", Linkage: "b1-"}, true},
		{"reducing end closed linkage", IsReducingEnd, Unit{Residue: "GlcNAc", Linkage: "b1-4"}, false},
		{"reducing end wrong residue", IsReducingEnd, Unit{Residue: "Man", Linkage: "b1-"}, false},
		{"alpha mannose", IsAlphaMannose, Unit{Residue: "Man", Linkage: "a1-6"}, true},
		{"beta mannose", IsAlphaMannose, Unit{Residue: "Man", Linkage: "b1-4"}, false},
		{"alpha fucose", IsAlphaMannose, Unit{Residue: "D-Fuc", Linkage: "a1-6"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.u); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	man := Unit{Residue: "Man", Linkage: "b1-4"}
	glc := Unit{Residue: "GlcNAc", Linkage: "b1-4"}
	if !IsChitobioseCore(man, glc) {
		t.Error("IsChitobioseCore(Man b1-4, GlcNAc b1-4) = false")
	}
	if IsChitobioseCore(glc, man) {
		t.Error("IsChitobioseCore(GlcNAc b1-4, Man b1-4) = true")
	}
}

func TestClassifyBiantennary(t *testing.T) {
	tree, err := ParseTree(biantennary, 482)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := tree.Core.String(), "Man(b1-4)GlcNAc(b1-4)GlcNAc(b1-"; got != want {
		t.Errorf("core = %q, want %q", got, want)
	}
	if len(tree.Branches) != 2 {
		t.Fatalf("len(Branches) = %d, want 2", len(tree.Branches))
	}
	for i, b := range tree.Branches {
		if _, ok := b.(Flat); !ok {
			t.Errorf("branch %d is %T, want Flat", i+1, b)
		}
	}
	if got := runStrings(tree.Remaining); !reflect.DeepEqual(got, []string{"D-Fuc(a1-6)"}) {
		t.Errorf("remaining = %q", got)
	}
	if len(tree.Dropped) != 0 {
		t.Errorf("dropped = %d, want 0", len(tree.Dropped))
	}
}

func TestClassifyNested(t *testing.T) {
	tree, err := ParseTree(nestedArm, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(tree.Branches) != 2 {
		t.Fatalf("len(Branches) = %d, want 2", len(tree.Branches))
	}

	switch b := tree.Branches[0].(type) {
	case Nested:
		if got := b.SubCore.String(); got != "Man(a1-3)" {
			t.Errorf("sub-core = %q", got)
		}
		want := []string{"Gal(b1-4)GlcNAc(b1-2)", "Gal(b1-4)GlcNAc(b1-4)"}
		if got := runStrings(b.SubBranches); !reflect.DeepEqual(got, want) {
			t.Errorf("sub-branches = %q, want %q", got, want)
		}
		if len(b.Runs()) != 3 {
			t.Errorf("Runs() = %d, want 3", len(b.Runs()))
		}
	default:
		t.Fatalf("branch 1 is %T, want Nested", b)
	}

	if _, ok := tree.Branches[1].(Flat); !ok {
		t.Errorf("branch 2 is %T, want Flat", tree.Branches[1])
	}
	if len(tree.Remaining) != 0 {
		t.Errorf("remaining = %d runs, want 0", len(tree.Remaining))
	}
}

func TestClassifyDropsExtraBranches(t *testing.T) {
	in := "Man(a1-2)[Man(a1-3)][Man(a1-6)]Man(b1-4)GlcNAc(b1-4)GlcNAc(b1-"
	tree, err := ParseTree(in, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(tree.Branches) != MaxBranchSlots {
		t.Errorf("len(Branches) = %d, want %d", len(tree.Branches), MaxBranchSlots)
	}
	if len(tree.Dropped) != 1 {
		t.Errorf("len(Dropped) = %d, want 1", len(tree.Dropped))
	}
}

func TestClassifyErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"no core", "Gal(b1-4)[Man(a1-3)]Man(a1-6)"},
		{"core not at reducing end", "Man(b1-4)GlcNAc(b1-4)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTree(tt.in, 1)
			if !errors.Is(err, gterrors.ErrGrammar) {
				t.Errorf("ParseTree(%q) error = %v, want ErrGrammar", tt.in, err)
			}
		})
	}
}

func TestParseIdempotent(t *testing.T) {
	a, err := ParseTree(biantennary, 482)
	if err != nil {
		t.Fatal(err)
	}
	b, err := ParseTree(biantennary, 482)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("parsing the same string twice gave different trees")
	}
}
