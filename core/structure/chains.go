package structure

import (
	"fmt"
	"strconv"

	"github.com/FocuswithJustin/GlycoTorsion/core/label"
)

// DefaultCore is the N-glycan core as structural residue names, reducing
// end first.
var DefaultCore = []string{"BGLCN", "BGLCN", "BMAN"}

// AtomRange is the atom span of one glycan residue. Label is the residue
// name followed by its 1-based position within the chain (BGLCN1), which
// is how linkage rows refer to it.
type AtomRange struct {
	Label   string `json:"label"`
	ResName string `json:"resname"`
	Index   int    `json:"index"`
	ResID   int    `json:"resid"`
	First   int    `json:"first"` // atom ID, 1-based
	Last    int    `json:"last"`
}

// GlycanChain is one glycan found in a structure.
type GlycanChain struct {
	Name   string      `json:"name"` // "chain I", "chain II", ...
	Ranges []AtomRange `json:"ranges"`
}

// FirstResID returns the residue number of the reducing end.
func (c GlycanChain) FirstResID() int { return c.Ranges[0].ResID }

// LastResID returns the residue number of the last residue.
func (c GlycanChain) LastResID() int { return c.Ranges[len(c.Ranges)-1].ResID }

// Range returns the atom range for a residue name and chain position.
func (c GlycanChain) Range(resname string, index int) (AtomRange, bool) {
	if index < 1 || index > len(c.Ranges) {
		return AtomRange{}, false
	}
	r := c.Ranges[index-1]
	if r.ResName != resname {
		return AtomRange{}, false
	}
	return r, true
}

// FindChains scans the glycan residues of s for occurrences of core and
// splits them into chains, one per occurrence. Residues before the first
// core are ignored. A nil core means DefaultCore.
func (s *Structure) FindChains(core []string) []GlycanChain {
	if len(core) == 0 {
		core = DefaultCore
	}

	var glycans []Residue
	for _, r := range s.Residues() {
		if label.IsGlycanResidue(r.ResName) {
			glycans = append(glycans, r)
		}
	}

	var starts []int
	for i := 0; i+len(core) <= len(glycans); i++ {
		if matchCore(glycans[i:i+len(core)], core) {
			starts = append(starts, i)
			i += len(core) - 1
		}
	}

	chains := make([]GlycanChain, 0, len(starts))
	for k, start := range starts {
		end := len(glycans)
		if k+1 < len(starts) {
			end = starts[k+1]
		}
		c := GlycanChain{Name: "chain " + roman(k+1)}
		for n, r := range glycans[start:end] {
			c.Ranges = append(c.Ranges, AtomRange{
				Label:   r.ResName + strconv.Itoa(n+1),
				ResName: r.ResName,
				Index:   n + 1,
				ResID:   r.ResID,
				First:   r.First,
				Last:    r.Last,
			})
		}
		chains = append(chains, c)
	}
	return chains
}

func matchCore(window []Residue, core []string) bool {
	for i, name := range core {
		if window[i].ResName != name {
			return false
		}
	}
	return true
}

func roman(n int) string {
	if n <= 0 || n >= 4000 {
		return fmt.Sprint(n)
	}
	vals := []int{1000, 900, 500, 400, 100, 90, 50, 40, 10, 9, 5, 4, 1}
	syms := []string{"M", "CM", "D", "CD", "C", "XC", "L", "XL", "X", "IX", "V", "IV", "I"}
	out := ""
	for i, v := range vals {
		for n >= v {
			out += syms[i]
			n -= v
		}
	}
	return out
}
