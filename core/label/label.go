// Package label converts glycan residue labels between IUPAC notation
// (A-Neu5Ac7, B-GlcNAc1, A-D-Fuc12, N482) and the structural residue names
// used in topology files (ANE5A7, BGLCN1, AFUC12, ASN482).
package label

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/FocuswithJustin/GlycoTorsion/core/errors"
)

// Mode selects the direction of a conversion.
type Mode int

const (
	// ModeNone leaves labels untouched.
	ModeNone Mode = iota
	// ModePDB converts IUPAC names to structural names and α/β to A/B.
	ModePDB
	// ModeIUPAC converts structural names to IUPAC names and A/B to α/β.
	ModeIUPAC
)

// String returns the flag spelling of the mode.
func (m Mode) String() string {
	switch m {
	case ModePDB:
		return "pdb"
	case ModeIUPAC:
		return "iupac"
	default:
		return "none"
	}
}

// ParseMode maps "pdb", "iupac" or "none" (or "") to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ModeNone, nil
	case "pdb":
		return ModePDB, nil
	case "iupac":
		return ModeIUPAC, nil
	}
	return ModeNone, errors.NewValidation("mode", fmt.Sprintf("unknown conversion mode %q", s))
}

// Residue name table, IUPAC to structural.
var toPDB = map[string]string{
	"N":      "ASN",
	"GlcNAc": "GLCN",
	"Man":    "MAN",
	"Gal":    "GAL",
	"Neu5Ac": "NE5A",
	"D-Fuc":  "FUC",
}

var toIUPAC = func() map[string]string {
	m := make(map[string]string, len(toPDB))
	for k, v := range toPDB {
		m[v] = k
	}
	return m
}()

// Anomer tables.
var (
	anomerToPDB   = map[string]string{"α": "A", "β": "B"}
	anomerToIUPAC = map[string]string{"A": "α", "B": "β"}
)

// displayNames is used for human readable residue names; fucose is shown
// without its configuration marker.
var displayNames = map[string]string{
	"GLCN": "GlcNAc",
	"MAN":  "Man",
	"GAL":  "Gal",
	"NE5A": "Neu5Ac",
	"FUC":  "Fuc",
}

var (
	siteRe       = regexp.MustCompile(`^(N|ASN)(\d+)$`)
	sialicRe     = regexp.MustCompile(`^(.*?)-?(Neu5Ac|NE5A)(\d+)$`)
	fucoseRe     = regexp.MustCompile(`^(.+?)-(D-[A-Za-z]+)(\d+)$`)
	dashedRe     = regexp.MustCompile(`^([^-]+)-([A-Za-z]+)(\d+)$`)
	dashlessRe   = regexp.MustCompile(`^(A|B|α|β)([A-Z]+)(\d+)$`)
	stereoRe     = regexp.MustCompile(`^[ab]?[DL]([A-Z].*)$`)
	structuralRe = regexp.MustCompile(`^(A|B)([A-Z0-9]+)$`)
)

// Label is one residue label split into anomeric prefix, residue name and
// index. Site labels carry no prefix.
type Label struct {
	Anomer string
	Name   string
	Index  string
}

// String renders the label. Structural names are written without a
// separator (BGLCN1), IUPAC names with one (B-GlcNAc1).
func (l Label) String() string {
	if l.Anomer == "" {
		return l.Name + l.Index
	}
	if _, ok := toIUPAC[l.Name]; ok {
		return l.Anomer + l.Name + l.Index
	}
	return l.Anomer + "-" + l.Name + l.Index
}

// Prefixed returns the anomeric prefix joined to the residue name, the
// form stored in linkage tables (BGLCN, ASN).
func (l Label) Prefixed() string {
	return l.Anomer + l.Name
}

// IsSite reports whether the label names the protein attachment residue.
func (l Label) IsSite() bool {
	return l.Anomer == "" && (l.Name == "N" || l.Name == "ASN")
}

// Parse splits a label into its parts. Recognised shapes, tried in order:
// attachment site (N482, ASN482), sialic acid (A-Neu5Ac7, ANE5A7),
// fucose (A-D-Fuc12), dashed (B-GlcNAc1) and structural (BGLCN1).
func Parse(s string) (Label, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Label{}, errors.NewValidation("label", "empty label")
	}

	if m := siteRe.FindStringSubmatch(s); m != nil {
		return Label{Name: m[1], Index: m[2]}, nil
	}
	if strings.Contains(s, "Neu5Ac") || strings.Contains(s, "NE5A") {
		m := sialicRe.FindStringSubmatch(s)
		if m == nil || m[1] == "" {
			return Label{}, errors.NewParse("label", "", fmt.Sprintf("malformed sialic acid label %q", s))
		}
		return Label{Anomer: m[1], Name: m[2], Index: m[3]}, nil
	}
	if strings.Contains(s, "-D-") {
		m := fucoseRe.FindStringSubmatch(s)
		if m == nil {
			return Label{}, errors.NewParse("label", "", fmt.Sprintf("malformed fucose label %q", s))
		}
		return Label{Anomer: m[1], Name: m[2], Index: m[3]}, nil
	}
	if m := dashedRe.FindStringSubmatch(s); m != nil {
		return Label{Anomer: m[1], Name: m[2], Index: m[3]}, nil
	}
	if m := dashlessRe.FindStringSubmatch(s); m != nil {
		return Label{Anomer: m[1], Name: m[2], Index: m[3]}, nil
	}
	return Label{}, errors.NewParse("label", "", fmt.Sprintf("unrecognised label %q", s))
}

// Convert translates the label into the requested notation. Names or
// anomeric prefixes missing from the tables fail with a LookupError.
func (l Label) Convert(mode Mode) (Label, error) {
	switch mode {
	case ModeNone:
		return l, nil
	case ModePDB:
		anomer, err := convertAnomer(l.Anomer, anomerToPDB, "A", "B")
		if err != nil {
			return Label{}, err
		}
		name, err := pdbName(l.Name)
		if err != nil {
			return Label{}, err
		}
		return Label{Anomer: anomer, Name: name, Index: l.Index}, nil
	case ModeIUPAC:
		anomer, err := convertAnomer(l.Anomer, anomerToIUPAC, "α", "β")
		if err != nil {
			return Label{}, err
		}
		name, ok := toIUPAC[l.Name]
		if !ok {
			return Label{}, errors.NewLookup("structural residue", l.Name)
		}
		return Label{Anomer: anomer, Name: name, Index: l.Index}, nil
	}
	return Label{}, errors.NewUnsupported("conversion mode", fmt.Sprintf("%d", int(mode)))
}

// Convert parses s and converts it, returning the prefixed residue name
// and the index as the two columns of a linkage table.
func Convert(s string, mode Mode) (name, index string, err error) {
	l, err := Parse(s)
	if err != nil {
		return "", "", err
	}
	c, err := l.Convert(mode)
	if err != nil {
		return "", "", fmt.Errorf("convert %q: %w", s, err)
	}
	return c.Prefixed(), c.Index, nil
}

// PDBName returns the structural name for an IUPAC residue name, accepting
// names carrying a stereo prefix such as bDGlcNAc.
func PDBName(name string) (string, error) {
	return pdbName(name)
}

// Display renders a structural residue name with an anomeric prefix
// (AGLCN) in readable form (α-GlcNAc).
func Display(resname string) (string, error) {
	m := structuralRe.FindStringSubmatch(resname)
	if m == nil {
		return "", errors.NewLookup("residue", resname)
	}
	name, ok := displayNames[m[2]]
	if !ok {
		return "", errors.NewLookup("residue", m[2])
	}
	return anomerToIUPAC[m[1]] + "-" + name, nil
}

// IsGlycanResidue reports whether a structural residue name (BGLCN, ANE5A)
// is a known glycan residue.
func IsGlycanResidue(resname string) bool {
	m := structuralRe.FindStringSubmatch(resname)
	if m == nil {
		return false
	}
	_, ok := displayNames[m[2]]
	return ok
}

func convertAnomer(a string, table map[string]string, keep ...string) (string, error) {
	if a == "" {
		return "", nil
	}
	for _, k := range keep {
		if a == k {
			return a, nil
		}
	}
	if v, ok := table[a]; ok {
		return v, nil
	}
	return "", errors.NewLookup("anomer", a)
}

func pdbName(name string) (string, error) {
	if v, ok := toPDB[name]; ok {
		return v, nil
	}
	if m := stereoRe.FindStringSubmatch(name); m != nil {
		if v, ok := toPDB[m[1]]; ok {
			return v, nil
		}
	}
	return "", errors.NewLookup("residue", name)
}
