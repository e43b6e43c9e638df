// Package iupac parses IUPAC condensed N-glycan strings such as
//
//	Neu5Ac(a2-6)Gal(b1-4)GlcNAc(b1-2)Man(a1-3)[...]Man(b1-4)GlcNAc(b1-4)GlcNAc(b1-
//
// into runs of residue/linkage units and classifies them into the conserved
// core, up to two antenna slots and a remaining slot for core fucosylation.
package iupac

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/GlycoTorsion/core/errors"
)

// glycanGrammar is the participle grammar for a glycan string.
// Examples: "GlcNAc(b1-", "Man(b1-4)GlcNAc(b1-4)GlcNAc(b1-", "bDGlcNAc b1- N482"
//
//nolint:govet // participle grammar tags are not standard struct tags
type glycanGrammar struct {
	Segments []*segmentGrammar `@@*`
	Site     *string           `@Site?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type segmentGrammar struct {
	Group []*segmentGrammar `  "[" @@* "]"`
	Unit  *unitGrammar      `| @@`
}

//nolint:govet // participle grammar tags are not standard struct tags
type unitGrammar struct {
	Pos     lexer.Position
	Residue string `@Residue`
	Linkage string `( "(" @Linkage ")"? | @Linkage )`
}

// glycanLexer defines the lexer for glycan strings.
// Note: Site and Linkage come before Residue so "N482" and "b1-4" are not
// read as residue names.
var glycanLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Site", Pattern: `N[0-9]+`},
	{Name: "Linkage", Pattern: `[ab][0-9]-[0-9]?`},
	{Name: "Residue", Pattern: `[A-Za-z][A-Za-z0-9]*(-[A-Za-z][A-Za-z0-9]*)*`},
	{Name: "Punct", Pattern: `[()\[\]]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// glycanParser is the participle parser for glycan strings.
var glycanParser = participle.MustBuild[glycanGrammar](
	participle.Lexer(glycanLexer),
	participle.Elide("Whitespace"),
)

// Unit is one residue together with the linkage to its parent.
type Unit struct {
	Residue string // e.g. "GlcNAc", "bDGlcNAc", "D-Fuc"
	Linkage string // e.g. "b1-4"; "b1-" is the open N-glycosidic bond
	Offset  int    // byte offset in the source string
}

// Run is a maximal sequence of units uninterrupted by a bracket.
type Run struct {
	Units     []Unit
	Bracketed bool
}

// Tokens returns the run flattened in document order:
// residue, linkage, residue, linkage, ...
func (r Run) Tokens() []string {
	out := make([]string, 0, 2*len(r.Units))
	for _, u := range r.Units {
		out = append(out, u.Residue, u.Linkage)
	}
	return out
}

// String renders the run in parenthesised notation.
func (r Run) String() string {
	var sb strings.Builder
	for _, u := range r.Units {
		sb.WriteString(u.Residue)
		sb.WriteString("(")
		sb.WriteString(u.Linkage)
		if !u.Open() {
			sb.WriteString(")")
		}
	}
	return sb.String()
}

// Open reports whether the linkage has no parent position (b1-).
func (u Unit) Open() bool {
	return strings.HasSuffix(u.Linkage, "-")
}

// Glycan is a parsed glycan string attached to one asparagine.
type Glycan struct {
	Source string
	Site   int
	Runs   []Run
}

// SiteLabel returns the synthetic attachment token, e.g. "N482".
func (g *Glycan) SiteLabel() string {
	return "N" + strconv.Itoa(g.Site)
}

// Normalized renders the glycan in space separated notation with the
// attachment token appended, e.g. "GlcNAc b1- N482".
func (g *Glycan) Normalized() string {
	parts := make([]string, 0)
	for _, r := range g.Runs {
		parts = append(parts, r.Tokens()...)
	}
	parts = append(parts, g.SiteLabel())
	return strings.Join(parts, " ")
}

// Parse parses a glycan string attached at the given asparagine residue.
// Both parenthesised ("Gal(b1-4)GlcNAc(b1-") and space separated
// ("GlcNAc b1- N482") notation are accepted. A trailing site token must
// match site.
func Parse(s string, site int) (*Glycan, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.NewValidation("glycan", "empty glycan string")
	}
	if site <= 0 {
		return nil, errors.NewValidation("site", fmt.Sprintf("attachment site must be positive, got %d", site))
	}

	parsed, err := glycanParser.ParseString("", s)
	if err != nil {
		return nil, errors.NewParse("IUPAC", "", fmt.Sprintf("invalid glycan %q: %v", s, err))
	}

	if parsed.Site != nil {
		explicit, _ := strconv.Atoi(strings.TrimPrefix(*parsed.Site, "N"))
		if explicit != site {
			return nil, &errors.ValidationError{
				Field:   "site",
				Value:   *parsed.Site,
				Message: fmt.Sprintf("glycan is attached at %s but site %d was requested", *parsed.Site, site),
			}
		}
	}

	g := &Glycan{Source: s, Site: site}
	if err := flatten(parsed.Segments, false, &g.Runs); err != nil {
		return nil, err
	}
	if len(g.Runs) == 0 {
		return nil, errors.NewGrammar(s, "no residues")
	}

	last := g.Runs[len(g.Runs)-1]
	for i, r := range g.Runs {
		for j, u := range r.Units {
			isFinal := i == len(g.Runs)-1 && j == len(last.Units)-1
			if u.Open() && !isFinal {
				return nil, errors.NewGrammar(r.String(), fmt.Sprintf("open linkage %s before the attachment site", u.Linkage))
			}
		}
	}
	return g, nil
}

// flatten splits the segment tree into runs at every bracket boundary.
func flatten(segs []*segmentGrammar, bracketed bool, runs *[]Run) error {
	cur := Run{Bracketed: bracketed}
	closeRun := func() {
		if len(cur.Units) > 0 {
			*runs = append(*runs, cur)
		}
		cur = Run{Bracketed: bracketed}
	}

	for _, seg := range segs {
		if seg.Unit != nil {
			cur.Units = append(cur.Units, Unit{
				Residue: seg.Unit.Residue,
				Linkage: seg.Unit.Linkage,
				Offset:  seg.Unit.Pos.Offset,
			})
			continue
		}
		closeRun()
		if len(seg.Group) == 0 {
			return errors.NewGrammar("[]", "empty branch")
		}
		if err := flatten(seg.Group, true, runs); err != nil {
			return err
		}
	}
	closeRun()
	return nil
}
