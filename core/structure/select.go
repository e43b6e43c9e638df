package structure

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/GlycoTorsion/core/errors"
)

// selectionGrammar is the participle grammar for atom selections.
// Examples: "bynum 4440:4461 and name C1", "resid 482 and name ND2"
//
//nolint:govet // participle grammar tags are not standard struct tags
type selectionGrammar struct {
	Clauses []*clauseGrammar `@@ ( "and" @@ )*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type clauseGrammar struct {
	ByNum   *rangeGrammar `  "bynum" @@`
	ResID   *rangeGrammar `| "resid" @@`
	Name    *string       `| "name" @Ident`
	ResName *string       `| "resname" @Ident`
}

//nolint:govet // participle grammar tags are not standard struct tags
type rangeGrammar struct {
	From int  `@Int`
	To   *int `( ":" @Int )?`
}

// selectionLexer defines the lexer for atom selections.
// Note: Ident comes first and requires a letter so "482" stays an Int while
// atom names such as "1HB" or "H1'" stay whole.
var selectionLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Ident", Pattern: `[0-9]*[A-Za-z_'][A-Za-z0-9_']*`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Punct", Pattern: `:`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var selectionParser = participle.MustBuild[selectionGrammar](
	participle.Lexer(selectionLexer),
	participle.Elide("Whitespace"),
)

// Span is an inclusive integer range.
type Span struct {
	From, To int
}

func (s Span) contains(v int) bool { return v >= s.From && v <= s.To }

// Selection is a parsed atom selection: every set field must match.
type Selection struct {
	ByNum   *Span
	ResID   *Span
	Name    string
	ResName string
}

// ParseSelection parses a selection query.
func ParseSelection(query string) (*Selection, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.NewValidation("selection", "empty selection")
	}
	g, err := selectionParser.ParseString("", query)
	if err != nil {
		return nil, errors.NewParse("selection", "", fmt.Sprintf("%q: %v", query, err))
	}
	sel := &Selection{}
	for _, c := range g.Clauses {
		switch {
		case c.ByNum != nil:
			if sel.ByNum != nil {
				return nil, errors.NewValidation("selection", fmt.Sprintf("%q: bynum given twice", query))
			}
			sp, err := c.ByNum.span(query)
			if err != nil {
				return nil, err
			}
			sel.ByNum = &sp
		case c.ResID != nil:
			if sel.ResID != nil {
				return nil, errors.NewValidation("selection", fmt.Sprintf("%q: resid given twice", query))
			}
			sp, err := c.ResID.span(query)
			if err != nil {
				return nil, err
			}
			sel.ResID = &sp
		case c.Name != nil:
			sel.Name = *c.Name
		case c.ResName != nil:
			sel.ResName = *c.ResName
		}
	}
	return sel, nil
}

func (r *rangeGrammar) span(query string) (Span, error) {
	sp := Span{From: r.From, To: r.From}
	if r.To != nil {
		sp.To = *r.To
	}
	if sp.To < sp.From {
		return Span{}, errors.NewValidation("selection", fmt.Sprintf("%q: empty range %d:%d", query, sp.From, sp.To))
	}
	return sp, nil
}

// Match reports whether atom a satisfies every clause.
func (s *Selection) Match(a Atom) bool {
	if s.ByNum != nil && !s.ByNum.contains(a.ID) {
		return false
	}
	if s.ResID != nil && !s.ResID.contains(a.ResID) {
		return false
	}
	if s.Name != "" && s.Name != a.Name {
		return false
	}
	if s.ResName != "" && s.ResName != a.ResName {
		return false
	}
	return true
}

// String renders the selection in canonical clause order.
func (s *Selection) String() string {
	var parts []string
	span := func(kw string, sp *Span) {
		if sp.From == sp.To {
			parts = append(parts, kw+" "+strconv.Itoa(sp.From))
			return
		}
		parts = append(parts, fmt.Sprintf("%s %d:%d", kw, sp.From, sp.To))
	}
	if s.ByNum != nil {
		span("bynum", s.ByNum)
	}
	if s.ResID != nil {
		span("resid", s.ResID)
	}
	if s.ResName != "" {
		parts = append(parts, "resname "+s.ResName)
	}
	if s.Name != "" {
		parts = append(parts, "name "+s.Name)
	}
	return strings.Join(parts, " and ")
}

// Select returns the 0-based indices of the atoms matching query.
func (s *Structure) Select(query string) ([]int, error) {
	sel, err := ParseSelection(query)
	if err != nil {
		return nil, err
	}
	var out []int
	for i, a := range s.Atoms {
		if sel.Match(a) {
			out = append(out, i)
		}
	}
	return out, nil
}

// SelectAtoms is Select under the name the torsion stage expects.
func (s *Structure) SelectAtoms(query string) ([]int, error) {
	return s.Select(query)
}
