package glycan

import (
	"regexp"
	"strconv"
	"strings"
)

// Cursor is the numbering position threaded through the core and every
// branch slot. Last is the highest index assigned so far and Label the
// token that received it.
type Cursor struct {
	Last  int
	Label string
}

// Next returns the index the next unnumbered residue receives.
func (c Cursor) Next() int { return c.Last + 1 }

const sialicName = "Neu5Ac"

var (
	linkageTokenRe = regexp.MustCompile(`^[ab]?[0-9]-[0-9]?$`)
	trailingIntRe  = regexp.MustCompile(`[0-9]+$`)
	stereoPrefixRe = regexp.MustCompile(`^[ab]?[DL]`)
)

// IsLinkageToken reports whether tok is a bond token such as "b1-4".
func IsLinkageToken(tok string) bool {
	return linkageTokenRe.MatchString(tok)
}

// isSialic reports whether tok starts with the sialic acid name, allowing
// for a stereo prefix. The 5 in Neu5Ac is not a residue index.
func isSialic(tok string) bool {
	if strings.HasPrefix(tok, sialicName) {
		return true
	}
	if loc := stereoPrefixRe.FindStringIndex(tok); loc != nil {
		return strings.HasPrefix(tok[loc[1]:], sialicName)
	}
	return false
}

// Number assigns indices to residue tokens that lack one, continuing from
// c. Bond tokens and tokens that already end in an integer are kept, except
// sialic acid tokens, which are always renumbered. The returned cursor
// continues where this call stopped.
func Number(tokens []string, c Cursor) ([]string, Cursor) {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		switch {
		case IsLinkageToken(tok):
			out[i] = tok
		case isSialic(tok):
			n := c.Next()
			out[i] = tok[:strings.Index(tok, sialicName)+len(sialicName)] + strconv.Itoa(n)
			c = Cursor{Last: n, Label: out[i]}
		case trailingIntRe.MatchString(tok):
			out[i] = tok
		default:
			n := c.Next()
			out[i] = tok + strconv.Itoa(n)
			c = Cursor{Last: n, Label: out[i]}
		}
	}
	return out, c
}
