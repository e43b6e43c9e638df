package glycan

import "strings"

// Triplet is one child-bond-parent step before label conversion, e.g.
// {"B-GlcNAc2", "1-4", "B-GlcNAc1"}.
type Triplet struct {
	Child  string
	Code   string
	Parent string
}

// Triplets walks tokens ordered parent first ([parent, bond, child, bond,
// child, ...]) with a window of three and stride two. The first window's
// parent is taken as is; later parents are the previous child carrying the
// anomeric prefix of the bond that attached it. Fewer than three tokens
// give no triplets.
func Triplets(tokens []string) []Triplet {
	if len(tokens) < 3 {
		return nil
	}
	out := make([]Triplet, 0, (len(tokens)-1)/2)
	for i := 0; i+2 < len(tokens); i += 2 {
		parent, bond, child := tokens[i], tokens[i+1], tokens[i+2]
		if i > 0 {
			parent = anomer(tokens[i-1]) + "-" + parent
		}
		out = append(out, Triplet{
			Child:  anomer(bond) + "-" + child,
			Code:   bond[1:],
			Parent: parent,
		})
	}
	return out
}

// anomer returns the capitalised anomeric letter of a bond token.
func anomer(bond string) string {
	if bond == "" {
		return ""
	}
	return strings.ToUpper(bond[:1])
}
