// Package glycan numbers the residues of a classified N-glycan and
// assembles its linkage table: one row per glycosidic bond, starting with
// the N-glycosidic bond to the asparagine.
package glycan

import (
	"encoding/json"
	"fmt"

	"github.com/FocuswithJustin/GlycoTorsion/core/errors"
	"github.com/FocuswithJustin/GlycoTorsion/core/label"
)

// LinkageCode is the position pair of a glycosidic bond, e.g. "1-4".
type LinkageCode string

// Supported linkage codes.
const (
	LinkageAsn LinkageCode = "1-" // N-glycosidic bond to the asparagine
	Linkage12  LinkageCode = "1-2"
	Linkage13  LinkageCode = "1-3"
	Linkage14  LinkageCode = "1-4"
	Linkage16  LinkageCode = "1-6"
	Linkage23  LinkageCode = "2-3"
	Linkage26  LinkageCode = "2-6"
)

// LinkageCodes lists every supported code.
var LinkageCodes = []LinkageCode{LinkageAsn, Linkage12, Linkage13, Linkage14, Linkage16, Linkage23, Linkage26}

// Valid reports whether c is a supported linkage code.
func (c LinkageCode) Valid() bool {
	for _, k := range LinkageCodes {
		if c == k {
			return true
		}
	}
	return false
}

// Record is one glycosidic bond in IUPAC labels.
type Record struct {
	Child   label.Label
	Linkage LinkageCode
	Parent  label.Label
}

// String renders the record as child(code)parent.
func (r Record) String() string {
	return fmt.Sprintf("%s(%s)%s", r.Child, r.Linkage, r.Parent)
}

// Row is one linkage table row in structural residue names.
type Row struct {
	Glycan2 string      `json:"glycan2"`
	Index2  string      `json:"index2"`
	Linkage LinkageCode `json:"linkage"`
	Glycan1 string      `json:"glycan1"`
	Index1  string      `json:"index1"`
}

// Chain is the linkage table of one glycan. It is immutable: accessors
// return copies.
type Chain struct {
	key     string
	site    int
	source  string
	records []Record
	rows    []Row
}

// Key returns the chain identifier.
func (c *Chain) Key() string { return c.key }

// Site returns the asparagine residue number the chain is attached to.
func (c *Chain) Site() int { return c.site }

// Source returns the glycan string the chain was built from.
func (c *Chain) Source() string { return c.source }

// Len returns the number of linkage rows.
func (c *Chain) Len() int { return len(c.rows) }

// Records returns the bonds in IUPAC labels, in assembly order.
func (c *Chain) Records() []Record {
	return append([]Record(nil), c.records...)
}

// Rows returns the linkage table in assembly order.
func (c *Chain) Rows() []Row {
	return append([]Row(nil), c.rows...)
}

// withKey returns a chain sharing c's rows under another key.
func (c *Chain) withKey(key string) *Chain {
	if c.key == key {
		return c
	}
	cp := *c
	cp.key = key
	return &cp
}

// Validate checks that residue indices are unique and that every parent is
// the attachment site or a residue introduced by an earlier row.
func (c *Chain) Validate() error {
	seen := make(map[string]label.Label, len(c.records))
	for i, r := range c.records {
		if prev, dup := seen[r.Child.Index]; dup {
			return &errors.ValidationError{
				Field:   "index",
				Value:   r.Child.Index,
				Message: fmt.Sprintf("row %d reuses index %s of %s", i, r.Child.Index, prev),
			}
		}
		if !r.Parent.IsSite() {
			if p, ok := seen[r.Parent.Index]; !ok || p != r.Parent {
				return &errors.ValidationError{
					Field:   "parent",
					Value:   r.Parent.String(),
					Message: fmt.Sprintf("row %d refers to a parent not introduced earlier", i),
				}
			}
		}
		seen[r.Child.Index] = r.Child
	}
	return nil
}

type chainJSON struct {
	Key    string `json:"key"`
	Site   int    `json:"site"`
	Source string `json:"iupac,omitempty"`
	Rows   []Row  `json:"rows"`
}

// MarshalJSON encodes the chain with its rows.
func (c *Chain) MarshalJSON() ([]byte, error) {
	return json.Marshal(chainJSON{Key: c.key, Site: c.site, Source: c.source, Rows: c.rows})
}
