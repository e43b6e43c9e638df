// Package input reads glycan chain definitions from JSON or XML files.
//
// JSON files list chains explicitly:
//
//	{"chains": [{"key": "A", "iupac": "GlcNAc(b1-", "site": 482}]}
//
// or use the keyed form, where order and sites are parallel lists:
//
//	{"glycans": {"A": "GlcNAc(b1-"}, "order": ["A"], "sites": [482]}
//
// XML files hold one chain element per glycan:
//
//	<glycoprotein>
//	  <chain key="A" site="482">GlcNAc(b1-</chain>
//	</glycoprotein>
package input

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/GlycoTorsion/core/errors"
	"github.com/FocuswithJustin/GlycoTorsion/core/glycan"
	"github.com/FocuswithJustin/GlycoTorsion/core/xml"
	"github.com/FocuswithJustin/GlycoTorsion/internal/validation"
)

// chainXPath selects chain elements anywhere in an XML file.
const chainXPath = "//chain"

type jsonFile struct {
	Chains  []glycan.Input    `json:"chains"`
	Glycans map[string]string `json:"glycans"`
	Order   []string          `json:"order"`
	Sites   []int             `json:"sites"`
}

// Load reads the chain file at path. The format follows the extension.
func Load(path string) ([]glycan.Input, error) {
	ft, err := validation.ValidateInputFile(path, validation.MaxChainFileSize,
		validation.FileTypeJSON, validation.FileTypeXML)
	if err != nil {
		return nil, fmt.Errorf("chain file %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}

	var inputs []glycan.Input
	switch ft {
	case validation.FileTypeXML:
		inputs, err = DecodeXML(data)
	default:
		inputs, err = DecodeJSON(bytes.NewReader(data))
	}
	if err != nil {
		var perr *errors.ParseError
		if errors.As(err, &perr) && perr.Path == "" {
			perr.Path = path
		}
		return nil, err
	}
	return inputs, nil
}

// DecodeJSON reads chains in either JSON form.
func DecodeJSON(r io.Reader) ([]glycan.Input, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var f jsonFile
	if err := dec.Decode(&f); err != nil {
		return nil, errors.NewParse("JSON", "", err.Error())
	}

	var inputs []glycan.Input
	switch {
	case f.Chains != nil && f.Glycans != nil:
		return nil, errors.NewValidation("chains", `use either "chains" or "glycans", not both`)
	case f.Glycans != nil:
		var err error
		if inputs, err = glycan.Inputs(f.Order, f.Glycans, f.Sites); err != nil {
			return nil, err
		}
	default:
		inputs = f.Chains
	}
	if err := check(inputs); err != nil {
		return nil, err
	}
	return inputs, nil
}

// DecodeXML reads chain elements in document order.
func DecodeXML(data []byte) ([]glycan.Input, error) {
	doc, err := xml.Parse(data)
	if err != nil {
		return nil, errors.NewParse("XML", "", err.Error())
	}
	nodes, err := doc.XPath(chainXPath)
	if err != nil {
		return nil, err
	}

	inputs := make([]glycan.Input, 0, len(nodes))
	for i, n := range nodes {
		key, ok := n.Attr("key")
		if !ok {
			return nil, errors.NewValidation("chain", fmt.Sprintf("element %d has no key attribute", i+1))
		}
		raw, ok := n.Attr("site")
		if !ok {
			return nil, errors.NewValidation("chain "+key, "missing site attribute")
		}
		site, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, errors.NewValidation("chain "+key, fmt.Sprintf("site %q is not a residue number", raw))
		}
		inputs = append(inputs, glycan.Input{Key: key, IUPAC: n.Text(), Site: site})
	}
	if err := check(inputs); err != nil {
		return nil, err
	}
	return inputs, nil
}

func check(inputs []glycan.Input) error {
	if len(inputs) == 0 {
		return errors.NewValidation("chains", "no chains defined")
	}
	seen := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		switch {
		case strings.TrimSpace(in.Key) == "":
			return errors.NewValidation("chain", "empty key")
		case seen[in.Key]:
			return errors.NewValidation("chain "+in.Key, "duplicate key")
		case strings.TrimSpace(in.IUPAC) == "":
			return errors.NewValidation("chain "+in.Key, "empty glycan string")
		case in.Site <= 0:
			return errors.NewValidation("chain "+in.Key, fmt.Sprintf("site %d is not a residue number", in.Site))
		}
		seen[in.Key] = true
	}
	return nil
}
