package glycan

import (
	"context"
	"fmt"

	"github.com/FocuswithJustin/GlycoTorsion/core/cache"
	"github.com/FocuswithJustin/GlycoTorsion/core/errors"
)

// Input is one glycan to map: a chain key, its IUPAC string and the
// asparagine residue number it is attached to.
type Input struct {
	Key   string `json:"key"`
	IUPAC string `json:"iupac"`
	Site  int    `json:"site"`
}

// Inputs pairs chain keys with their glycan strings and the parallel list
// of attachment sites.
func Inputs(keys []string, glycans map[string]string, sites []int) ([]Input, error) {
	if len(keys) != len(sites) {
		return nil, errors.NewValidation("sites", fmt.Sprintf("%d chains but %d attachment sites", len(keys), len(sites)))
	}
	out := make([]Input, 0, len(keys))
	for i, k := range keys {
		s, ok := glycans[k]
		if !ok {
			return nil, errors.NewLookup("chain", k)
		}
		out = append(out, Input{Key: k, IUPAC: s, Site: sites[i]})
	}
	return out, nil
}

type mapKey struct {
	iupac string
	site  int
}

// Mapper builds chains and memoises them by glycan string and site, so
// repeated glycoforms are parsed once. It is safe for concurrent use.
type Mapper struct {
	chains cache.Cache[mapKey, *Chain]
}

// NewMapper creates a Mapper with the given cache configuration.
func NewMapper(config cache.Config) *Mapper {
	return &Mapper{chains: cache.NewLRUCache[mapKey, *Chain](config)}
}

// Map returns the chain for in, building it on first use.
func (m *Mapper) Map(in Input) (*Chain, error) {
	c, err := m.chains.GetOrLoad(mapKey{in.IUPAC, in.Site}, func() (*Chain, error) {
		return Map(in.Key, in.IUPAC, in.Site)
	})
	if err != nil {
		return nil, fmt.Errorf("chain %s: %w", in.Key, err)
	}
	return c.withKey(in.Key), nil
}

// MapAll maps inputs in order and stops at the first failing chain.
func (m *Mapper) MapAll(ctx context.Context, inputs []Input) ([]*Chain, error) {
	out := make([]*Chain, 0, len(inputs))
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, err := m.Map(in)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Stats reports cache usage.
func (m *Mapper) Stats() cache.Stats {
	return m.chains.Stats()
}

// MapAll maps inputs with a fresh Mapper.
func MapAll(ctx context.Context, inputs []Input) ([]*Chain, error) {
	return NewMapper(cache.DefaultConfig()).MapAll(ctx, inputs)
}
