// Package structure holds the atoms and coordinate frames of a molecular
// structure read from GROMACS .gro or PDB files, and answers the atom
// selection and dihedral queries the torsion stage needs.
package structure

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/GlycoTorsion/core/errors"
	"github.com/FocuswithJustin/GlycoTorsion/internal/logging"
)

// Vec3 is a position in the units of the source file (nm for .gro,
// Ångström for PDB).
type Vec3 [3]float64

// Atom is one atom of the topology. ID is the 1-based position in the
// file, which is what "bynum" selections refer to.
type Atom struct {
	ID      int
	Name    string
	ResName string
	ResID   int
}

// Residue is a contiguous run of atoms sharing residue number and name.
type Residue struct {
	ResID   int
	ResName string
	First   int // ID of the first atom
	Last    int // ID of the last atom
}

// Structure is a topology with one or more coordinate frames.
type Structure struct {
	Title  string
	Atoms  []Atom
	Frames [][]Vec3
}

// FrameCount returns the number of coordinate frames.
func (s *Structure) FrameCount() int { return len(s.Frames) }

// Residues groups atoms into residues in file order.
func (s *Structure) Residues() []Residue {
	var out []Residue
	for _, a := range s.Atoms {
		if n := len(out); n > 0 && out[n-1].ResID == a.ResID && out[n-1].ResName == a.ResName {
			out[n-1].Last = a.ID
			continue
		}
		out = append(out, Residue{ResID: a.ResID, ResName: a.ResName, First: a.ID, Last: a.ID})
	}
	return out
}

// Position returns the coordinates of the atom at index i in frame f.
func (s *Structure) Position(i, f int) (Vec3, error) {
	if f < 0 || f >= len(s.Frames) {
		return Vec3{}, errors.NewValidation("frame", fmt.Sprintf("frame %d out of range [0,%d)", f, len(s.Frames)))
	}
	if i < 0 || i >= len(s.Frames[f]) {
		return Vec3{}, errors.NewValidation("atom", fmt.Sprintf("atom index %d out of range [0,%d)", i, len(s.Frames[f])))
	}
	return s.Frames[f][i], nil
}

// Dihedral returns the dihedral angle in degrees defined by four atom
// indices in frame f.
func (s *Structure) Dihedral(atoms [4]int, f int) (float64, error) {
	var p [4]Vec3
	for k, i := range atoms {
		v, err := s.Position(i, f)
		if err != nil {
			return 0, err
		}
		p[k] = v
	}
	return Dihedral(p[0], p[1], p[2], p[3]), nil
}

// AddFrames appends the frames of t, which must have the same atoms.
func (s *Structure) AddFrames(t *Structure) error {
	if len(t.Atoms) != len(s.Atoms) {
		return errors.NewValidation("trajectory", fmt.Sprintf("trajectory has %d atoms, structure has %d", len(t.Atoms), len(s.Atoms)))
	}
	s.Frames = append(s.Frames, t.Frames...)
	return nil
}

// Format identifies a structure file format.
type Format string

// Supported formats.
const (
	FormatGRO Format = "gro"
	FormatPDB Format = "pdb"
)

// DetectFormat picks the format from the file extension, looking through
// a trailing .xz.
func DetectFormat(path string) (Format, bool, error) {
	compressed := false
	name := strings.ToLower(path)
	if strings.HasSuffix(name, ".xz") {
		compressed = true
		name = strings.TrimSuffix(name, ".xz")
	}
	switch filepath.Ext(name) {
	case ".gro":
		return FormatGRO, compressed, nil
	case ".pdb", ".ent":
		return FormatPDB, compressed, nil
	}
	return "", compressed, errors.NewUnsupported("structure format", filepath.Ext(name))
}

// Read parses r in the given format.
func Read(r io.Reader, format Format) (*Structure, error) {
	switch format {
	case FormatGRO:
		return ReadGRO(r)
	case FormatPDB:
		return ReadPDB(r)
	}
	return nil, errors.NewUnsupported("structure format", string(format))
}

// Open reads a .gro or .pdb file, optionally xz compressed.
func Open(path string) (*Structure, error) {
	format, compressed, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if compressed {
		xr, err := xz.NewReader(f)
		if err != nil {
			return nil, errors.NewIO("decompress", path, err)
		}
		r = xr
	}

	s, err := Read(r, format)
	if err != nil {
		var pe *errors.ParseError
		if errors.As(err, &pe) && pe.Path == "" {
			pe.Path = path
		}
		return nil, err
	}
	logging.StructureLoaded(path, len(s.Atoms), len(s.Frames), "format", string(format))
	return s, nil
}
