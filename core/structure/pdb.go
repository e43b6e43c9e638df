package structure

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/GlycoTorsion/core/errors"
)

// ReadPDB reads ATOM and HETATM records. MODEL/ENDMDL blocks become
// frames; the first model defines the atoms.
func ReadPDB(r io.Reader) (*Structure, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	s := &Structure{}
	var frame []Vec3
	line := 0
	fail := func(msg string, args ...any) error {
		return errors.NewParse("PDB", "", fmt.Sprintf("line %d: %s", line, fmt.Sprintf(msg, args...)))
	}
	closeFrame := func() error {
		if frame == nil {
			return nil
		}
		if len(s.Frames) > 0 && len(frame) != len(s.Atoms) {
			return fail("model %d has %d atoms, first model has %d", len(s.Frames)+1, len(frame), len(s.Atoms))
		}
		s.Frames = append(s.Frames, frame)
		frame = nil
		return nil
	}

	for sc.Scan() {
		line++
		text := sc.Text()
		record := text
		if len(record) > 6 {
			record = record[:6]
		}
		switch strings.TrimSpace(record) {
		case "TITLE":
			if s.Title == "" && len(text) > 10 {
				s.Title = strings.TrimSpace(text[10:])
			}
		case "MODEL":
			if err := closeFrame(); err != nil {
				return nil, err
			}
			frame = []Vec3{}
		case "ENDMDL", "END":
			if err := closeFrame(); err != nil {
				return nil, err
			}
		case "ATOM", "HETATM":
			atom, pos, err := parsePDBAtom(text)
			if err != nil {
				return nil, fail("%v", err)
			}
			if frame == nil {
				frame = []Vec3{}
			}
			if len(s.Frames) == 0 {
				atom.ID = len(s.Atoms) + 1
				s.Atoms = append(s.Atoms, atom)
			}
			frame = append(frame, pos)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.NewIO("read", "", err)
	}
	if err := closeFrame(); err != nil {
		return nil, err
	}
	if len(s.Atoms) == 0 {
		return nil, errors.NewParse("PDB", "", "no ATOM or HETATM records")
	}
	return s, nil
}

// parsePDBAtom reads the fixed columns of an ATOM record. Five letter
// residue names (BGLCN) written by glycan builders run into the chain
// column; when columns 21 and 22 are both set the chain is taken as absent.
func parsePDBAtom(text string) (Atom, Vec3, error) {
	if len(text) < 54 {
		return Atom{}, Vec3{}, fmt.Errorf("ATOM record too short: %q", text)
	}
	resname := strings.TrimSpace(text[17:21])
	if text[20] != ' ' && text[21] != ' ' {
		resname = strings.TrimSpace(text[17:22])
	}
	resid, err := strconv.Atoi(strings.TrimSpace(text[22:26]))
	if err != nil {
		return Atom{}, Vec3{}, fmt.Errorf("invalid residue number %q", text[22:26])
	}
	atom := Atom{
		Name:    strings.TrimSpace(text[12:16]),
		ResName: resname,
		ResID:   resid,
	}

	var pos Vec3
	for k, col := range [3][2]int{{30, 38}, {38, 46}, {46, 54}} {
		v, err := strconv.ParseFloat(strings.TrimSpace(text[col[0]:col[1]]), 64)
		if err != nil {
			return Atom{}, Vec3{}, fmt.Errorf("invalid coordinate %q", text[col[0]:col[1]])
		}
		pos[k] = v
	}
	return atom, pos, nil
}
