package structure

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/GlycoTorsion/core/errors"
)

// ReadGRO reads one or more concatenated .gro frames. The first frame
// defines the atoms; later frames contribute coordinates only and must have
// the same atom count.
func ReadGRO(r io.Reader) (*Structure, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	s := &Structure{}
	line := 0
	next := func() (string, bool) {
		if !sc.Scan() {
			return "", false
		}
		line++
		return sc.Text(), true
	}
	fail := func(msg string, args ...any) error {
		return errors.NewParse("GRO", "", fmt.Sprintf("line %d: %s", line, fmt.Sprintf(msg, args...)))
	}

	for {
		title, ok := next()
		if !ok {
			break
		}
		if strings.TrimSpace(title) == "" && len(s.Frames) > 0 {
			continue
		}
		countLine, ok := next()
		if !ok {
			return nil, fail("missing atom count")
		}
		n, err := strconv.Atoi(strings.TrimSpace(countLine))
		if err != nil || n < 0 {
			return nil, fail("invalid atom count %q", strings.TrimSpace(countLine))
		}

		first := len(s.Frames) == 0
		if first {
			s.Title = strings.TrimSpace(title)
			s.Atoms = make([]Atom, 0, n)
		} else if n != len(s.Atoms) {
			return nil, fail("frame %d has %d atoms, first frame has %d", len(s.Frames)+1, n, len(s.Atoms))
		}

		frame := make([]Vec3, n)
		for i := 0; i < n; i++ {
			text, ok := next()
			if !ok {
				return nil, fail("expected %d atoms, file ended after %d", n, i)
			}
			atom, pos, err := parseGROAtom(text)
			if err != nil {
				return nil, fail("%v", err)
			}
			if first {
				atom.ID = i + 1
				s.Atoms = append(s.Atoms, atom)
			}
			frame[i] = pos
		}
		if _, ok := next(); !ok {
			return nil, fail("missing box line")
		}
		s.Frames = append(s.Frames, frame)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.NewIO("read", "", err)
	}
	if len(s.Frames) == 0 {
		return nil, errors.NewParse("GRO", "", "no frames")
	}
	return s, nil
}

// parseGROAtom reads the fixed columns of an atom line. Coordinate field
// width follows the distance between the first two decimal points, as in
// GROMACS variable precision output.
func parseGROAtom(text string) (Atom, Vec3, error) {
	if len(text) < 44 {
		return Atom{}, Vec3{}, fmt.Errorf("atom line too short: %q", text)
	}
	resid, err := strconv.Atoi(strings.TrimSpace(text[0:5]))
	if err != nil {
		return Atom{}, Vec3{}, fmt.Errorf("invalid residue number %q", text[0:5])
	}
	atom := Atom{
		ResID:   resid,
		ResName: strings.TrimSpace(text[5:10]),
		Name:    strings.TrimSpace(text[10:15]),
	}

	coords := text[20:]
	p1 := strings.IndexByte(coords, '.')
	p2 := -1
	if p1 >= 0 {
		if k := strings.IndexByte(coords[p1+1:], '.'); k >= 0 {
			p2 = p1 + 1 + k
		}
	}
	if p1 < 0 || p2 < 0 {
		return Atom{}, Vec3{}, fmt.Errorf("cannot locate coordinates in %q", text)
	}
	width := p2 - p1
	if len(coords) < 3*width {
		return Atom{}, Vec3{}, fmt.Errorf("coordinates truncated in %q", text)
	}

	var pos Vec3
	for k := 0; k < 3; k++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(coords[k*width:(k+1)*width]), 64)
		if err != nil {
			return Atom{}, Vec3{}, fmt.Errorf("invalid coordinate %q", coords[k*width:(k+1)*width])
		}
		pos[k] = v
	}
	return atom, pos, nil
}
