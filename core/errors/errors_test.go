package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestLookupError(t *testing.T) {
	tests := []struct {
		name     string
		err      *LookupError
		wantMsg  string
		wantBase error
	}{
		{
			name:     "with key",
			err:      &LookupError{Table: "residue", Key: "Xyl"},
			wantMsg:  "residue not found: Xyl",
			wantBase: ErrNotFound,
		},
		{
			name:     "without key",
			err:      &LookupError{Table: "atom range"},
			wantMsg:  "atom range not found",
			wantBase: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if got := tt.err.Unwrap(); !errors.Is(got, tt.wantBase) {
				t.Errorf("Unwrap() = %v, want %v", got, tt.wantBase)
			}
		})
	}

	t.Run("with underlying error", func(t *testing.T) {
		underlyingErr := fmt.Errorf("index out of range")
		err := &LookupError{Table: "anomer", Key: "x", Err: underlyingErr}
		if got := err.Unwrap(); got != underlyingErr {
			t.Errorf("Unwrap() = %v, want %v", got, underlyingErr)
		}
	})
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name    string
		err     *ValidationError
		wantMsg string
	}{
		{
			name:    "with field",
			err:     &ValidationError{Field: "site", Message: "must be positive"},
			wantMsg: "validation failed for site: must be positive",
		},
		{
			name:    "without field",
			err:     &ValidationError{Message: "length mismatch"},
			wantMsg: "validation failed: length mismatch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, ErrInvalidInput) {
				t.Errorf("errors.Is(%v, ErrInvalidInput) = false", tt.err)
			}
		})
	}
}

func TestGrammarError(t *testing.T) {
	tests := []struct {
		name    string
		err     *GrammarError
		wantMsg string
	}{
		{
			name:    "with segment",
			err:     &GrammarError{Segment: "[]", Message: "empty branch"},
			wantMsg: `grammar mismatch in "[]": empty branch`,
		},
		{
			name:    "without segment",
			err:     &GrammarError{Message: "no core"},
			wantMsg: "grammar mismatch: no core",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, ErrGrammar) {
				t.Errorf("errors.Is(%v, ErrGrammar) = false", tt.err)
			}
		})
	}
}

func TestIOError(t *testing.T) {
	underlying := fmt.Errorf("permission denied")

	withPath := &IOError{Operation: "read", Path: "/tmp/md.gro", Err: underlying}
	if got, want := withPath.Error(), "failed to read /tmp/md.gro: permission denied"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if withPath.Unwrap() != underlying {
		t.Errorf("Unwrap() did not return underlying error")
	}

	noPath := &IOError{Operation: "decompress", Err: underlying}
	if got, want := noPath.Error(), "failed to decompress: permission denied"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestParseError(t *testing.T) {
	tests := []struct {
		name    string
		err     *ParseError
		wantMsg string
	}{
		{
			name:    "with path",
			err:     &ParseError{Format: "GRO", Path: "md.gro", Message: "bad atom count"},
			wantMsg: "failed to parse GRO at md.gro: bad atom count",
		},
		{
			name:    "without path",
			err:     &ParseError{Format: "IUPAC", Message: "unexpected token"},
			wantMsg: "failed to parse IUPAC: unexpected token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, ErrInvalidInput) {
				t.Errorf("errors.Is(%v, ErrInvalidInput) = false", tt.err)
			}
		})
	}
}

func TestUnsupportedError(t *testing.T) {
	err := &UnsupportedError{Feature: "linkage", Reason: "1-5"}
	if got, want := err.Error(), "unsupported linkage: 1-5"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("errors.Is(%v, ErrUnsupported) = false", err)
	}

	bare := &UnsupportedError{Feature: "compression"}
	if got, want := bare.Error(), "unsupported compression"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestHelperFunctions(t *testing.T) {
	if err := NewLookup("residue", "Xyl"); err.Table != "residue" || err.Key != "Xyl" {
		t.Errorf("NewLookup() = %+v", err)
	}
	if err := NewValidation("site", "must be positive"); err.Field != "site" {
		t.Errorf("NewValidation() = %+v", err)
	}
	if err := NewGrammar("[]", "empty"); err.Segment != "[]" {
		t.Errorf("NewGrammar() = %+v", err)
	}
	if err := NewIO("open", "x", ErrNotFound); !errors.Is(err, ErrNotFound) {
		t.Errorf("NewIO() should wrap ErrNotFound")
	}
	if err := NewParse("PDB", "", "short line"); err.Format != "PDB" {
		t.Errorf("NewParse() = %+v", err)
	}
	if err := NewUnsupported("kind", "chi"); err.Reason != "chi" {
		t.Errorf("NewUnsupported() = %+v", err)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	err := Wrap(ErrGrammar, "chain A")
	if got, want := err.Error(), "chain A: grammar mismatch"; got != want {
		t.Errorf("Wrap() = %q, want %q", got, want)
	}
	if !Is(err, ErrGrammar) {
		t.Error("Wrap() should preserve the wrapped error")
	}
}

func TestWrapf(t *testing.T) {
	if Wrapf(nil, "chain %s", "A") != nil {
		t.Error("Wrapf(nil) should return nil")
	}
	err := Wrapf(ErrNotApplicable, "omega for %s", "1-4")
	if got, want := err.Error(), "omega for 1-4: not applicable"; got != want {
		t.Errorf("Wrapf() = %q, want %q", got, want)
	}
}

func TestAs(t *testing.T) {
	err := Wrap(NewLookup("residue", "Xyl"), "convert")
	var lookup *LookupError
	if !As(err, &lookup) {
		t.Fatal("As() should find LookupError")
	}
	if lookup.Key != "Xyl" {
		t.Errorf("lookup.Key = %q, want Xyl", lookup.Key)
	}
}

func TestJoin(t *testing.T) {
	if Join() != nil {
		t.Error("Join() with no errors should return nil")
	}
	err := Join(NewLookup("atom range", "BMAN3"), NewValidation("selection", "matched 0 atoms"))
	if !Is(err, ErrNotFound) || !Is(err, ErrInvalidInput) {
		t.Errorf("Join() = %v, want both sentinels reachable", err)
	}
}
