package bundle

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/FocuswithJustin/GlycoTorsion/core/errors"
)

var testTool = ToolInfo{Name: "glycotorsion", Version: "test"}

func TestHash(t *testing.T) {
	rec := Hash(nil)
	if rec.SHA256 != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("SHA256 = %s", rec.SHA256)
	}
	if rec.BLAKE3 != "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262" {
		t.Errorf("BLAKE3 = %s", rec.BLAKE3)
	}
	if rec.SizeBytes != 0 {
		t.Errorf("SizeBytes = %d", rec.SizeBytes)
	}
}

func TestNew(t *testing.T) {
	b := New("", testTool)
	if len(b.Manifest.RunID) != 36 {
		t.Errorf("RunID = %q, want a UUID", b.Manifest.RunID)
	}
	if b.Manifest.BundleVersion != Version {
		t.Errorf("BundleVersion = %q", b.Manifest.BundleVersion)
	}
	if got := New("run-1", testTool).Manifest.RunID; got != "run-1" {
		t.Errorf("RunID = %q, want run-1", got)
	}
}

func TestPackUnpack(t *testing.T) {
	b := New("", testTool)
	b.Manifest.Source = "chains.json"
	b.Manifest.Structure = "md.gro"
	if err := b.AddJSON("linkages.json", map[string][]string{"A": {"BGLCN 1 1- ASN 482"}}); err != nil {
		t.Fatal(err)
	}
	if err := b.AddJSON("torsions.json", map[string]float64{"BGLCN1(1-)ASN_482": -90}); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "run.tar.xz")
	if err := b.Pack(path); err != nil {
		t.Fatalf("Pack() error = %v", err)
	}

	got, err := Unpack(path)
	if err != nil {
		t.Fatalf("Unpack() error = %v", err)
	}
	if !reflect.DeepEqual(got.Manifest, b.Manifest) {
		t.Errorf("manifest = %+v, want %+v", got.Manifest, b.Manifest)
	}
	if names := got.Names(); !reflect.DeepEqual(names, []string{"linkages.json", "torsions.json"}) {
		t.Errorf("Names() = %v", names)
	}
	data, ok := got.File("torsions.json")
	if !ok || !strings.Contains(string(data), `"BGLCN1(1-)ASN_482": -90`) {
		t.Errorf("torsions.json = %s", data)
	}
}

func TestAddInvalidNames(t *testing.T) {
	b := New("", testTool)
	for _, name := range []string{"", "../escape.json", "/abs.json", "a/../b.json", ManifestName} {
		if err := b.Add(name, []byte("x")); !errors.Is(err, errors.ErrInvalidInput) {
			t.Errorf("Add(%q) error = %v, want ErrInvalidInput", name, err)
		}
	}
	if err := b.Add("nested/ok.json", []byte("x")); err != nil {
		t.Errorf("Add(nested/ok.json) error = %v", err)
	}
}

func TestVerify(t *testing.T) {
	b := New("", testTool)
	if err := b.Add("a.json", []byte("{}")); err != nil {
		t.Fatal(err)
	}
	if err := b.Verify(); err != nil {
		t.Fatalf("Verify() on fresh bundle = %v", err)
	}

	b.files["a.json"] = []byte("[]")
	if err := b.Verify(); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Verify() after tamper = %v, want ErrInvalidInput", err)
	}

	b.files["a.json"] = []byte("{}")
	b.files["extra.json"] = []byte("{}")
	if err := b.Verify(); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Verify() with unlisted file = %v, want ErrInvalidInput", err)
	}

	delete(b.files, "extra.json")
	delete(b.files, "a.json")
	if err := b.Verify(); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Verify() with missing file = %v, want ErrNotFound", err)
	}
}

func TestReadRejectsTampered(t *testing.T) {
	b := New("", testTool)
	if err := b.Add("a.json", []byte(`{"phi":1}`)); err != nil {
		t.Fatal(err)
	}
	b.files["a.json"] = []byte(`{"phi":2}`)

	var buf bytes.Buffer
	if err := b.Write(&buf); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(&buf); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Read() error = %v, want ErrInvalidInput", err)
	}
}

func TestReadErrors(t *testing.T) {
	if _, err := Read(strings.NewReader("plain text, not xz")); !errors.Is(err, errors.ErrUnsupported) {
		t.Errorf("Read(text) error = %v, want ErrUnsupported", err)
	}
	if _, err := Read(bytes.NewReader(nil)); !errors.Is(err, errors.ErrUnsupported) {
		t.Errorf("Read(empty) error = %v, want ErrUnsupported", err)
	}
	if _, err := Unpack(filepath.Join(t.TempDir(), "missing.tar.xz")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Unpack(missing) error = %v", err)
	}
}
