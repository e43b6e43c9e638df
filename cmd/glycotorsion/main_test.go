package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FocuswithJustin/GlycoTorsion/core/bundle"
	"github.com/FocuswithJustin/GlycoTorsion/core/errors"
	"github.com/FocuswithJustin/GlycoTorsion/core/store"
)

const fucosylatedCore = "Man(b1-4)GlcNAc(b1-4)[D-Fuc(a1-6)]GlcNAc(b1-"

// Test helper functions

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = old })
	return &buf
}

func createTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	return path
}

func createChainFile(t *testing.T, dir string) string {
	t.Helper()
	return createTestFile(t, dir, "chains.json",
		fmt.Sprintf(`{"chains":[{"key":"A","iupac":%q,"site":482}]}`, fucosylatedCore))
}

var testResidues = []struct {
	resid   int
	resname string
	names   []string
}{
	{482, "ASN", []string{"N", "CA", "CB", "CG", "ND2"}},
	{483, "BGLCN", []string{"C1", "O5", "C4", "O4", "C5", "C6", "O6"}},
	{484, "BGLCN", []string{"C1", "O5", "C4", "O4", "C5"}},
	{485, "BMAN", []string{"C1", "O5"}},
	{486, "AFUC", []string{"C1", "O5"}},
	{487, "SOL", []string{"OW"}},
}

// createStructureFile writes a GRO trajectory of the fucosylated core on
// ASN 482. The phi atoms of BGLCN2(1-4)BGLCN1 give 90 degrees in frame 0
// and -90 degrees in frame 1.
func createStructureFile(t *testing.T, dir string, frames int) string {
	t.Helper()
	fixed := map[string][3]float64{
		"484:O5": {1, 0, 0},
		"484:C1": {0, 0, 0},
		"483:O4": {0, 0, 1},
	}
	var b strings.Builder
	for f := 0; f < frames; f++ {
		n := 0
		for _, r := range testResidues {
			n += len(r.names)
		}
		fmt.Fprintf(&b, "glycoprotein t= %d.0\n%5d\n", f, n)
		i := 0
		for _, r := range testResidues {
			for _, name := range r.names {
				pos := [3]float64{float64(i), float64(i*i%7) + 0.5, float64(i%3) - 1.5}
				key := fmt.Sprintf("%d:%s", r.resid, name)
				if p, ok := fixed[key]; ok {
					pos = p
				}
				if key == "483:C4" {
					pos = [3]float64{0, 1, 1}
					if f == 1 {
						pos[1] = -1
					}
				}
				i++
				fmt.Fprintf(&b, "%5d%-5s%5s%5d%8.3f%8.3f%8.3f\n", r.resid, r.resname, name, i, pos[0], pos[1], pos[2])
			}
		}
		b.WriteString("   5.00000   5.00000   5.00000\n")
	}
	return createTestFile(t, dir, "md.gro", b.String())
}

func TestMapCmd_Run(t *testing.T) {
	dir := t.TempDir()
	chains := createChainFile(t, dir)

	t.Run("text", func(t *testing.T) {
		out := captureOutput(t)
		cmd := &MapCmd{File: chains, Format: "text"}
		if err := cmd.Run(context.Background()); err != nil {
			t.Fatalf("MapCmd.Run() error = %v", err)
		}
		got := out.String()
		for _, want := range []string{"# A (site 482)", "glycan2", "ASN", "BMAN", "AFUC", "1-6"} {
			if !strings.Contains(got, want) {
				t.Errorf("output missing %q:\n%s", want, got)
			}
		}
		if lines := strings.Count(got, "\n"); lines != 6 {
			t.Errorf("output has %d lines, want 6:\n%s", lines, got)
		}
	})

	t.Run("records", func(t *testing.T) {
		out := captureOutput(t)
		cmd := &MapCmd{File: chains, Format: "text", Records: true}
		if err := cmd.Run(context.Background()); err != nil {
			t.Fatal(err)
		}
		if got := strings.Count(out.String(), "(1-4)"); got != 2 {
			t.Errorf("records with (1-4) = %d, want 2:\n%s", got, out)
		}
	})

	t.Run("json", func(t *testing.T) {
		out := captureOutput(t)
		cmd := &MapCmd{File: chains, Format: "json"}
		if err := cmd.Run(context.Background()); err != nil {
			t.Fatal(err)
		}
		var got []struct {
			Key  string `json:"key"`
			Site int    `json:"site"`
			Rows []struct {
				Glycan2 string `json:"glycan2"`
				Linkage string `json:"linkage"`
				Glycan1 string `json:"glycan1"`
			} `json:"rows"`
		}
		if err := json.Unmarshal(out.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out)
		}
		if len(got) != 1 || got[0].Key != "A" || got[0].Site != 482 || len(got[0].Rows) != 4 {
			t.Fatalf("chains = %+v", got)
		}
		if r := got[0].Rows[0]; r.Glycan2 != "BGLCN" || r.Linkage != "1-" || r.Glycan1 != "ASN" {
			t.Errorf("row 0 = %+v", r)
		}
	})
}

func TestMapCmd_Run_InvalidInput(t *testing.T) {
	dir := t.TempDir()
	bad := createTestFile(t, dir, "bad.json", `{"chains":[{"key":"A","iupac":"Gal(c1-4)GlcNAc(b1-","site":482}]}`)
	captureOutput(t)
	cmd := &MapCmd{File: bad, Format: "text"}
	if err := cmd.Run(context.Background()); err == nil {
		t.Error("MapCmd.Run() should fail on a malformed glycan")
	}
}

func TestLabelCmd_Run(t *testing.T) {
	tests := []struct {
		label   string
		mode    string
		want    string
		wantErr bool
	}{
		{"B-GlcNAc1", "pdb", "BGLCN1", false},
		{"BGLCN1", "iupac", "β-GlcNAc1", false},
		{"N482", "pdb", "ASN482", false},
		{"B-Xyl1", "pdb", "", true},
		{"", "pdb", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.label+"/"+tt.mode, func(t *testing.T) {
			out := captureOutput(t)
			err := (&LabelCmd{Label: tt.label, Mode: tt.mode}).Run()
			if (err != nil) != tt.wantErr {
				t.Fatalf("LabelCmd.Run() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := strings.TrimSpace(out.String()); got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChainsCmd_Run(t *testing.T) {
	dir := t.TempDir()
	gro := createStructureFile(t, dir, 1)

	out := captureOutput(t)
	if err := (&ChainsCmd{Structure: gro, Core: []string{"BGLCN", "BGLCN", "BMAN"}}).Run(); err != nil {
		t.Fatalf("ChainsCmd.Run() error = %v", err)
	}
	for _, want := range []string{"# chain I (residues 483-486)", "BGLCN1", "AFUC4", "6-12"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out.Reset()
	if err := (&ChainsCmd{Structure: gro, JSON: true}).Run(); err != nil {
		t.Fatal(err)
	}
	var found []struct {
		Name   string `json:"name"`
		Ranges []struct {
			Label string `json:"label"`
		} `json:"ranges"`
	}
	if err := json.Unmarshal(out.Bytes(), &found); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(found) != 1 || len(found[0].Ranges) != 4 {
		t.Errorf("chains = %+v", found)
	}

	out.Reset()
	if err := (&ChainsCmd{Structure: gro, Core: []string{"BMAN", "BMAN"}}).Run(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "No glycan chains found") {
		t.Errorf("output = %q", out)
	}
}

func decodeReport(t *testing.T, data []byte) map[string]map[string]map[string]json.RawMessage {
	t.Helper()
	var report map[string]map[string]map[string]json.RawMessage
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, data)
	}
	return report
}

func TestTorsionsCmd_Run(t *testing.T) {
	dir := t.TempDir()
	chains := createChainFile(t, dir)
	gro := createStructureFile(t, dir, 2)
	defaultCore := []string{"BGLCN", "BGLCN", "BMAN"}

	t.Run("static", func(t *testing.T) {
		out := captureOutput(t)
		cmd := &TorsionsCmd{Chains: chains, Structure: gro, Kind: []string{"phi", "omega"}, Core: defaultCore}
		if err := cmd.Run(context.Background()); err != nil {
			t.Fatalf("TorsionsCmd.Run() error = %v", err)
		}
		report := decodeReport(t, out.Bytes())
		var phi float64
		if err := json.Unmarshal(report["phi"]["A"]["BGLCN2(1-4)BGLCN1"], &phi); err != nil {
			t.Fatal(err)
		}
		if math.Abs(phi-90) > 1e-6 {
			t.Errorf("phi = %v, want 90", phi)
		}
		if got := string(report["omega"]["A"]["BMAN3(1-4)BGLCN2"]); got != "null" {
			t.Errorf("omega of 1-4 = %s, want null", got)
		}
		if _, ok := report["psi"]; ok {
			t.Error("psi was not requested")
		}
	})

	t.Run("trajectory", func(t *testing.T) {
		out := captureOutput(t)
		cmd := &TorsionsCmd{Chains: chains, Structure: gro, Kind: []string{"phi"}, Core: defaultCore, Trajectory: true}
		if err := cmd.Run(context.Background()); err != nil {
			t.Fatal(err)
		}
		var series []float64
		if err := json.Unmarshal(decodeReport(t, out.Bytes())["phi"]["A"]["BGLCN2(1-4)BGLCN1"], &series); err != nil {
			t.Fatal(err)
		}
		if len(series) != 2 || math.Abs(series[0]-90) > 1e-6 || math.Abs(series[1]+90) > 1e-6 {
			t.Errorf("series = %v, want [90 -90]", series)
		}
	})

	t.Run("extra frames", func(t *testing.T) {
		out := captureOutput(t)
		cmd := &TorsionsCmd{Chains: chains, Structure: gro, Frames: []string{gro}, Kind: []string{"phi"}, Core: defaultCore, Trajectory: true}
		if err := cmd.Run(context.Background()); err != nil {
			t.Fatal(err)
		}
		var series []float64
		if err := json.Unmarshal(decodeReport(t, out.Bytes())["phi"]["A"]["BGLCN2(1-4)BGLCN1"], &series); err != nil {
			t.Fatal(err)
		}
		if len(series) != 4 {
			t.Errorf("len(series) = %d, want 4", len(series))
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		captureOutput(t)
		cmd := &TorsionsCmd{Chains: chains, Structure: gro, Kind: []string{"chi"}, Core: defaultCore}
		if err := cmd.Run(context.Background()); !errors.Is(err, errors.ErrInvalidInput) {
			t.Errorf("error = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("chain count mismatch", func(t *testing.T) {
		captureOutput(t)
		two := createTestFile(t, t.TempDir(), "two.json", fmt.Sprintf(
			`{"chains":[{"key":"A","iupac":%q,"site":482},{"key":"B","iupac":%q,"site":600}]}`,
			fucosylatedCore, fucosylatedCore))
		cmd := &TorsionsCmd{Chains: two, Structure: gro, Kind: []string{"phi"}, Core: defaultCore}
		if err := cmd.Run(context.Background()); !errors.Is(err, errors.ErrInvalidInput) {
			t.Errorf("error = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		captureOutput(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		cmd := &TorsionsCmd{Chains: chains, Structure: gro, Kind: []string{"phi"}, Core: defaultCore}
		if err := cmd.Run(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	})
}

func TestTorsionsCmd_Run_DatabaseAndBundle(t *testing.T) {
	dir := t.TempDir()
	chains := createChainFile(t, dir)
	gro := createStructureFile(t, dir, 1)
	dbPath := filepath.Join(dir, "results.sqlite")
	bundlePath := filepath.Join(dir, "run.tar.xz")

	out := captureOutput(t)
	cmd := &TorsionsCmd{
		Chains:    chains,
		Structure: gro,
		Kind:      []string{"phi", "psi", "omega"},
		Core:      []string{"BGLCN", "BGLCN", "BMAN"},
		DB:        dbPath,
		Bundle:    bundlePath,
	}
	if err := cmd.Run(context.Background()); err != nil {
		t.Fatalf("TorsionsCmd.Run() error = %v", err)
	}

	ctx := context.Background()
	db, err := store.Open(ctx, dbPath)
	if err != nil {
		t.Fatal(err)
	}
	runs, err := db.Runs(ctx)
	db.Close()
	if err != nil || len(runs) != 1 {
		t.Fatalf("Runs() = %+v, %v", runs, err)
	}
	runID := runs[0].ID

	b, err := bundle.Unpack(bundlePath)
	if err != nil {
		t.Fatalf("Unpack() error = %v", err)
	}
	if b.Manifest.RunID != runID {
		t.Errorf("bundle run = %s, database run = %s", b.Manifest.RunID, runID)
	}
	if b.Manifest.Source != "chains.json" || b.Manifest.Structure != "md.gro" {
		t.Errorf("manifest = %+v", b.Manifest)
	}
	for _, name := range []string{"linkages.json", "torsions.json", "chains/A/phi.json", "chains/A/omega.json"} {
		if _, ok := b.File(name); !ok {
			t.Errorf("bundle missing %s (have %v)", name, b.Names())
		}
	}
	linkages, _ := b.File("linkages.json")
	if !strings.Contains(string(linkages), `"resid1": "ASN_482"`) {
		t.Errorf("linkages.json = %s", linkages)
	}
	torsions, _ := b.File("torsions.json")
	if !bytes.Equal(bytes.TrimSpace(torsions), bytes.TrimSpace(out.Bytes())) {
		t.Error("torsions.json differs from command output")
	}

	t.Run("runs list", func(t *testing.T) {
		out := captureOutput(t)
		if err := (&RunsListCmd{DB: dbPath}).Run(ctx); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out.String(), runID) || !strings.Contains(out.String(), chains) {
			t.Errorf("output = %s", out)
		}
	})

	t.Run("runs show", func(t *testing.T) {
		out := captureOutput(t)
		if err := (&RunsShowCmd{ID: runID, DB: dbPath}).Run(ctx); err != nil {
			t.Fatal(err)
		}
		var shown struct {
			Run    store.Run `json:"run"`
			Chains map[string]struct {
				Rows     []json.RawMessage                     `json:"rows"`
				Torsions map[string]map[string]json.RawMessage `json:"torsions"`
			} `json:"chains"`
		}
		if err := json.Unmarshal(out.Bytes(), &shown); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out)
		}
		a := shown.Chains["A"]
		if shown.Run.ID != runID || len(a.Rows) != 4 || len(a.Torsions) != 3 {
			t.Errorf("shown = %+v", shown)
		}
		if got := string(a.Torsions["omega"]["BGLCN1(1-)ASN_482"]); got != "null" {
			t.Errorf("omega of 1- = %s, want null", got)
		}
	})

	t.Run("bundle verify", func(t *testing.T) {
		out := captureOutput(t)
		if err := (&BundleVerifyCmd{Path: bundlePath}).Run(); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out.String(), "OK: 5 files verified") {
			t.Errorf("output = %s", out)
		}
	})

	t.Run("runs delete", func(t *testing.T) {
		captureOutput(t)
		if err := (&RunsDeleteCmd{ID: runID, DB: dbPath}).Run(ctx); err != nil {
			t.Fatal(err)
		}
		if err := (&RunsShowCmd{ID: runID, DB: dbPath}).Run(ctx); !errors.Is(err, errors.ErrNotFound) {
			t.Errorf("show after delete error = %v, want ErrNotFound", err)
		}
		if err := (&RunsDeleteCmd{ID: runID, DB: dbPath}).Run(ctx); !errors.Is(err, errors.ErrNotFound) {
			t.Errorf("second delete error = %v, want ErrNotFound", err)
		}
	})
}

func TestBundleVerifyCmd_Run_Invalid(t *testing.T) {
	dir := t.TempDir()
	captureOutput(t)
	notBundle := createTestFile(t, dir, "run.tar.xz", "not an archive")
	if err := (&BundleVerifyCmd{Path: notBundle}).Run(); err == nil {
		t.Error("BundleVerifyCmd.Run() should reject a text file")
	}
}

func TestVersionCmd_Run(t *testing.T) {
	out := captureOutput(t)
	if err := (&VersionCmd{}).Run(); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"glycotorsion version " + version, "bundle format: " + bundle.Version, "omega, phi, psi"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
