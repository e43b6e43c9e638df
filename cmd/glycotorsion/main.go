// Command glycotorsion maps IUPAC glycan strings to linkage tables and
// measures glycosidic torsion angles in structures and trajectories.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/GlycoTorsion/core/bundle"
	"github.com/FocuswithJustin/GlycoTorsion/core/cache"
	"github.com/FocuswithJustin/GlycoTorsion/core/errors"
	"github.com/FocuswithJustin/GlycoTorsion/core/glycan"
	"github.com/FocuswithJustin/GlycoTorsion/core/label"
	"github.com/FocuswithJustin/GlycoTorsion/core/sqlite"
	"github.com/FocuswithJustin/GlycoTorsion/core/store"
	"github.com/FocuswithJustin/GlycoTorsion/core/structure"
	"github.com/FocuswithJustin/GlycoTorsion/core/torsion"
	"github.com/FocuswithJustin/GlycoTorsion/internal/input"
	"github.com/FocuswithJustin/GlycoTorsion/internal/logging"
	"github.com/FocuswithJustin/GlycoTorsion/internal/validation"
)

const version = "0.1.0"

// stdout receives command output. Logs go to stderr.
var stdout io.Writer = os.Stdout

// CLI defines the command-line interface for glycotorsion.
var CLI struct {
	// Global flags
	LogLevel  string `name:"log-level" help:"Log level" enum:"debug,info,warn,error" default:"info" env:"GLYCOTORSION_LOG_LEVEL"`
	LogFormat string `name:"log-format" help:"Log format" enum:"text,json" default:"text" env:"GLYCOTORSION_LOG_FORMAT"`

	Map      MapCmd      `cmd:"" help:"Build linkage tables from a chain file"`
	Label    LabelCmd    `cmd:"" help:"Convert a residue label between IUPAC and structural names"`
	Chains   ChainsCmd   `cmd:"" help:"List glycan chains found in a structure"`
	Torsions TorsionsCmd `cmd:"" help:"Compute torsion angles for mapped chains"`
	Runs     RunsGroup   `cmd:"" help:"Inspect runs stored in a results database"`
	Bundle   BundleGroup `cmd:"" help:"Result bundle operations"`
	Version  VersionCmd  `cmd:"" help:"Print version information"`
}

// RunsGroup contains results database operations.
type RunsGroup struct {
	List   RunsListCmd   `cmd:"" help:"List stored runs"`
	Show   RunsShowCmd   `cmd:"" help:"Print the linkage and torsion tables of a run"`
	Delete RunsDeleteCmd `cmd:"" help:"Delete a run"`
}

// BundleGroup contains bundle operations.
type BundleGroup struct {
	Verify BundleVerifyCmd `cmd:"" help:"Verify bundle hashes and list its files"`
}

func loadChains(ctx context.Context, path string) ([]*glycan.Chain, error) {
	inputs, err := input.Load(path)
	if err != nil {
		return nil, err
	}
	m := glycan.NewMapper(cache.DefaultConfig())
	chains, err := m.MapAll(ctx, inputs)
	if err != nil {
		return nil, err
	}
	st := m.Stats()
	logging.Debug("chains_mapped", "path", path, "chains", len(chains), "cache_hits", st.Hits, "cache_misses", st.Misses)
	return chains, nil
}

func loadStructure(path string, frames []string) (*structure.Structure, error) {
	if err := validation.ValidatePath(path); err != nil {
		return nil, fmt.Errorf("invalid structure path: %w", err)
	}
	s, err := structure.Open(path)
	if err != nil {
		return nil, err
	}
	for _, f := range frames {
		t, err := structure.Open(f)
		if err != nil {
			return nil, err
		}
		if err := s.AddFrames(t); err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
	}
	return s, nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// MapCmd prints the linkage tables of every chain in a chain file.
type MapCmd struct {
	File    string `arg:"" help:"Chain file (.json or .xml)" type:"existingfile"`
	Format  string `help:"Output format" enum:"text,json" default:"text"`
	Records bool   `help:"Print IUPAC linkage records instead of structural rows"`
}

func (c *MapCmd) Run(ctx context.Context) error {
	chains, err := loadChains(ctx, c.File)
	if err != nil {
		return err
	}
	if c.Format == "json" {
		return writeJSON(chains)
	}

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	for i, ch := range chains {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "# %s (site %d)\n", ch.Key(), ch.Site())
		if c.Records {
			for _, r := range ch.Records() {
				fmt.Fprintln(w, r.String())
			}
			continue
		}
		fmt.Fprintln(w, "glycan2\tindex2\tlinkage\tglycan1\tindex1")
		for _, r := range ch.Rows() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Glycan2, r.Index2, r.Linkage, r.Glycan1, r.Index1)
		}
	}
	return w.Flush()
}

// LabelCmd converts one label.
type LabelCmd struct {
	Label string `arg:"" help:"Residue label, e.g. B-GlcNAc1 or BGLCN1"`
	Mode  string `help:"Target notation" enum:"pdb,iupac" default:"pdb"`
}

func (c *LabelCmd) Run() error {
	mode, err := label.ParseMode(c.Mode)
	if err != nil {
		return err
	}
	l, err := label.Parse(c.Label)
	if err != nil {
		return err
	}
	out, err := l.Convert(mode)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, out.String())
	return nil
}

// ChainsCmd lists the glycan chains of a structure.
type ChainsCmd struct {
	Structure string   `arg:"" help:"Structure file (.gro, .pdb, optionally .xz)" type:"existingfile"`
	Core      []string `help:"Residue names of the chain core" default:"BGLCN,BGLCN,BMAN"`
	JSON      bool     `name:"json" help:"Print JSON"`
}

func (c *ChainsCmd) Run() error {
	s, err := loadStructure(c.Structure, nil)
	if err != nil {
		return err
	}
	found := s.FindChains(c.Core)
	if c.JSON {
		return writeJSON(found)
	}
	if len(found) == 0 {
		fmt.Fprintf(stdout, "No glycan chains found in %s\n", c.Structure)
		return nil
	}

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	for i, gc := range found {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "# %s (residues %d-%d)\n", gc.Name, gc.FirstResID(), gc.LastResID())
		fmt.Fprintln(w, "label\tresid\tatoms")
		for _, r := range gc.Ranges {
			fmt.Fprintf(w, "%s\t%d\t%d-%d\n", r.Label, r.ResID, r.First, r.Last)
		}
	}
	return w.Flush()
}

// TorsionsCmd maps chains, joins them to a structure and evaluates
// torsion angles.
type TorsionsCmd struct {
	Chains     string   `arg:"" help:"Chain file (.json or .xml)" type:"existingfile"`
	Structure  string   `arg:"" help:"Structure or trajectory file (.gro, .pdb, optionally .xz)" type:"existingfile"`
	Kind       []string `help:"Torsion kinds to compute (phi, psi, omega)" default:"phi,psi,omega"`
	Frames     []string `help:"Additional frame files appended to the structure"`
	Trajectory bool     `help:"Evaluate every frame instead of the first"`
	Core       []string `help:"Residue names of the chain core" default:"BGLCN,BGLCN,BMAN"`
	DB         string   `name:"db" help:"Record the run in this SQLite database" type:"path" env:"GLYCOTORSION_DB"`
	Bundle     string   `help:"Write a tar.xz result bundle" type:"path"`
}

// torsionReport is the JSON output: kind -> chain key -> label -> value.
type torsionReport map[torsion.Kind]map[string]*torsion.Table

func (c *TorsionsCmd) Run(ctx context.Context) error {
	kinds := make([]torsion.Kind, 0, len(c.Kind))
	for _, k := range c.Kind {
		kind, err := torsion.ParseKind(k)
		if err != nil {
			return err
		}
		kinds = append(kinds, kind)
	}
	if c.Bundle != "" {
		if err := validation.ValidatePath(c.Bundle); err != nil {
			return fmt.Errorf("invalid bundle path: %w", err)
		}
	}

	chains, err := loadChains(ctx, c.Chains)
	if err != nil {
		return err
	}
	s, err := loadStructure(c.Structure, c.Frames)
	if err != nil {
		return err
	}
	pairs, err := torsion.Pair(chains, s.FindChains(c.Core))
	if err != nil {
		return err
	}

	var db *store.Store
	runID := ""
	if c.DB != "" {
		if db, err = store.Open(ctx, c.DB); err != nil {
			return err
		}
		defer db.Close()
		run, err := db.NewRun(ctx, c.Chains, c.Structure)
		if err != nil {
			return err
		}
		runID = run.ID
	}
	b := bundle.New(runID, bundle.ToolInfo{Name: "glycotorsion", Version: version})
	ctx = logging.WithRunID(ctx, b.Manifest.RunID)

	report := make(torsionReport, len(kinds))
	var failures []error
	var tables []*torsion.Table
	for _, kind := range kinds {
		ts, err := torsion.ComputeAll(ctx, kind, pairs, s, c.Trajectory)
		if ts == nil {
			return err
		}
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", kind, err))
		}
		report[kind] = make(map[string]*torsion.Table, len(ts))
		for _, t := range ts {
			report[kind][t.Chain] = t
		}
		tables = append(tables, ts...)
	}

	if db != nil {
		if err := db.SaveChains(ctx, runID, chains); err != nil {
			return err
		}
		if err := db.SaveTorsions(ctx, runID, tables); err != nil {
			return err
		}
		logging.InfoContext(ctx, "run_saved", "db", c.DB, "tables", len(tables))
	}
	if c.Bundle != "" {
		if err := c.writeBundle(b, pairs, report); err != nil {
			return err
		}
		logging.InfoContext(ctx, "bundle_written", "path", c.Bundle, "files", len(b.Names()))
	}

	if err := writeJSON(report); err != nil {
		return err
	}
	if len(failures) > 0 {
		for _, f := range failures {
			logging.WarnContext(ctx, "torsion_failed", "error", f)
		}
		return fmt.Errorf("%d torsion kind(s) incomplete: %w", len(failures), errors.Join(failures...))
	}
	return nil
}

func (c *TorsionsCmd) writeBundle(b *bundle.Bundle, pairs []torsion.Pairing, report torsionReport) error {
	b.Manifest.Source = filepath.Base(c.Chains)
	b.Manifest.Structure = filepath.Base(c.Structure)

	linkages := make(map[string][]torsion.Entry, len(pairs))
	for _, p := range pairs {
		linkages[p.Chain.Key()] = p.Entries
	}
	if err := b.AddJSON("linkages.json", linkages); err != nil {
		return err
	}
	if err := b.AddJSON("torsions.json", report); err != nil {
		return err
	}
	for kind, byChain := range report {
		for key, t := range byChain {
			name, err := validation.SanitizeFilename(key)
			if err != nil {
				return fmt.Errorf("chain %q: %w", key, err)
			}
			if err := b.AddJSON(fmt.Sprintf("chains/%s/%s.json", name, kind), t); err != nil {
				return err
			}
		}
	}
	return b.Pack(c.Bundle)
}

// RunsListCmd lists stored runs.
type RunsListCmd struct {
	DB string `name:"db" required:"" help:"Results database" type:"existingfile" env:"GLYCOTORSION_DB"`
}

func (c *RunsListCmd) Run(ctx context.Context) error {
	db, err := store.Open(ctx, c.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.Runs(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintf(stdout, "No runs in %s\n", c.DB)
		return nil
	}
	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "id\tcreated\tsource\tstructure")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.CreatedAt, r.Source, r.Structure)
	}
	return w.Flush()
}

// RunsShowCmd prints one stored run.
type RunsShowCmd struct {
	ID string `arg:"" help:"Run ID"`
	DB string `name:"db" required:"" help:"Results database" type:"existingfile" env:"GLYCOTORSION_DB"`
}

func (c *RunsShowCmd) Run(ctx context.Context) error {
	db, err := store.Open(ctx, c.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := db.Run(ctx, c.ID)
	if err != nil {
		return err
	}
	keys, err := db.Chains(ctx, run.ID)
	if err != nil {
		return err
	}

	type chainOut struct {
		Rows     []glycan.Row                    `json:"rows"`
		Torsions map[torsion.Kind]*torsion.Table `json:"torsions,omitempty"`
	}
	out := struct {
		Run    store.Run           `json:"run"`
		Chains map[string]chainOut `json:"chains"`
	}{Run: run, Chains: make(map[string]chainOut, len(keys))}

	for _, key := range keys {
		rows, err := db.Linkages(ctx, run.ID, key)
		if err != nil {
			return err
		}
		co := chainOut{Rows: rows, Torsions: make(map[torsion.Kind]*torsion.Table)}
		for _, kind := range torsion.Kinds {
			t, err := db.Torsions(ctx, run.ID, key, kind)
			if errors.Is(err, errors.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			co.Torsions[kind] = t
		}
		out.Chains[key] = co
	}
	return writeJSON(out)
}

// RunsDeleteCmd deletes one stored run.
type RunsDeleteCmd struct {
	ID string `arg:"" help:"Run ID"`
	DB string `name:"db" required:"" help:"Results database" type:"existingfile" env:"GLYCOTORSION_DB"`
}

func (c *RunsDeleteCmd) Run(ctx context.Context) error {
	db, err := store.Open(ctx, c.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.DeleteRun(ctx, c.ID); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Deleted run %s\n", c.ID)
	return nil
}

// BundleVerifyCmd verifies a bundle.
type BundleVerifyCmd struct {
	Path string `arg:"" help:"Bundle (.tar.xz)" type:"existingfile"`
}

func (c *BundleVerifyCmd) Run() error {
	if _, err := validation.ValidateInputFile(c.Path, 0, validation.FileTypeTarXZ); err != nil {
		return err
	}
	b, err := bundle.Unpack(c.Path)
	if err != nil {
		return err
	}

	m := b.Manifest
	fmt.Fprintf(stdout, "Bundle %s (run %s, %s %s)\n", c.Path, m.RunID, m.Tool.Name, m.Tool.Version)
	fmt.Fprintf(stdout, "  Created: %s\n", m.CreatedAt)
	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	for _, name := range b.Names() {
		rec := m.Files[name]
		fmt.Fprintf(w, "  %s\t%d bytes\tsha256 %s\tblake3 %s\n", name, rec.SizeBytes, rec.SHA256[:16], rec.BLAKE3[:16])
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "OK: %d files verified\n", len(b.Names()))
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	info := sqlite.GetInfo()
	fmt.Fprintf(stdout, "glycotorsion version %s\n", version)
	fmt.Fprintf(stdout, "  bundle format: %s\n", bundle.Version)
	fmt.Fprintf(stdout, "  sqlite driver: %s (%s)\n", info.DriverType, info.Package)
	kinds := make([]string, len(torsion.Kinds))
	for i, k := range torsion.Kinds {
		kinds[i] = string(k)
	}
	sort.Strings(kinds)
	fmt.Fprintf(stdout, "  torsions: %s\n", strings.Join(kinds, ", "))
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	kctx := kong.Parse(&CLI,
		kong.Name("glycotorsion"),
		kong.Description("Glycan linkage tables and glycosidic torsion angles"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	logging.InitLogger(logging.ParseLevel(CLI.LogLevel), logging.ParseFormat(CLI.LogFormat))
	err := kctx.Run()
	kctx.FatalIfErrorf(err)
}
