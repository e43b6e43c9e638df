// Package bundle packs the results of a run into a portable tar.xz archive:
// a manifest.json listing every file with its SHA-256 and BLAKE3 hashes,
// followed by the result files themselves.
package bundle

import (
	"archive/tar"
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/GlycoTorsion/core/errors"
)

// Version is the current bundle format version.
const Version = "1.0.0"

// ManifestName is the archive entry holding the manifest.
const ManifestName = "manifest.json"

// xzMagic starts every xz stream.
var xzMagic = []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}

// Manifest describes a bundle (manifest.json).
type Manifest struct {
	BundleVersion string                 `json:"bundle_version"`
	RunID         string                 `json:"run_id"`
	CreatedAt     string                 `json:"created_at"`
	Tool          ToolInfo               `json:"tool"`
	Source        string                 `json:"source,omitempty"`
	Structure     string                 `json:"structure,omitempty"`
	Files         map[string]*FileRecord `json:"files"`
}

// ToolInfo describes the tool that wrote the bundle.
type ToolInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// FileRecord holds the hashes of one bundled file.
type FileRecord struct {
	SHA256    string `json:"sha256"`
	BLAKE3    string `json:"blake3"`
	SizeBytes int64  `json:"size_bytes"`
}

// Hash computes the record for data.
func Hash(data []byte) *FileRecord {
	s := sha256.Sum256(data)
	b := blake3.Sum256(data)
	return &FileRecord{
		SHA256:    hex.EncodeToString(s[:]),
		BLAKE3:    hex.EncodeToString(b[:]),
		SizeBytes: int64(len(data)),
	}
}

// Bundle is an in-memory bundle.
type Bundle struct {
	Manifest *Manifest
	files    map[string][]byte
}

// New creates an empty bundle. An empty runID gets a fresh UUID.
func New(runID string, tool ToolInfo) *Bundle {
	if runID == "" {
		runID = uuid.New().String()
	}
	return &Bundle{
		Manifest: &Manifest{
			BundleVersion: Version,
			RunID:         runID,
			CreatedAt:     time.Now().UTC().Format(time.RFC3339),
			Tool:          tool,
			Files:         make(map[string]*FileRecord),
		},
		files: make(map[string][]byte),
	}
}

func validName(name string) error {
	clean := path.Clean(name)
	if name == "" || clean != name || path.IsAbs(name) || strings.HasPrefix(clean, "..") || name == ManifestName {
		return errors.NewValidation("name", fmt.Sprintf("invalid bundle entry name %q", name))
	}
	return nil
}

// Add stores data under name and records its hashes.
func (b *Bundle) Add(name string, data []byte) error {
	if err := validName(name); err != nil {
		return err
	}
	b.files[name] = append([]byte(nil), data...)
	b.Manifest.Files[name] = Hash(data)
	return nil
}

// AddJSON stores v encoded as indented JSON.
func (b *Bundle) AddJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return b.Add(name, append(data, '\n'))
}

// File returns the content of a bundled file.
func (b *Bundle) File(name string) ([]byte, bool) {
	data, ok := b.files[name]
	return data, ok
}

// Names lists bundled files in sorted order.
func (b *Bundle) Names() []string {
	names := make([]string, 0, len(b.files))
	for n := range b.files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Verify checks that the files match the manifest exactly.
func (b *Bundle) Verify() error {
	var errs []error
	for name, rec := range b.Manifest.Files {
		data, ok := b.files[name]
		if !ok {
			errs = append(errs, errors.NewLookup("bundle file", name))
			continue
		}
		got := Hash(data)
		if *got != *rec {
			errs = append(errs, errors.NewValidation(name, fmt.Sprintf("hash mismatch: manifest sha256 %s, content sha256 %s", rec.SHA256, got.SHA256)))
		}
	}
	for name := range b.files {
		if _, ok := b.Manifest.Files[name]; !ok {
			errs = append(errs, errors.NewValidation(name, "file not listed in manifest"))
		}
	}
	return errors.Join(errs...)
}

// Write writes the bundle as tar.xz to w, manifest first.
func (b *Bundle) Write(w io.Writer) error {
	xw, err := xz.NewWriter(w)
	if err != nil {
		return fmt.Errorf("failed to create xz writer: %w", err)
	}
	tw := tar.NewWriter(xw)

	manifest, err := json.MarshalIndent(b.Manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize manifest: %w", err)
	}
	if err := writeToTar(tw, ManifestName, manifest); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	for _, name := range b.Names() {
		if err := writeToTar(tw, name, b.files[name]); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to close tar: %w", err)
	}
	return xw.Close()
}

// Pack writes the bundle to a file.
func (b *Bundle) Pack(archivePath string) error {
	var buf bytes.Buffer
	if err := b.Write(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(archivePath, buf.Bytes(), 0o644); err != nil {
		return errors.NewIO("write", archivePath, err)
	}
	return nil
}

// Read reads a tar.xz bundle and verifies it against its manifest.
func Read(r io.Reader) (*Bundle, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(len(xzMagic))
	if err != nil || !bytes.Equal(magic, xzMagic) {
		return nil, errors.NewUnsupported("compression format", "not an xz stream")
	}
	xr, err := xz.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("failed to create xz reader: %w", err)
	}
	tr := tar.NewReader(xr)

	b := &Bundle{files: make(map[string][]byte)}
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar header: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", header.Name, err)
		}
		if header.Name == ManifestName {
			var m Manifest
			if err := json.Unmarshal(data, &m); err != nil {
				return nil, errors.NewParse("manifest", ManifestName, err.Error())
			}
			if m.Files == nil {
				m.Files = make(map[string]*FileRecord)
			}
			b.Manifest = &m
			continue
		}
		if err := validName(header.Name); err != nil {
			return nil, err
		}
		b.files[header.Name] = data
	}
	if b.Manifest == nil {
		return nil, errors.NewValidation("bundle", "archive does not contain manifest.json")
	}
	if err := b.Verify(); err != nil {
		return nil, err
	}
	return b, nil
}

// Unpack reads and verifies the bundle at archivePath.
func Unpack(archivePath string) (*Bundle, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, errors.NewIO("open", archivePath, err)
	}
	defer f.Close()
	b, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", archivePath, err)
	}
	return b, nil
}

func writeToTar(tw *tar.Writer, name string, data []byte) error {
	header := &tar.Header{
		Name: name,
		Mode: 0644,
		Size: int64(len(data)),
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err := tw.Write(data)
	return err
}
