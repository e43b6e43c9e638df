// Package validation checks user-supplied paths and input files before they
// are opened: length limits, control characters, size limits and content
// type sniffing.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// Size limits (CWE-400).
const (
	// MaxChainFileSize bounds chain definition files (16 MB).
	MaxChainFileSize = 16 << 20
	// MaxStructureSize bounds structure and trajectory files (4 GB).
	MaxStructureSize = 4 << 30
	// MaxFilenameLength is the maximum allowed filename length.
	MaxFilenameLength = 255
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
)

// Common validation errors.
var (
	ErrPathTraversal    = errors.New("path traversal detected")
	ErrInvalidFilename  = errors.New("invalid filename")
	ErrPathTooLong      = errors.New("path too long")
	ErrFilenameTooLong  = errors.New("filename too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrFileTooLarge     = errors.New("file too large")
	ErrFileType         = errors.New("unexpected file type")
)

// SanitizePath validates a path relative to baseDir and rejects anything
// that would escape it. Returns the cleaned relative path.
func SanitizePath(baseDir, userPath string) (string, error) {
	if userPath == "" {
		return "", ErrEmptyPath
	}
	if len(userPath) > MaxPathLength {
		return "", ErrPathTooLong
	}

	cleanPath := filepath.Clean(userPath)
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	if filepath.IsAbs(cleanPath) {
		return "", fmt.Errorf("%w: absolute path not allowed", ErrPathTraversal)
	}

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base directory: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Join(baseDir, cleanPath))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	relPath, err := filepath.Rel(absBase, absPath)
	if err != nil || relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return cleanPath, nil
}

// ValidateFilename checks that a single path element is safe to create.
func ValidateFilename(filename string) error {
	if filename == "" {
		return ErrInvalidFilename
	}
	if len(filename) > MaxFilenameLength {
		return ErrFilenameTooLong
	}
	if filename == "." || filename == ".." {
		return fmt.Errorf("%w: reserved name", ErrInvalidFilename)
	}
	if strings.ContainsAny(filename, "/\\") {
		return fmt.Errorf("%w: path separator not allowed", ErrInvalidFilename)
	}
	for _, r := range filename {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidFilename)
		}
	}
	// Would be read as a flag by most tools.
	if strings.HasPrefix(filename, "-") {
		return fmt.Errorf("%w: filename cannot start with hyphen", ErrInvalidFilename)
	}
	return nil
}

// ValidatePath checks a path for length limits and control characters.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}
	return nil
}

// SanitizeFilename turns arbitrary text, such as a chain key, into a safe
// file name.
func SanitizeFilename(name string) (string, error) {
	name = strings.TrimSpace(name)
	name = strings.NewReplacer("/", "_", "\\", "_", " ", "_").Replace(name)

	var cleaned strings.Builder
	for _, r := range name {
		if !unicode.IsControl(r) {
			cleaned.WriteRune(r)
		}
	}
	name = strings.TrimLeft(cleaned.String(), "-")

	if err := ValidateFilename(name); err != nil {
		return "", err
	}
	return name, nil
}

// FileType is a detected input file type.
type FileType string

const (
	FileTypeGRO     FileType = "gro"
	FileTypePDB     FileType = "pdb"
	FileTypeJSON    FileType = "json"
	FileTypeXML     FileType = "xml"
	FileTypeXZ      FileType = "xz"
	FileTypeTarXZ   FileType = "tar.xz"
	FileTypeSQLite  FileType = "sqlite"
	FileTypeUnknown FileType = "unknown"
)

// IsText reports whether the type is a plain text format.
func (t FileType) IsText() bool {
	switch t {
	case FileTypeGRO, FileTypePDB, FileTypeJSON, FileTypeXML:
		return true
	}
	return false
}

var magicBytes = []struct {
	fileType FileType
	magic    []byte
}{
	{FileTypeXZ, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}},
	{FileTypeSQLite, []byte("SQLite format 3\x00")},
}

// DetectFileType reads the head of r and checks it against the type implied
// by filename. Compressed structure files (name.gro.xz) report FileTypeXZ.
func DetectFileType(r io.Reader, filename string) (FileType, error) {
	buf := make([]byte, 512)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FileTypeUnknown, fmt.Errorf("failed to read file header: %w", err)
	}
	buf = buf[:n]

	detected := detectFileTypeFromMagic(buf)
	expected := FileTypeFromExtension(filename)

	switch {
	case expected == FileTypeTarXZ && detected == FileTypeXZ:
		return FileTypeTarXZ, nil
	case detected == expected && detected != FileTypeUnknown:
		return detected, nil
	case detected == FileTypeUnknown && expected.IsText():
		if isLikelyText(buf) {
			return expected, nil
		}
		return FileTypeUnknown, fmt.Errorf("%w: %s does not look like %s text", ErrFileType, filename, expected)
	case detected != FileTypeUnknown && expected != FileTypeUnknown:
		return FileTypeUnknown, fmt.Errorf("%w: extension suggests %s but content is %s", ErrFileType, expected, detected)
	case expected == FileTypeUnknown:
		return detected, nil
	}
	return FileTypeUnknown, fmt.Errorf("%w: %s content does not match %s", ErrFileType, filename, expected)
}

// ValidateInputFile checks that path exists, is a regular file no larger
// than maxSize, and has one of the allowed types. It returns the detected
// type.
func ValidateInputFile(path string, maxSize int64, allowed ...FileType) (FileType, error) {
	if err := ValidatePath(path); err != nil {
		return FileTypeUnknown, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return FileTypeUnknown, err
	}
	if !info.Mode().IsRegular() {
		return FileTypeUnknown, fmt.Errorf("%w: %s is not a regular file", ErrFileType, path)
	}
	if maxSize > 0 && info.Size() > maxSize {
		return FileTypeUnknown, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrFileTooLarge, path, info.Size(), maxSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return FileTypeUnknown, err
	}
	defer f.Close()

	ft, err := DetectFileType(f, path)
	if err != nil {
		return FileTypeUnknown, err
	}
	if len(allowed) == 0 {
		return ft, nil
	}
	for _, a := range allowed {
		if ft == a {
			return ft, nil
		}
	}
	return FileTypeUnknown, fmt.Errorf("%w: %s is %s", ErrFileType, path, ft)
}

func detectFileTypeFromMagic(buf []byte) FileType {
	for _, sig := range magicBytes {
		if bytes.HasPrefix(buf, sig.magic) {
			return sig.fileType
		}
	}
	return FileTypeUnknown
}

// FileTypeFromExtension maps a file name to the type its extension implies.
func FileTypeFromExtension(filename string) FileType {
	lower := strings.ToLower(filename)
	if strings.HasSuffix(lower, ".tar.xz") || strings.HasSuffix(lower, ".txz") {
		return FileTypeTarXZ
	}
	switch filepath.Ext(lower) {
	case ".gro":
		return FileTypeGRO
	case ".pdb", ".ent":
		return FileTypePDB
	case ".json":
		return FileTypeJSON
	case ".xml":
		return FileTypeXML
	case ".xz":
		return FileTypeXZ
	case ".sqlite", ".sqlite3", ".db":
		return FileTypeSQLite
	}
	return FileTypeUnknown
}

// isLikelyText reports whether more than 95% of buf is printable ASCII or
// whitespace and it holds no NUL bytes.
func isLikelyText(buf []byte) bool {
	if len(buf) == 0 {
		return false
	}
	if bytes.IndexByte(buf, 0) != -1 {
		return false
	}
	printable, control := 0, 0
	for _, b := range buf {
		switch {
		case b >= 0x20 && b <= 0x7e, b == '\t', b == '\n', b == '\r':
			printable++
		case b < 0x20:
			control++
		}
	}
	return printable > 0 && float64(printable)/float64(printable+control) > 0.95
}
