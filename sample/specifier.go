package sample

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/carbocation/metacompare"
)

// Kind says where a sample's reads come from.
type Kind int

const (
	// Accession is a run identifier in the Sequence Read Archive, e.g.
	// SRR123456.
	Accession Kind = iota
	LocalFile
	GoogleStorage
)

func (k Kind) String() string {
	switch k {
	case Accession:
		return "accession"
	case LocalFile:
		return "local file"
	case GoogleStorage:
		return "google storage object"
	}
	return "unknown"
}

// Specifier is what the caller supplied to name a sample.
type Specifier struct {
	Kind  Kind
	Value string
}

// Parse classifies value. gs:// paths name Google Storage objects, anything
// that exists on disk is a local file, and everything else is assumed to be
// an archive accession.
func Parse(value string) Specifier {
	value = strings.TrimSpace(value)

	if metacompare.IsGoogleStoragePath(value) {
		return Specifier{Kind: GoogleStorage, Value: value}
	}

	if fi, err := os.Stat(value); err == nil && !fi.IsDir() {
		return Specifier{Kind: LocalFile, Value: value}
	}

	return Specifier{Kind: Accession, Value: value}
}

// ID is the canonical, filesystem-safe sample identifier. It is computed
// without touching the filesystem so that the working directory can be named
// before any input is fetched. An empty ID means the specifier cannot name a
// directory, e.g. "..".
func (s Specifier) ID() string {
	var id string
	switch s.Kind {
	case LocalFile:
		id = SafeID(baseID(filepath.Base(s.Value)))
	case GoogleStorage:
		id = SafeID(baseID(path.Base(s.Value)))
	default:
		id = SafeID(s.Value)
	}

	// "." and ".." would escape the directory they are joined to
	if strings.Trim(id, ".") == "" {
		return ""
	}

	return id
}

func (s Specifier) String() string {
	return s.Kind.String() + " " + s.Value
}

// baseID drops everything from the first dot, so sample.R1.fastq.gz becomes
// sample.
func baseID(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}

// SafeID replaces every rune outside [A-Za-z0-9._-] with an underscore.
func SafeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '_', r == '-':
			return r
		}
		return '_'
	}, id)
}

var compressionSuffixes = []string{".gz", ".bz2", ".xz", ".zip"}

// IsSequenceFile reports whether name carries a FASTQ extension, optionally
// followed by a compression suffix.
func IsSequenceFile(name string) bool {
	name = strings.ToLower(name)
	for _, suffix := range compressionSuffixes {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix)
			break
		}
	}

	return strings.HasSuffix(name, ".fastq") || strings.HasSuffix(name, ".fq")
}
