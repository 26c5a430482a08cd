package toolrun

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/kardianos/osext"
)

// Tools holds the resolved locations of the external binaries.
type Tools struct {
	Prefetch    string
	FasterqDump string
	Kraken2     string
	Bracken     string
}

// DefaultTools looks each binary up next to the running executable first and
// then on $PATH. Unresolvable names are kept as-is so that the failure surfaces
// as a not-found ExitError when the tool is first needed.
func DefaultTools() Tools {
	return Tools{
		Prefetch:    LookPath("prefetch"),
		FasterqDump: LookPath("fasterq-dump"),
		Kraken2:     LookPath("kraken2"),
		Bracken:     LookPath("bracken"),
	}
}

// LookPath resolves name to an executable path.
func LookPath(name string) string {
	if folder, err := osext.ExecutableFolder(); err == nil {
		candidate := filepath.Join(folder, name)
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() && fi.Mode()&0111 != 0 {
			return candidate
		}
	}

	if p, err := exec.LookPath(name); err == nil {
		return p
	}

	return name
}

// Override replaces any tool whose override is non-empty.
func (t Tools) Override(o Tools) Tools {
	if o.Prefetch != "" {
		t.Prefetch = o.Prefetch
	}
	if o.FasterqDump != "" {
		t.FasterqDump = o.FasterqDump
	}
	if o.Kraken2 != "" {
		t.Kraken2 = o.Kraken2
	}
	if o.Bracken != "" {
		t.Bracken = o.Bracken
	}
	return t
}
