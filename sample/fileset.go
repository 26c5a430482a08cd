package sample

import (
	"fmt"

	"github.com/carbocation/metacompare"
)

// FileSet is the concrete set of sequence files for one sample: one file for
// single-end data, two for paired-end.
type FileSet struct {
	ID    string
	Files []string

	// Compression is shared by every file in the set. Only plain, gzip and
	// bzip2 are ever handed to the classifier.
	Compression metacompare.DataType
}

func (fs FileSet) Paired() bool {
	return len(fs.Files) == 2
}

func (fs FileSet) Validate() error {
	if fs.ID == "" {
		return fmt.Errorf("sample has an empty identifier")
	}
	if len(fs.Files) < 1 || len(fs.Files) > 2 {
		return fmt.Errorf("sample %s: expected 1 or 2 sequence files, found %d", fs.ID, len(fs.Files))
	}
	return nil
}
