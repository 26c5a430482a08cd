package sample

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/metacompare"
	"github.com/carbocation/metacompare/toolrun"
	"github.com/carbocation/pfx"
)

// Resolver turns specifiers into sequence files inside a run's working
// directory.
type Resolver struct {
	Tools  toolrun.Tools
	Runner toolrun.Runner

	// Storage is only needed for gs:// specifiers.
	Storage *storage.Client
}

// Resolve produces the FileSet for spec. Archive accessions and bucket objects
// are materialized in stageDir; local files are used in place unless the
// classifier cannot read their compression, in which case a decompressed copy
// is written to stageDir. stageDir must belong to this sample alone: two
// samples can share an id, so staging by id is not enough to keep their reads
// apart.
func (r *Resolver) Resolve(ctx context.Context, spec Specifier, stageDir string) (FileSet, error) {
	id := spec.ID()
	if id == "" {
		return FileSet{}, &InputError{Value: spec.Value, Reason: "no usable sample identifier"}
	}

	var fs FileSet
	var err error

	switch spec.Kind {
	case LocalFile:
		log.Println("Using local FASTQ", spec.Value)
		fs, err = r.resolveLocal(spec.Value, id, stageDir)
	case GoogleStorage:
		log.Println("Fetching", spec.Value, "from Google Storage")
		fs, err = r.resolveGoogleStorage(ctx, spec.Value, id, stageDir)
	default:
		log.Printf("Downloading SRA accession %s\n", spec.Value)
		fs, err = r.resolveAccession(ctx, spec.Value, id, stageDir)
	}
	if err != nil {
		return FileSet{}, err
	}

	if err := fs.Validate(); err != nil {
		return FileSet{}, pfx.Err(err)
	}

	return fs, nil
}

func (r *Resolver) resolveLocal(file, id, stageDir string) (FileSet, error) {
	if !IsSequenceFile(file) {
		return FileSet{}, &InputError{Value: file, Reason: "does not look like a FASTQ; please use .fastq or .fastq.gz"}
	}

	dt, err := metacompare.DetectFileDataType(file)
	if err != nil {
		return FileSet{}, &InputError{Value: file, Reason: err.Error()}
	}

	if ClassifierReadable(dt) {
		return FileSet{ID: id, Files: []string{file}, Compression: dt}, nil
	}

	// xz, zip and .Z inputs need to be unpacked before classification
	dst := filepath.Join(stageDir, id+".fastq")
	log.Printf("Decompressing %s input %s to %s\n", dt, file, dst)
	if err := decompressTo(file, dst); err != nil {
		return FileSet{}, &InputError{Value: file, Reason: err.Error()}
	}

	return FileSet{ID: id, Files: []string{dst}, Compression: metacompare.DataTypeNoCompression}, nil
}

// ClassifierReadable reports whether the classifier can consume dt directly.
func ClassifierReadable(dt metacompare.DataType) bool {
	switch dt {
	case metacompare.DataTypeNoCompression, metacompare.DataTypeGzip, metacompare.DataTypeBZip2:
		return true
	}
	return false
}

func decompressTo(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	rdr, err := metacompare.MaybeDecompressReadCloserFromFile(in)
	if err != nil {
		return err
	}
	defer rdr.Close()

	if err := os.MkdirAll(filepath.Dir(dst), os.ModePerm); err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, rdr); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}

func (r *Resolver) resolveGoogleStorage(ctx context.Context, object, id, stageDir string) (FileSet, error) {
	name := path.Base(object)
	if !IsSequenceFile(name) {
		return FileSet{}, &InputError{Value: object, Reason: "does not look like a FASTQ; please use .fastq or .fastq.gz"}
	}
	if r.Storage == nil {
		return FileSet{}, &FetchError{Source: object, Err: fmt.Errorf("no Google Storage client configured")}
	}

	dst := filepath.Join(stageDir, name)
	if err := os.MkdirAll(filepath.Dir(dst), os.ModePerm); err != nil {
		return FileSet{}, &FetchError{Source: object, Err: err}
	}

	rdr, size, err := metacompare.MaybeOpenFromGoogleStorage(ctx, object, r.Storage)
	if err != nil {
		return FileSet{}, &FetchError{Source: object, Err: err}
	}
	defer rdr.Close()

	log.Printf("Copying %d bytes from %s to %s\n", size, object, dst)

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return FileSet{}, &FetchError{Source: object, Err: err}
	}
	if _, err := io.Copy(out, rdr); err != nil {
		out.Close()
		return FileSet{}, &FetchError{Source: object, Err: err}
	}
	if err := out.Close(); err != nil {
		return FileSet{}, &FetchError{Source: object, Err: err}
	}

	return r.resolveLocal(dst, id, stageDir)
}

func (r *Resolver) resolveAccession(ctx context.Context, acc, id, stageDir string) (FileSet, error) {
	sraDir := stageDir
	tmpDumpDir := filepath.Join(sraDir, "tmp_dump")
	if err := os.MkdirAll(tmpDumpDir, os.ModePerm); err != nil {
		return FileSet{}, &FetchError{Source: acc, Err: err}
	}

	prefetch := toolrun.Command{
		Stage: "fetch",
		Path:  r.Tools.Prefetch,
		Args:  []string{acc, "--output-directory", sraDir, "--max-size", "500G"},
	}
	if err := r.Runner.Run(ctx, prefetch); err != nil {
		return FileSet{}, &FetchError{Source: acc, Err: err}
	}

	dump := toolrun.Command{
		Stage: "fetch",
		Path:  r.Tools.FasterqDump,
		Args:  []string{acc, "-O", sraDir, "--temp", tmpDumpDir, "--split-files"},
	}
	if err := r.Runner.Run(ctx, dump); err != nil {
		return FileSet{}, &FetchError{Source: acc, Err: err}
	}

	files, err := pickDumpedFiles(sraDir, acc)
	if err != nil {
		return FileSet{}, &FetchError{Source: acc, Err: err}
	}

	return FileSet{ID: id, Files: files, Compression: metacompare.DataTypeNoCompression}, nil
}

// pickDumpedFiles chooses the reads fasterq-dump wrote for acc. With
// --split-files, paired runs produce acc_1.fastq and acc_2.fastq (and possibly
// an unpaired acc.fastq, which is ignored); single-end runs produce one file.
func pickDumpedFiles(dir, acc string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, acc+"*.fastq"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	var mate1, mate2 string
	for _, m := range matches {
		switch strings.TrimPrefix(filepath.Base(m), acc) {
		case "_1.fastq":
			mate1 = m
		case "_2.fastq":
			mate2 = m
		}
	}

	switch {
	case mate1 != "" && mate2 != "":
		return []string{mate1, mate2}, nil
	case len(matches) == 1:
		return matches, nil
	case len(matches) == 0:
		return nil, fmt.Errorf("fasterq-dump failed to produce FASTQ files for %s", acc)
	}

	return nil, fmt.Errorf("fasterq-dump produced %d FASTQ files for %s without a _1/_2 pair: %v", len(matches), acc, matches)
}
