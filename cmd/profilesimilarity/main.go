// profilesimilarity recomputes the similarity log of a finished comparison
// from its merged profile, which may be local or in Google Storage. The log
// is printed to stdout unless -out is given.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"strings"

	_ "github.com/carbocation/metacompare/compileinfoprint"

	"cloud.google.com/go/storage"
	"github.com/carbocation/metacompare"
	"github.com/carbocation/metacompare/profile"
	"github.com/carbocation/metacompare/similarity"
	"github.com/carbocation/pfx"
)

const mergedSuffix = "_merged.csv"

func main() {
	var mergedPath, idA, idB, outPath string

	flag.StringVar(&mergedPath, "merged", "", "Path to a {idA}_{idB}_merged.csv file. May be a gs:// path.")
	flag.StringVar(&idA, "id-a", "", "(Optional) Metagenomic sample ID. Derived from the file name if not set.")
	flag.StringVar(&idB, "id-b", "", "(Optional) Metatranscriptomic sample ID. Derived from the file name if not set.")
	flag.StringVar(&outPath, "out", "", "(Optional) File to write the similarity log to. Defaults to stdout.")
	flag.Parse()

	if mergedPath == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	var err error
	if mergedPath, err = metacompare.ExpandHome(mergedPath); err != nil {
		log.Fatalln(err)
	}
	if outPath, err = metacompare.ExpandHome(outPath); err != nil {
		log.Fatalln(err)
	}

	if idA == "" || idB == "" {
		derivedA, derivedB, err := idsFromName(mergedPath)
		if err != nil {
			log.Fatalln(err, "; please set -id-a and -id-b")
		}
		if idA == "" {
			idA = derivedA
		}
		if idB == "" {
			idB = derivedB
		}
	}

	p, err := readMerged(context.Background(), mergedPath)
	if err != nil {
		log.Fatalln(err)
	}

	res := similarity.Compute(idA, idB, p)

	if outPath == "" {
		if err := similarity.WriteLog(os.Stdout, res); err != nil {
			log.Fatalln(err)
		}
		return
	}

	if err := similarity.WriteLogFile(outPath, res); err != nil {
		log.Fatalln(err)
	}
	log.Println("Wrote", outPath)
}

func readMerged(ctx context.Context, mergedPath string) (*profile.Profile, error) {
	var client *storage.Client
	if metacompare.IsGoogleStoragePath(mergedPath) {
		var err error
		client, err = storage.NewClient(ctx)
		if err != nil {
			return nil, pfx.Err(err)
		}
		defer client.Close()
	}

	rc, _, err := metacompare.MaybeOpenFromGoogleStorage(ctx, mergedPath, client)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer rc.Close()

	return readProfile(rc)
}

func readProfile(r io.Reader) (*profile.Profile, error) {
	return profile.ReadCSV(r, profile.Outer)
}

// idsFromName splits {idA}_{idB}_merged.csv at its first underscore. IDs
// that themselves contain underscores have to be given explicitly.
func idsFromName(name string) (string, string, error) {
	base := path.Base(name)
	if !strings.HasSuffix(base, mergedSuffix) {
		return "", "", fmt.Errorf("%s does not end in %s", base, mergedSuffix)
	}
	base = strings.TrimSuffix(base, mergedSuffix)

	parts := strings.SplitN(base, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("cannot derive two sample IDs from %s", name)
	}

	return parts[0], parts[1], nil
}
