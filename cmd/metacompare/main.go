// metacompare compares the metagenomic (metaG) and metatranscriptomic (metaT)
// sequencing of one sample. Each input may be an SRA accession, a local FASTQ
// file, or a FASTQ object in Google Storage. Both are classified with Kraken2,
// re-estimated at species level with Bracken, aligned by taxon, and scored
// with cosine similarity and the sum of absolute differences.
//
// Results are written to {out}/{idA}_{idB}/. The process exits with the
// failing tool's exit code when an external tool fails, and 1 on any other
// error.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	_ "github.com/carbocation/metacompare/compileinfoprint"

	"github.com/carbocation/metacompare"
	"github.com/carbocation/metacompare/kraken"
	"github.com/carbocation/metacompare/pipeline"
)

func main() {
	var cfg pipeline.Config
	var catalogPath string
	var bq bqConfig

	flag.StringVar(&cfg.Genomic, "genomic", "", "Metagenomic (metaG) sample: an SRA accession (e.g., SRR123456), a local .fastq/.fastq.gz file, or a gs:// path")
	flag.StringVar(&cfg.Transcriptomic, "transcriptomic", "", "Metatranscriptomic (metaT) sample: an SRA accession, a local .fastq/.fastq.gz file, or a gs:// path")
	flag.StringVar(&cfg.Database, "db", "", "Path to the Kraken2/Bracken database directory")
	flag.StringVar(&cfg.OutputDir, "out", pipeline.DefaultOutputDir, "Directory under which each comparison gets its own {idA}_{idB} folder")
	flag.StringVar(&cfg.ReadLength, "read-length", pipeline.DefaultReadLength, "Read length passed to Bracken (must match a kmer distribution built for the database)")
	flag.IntVar(&cfg.Threads, "threads", kraken.DefaultThreads, "Number of threads for Kraken2")
	flag.IntVar(&cfg.Threshold, "bracken-threshold", kraken.DefaultThreshold, "Minimum number of reads required for a taxon in Bracken abundance estimation")
	flag.BoolVar(&cfg.Parallel, "parallel", false, "(Optional) Classify the metaG and metaT samples at the same time. Needs enough memory for two Kraken2 databases.")
	flag.BoolVar(&cfg.KeepFastq, "keep-fastq", false, "(Optional) Keep downloaded, copied and decompressed FASTQ files after a successful run. They are always kept when a run fails.")
	flag.StringVar(&cfg.Tools.Kraken2, "kraken2", "", "(Optional) Path to the kraken2 binary. Defaults to the one next to this binary, then $PATH.")
	flag.StringVar(&cfg.Tools.Bracken, "bracken", "", "(Optional) Path to the bracken binary.")
	flag.StringVar(&cfg.Tools.Prefetch, "prefetch", "", "(Optional) Path to the SRA toolkit prefetch binary.")
	flag.StringVar(&cfg.Tools.FasterqDump, "fasterq-dump", "", "(Optional) Path to the SRA toolkit fasterq-dump binary.")
	flag.StringVar(&catalogPath, "catalog", "", "(Optional) sqlite file in which to record every run, successful or not")
	flag.StringVar(&bq.Project, "bq-project", "", "(Optional) Google Cloud project for uploading the merged profile to BigQuery")
	flag.StringVar(&bq.Dataset, "bq-dataset", "", "(Optional) BigQuery dataset for the upload")
	flag.StringVar(&bq.Table, "bq-table", "", "(Optional) BigQuery table for the upload. Created if it does not exist.")
	flag.Parse()

	if cfg.Genomic == "" || cfg.Transcriptomic == "" || cfg.Database == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	var err error
	for _, p := range []*string{&cfg.Genomic, &cfg.Transcriptomic, &cfg.Database, &cfg.OutputDir, &catalogPath} {
		if *p, err = metacompare.ExpandHome(*p); err != nil {
			log.Fatalln(err)
		}
	}

	log.Println("Started running at", time.Now())

	ctx := context.Background()

	if catalogPath != "" {
		if herr := logHistory(ctx, catalogPath, cfg); herr != nil {
			log.Println("Could not read earlier runs from the catalog:", herr)
		}
	}

	out, err := pipeline.Run(ctx, cfg)

	if catalogPath != "" {
		if cerr := recordRun(ctx, catalogPath, out, err); cerr != nil {
			log.Println("Could not record the run in the catalog:", cerr)
		}
	}

	if err == nil && bq.Enabled() {
		if berr := bq.export(ctx, out); berr != nil {
			log.Println("Could not upload the merged profile to BigQuery:", berr)
		}
	}

	log.Println("Completed at", time.Now())

	if err != nil {
		log.Println(err)
		os.Exit(pipeline.ExitCode(err))
	}
}
