package sample

import "fmt"

// InputError means the caller's specifier can never resolve, e.g. a local
// file that is not FASTQ.
type InputError struct {
	Value  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input %q: %s", e.Value, e.Reason)
}

// FetchError means an archive or bucket object could not be turned into
// sequence files.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
