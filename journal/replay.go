package journal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// ReplayResult summarizes a replay.
type ReplayResult struct {
	// Lines is the number of complete record lines read, malformed ones included.
	Lines int
	// Skipped is the number of malformed lines that were ignored.
	Skipped int
	// Torn is set when the final line lacked its newline. The partial line is
	// not applied and not counted; the journal should be rebuilt.
	Torn bool
}

// Replay reads the journal at path and calls fn for each well-formed record in
// order.
//
// A header that does not match appVersion returns an error wrapping
// ErrIncompatible. Malformed record lines are skipped. Read errors abort the
// replay.
func Replay(path string, appVersion int, fn func(rec Record), optFns ...func(o *Options)) (ReplayResult, error) {
	opts := applyOptions(optFns)

	file, err := opts.FileSystem.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("failed to open journal: %w", err)
	}
	defer func() { _ = file.Close() }()

	r := bufio.NewReaderSize(file, opts.BufferSize)
	if err := ReadHeader(r, appVersion); err != nil {
		return ReplayResult{}, err
	}

	var res ReplayResult
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				res.Torn = len(line) > 0
				return res, nil
			}
			return res, fmt.Errorf("failed to read journal line %d: %w", res.Lines+1, err)
		}

		res.Lines++
		rec, perr := ParseRecord(line[:len(line)-1])
		if perr != nil {
			res.Skipped++
			continue
		}
		fn(rec)
	}
}
