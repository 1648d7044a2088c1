package journal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
)

const headerLines = 4

// WriteHeader writes the four header lines for appVersion.
func WriteHeader(w io.Writer, appVersion int) error {
	hdr := Magic + "\n" + Version + "\n" + strconv.Itoa(appVersion) + "\n\n"
	if _, err := io.WriteString(w, hdr); err != nil {
		return fmt.Errorf("failed to write journal header: %w", err)
	}
	return nil
}

// ReadHeader consumes and verifies the header from r.
//
// Any deviation, including a header cut short, returns an error wrapping
// ErrIncompatible. Read failures other than EOF are returned as is.
func ReadHeader(r *bufio.Reader, appVersion int) error {
	var got [headerLines]string
	for i := range got {
		line, err := r.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: truncated header", ErrIncompatible)
			}
			return fmt.Errorf("failed to read journal header: %w", err)
		}
		got[i] = line[:len(line)-1]
	}

	want := [headerLines]string{Magic, Version, strconv.Itoa(appVersion), ""}
	if got != want {
		return fmt.Errorf("%w: unexpected header [%s, %s, %s, %s]", ErrIncompatible, got[0], got[1], got[2], got[3])
	}
	return nil
}
