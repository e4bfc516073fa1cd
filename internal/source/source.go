// Package source loads export documents for the decoder.
package source

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// Stdin is the path that selects standard input.
const Stdin = "-"

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// Read returns the whole export at path, or stdin when path is "-", with a
// leading UTF-8 byte order mark removed.
func Read(path string, stdin io.Reader) ([]byte, error) {
	var data []byte
	var err error
	if path == Stdin {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	return bytes.TrimPrefix(data, byteOrderMark), nil
}
