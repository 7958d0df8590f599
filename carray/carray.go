/*
Package carray serializes a finished byte blob into a C header and source
file pair, as 32-bit hex literals. It contains no knowledge of the blob's
contents; the emitted arrays reproduce the input byte for byte.
*/
package carray

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

const wordsPerLine = 8

var errUnaligned = errors.New("carray: data length not a multiple of 4")

func symbol(name string) string {
	return strings.ToUpper(name)
}

// WriteHeader emits the .h declaration for the named data blob.
func WriteHeader(w io.Writer, name string, data []byte) error {
	if len(data)%4 != 0 {
		return errUnaligned
	}
	sym := symbol(name)
	_, err := fmt.Fprintf(w, `// Generated by gbavid, do not edit
#pragma once

#include <stdint.h>

#define %s_SIZE %d // bytes

extern const uint32_t %s_DATA[%d];
`, sym, len(data), sym, len(data)/4)
	return err
}

// WriteSource emits the .c definition for the named data blob.
func WriteSource(w io.Writer, name string, data []byte) error {
	if len(data)%4 != 0 {
		return errUnaligned
	}
	sym := symbol(name)
	if _, err := fmt.Fprintf(w, "// Generated by gbavid, do not edit\n\n#include \"%s.h\"\n\nconst uint32_t %s_DATA[%d] = {\n", strings.ToLower(name), sym, len(data)/4); err != nil {
		return err
	}
	for i := 0; i < len(data); i += 4 {
		word := i / 4
		if word%wordsPerLine == 0 {
			if _, err := io.WriteString(w, "\t"); err != nil {
				return err
			}
		}
		sep := " "
		if word%wordsPerLine == wordsPerLine-1 || i+4 == len(data) {
			sep = "\n"
		}
		if _, err := fmt.Fprintf(w, "0x%08x,%s", binary.LittleEndian.Uint32(data[i:]), sep); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "};\n")
	return err
}
