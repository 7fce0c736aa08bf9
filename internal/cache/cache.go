// Package cache stores rendered output keyed by a hash of everything that
// produced it.
package cache

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const headerPrefix = "# cellanalyser cache "

// Input is one file that contributed to the cached output.
type Input struct {
	Path string
	Data []byte
}

// Key hashes options and every input's path and contents, in order.
func Key(options string, inputs []Input) string {
	d := xxhash.New()
	_, _ = d.WriteString(options)
	for _, in := range inputs {
		_, _ = d.WriteString("\x00")
		_, _ = d.WriteString(in.Path)
		_, _ = d.WriteString("\x00")
		_, _ = d.Write(in.Data)
	}
	return fmt.Sprintf("%016x", d.Sum64())
}

// Read returns the output cached at path if it was written under key.
func Read(path, key string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	header, body, ok := bytes.Cut(data, []byte("\n"))
	if !ok || string(header) != headerPrefix+key {
		return "", false
	}
	return string(body), true
}

// Write stores output at path under key.
func Write(path, key, output string) error {
	if strings.ContainsAny(key, "\n\r") {
		return errors.New("cache key must be a single line")
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating cache: %w", err)
	}
	w := bufio.NewWriter(f)
	_, _ = w.WriteString(headerPrefix + key + "\n")
	_, _ = w.WriteString(output)
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing cache: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing cache: %w", err)
	}
	return nil
}
