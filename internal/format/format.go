// Package format provides a registry mapping file extensions to the model
// document formats that can decode them.
package format

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/phobologic/cellanalyser/internal/model"
)

// Format decodes one kind of model document.
type Format struct {
	Name       string
	Extensions []string

	// Decode builds a model from the document bytes.
	Decode func(data []byte) (*model.Model, error)
}

// Formats maps format names to their configuration.
// Populated by init() functions in per-format files.
var Formats = map[string]*Format{}

// extensionMap is built lazily after all init() functions have run.
var extensionMap map[string]string
var extensionOnce sync.Once

func getExtensionMap() map[string]string {
	extensionOnce.Do(func() {
		extensionMap = make(map[string]string)
		for _, f := range Formats {
			for _, ext := range f.Extensions {
				extensionMap[ext] = f.Name
			}
		}
	})
	return extensionMap
}

// ForExtension returns the format name for a file extension, or "" if
// unsupported. The match ignores case.
func ForExtension(ext string) string {
	return getExtensionMap()[strings.ToLower(ext)]
}

// Load reads the document at path and decodes it with the format registered
// for its extension. Paths with an unsupported extension are rejected before
// any read.
func Load(path string) (*model.Model, error) {
	if ForExtension(filepath.Ext(path)) == "" {
		return nil, fmt.Errorf("%s: unsupported model format", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model: %w", err)
	}
	return DecodeFile(path, data)
}

// DecodeFile decodes data, the contents of path, with the format registered
// for the extension of path.
func DecodeFile(path string, data []byte) (*model.Model, error) {
	name := ForExtension(filepath.Ext(path))
	if name == "" {
		return nil, fmt.Errorf("%s: unsupported model format", path)
	}
	m, err := Formats[name].Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s model %s: %w", name, path, err)
	}
	return m, nil
}

// componentIndex maps component names to components, first declaration wins.
func componentIndex(m *model.Model) map[string]*model.Component {
	index := make(map[string]*model.Component)
	m.Walk(func(c *model.Component) {
		if _, dup := index[c.Name]; !dup {
			index[c.Name] = c
		}
	})
	return index
}

// connect links variable1 of c1 with variable2 of c2.
func connect(index map[string]*model.Component, c1, c2, variable1, variable2 string) error {
	comp1, ok := index[c1]
	if !ok {
		return fmt.Errorf("connection references unknown component %q", c1)
	}
	comp2, ok := index[c2]
	if !ok {
		return fmt.Errorf("connection references unknown component %q", c2)
	}
	v1 := comp1.Variable(variable1)
	if v1 == nil {
		return fmt.Errorf("connection references unknown variable %q in component %q", variable1, c1)
	}
	v2 := comp2.Variable(variable2)
	if v2 == nil {
		return fmt.Errorf("connection references unknown variable %q in component %q", variable2, c2)
	}
	model.Connect(v1, v2)
	return nil
}
