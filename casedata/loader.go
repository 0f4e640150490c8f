// Package casedata loads intervention case declarations from YAML or JSON files, including the
// built-in corpus embedded in the binary, into a Registry.
package casedata

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"reflect"
	"strings"

	"github.com/webcompat/interventions-harness/casedef"

	"gopkg.in/yaml.v3"
)

//go:embed data-files
var dataFilesRoot embed.FS

const dataBasePath = "data-files"

// SourceInfo is one case together with the file it came from.
type SourceInfo struct {
	FilePath string
	Case     casedef.Case
}

// Builtin returns the embedded case files as a file system rooted at their directory.
func Builtin() fs.FS {
	sub, err := fs.Sub(dataFilesRoot, dataBasePath)
	if err != nil {
		panic(err) // the embed directive guarantees the directory exists
	}
	return sub
}

// LoadDataFile decodes every case in a file. A file may hold a single case, a mapping with a
// "cases" list, or several YAML documents separated by "---".
func LoadDataFile(fsys fs.FS, filePath string) ([]SourceInfo, error) {
	f, err := fsys.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", filePath, err)
	}
	defer f.Close() //nolint:errcheck

	var ret []SourceInfo
	decoder := yaml.NewDecoder(f)
	for {
		var doc yaml.Node
		if err := decoder.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("error parsing %q: %w", filePath, err)
		}
		cases, err := decodeCases(&doc)
		if err != nil {
			return nil, fmt.Errorf("error parsing %q: %w", filePath, err)
		}
		for _, c := range cases {
			ret = append(ret, SourceInfo{FilePath: filePath, Case: c})
		}
	}
	if len(ret) == 0 {
		return nil, fmt.Errorf("%q contains no cases", filePath)
	}
	return ret, nil
}

func decodeCases(doc *yaml.Node) ([]casedef.Case, error) {
	root := doc
	if root.Kind == yaml.DocumentNode && len(root.Content) == 1 {
		root = root.Content[0]
	}
	if hasKey(root, "cases") {
		var wrapper struct {
			Cases []casedef.Case `yaml:"cases"`
		}
		if err := decodeStrict(root, &wrapper); err != nil {
			return nil, err
		}
		return wrapper.Cases, nil
	}
	var c casedef.Case
	if err := decodeStrict(root, &c); err != nil {
		return nil, err
	}
	return []casedef.Case{c}, nil
}

// decodeStrict decodes node into out and then rejects any mapping key that out has no field
// for. yaml.Node.Decode cannot do the second part, so the node is re-encoded and run through a
// decoder with KnownFields set. Value errors come from the first pass so their line numbers
// refer to the original file.
func decodeStrict(node *yaml.Node, out interface{}) error {
	if err := node.Decode(out); err != nil {
		return err
	}
	data, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	return decoder.Decode(reflect.New(reflect.TypeOf(out).Elem()).Interface())
}

func hasKey(node *yaml.Node, key string) bool {
	if node.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return true
		}
	}
	return false
}

// LoadAllDataFiles reads every .yaml, .yml or .json file under dir, recursively, in lexical
// order.
func LoadAllDataFiles(fsys fs.FS, dir string) ([]SourceInfo, error) {
	var ret []SourceInfo
	err := fs.WalkDir(fsys, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isDataFile(p) {
			return nil
		}
		sources, err := LoadDataFile(fsys, p)
		if err != nil {
			return err
		}
		ret = append(ret, sources...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

func isDataFile(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}
