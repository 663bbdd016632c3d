package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type SourceKind string

const (
	SourceDefault SourceKind = "default"
	SourceFile    SourceKind = "file"
)

type Source struct {
	Kind   SourceKind
	Name   string // for default
	File   string
	Line   int
	Column int
}

func (s Source) String() string {
	if s.Kind == SourceFile {
		return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Column)
	}
	return string(s.Kind)
}

type LoadResult struct {
	Config  *Config
	Sources map[string]Source // YAML-path -> last writer source (file only)
	Files   []string          // all loaded files, in load order
}

// Load reads the merged configuration from the standard location. A missing
// file yields the defaults.
func Load() (*Config, error) {
	res, err := LoadWithSources()
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}

// EnvConfigPath names a config file to use instead of the default location.
const EnvConfigPath = "INTEROP_CONFIG"

// LoadWithSources loads config and returns file-level sources for introspection.
func LoadWithSources() (*LoadResult, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return LoadFromPath(path)
	}
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads path and the chain of base files it names. Keys in a
// file override the same keys in its base. A missing path yields the
// defaults; a missing base is an error.
func LoadFromPath(path string) (*LoadResult, error) {
	chain, err := readChain(path)
	if err != nil {
		return nil, err
	}

	raw := RawConfig{}
	sources := map[string]Source{}
	files := make([]string, 0, len(chain))
	for i := len(chain) - 1; i >= 0; i-- {
		l := chain[i]
		raw = raw.merge(l.raw)
		for k, src := range l.sources {
			sources[k] = src
		}
		files = append(files, l.file)
	}

	cfg, err := BuildEffectiveConfig(raw)
	if err != nil {
		return nil, attachSourceContext(err, sources)
	}
	return &LoadResult{Config: cfg, Sources: sources, Files: files}, nil
}

// layer is one parsed config file.
type layer struct {
	file    string
	raw     RawConfig
	sources map[string]Source
	baseAt  Source
}

// readChain reads path and then each base in turn. The first element is
// path itself.
func readChain(path string) ([]layer, error) {
	var chain []layer
	next := path
	for {
		file, err := filepath.Abs(next)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", next, err)
		}
		for _, l := range chain {
			if l.file == file {
				return nil, fmt.Errorf("base cycle: %s", cycleString(chain, file))
			}
		}

		l, err := readLayer(file)
		if err != nil {
			if len(chain) == 0 {
				if errors.Is(err, fs.ErrNotExist) {
					return nil, nil
				}
				return nil, err
			}
			from := chain[len(chain)-1]
			return nil, fmt.Errorf("%s: base %q: %w", from.baseAt, *from.raw.Base, err)
		}
		chain = append(chain, l)

		if l.raw.Base == nil {
			return chain, nil
		}
		next, err = resolveBase(file, *l.raw.Base)
		if err != nil {
			return nil, fmt.Errorf("%s: base: %w", l.baseAt, err)
		}
	}
}

func readLayer(file string) (layer, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return layer{}, err
	}

	var raw RawConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return layer{}, fmt.Errorf("%s: %w", file, err)
	}

	l := layer{file: file, raw: raw, sources: map[string]Source{}}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return layer{}, fmt.Errorf("%s: %w", file, err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return l, nil
	}
	top := doc.Content[0].Content
	for i := 0; i+1 < len(top); i += 2 {
		val := top[i+1]
		src := Source{Kind: SourceFile, File: file, Line: val.Line, Column: val.Column}
		if top[i].Value == "base" {
			l.baseAt = src
			continue
		}
		l.sources[top[i].Value] = src
	}
	return l, nil
}

// resolveBase interprets ref relative to the directory of the file naming it.
func resolveBase(file, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("path is empty")
	}
	if rest, ok := strings.CutPrefix(ref, "~/"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		ref = filepath.Join(home, rest)
	}
	if filepath.IsAbs(ref) {
		return ref, nil
	}
	return filepath.Join(filepath.Dir(file), ref), nil
}

func cycleString(chain []layer, back string) string {
	names := make([]string, 0, len(chain)+1)
	for _, l := range chain {
		names = append(names, filepath.Base(l.file))
	}
	return strings.Join(append(names, filepath.Base(back)), " -> ")
}

func attachSourceContext(err error, sources map[string]Source) error {
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Path == "" {
		return err
	}
	if src, ok := sources[verr.Path]; ok {
		verr.Source = src
	}
	return verr
}
