package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/graft/bytecode"
	"github.com/chazu/graft/ident"
)

// Config represents a graft.toml configuration: the identifiers a pattern
// set declares ahead of matching.
type Config struct {
	Identifiers Identifiers `toml:"identifiers"`

	// Dir is the directory containing the graft.toml file (set at load time).
	Dir string `toml:"-"`
}

// Identifiers declares pattern-language names.
type Identifiers struct {
	Types   []TypeDecl   `toml:"type"`
	Members []MemberDecl `toml:"member"`
}

// TypeDecl maps a name to a scalar type kind.
type TypeDecl struct {
	Name string `toml:"name"`
	Kind string `toml:"kind"` // int, long, float, double, ref
}

// MemberDecl maps a name to either an opcode or a named method call.
type MemberDecl struct {
	Name   string `toml:"name"`
	Opcode string `toml:"opcode"` // opcode table name, e.g. ARRAY_LENGTH
	Invoke string `toml:"invoke"` // called method name
}

var kindTypes = map[string]bytecode.Type{
	"int":    bytecode.I32,
	"long":   bytecode.I64,
	"float":  bytecode.F32,
	"double": bytecode.F64,
	"ref":    bytecode.Ref,
}

// LoadConfig parses a graft.toml file from the given directory.
func LoadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, "graft.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return &c, nil
}

// FindAndLoadConfig walks up from startDir to find a graft.toml file, then
// loads and returns it. Returns nil if no config is found.
func FindAndLoadConfig(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "graft.toml")
		if _, err := os.Stat(path); err == nil {
			return LoadConfig(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Apply registers every declared identifier into pool. Malformed
// declarations are configuration errors.
func (c *Config) Apply(pool *ident.Pool) error {
	for _, t := range c.Identifiers.Types {
		kind, ok := kindTypes[t.Kind]
		if !ok {
			return fmt.Errorf("config: type %q: unknown kind %q", t.Name, t.Kind)
		}
		pool.RegisterType(t.Name, ident.ExactType(kind))
	}
	for _, m := range c.Identifiers.Members {
		switch {
		case m.Opcode != "":
			op, ok := bytecode.OpcodeByName(m.Opcode)
			if !ok {
				return fmt.Errorf("config: member %q: unknown opcode %q", m.Name, m.Opcode)
			}
			pool.RegisterMember(m.Name, ident.OpcodeMember(op))
		case m.Invoke != "":
			pool.RegisterMember(m.Name, ident.NamedInvokeMember(m.Invoke))
		default:
			return fmt.Errorf("config: member %q: needs opcode or invoke", m.Name)
		}
	}
	return nil
}
