package registry

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/syssam/flatgraph"
	"github.com/syssam/flatgraph/compiler/load"
	"github.com/syssam/flatgraph/schema"
)

type visit uint8

const (
	unvisited visit = iota
	visiting
	visited
)

type definition struct {
	source string
	typ    *load.Type
}

type builder struct {
	log     *slog.Logger
	order   []*load.Source
	sources map[string]*load.Source // by key.
	members map[string][]string     // source key to type keys.
	state   map[string]visit
	stack   []string
	reg     *Registry
}

func (b *builder) build(sources []*load.Source) error {
	for _, t := range []*schema.RecordType{schema.CatchAll(), schema.CommentOnly()} {
		b.reg.types = append(b.reg.types, t)
		b.reg.names[schema.Key(t.Name)] = t
	}
	if err := b.index(sources); err != nil {
		return err
	}
	defs, err := b.definitions()
	if err != nil {
		return err
	}
	if err := b.number(defs); err != nil {
		return err
	}
	for _, s := range b.order {
		if _, err := b.resolve(s.Name, ""); err != nil {
			return err
		}
	}
	for _, s := range b.order {
		ft := fileOf(s)
		for _, k := range b.members[schema.Key(s.Name)] {
			t := b.reg.names[k]
			if !slices.Contains(t.Files, ft) {
				t.Files = append(t.Files, ft)
			}
		}
	}
	return nil
}

// index registers sources and their file metadata.
func (b *builder) index(sources []*load.Source) error {
	owners := make(map[schema.FileType]string, len(sources))
	for _, s := range sources {
		if s == nil {
			return flatgraph.NewConfigurationError("", "nil schema source", nil)
		}
		if strings.TrimSpace(s.Name) == "" {
			return flatgraph.NewConfigurationError("", "source name cannot be empty", nil)
		}
		k := schema.Key(s.Name)
		if _, ok := b.sources[k]; ok {
			return flatgraph.NewConfigurationError(s.Name, "source declared twice", nil)
		}
		ft := fileOf(s)
		if ft.Pseudo() {
			return flatgraph.NewConfigurationError(s.Name, fmt.Sprintf("pseudo file type %q cannot be declared", ft), nil)
		}
		if owner, ok := owners[ft]; ok {
			return flatgraph.NewConfigurationError(s.Name, fmt.Sprintf("file type %q already declared by source %q", ft, owner), nil)
		}
		owners[ft] = s.Name
		b.sources[k] = s
		b.order = append(b.order, s)
		b.reg.files = append(b.reg.files, ft)
		b.reg.meta[ft] = &fileMeta{source: s.Name, version: s.Version, header: s.Header}
	}
	return nil
}

// definitions collects the entries carrying fields, keyed by type name.
func (b *builder) definitions() (map[string]definition, error) {
	defs := make(map[string]definition)
	for _, s := range b.order {
		for _, t := range s.Types {
			k := schema.Key(t.Name)
			if _, ok := b.reg.names[k]; ok {
				return nil, flatgraph.NewConfigurationError(s.Name, fmt.Sprintf("record type name %q is reserved", t.Name), nil)
			}
			if !t.Defines() {
				continue
			}
			if prev, ok := defs[k]; ok {
				return nil, flatgraph.NewConfigurationError(s.Name, fmt.Sprintf("record type %q already defined by source %q", t.Name, prev.source), nil)
			}
			defs[k] = definition{source: s.Name, typ: t}
		}
	}
	return defs, nil
}

// number builds the record types and assigns ids in first-appearance order.
func (b *builder) number(defs map[string]definition) error {
	for _, s := range b.order {
		for _, t := range s.Types {
			k := schema.Key(t.Name)
			if _, ok := b.reg.names[k]; ok {
				continue
			}
			entry, source := t, s.Name
			if d, ok := defs[k]; ok {
				entry, source = d.typ, d.source
			}
			rt, err := entry.RecordType()
			if err != nil {
				return flatgraph.NewConfigurationError(source, "invalid record type", err)
			}
			rt.ID = schema.TypeID(len(b.reg.types))
			b.reg.types = append(b.reg.types, rt)
			b.reg.names[k] = rt
		}
	}
	return nil
}

// resolve returns the type keys of a source, its inclusions applied.
func (b *builder) resolve(name, from string) ([]string, error) {
	k := schema.Key(name)
	s, ok := b.sources[k]
	if !ok {
		return nil, flatgraph.NewConfigurationError(from, fmt.Sprintf("include of unknown source %q", name), nil)
	}
	switch b.state[k] {
	case visited:
		return b.members[k], nil
	case visiting:
		cycle := append(slices.Clone(b.stack), s.Name)
		return nil, flatgraph.NewConfigurationError(s.Name, "include cycle: "+strings.Join(cycle, " -> "), nil)
	}
	b.state[k] = visiting
	b.stack = append(b.stack, s.Name)
	defer func() { b.stack = b.stack[:len(b.stack)-1] }()

	var members []string
	seen := make(map[string]struct{})
	add := func(tk string) {
		if _, ok := seen[tk]; !ok {
			seen[tk] = struct{}{}
			members = append(members, tk)
		}
	}
	for _, t := range s.Types {
		add(schema.Key(t.Name))
	}
	for _, inc := range s.Includes {
		inherited, err := b.resolve(inc.Source, s.Name)
		if err != nil {
			return nil, err
		}
		excluded := make(map[string]struct{}, len(inc.Exclude))
		for _, x := range inc.Exclude {
			xk := schema.Key(x)
			if !slices.Contains(inherited, xk) {
				b.warn(s.Name, inc.Source, x)
			}
			excluded[xk] = struct{}{}
		}
		for _, tk := range inherited {
			if _, ok := excluded[tk]; !ok {
				add(tk)
			}
		}
	}
	b.state[k] = visited
	b.members[k] = members
	return members, nil
}

func (b *builder) warn(source, include, excluded string) {
	err := flatgraph.NewConfigurationError(source, fmt.Sprintf("excluded record type %q not found in source %q", excluded, include), nil)
	b.reg.warnings = append(b.reg.warnings, err)
	b.log.Warn("excluded record type not found", "source", source, "include", include, "type", excluded)
}

func fileOf(s *load.Source) schema.FileType {
	if s.File == "" {
		return schema.FileType(s.Name)
	}
	return s.File
}
