package gen

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"unicode"

	"github.com/dave/jennifer/jen"
	"github.com/go-openapi/inflect"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/imports"

	"github.com/syssam/flatgraph/compiler/load"
	"github.com/syssam/flatgraph/registry"
	"github.com/syssam/flatgraph/schema"
)

const (
	loadPkg     = "github.com/syssam/flatgraph/compiler/load"
	registryPkg = "github.com/syssam/flatgraph/registry"
	schemaPkg   = "github.com/syssam/flatgraph/schema"
)

// Generator writes a catalogue package: one file per schema source holding
// its definition, and registry.go holding the record type identifiers and
// the lazily built registry.
type Generator struct {
	cfg     *Config
	sources []*load.Source
	reg     *registry.Registry
	consts  map[schema.TypeID]string
}

// NewGenerator creates a generator. The sources are built into a registry
// first so that configuration errors surface before anything is written,
// and the generated identifiers match the ids of the registry.
func NewGenerator(sources []*load.Source, opts ...Option) (*Generator, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}
	reg, err := registry.Build(sources)
	if err != nil {
		return nil, err
	}
	g := &Generator{
		cfg:     cfg,
		sources: sources,
		reg:     reg,
		consts:  make(map[schema.TypeID]string),
	}
	used := make(map[string]bool)
	for _, t := range reg.All() {
		if t.Synthetic() {
			continue
		}
		name := "Type" + ident(t.Name)
		if used[name] {
			name = fmt.Sprintf("%s%d", name, t.ID)
		}
		used[name] = true
		g.consts[t.ID] = name
	}
	return g, nil
}

// Registry returns the registry the generated package rebuilds.
func (g *Generator) Registry() *registry.Registry { return g.reg }

// TypeConst returns the name of the generated constant for a record type.
func (g *Generator) TypeConst(id schema.TypeID) string {
	switch id {
	case schema.TypeCatchAll:
		return "TypeCatchAll"
	case schema.TypeComment:
		return "TypeComment"
	}
	return g.consts[id]
}

// Generate writes all files in parallel.
func (g *Generator) Generate(ctx context.Context) error {
	if err := os.MkdirAll(g.cfg.Target, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	errg, ctx := errgroup.WithContext(ctx)
	errg.SetLimit(g.cfg.Workers)
	for _, s := range g.sources {
		errg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return g.writeFile(g.genSource(s), sourceFile(s))
			}
		})
	}
	errg.Go(func() error {
		return g.writeFile(g.genRegistry(), "registry.go")
	})
	return errg.Wait()
}

// Generate is a convenience function creating a generator and running it.
func Generate(ctx context.Context, sources []*load.Source, opts ...Option) error {
	g, err := NewGenerator(sources, opts...)
	if err != nil {
		return err
	}
	return g.Generate(ctx)
}

// genRegistry renders the identifiers and the registry accessor.
func (g *Generator) genRegistry() *jen.File {
	f := g.newFile()
	f.Comment("Record type identifiers.")
	f.Const().DefsFunc(func(d *jen.Group) {
		d.Id("TypeCatchAll").Op("=").Qual(schemaPkg, "TypeCatchAll")
		d.Id("TypeComment").Op("=").Qual(schemaPkg, "TypeComment")
		for _, t := range g.reg.All() {
			if t.Synthetic() {
				continue
			}
			d.Id(g.consts[t.ID]).Qual(schemaPkg, "TypeID").Op("=").Lit(int(t.ID))
		}
	})
	f.Line()
	f.Comment("Sources returns the schema sources of the catalogue.")
	f.Func().Id("Sources").Params().Index().Op("*").Qual(loadPkg, "Source").Block(
		jen.Return(jen.Index().Op("*").Qual(loadPkg, "Source").ValuesFunc(func(v *jen.Group) {
			for _, s := range g.sources {
				v.Id(sourceFunc(s)).Call()
			}
		})),
	)
	f.Line()
	f.Comment("Registry returns the process-wide registry, built on first use.")
	f.Var().Id("Registry").Op("=").Qual("sync", "OnceValue").Call(
		jen.Func().Params().Op("*").Qual(registryPkg, "Registry").Block(
			jen.Return(jen.Qual(registryPkg, "MustBuild").Call(jen.Id("Sources").Call())),
		),
	)
	f.Line()
	f.Func().Id("float").Params(jen.Id("v").Float64()).Op("*").Float64().Block(
		jen.Return(jen.Op("&").Id("v")),
	)
	return f
}

// genSource renders the definition of one schema source.
func (g *Generator) genSource(s *load.Source) *jen.File {
	f := g.newFile()
	fn := sourceFunc(s)
	f.Commentf("%s returns the %q schema source.", fn, s.Name)
	f.Func().Id(fn).Params().Op("*").Qual(loadPkg, "Source").Block(
		jen.Return(jen.Op("&").Qual(loadPkg, "Source").Values(sourceDict(s))),
	)
	return f
}

func sourceDict(s *load.Source) jen.Dict {
	d := jen.Dict{jen.Id("Name"): jen.Lit(s.Name)}
	if s.File != "" {
		d[jen.Id("File")] = jen.Lit(string(s.File))
	}
	if s.Version != "" {
		d[jen.Id("Version")] = jen.Lit(s.Version)
	}
	if s.Header != "" {
		d[jen.Id("Header")] = jen.Lit(s.Header)
	}
	if len(s.Includes) > 0 {
		d[jen.Id("Includes")] = jen.Index().Op("*").Qual(loadPkg, "Include").ValuesFunc(func(v *jen.Group) {
			for _, inc := range s.Includes {
				id := jen.Dict{jen.Id("Source"): jen.Lit(inc.Source)}
				if len(inc.Exclude) > 0 {
					id[jen.Id("Exclude")] = stringSlice(inc.Exclude)
				}
				v.Values(id)
			}
		})
	}
	if len(s.Types) > 0 {
		d[jen.Id("Types")] = jen.Index().Op("*").Qual(loadPkg, "Type").ValuesFunc(func(v *jen.Group) {
			for _, t := range s.Types {
				v.Values(typeDict(t))
			}
		})
	}
	return d
}

func typeDict(t *load.Type) jen.Dict {
	d := jen.Dict{jen.Id("Name"): jen.Lit(t.Name)}
	if t.Group != "" {
		d[jen.Id("Group")] = jen.Lit(t.Group)
	}
	if t.Memo != "" {
		d[jen.Id("Memo")] = jen.Lit(t.Memo)
	}
	if t.Unique {
		d[jen.Id("Unique")] = jen.True()
	}
	if t.Required {
		d[jen.Id("Required")] = jen.True()
	}
	if len(t.Fields) > 0 {
		d[jen.Id("Fields")] = fields(t.Fields)
	}
	if ext := t.Extensible; ext != nil {
		ed := jen.Dict{jen.Id("Fields"): fields(ext.Fields)}
		if ext.Max > 0 {
			ed[jen.Id("Max")] = jen.Lit(ext.Max)
		}
		d[jen.Id("Extensible")] = jen.Op("&").Qual(loadPkg, "Extensible").Values(ed)
	}
	return d
}

func fields(fs []*load.Field) *jen.Statement {
	return jen.Index().Op("*").Qual(loadPkg, "Field").ValuesFunc(func(v *jen.Group) {
		for _, f := range fs {
			v.Values(fieldDict(f))
		}
	})
}

func fieldDict(f *load.Field) jen.Dict {
	d := jen.Dict{
		jen.Id("Name"): jen.Lit(f.Name),
		jen.Id("Kind"): jen.Lit(f.Kind),
	}
	flags := map[string]bool{
		"Required":         f.Required,
		"ExclusiveMin":     f.ExclusiveMin,
		"ExclusiveMax":     f.ExclusiveMax,
		"Autosizable":      f.Autosizable,
		"Autocalculatable": f.Autocalculatable,
	}
	for name, set := range flags {
		if set {
			d[jen.Id(name)] = jen.True()
		}
	}
	if f.Default != nil {
		d[jen.Id("Default")] = jen.Lit(f.Default)
	}
	if f.Min != nil {
		d[jen.Id("Min")] = jen.Id("float").Call(jen.Lit(*f.Min))
	}
	if f.Max != nil {
		d[jen.Id("Max")] = jen.Id("float").Call(jen.Lit(*f.Max))
	}
	if len(f.Choices) > 0 {
		d[jen.Id("Choices")] = stringSlice(f.Choices)
	}
	if len(f.Refs) > 0 {
		d[jen.Id("Refs")] = stringSlice(f.Refs)
	}
	for name, s := range map[string]string{"Port": f.Port, "Dir": f.Dir, "Comment": f.Comment} {
		if s != "" {
			d[jen.Id(name)] = jen.Lit(s)
		}
	}
	return d
}

func stringSlice(ss []string) *jen.Statement {
	return jen.Index().String().ValuesFunc(func(v *jen.Group) {
		for _, s := range ss {
			v.Lit(s)
		}
	})
}

// writeFile renders a file, formats it and writes it to the target directory.
func (g *Generator) writeFile(f *jen.File, filename string) error {
	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return &GenerationError{File: filename, Cause: err}
	}
	path := filepath.Join(g.cfg.Target, filename)
	formatted, err := imports.Process(path, buf.Bytes(), nil)
	if err != nil {
		return &GenerationError{File: filename, Cause: err}
	}
	if err := os.WriteFile(path, formatted, 0o644); err != nil {
		return &GenerationError{File: filename, Cause: err}
	}
	return nil
}

// newFile creates a new Jennifer file with the header comment.
func (g *Generator) newFile() *jen.File {
	f := jen.NewFilePathName(g.cfg.Package, g.cfg.PackageName())
	if g.cfg.Header != "" {
		f.HeaderComment(g.cfg.Header)
	}
	return f
}

// ident turns a record type or source name into an exported Go identifier.
func ident(name string) string {
	s := inflect.Camelize(name)
	s = stripNonIdent(s)
	if s == "" || unicode.IsDigit(rune(s[0])) {
		s = "X" + s
	}
	return s
}

func stripNonIdent(s string) string {
	var b bytes.Buffer
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func sourceFunc(s *load.Source) string {
	return inflect.CamelizeDownFirst(ident(s.Name)) + "Source"
}

func sourceFile(s *load.Source) string {
	return inflect.Underscore(ident(s.Name)) + "_source.go"
}
