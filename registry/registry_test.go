package registry_test

import (
	"bytes"
	"log/slog"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/flatgraph"
	"github.com/syssam/flatgraph/compiler/load"
	"github.com/syssam/flatgraph/registry"
	"github.com/syssam/flatgraph/schema"
)

const common = `
name: common
version: "1.0"
header: shared types
types:
  - name: Schedule:Constant
    group: Schedules
    fields:
      - {name: Name, kind: string, required: true}
      - {name: Hourly Value, kind: real}
  - name: Lead Input
    group: Simulation
`

const energy = `
name: energy
file: idf
version: "9.6.0"
header: energy input
includes:
  - source: common
    exclude: [Lead Input, Missing Type]
types:
  - name: Version
    unique: true
    required: true
    fields:
      - {name: Version Identifier, kind: string, default: "9.6"}
  - name: Meter
    group: Output Reporting
    fields:
      - {name: Key Name, kind: string, required: true}
      - {name: Reporting Frequency, kind: string, default: Hourly, choices: [Timestep, Hourly]}
  - name: Meter:Custom
    unique: true
    fields:
      - {name: Name, kind: string, required: true}
`

func parse(t *testing.T, docs ...string) []*load.Source {
	t.Helper()
	sources := make([]*load.Source, len(docs))
	for i, d := range docs {
		s, err := load.Parse([]byte(d))
		require.NoError(t, err)
		sources[i] = s
	}
	return sources
}

func TestBuild(t *testing.T) {
	var logs bytes.Buffer
	reg, err := registry.Build(parse(t, common, energy), registry.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	require.NoError(t, err)

	assert.Equal(t, 2+5, reg.Len())
	assert.Equal(t, []schema.FileType{"common", "idf"}, reg.Files())

	sched, ok := reg.LookupName("SCHEDULE:constant")
	require.True(t, ok)
	assert.Equal(t, schema.FirstTypeID, sched.ID)
	assert.Equal(t, []schema.FileType{"common", "idf"}, sched.Files)

	lead, ok := reg.LookupName("Lead Input")
	require.True(t, ok)
	assert.Equal(t, []schema.FileType{"common"}, lead.Files)
	assert.Empty(t, lead.Fields)

	meter, ok := reg.LookupName("meter")
	require.True(t, ok)
	byID, ok := reg.Lookup(meter.ID)
	require.True(t, ok)
	assert.Same(t, meter, byID)

	require.Len(t, reg.Warnings(), 1)
	assert.True(t, flatgraph.IsConfigurationError(reg.Warnings()[0]))
	assert.Contains(t, reg.Warnings()[0].Error(), `"Missing Type"`)
	assert.Contains(t, logs.String(), "excluded record type not found")
}

func TestLookup_Unresolvable(t *testing.T) {
	reg := registry.MustBuild(parse(t, common))
	_, ok := reg.LookupName("Nope")
	assert.False(t, ok)
	_, ok = reg.Lookup(99)
	assert.False(t, ok)
	_, ok = reg.Lookup(-1)
	assert.False(t, ok)
}

func TestSynthetic(t *testing.T) {
	reg := registry.MustBuild(parse(t, common, energy))
	ca, ok := reg.Lookup(schema.TypeCatchAll)
	require.True(t, ok)
	assert.Same(t, ca, reg.CatchAll())
	cm, ok := reg.LookupName(schema.CommentName)
	require.True(t, ok)
	assert.Same(t, cm, reg.Comment())
	for _, ft := range []schema.FileType{"common", "idf", schema.FileUser, schema.FileAll} {
		assert.True(t, reg.IsTypeInFile(schema.TypeCatchAll, ft), ft)
		assert.True(t, reg.IsTypeInFile(schema.TypeComment, ft), ft)
	}
	assert.Len(t, reg.InFile(schema.FileUser), 2)
}

func TestQueries(t *testing.T) {
	reg := registry.MustBuild(parse(t, common, energy))

	names := func(types []*schema.RecordType) []string {
		var out []string
		for _, t := range types {
			out = append(out, t.Name)
		}
		return out
	}
	assert.Equal(t, []string{"Catchall", "CommentOnly", "Schedule:Constant", "Version", "Meter", "Meter:Custom"}, names(reg.InFile("idf")))
	assert.Equal(t, []string{"Catchall", "CommentOnly", "Schedule:Constant", "Lead Input"}, names(reg.InFile("common")))
	assert.Len(t, reg.InFile(schema.FileAll), reg.Len())
	assert.Len(t, reg.All(), reg.Len())

	assert.Equal(t, []string{"Meter", "Meter:Custom"}, names(reg.Matching(regexp.MustCompile(`^Meter`))))
	assert.Empty(t, reg.Matching(regexp.MustCompile(`^meter`)))
	assert.Equal(t, []string{"Meter", "Meter:Custom"}, names(reg.Matching(regexp.MustCompile(`(?i)^meter`))))

	assert.Equal(t, []string{"Version"}, names(reg.Required()))
	assert.Equal(t, []string{"Version"}, names(reg.Required("idf")))
	assert.Empty(t, reg.Required("common"))
	assert.Equal(t, []string{"Version", "Meter:Custom"}, names(reg.Unique("idf")))
	assert.Empty(t, reg.Unique("common"))

	v, _ := reg.LookupName("Version")
	assert.True(t, reg.IsTypeInFile(v.ID, "idf"))
	assert.False(t, reg.IsTypeInFile(v.ID, "common"))
	assert.False(t, reg.IsTypeInFile(42, "idf"))
}

func TestVersionHeader(t *testing.T) {
	reg := registry.MustBuild(parse(t, common, energy))

	v, err := reg.Version("idf")
	require.NoError(t, err)
	assert.Equal(t, "9.6.0", v)
	h, err := reg.Header("common")
	require.NoError(t, err)
	assert.Equal(t, "shared types", h)

	for _, ft := range []schema.FileType{schema.FileAll, schema.FileUser, "osm"} {
		_, err := reg.Version(ft)
		assert.True(t, flatgraph.IsConfigurationError(err), ft)
		_, err = reg.Header(ft)
		assert.True(t, flatgraph.IsConfigurationError(err), ft)
	}
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name string
		docs []string
		msg  string
	}{
		{
			name: "unknown include",
			docs: []string{"name: a\nincludes:\n  - source: b\n"},
			msg:  `include of unknown source "b"`,
		},
		{
			name: "include cycle",
			docs: []string{
				"name: a\nincludes:\n  - source: b\n",
				"name: b\nincludes:\n  - source: a\n",
			},
			msg: "include cycle: a -> b -> a",
		},
		{
			name: "duplicate source",
			docs: []string{"name: a\n", "name: A\nfile: other\n"},
			msg:  "source declared twice",
		},
		{
			name: "shared file type",
			docs: []string{"name: a\nfile: idf\n", "name: b\nfile: idf\n"},
			msg:  `file type "idf" already declared by source "a"`,
		},
		{
			name: "conflicting definitions",
			docs: []string{
				"name: a\ntypes:\n  - name: T\n    fields:\n      - {name: N, kind: string}\n",
				"name: b\ntypes:\n  - name: t\n    fields:\n      - {name: N, kind: string}\n",
			},
			msg: `record type "t" already defined by source "a"`,
		},
		{
			name: "reserved name",
			docs: []string{"name: a\ntypes:\n  - name: catchall\n"},
			msg:  `record type name "catchall" is reserved`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registry.Build(parse(t, tt.docs...))
			require.Error(t, err)
			assert.True(t, flatgraph.IsConfigurationError(err))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
	assert.Panics(t, func() { registry.MustBuild([]*load.Source{nil}) })
}

func TestConcurrentReads(t *testing.T) {
	reg := registry.MustBuild(parse(t, common, energy))
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				_, ok := reg.LookupName("Meter")
				assert.True(t, ok)
				assert.NotEmpty(t, reg.InFile("idf"))
			}
		}()
	}
	wg.Wait()
}
