package translate_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/flatgraph"
	"github.com/syssam/flatgraph/compiler/load"
	"github.com/syssam/flatgraph/model"
	"github.com/syssam/flatgraph/registry"
	"github.com/syssam/flatgraph/translate"
	"github.com/syssam/flatgraph/workspace"
)

const hvac = `
name: hvac
file: idf
types:
  - name: Version
    unique: true
    fields:
      - {name: Version Identifier, kind: string, default: "9.6"}
  - name: Meter
    fields:
      - {name: Key Name, kind: string, required: true}
      - {name: Reporting Frequency, kind: string, default: Hourly, choices: [Timestep, Hourly, Daily]}
  - name: Schedule:Constant
    fields:
      - {name: Name, kind: string, required: true}
      - {name: Hourly Value, kind: real}
  - name: Fan
    fields:
      - {name: Name, kind: string, required: true}
      - {name: Availability Schedule Name, kind: object-list, refs: ["Schedule:Constant"]}
      - {name: Maximum Flow Rate, kind: real, min: 0, autosizable: true}
      - {name: Air Inlet Node Name, kind: node, port: inlet, dir: in}
      - {name: Air Outlet Node Name, kind: node, port: outlet, dir: out}
  - name: Coil
    fields:
      - {name: Name, kind: string, required: true}
      - {name: Availability Schedule Name, kind: object-list, refs: ["Schedule:Constant"]}
      - {name: Air Inlet Node Name, kind: node, port: inlet, dir: in}
      - {name: Air Outlet Node Name, kind: node, port: outlet, dir: out}
  - name: BranchList
    fields:
      - {name: Name, kind: string, required: true}
    extensible:
      max: 10
      fields:
        - {name: Branch Name, kind: object-list, refs: [Fan, Coil]}
  - name: Zone
    fields:
      - {name: Name, kind: string, required: true}
      - {name: Neighbor Zone Name, kind: object-list, refs: [Zone]}
`

var quiet = translate.WithLogger(slog.New(slog.DiscardHandler))

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	s, err := load.Parse([]byte(hvac))
	require.NoError(t, err)
	return registry.MustBuild([]*load.Source{s})
}

func forward(t *testing.T, m *model.Model, opts ...translate.Option) *translate.Result {
	t.Helper()
	res, err := translate.NewForward(m.Registry(), append([]translate.Option{quiet}, opts...)...).Translate(m)
	require.NoError(t, err)
	return res
}

func reverse(t *testing.T, ws *workspace.Workspace, opts ...translate.Option) *translate.ReverseResult {
	t.Helper()
	res, err := translate.NewReverse(ws.Registry(), append([]translate.Option{quiet}, opts...)...).Translate(ws)
	require.NoError(t, err)
	return res
}

func records(ws *workspace.Workspace) []string {
	var lines []string
	for _, r := range ws.Records() {
		lines = append(lines, r.String())
	}
	return lines
}

func TestForward_Meter(t *testing.T) {
	m := model.New(newRegistry(t))
	meter := m.MustAdd("Meter", "")
	require.NoError(t, meter.SetString("Key Name", "NaturalGas:Facility"))
	assert.Equal(t, []string{"Meter,NaturalGas:Facility,Hourly"}, records(forward(t, m).Workspace))

	require.NoError(t, meter.SetString("Reporting Frequency", "Timestep"))
	assert.Equal(t, []string{"Meter,NaturalGas:Facility,Timestep"}, records(forward(t, m).Workspace))

	require.Error(t, meter.SetString("Reporting Frequency", "Fortnightly"))
	assert.Equal(t, []string{"Meter,NaturalGas:Facility,Timestep"}, records(forward(t, m).Workspace))
}

func TestForward_Deduplication(t *testing.T) {
	m := model.New(newRegistry(t))
	fan1 := m.MustAdd("Fan", "Fan 1")
	fan2 := m.MustAdd("Fan", "Fan 2")
	sched := m.MustAdd("Schedule:Constant", "Always On")
	require.NoError(t, sched.SetNumber("Hourly Value", 1))
	require.NoError(t, fan1.SetRef("Availability Schedule Name", sched))
	require.NoError(t, fan2.SetRef("Availability Schedule Name", sched))

	res := forward(t, m)
	assert.False(t, res.HasErrors())
	assert.Equal(t, []string{
		"Schedule:Constant,Always On,1",
		"Fan,Fan 1,Always On",
		"Fan,Fan 2,Always On",
	}, records(res.Workspace))
}

func TestForward_Sentinel(t *testing.T) {
	m := model.New(newRegistry(t))
	fan := m.MustAdd("Fan", "Supply Fan")
	require.NoError(t, fan.Autosize("Maximum Flow Rate"))
	assert.Equal(t, []string{"Fan,Supply Fan,,Autosize"}, records(forward(t, m).Workspace))

	require.NoError(t, fan.SetNumber("Maximum Flow Rate", 2.5))
	assert.Equal(t, []string{"Fan,Supply Fan,,2.5"}, records(forward(t, m).Workspace))
}

func TestForward_ActiveRows(t *testing.T) {
	m := model.New(newRegistry(t))
	list := m.MustAdd("BranchList", "Branches")
	for _, name := range []string{"A", "B", "C", "D", "E", "F"} {
		_, err := list.AppendRow(m.MustAdd("Fan", name))
		require.NoError(t, err)
	}
	require.NoError(t, list.SetActiveRows(3))

	ws := forward(t, m).Workspace
	reg := m.Registry()
	bl, _ := reg.LookupName("BranchList")
	lists := ws.OfType(bl.ID)
	require.Len(t, lists, 1)
	assert.Equal(t, [][]string{{"A"}, {"B"}, {"C"}}, lists[0].Rows)
	assert.Equal(t, "BranchList,Branches,A,B,C", lists[0].String())

	fan, _ := reg.LookupName("Fan")
	assert.Len(t, ws.OfType(fan.ID), 6, "unreferenced rows still hold live objects")
	assert.Equal(t, "Fan,A", ws.Records()[0].String(), "referenced objects come first")
}

func TestForward_RequiredField(t *testing.T) {
	m := model.New(newRegistry(t))
	m.MustAdd("Meter", "")
	m.MustAdd("Schedule:Constant", "Always On")

	res := forward(t, m)
	require.Len(t, res.Errors, 1)
	assert.True(t, flatgraph.IsValidationError(res.Errors[0]))
	assert.Contains(t, res.Errors[0].Error(), "Key Name")
	assert.Equal(t, []string{"Schedule:Constant,Always On"}, records(res.Workspace))
	assert.Error(t, res.Err())
}

func TestForward_Topology(t *testing.T) {
	m := model.New(newRegistry(t))
	coil := m.MustAdd("Coil", "Heating Coil")
	fan := m.MustAdd("Fan", "Supply Fan")
	_, err := m.Connect(fan, "outlet", coil, "inlet")
	require.NoError(t, err)

	t.Run("ChainHeads", func(t *testing.T) {
		assert.Equal(t, []string{
			"Fan,Supply Fan,,,,Supply Fan Outlet Node",
			"Coil,Heating Coil,,Supply Fan Outlet Node",
		}, records(forward(t, m).Workspace))
	})

	t.Run("EntryPoints", func(t *testing.T) {
		got := records(forward(t, m, translate.WithEntryPoints("Coil")).Workspace)
		assert.Equal(t, "Coil,Heating Coil,,Supply Fan Outlet Node", got[0])
	})

	t.Run("ExplicitNode", func(t *testing.T) {
		m := model.New(newRegistry(t))
		coil := m.MustAdd("Coil", "Heating Coil")
		fan := m.MustAdd("Fan", "Supply Fan")
		_, err := m.Connect(fan, "outlet", coil, "inlet", model.WithNode("Mixed Air"))
		require.NoError(t, err)
		assert.Equal(t, []string{
			"Fan,Supply Fan,,,,Mixed Air",
			"Coil,Heating Coil,,Mixed Air",
		}, records(forward(t, m).Workspace))
	})
}

func TestForward_Precedence(t *testing.T) {
	m := model.New(newRegistry(t))
	m.MustAdd("Fan", "Fan")
	m.MustAdd("Schedule:Constant", "Sched")
	m.MustAdd("Version", "")

	assert.Equal(t, []string{"Version,9.6", "Fan,Fan", "Schedule:Constant,Sched"}, records(forward(t, m).Workspace))
	assert.Equal(t, []string{"Schedule:Constant,Sched", "Fan,Fan", "Version,9.6"},
		records(forward(t, m, translate.WithPrecedence("schedule:constant")).Workspace))
}

func TestForward_Precheck(t *testing.T) {
	m := model.New(newRegistry(t))
	sched := m.MustAdd("Schedule:Constant", "External")
	fan := m.MustAdd("Fan", "Fan")
	require.NoError(t, fan.SetRef("Availability Schedule Name", sched))

	res := forward(t, m, translate.WithPrecheck(func(o *model.Object) error {
		if o.TypeName() == "Schedule:Constant" {
			return errors.New("defined externally")
		}
		return nil
	}))
	assert.False(t, res.HasErrors())
	assert.Equal(t, []string{"Fan,Fan"}, records(res.Workspace))
	require.Len(t, res.Warnings, 1)
	assert.True(t, flatgraph.IsReferenceError(res.Warnings[0]))
}

func TestForward_DuplicateUnique(t *testing.T) {
	m := model.New(newRegistry(t))
	m.MustAdd("Version", "")
	m.MustAdd("Version", "")

	res := forward(t, m)
	assert.Equal(t, 2, res.Workspace.Len())
	require.True(t, res.HasWarnings())
	assert.True(t, flatgraph.IsDuplicateUniqueError(res.Warnings[0]))
}

func TestForward_Func(t *testing.T) {
	m := model.New(newRegistry(t))
	m.MustAdd("Schedule:Constant", "Sched")
	m.MustAdd("Fan", "Fan")

	res := forward(t, m,
		translate.WithForwardFunc("schedule:constant", func(p *translate.ForwardPass, o *model.Object) (*workspace.Record, error) {
			rec, err := p.Record(o)
			if err != nil {
				return nil, err
			}
			rec.Comment = "generated"
			return rec, nil
		}),
		translate.WithForwardFunc("Fan", func(*translate.ForwardPass, *model.Object) (*workspace.Record, error) {
			return nil, nil
		}),
	)
	recs := res.Workspace.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, "generated", recs[0].Comment)
}

func TestForward_OtherRegistry(t *testing.T) {
	m := model.New(newRegistry(t))
	_, err := translate.NewForward(newRegistry(t)).Translate(m)
	assert.True(t, flatgraph.IsConfigurationError(err))

	ws := workspace.New(newRegistry(t))
	_, err = translate.NewReverse(newRegistry(t)).Translate(ws)
	assert.True(t, flatgraph.IsConfigurationError(err))
}

func TestRoundTrip(t *testing.T) {
	m := model.New(newRegistry(t))
	m.AddComment(" HVAC model")
	m.MustAdd("Version", "")
	sched := m.MustAdd("Schedule:Constant", "Always On")
	require.NoError(t, sched.SetNumber("Hourly Value", 1))
	fan := m.MustAdd("Fan", "Supply Fan")
	require.NoError(t, fan.SetRef("Availability Schedule Name", sched))
	require.NoError(t, fan.Autosize("Maximum Flow Rate"))
	coil := m.MustAdd("Coil", "Heating Coil")
	require.NoError(t, coil.SetRef("Availability Schedule Name", sched))
	require.NoError(t, coil.SetString("Air Outlet Node Name", "Supply Outlet"))
	_, err := m.Connect(fan, "outlet", coil, "inlet")
	require.NoError(t, err)
	list := m.MustAdd("BranchList", "Branches")
	_, err = list.AppendRow(fan)
	require.NoError(t, err)
	_, err = list.AppendRow(coil)
	require.NoError(t, err)
	meter := m.MustAdd("Meter", "")
	require.NoError(t, meter.SetString("Key Name", "Electricity:Facility"))
	opaque := m.MustAdd("Site:Location", "")
	require.NoError(t, opaque.SetRaw("Chicago", "41.98", "-87.92"))

	first := forward(t, m)
	require.False(t, first.HasErrors(), first.String())
	back := reverse(t, first.Workspace)
	require.False(t, back.HasErrors(), back.String())
	g := back.Model

	assert.Equal(t, m.Len(), g.Len())

	s2, ok := g.ByName("Schedule:Constant", "Always On")
	require.True(t, ok)
	assert.Equal(t, "1", s2.Effective("Hourly Value").String())

	f2, ok := g.ByName("Fan", "Supply Fan")
	require.True(t, ok)
	target, ok := f2.Ref("Availability Schedule Name")
	require.True(t, ok)
	assert.Same(t, s2, target)
	assert.True(t, f2.IsAutosized("Maximum Flow Rate"))

	c2, ok := g.ByName("Coil", "Heating Coil")
	require.True(t, ok)
	target, ok = c2.Ref("Availability Schedule Name")
	require.True(t, ok)
	assert.Same(t, s2, target)
	assert.Equal(t, 2, g.RefCount(s2))
	assert.Equal(t, "Supply Outlet", c2.Effective("Air Outlet Node Name").String())

	conns := g.Connections()
	require.Len(t, conns, 1)
	assert.Same(t, f2, conns[0].From)
	assert.Same(t, c2, conns[0].To)
	assert.Equal(t, "Supply Fan Outlet Node", conns[0].Node)

	l2, ok := g.ByName("BranchList", "Branches")
	require.True(t, ok)
	require.Equal(t, 2, l2.ActiveRows())
	row0, _ := l2.RowRef(0, 0)
	row1, _ := l2.RowRef(1, 0)
	assert.Same(t, f2, row0)
	assert.Same(t, c2, row1)

	meters := g.OfType("Meter")
	require.Len(t, meters, 1)
	assert.Equal(t, "Electricity:Facility", meters[0].Effective("Key Name").String())
	assert.Equal(t, "Hourly", meters[0].Effective("Reporting Frequency").String())

	opaques := g.OfType("Site:Location")
	require.Len(t, opaques, 1)
	assert.True(t, opaques[0].Opaque())
	assert.Equal(t, []string{"Chicago", "41.98", "-87.92"}, opaques[0].Raw())
	require.Len(t, back.Warnings, 1)
	assert.True(t, flatgraph.IsUnknownTypeError(back.Warnings[0]))

	assert.Equal(t, records(first.Workspace), records(forward(t, g).Workspace))
}

func TestReverse_References(t *testing.T) {
	reg := newRegistry(t)
	ws := workspace.New(reg)
	_, err := ws.AddValues("Fan", []string{"Fan 1", "always on"})
	require.NoError(t, err)
	_, err = ws.AddValues("Fan", []string{"Fan 2", "Missing Schedule"})
	require.NoError(t, err)
	_, err = ws.AddValues("Schedule:Constant", []string{"Always On"})
	require.NoError(t, err)

	res := reverse(t, ws)
	assert.False(t, res.HasErrors())

	fan1, _ := res.Model.ByName("Fan", "Fan 1")
	target, ok := fan1.Ref("Availability Schedule Name")
	require.True(t, ok, "forward references resolve")
	assert.Equal(t, "Always On", target.Name())

	fan2, _ := res.Model.ByName("Fan", "Fan 2")
	_, ok = fan2.Ref("Availability Schedule Name")
	assert.False(t, ok)
	assert.Equal(t, "Missing Schedule", fan2.Effective("Availability Schedule Name").String())
	require.Len(t, res.Warnings, 1)
	assert.True(t, flatgraph.IsReferenceError(res.Warnings[0]))

	again := forward(t, res.Model)
	assert.Contains(t, records(again.Workspace), "Fan,Fan 2,Missing Schedule")
}

func TestReverse_Failures(t *testing.T) {
	reg := newRegistry(t)
	ws := workspace.New(reg)
	_, err := ws.AddValues("Fan", []string{"Fan", "", "fast"})
	require.NoError(t, err)
	_, err = ws.AddValues("Fan", []string{"FAN"})
	require.NoError(t, err)
	_, err = ws.AddValues("Version", []string{"9.6"})
	require.NoError(t, err)
	_, err = ws.AddValues("Version", []string{"9.5"})
	require.NoError(t, err)

	res := reverse(t, ws)
	assert.False(t, res.HasErrors(), res.String())
	require.Len(t, res.Warnings, 2)
	assert.Contains(t, res.Warnings[0].Error(), "Maximum Flow Rate")
	assert.True(t, flatgraph.IsValidationError(res.Warnings[1]))
	assert.Contains(t, res.Warnings[1].Error(), `renamed to FAN 2`)
	assert.Equal(t, 4, res.Model.Len(), "one object per record")

	fan, _ := res.Model.ByName("Fan", "fan")
	_, ok := fan.Get("Maximum Flow Rate")
	assert.False(t, ok)
	assert.Equal(t, "Fan", fan.Name())
	dup, ok := res.Model.ByName("Fan", "fan 2")
	require.True(t, ok)
	assert.Equal(t, "FAN 2", dup.Name())

	assert.Len(t, res.Model.OfType("Version"), 2, "unique violations are kept")
	again := forward(t, res.Model)
	assert.True(t, flatgraph.IsDuplicateUniqueError(again.Warnings[0]))
}

func TestReverse_Func(t *testing.T) {
	reg := newRegistry(t)
	ws := workspace.New(reg)
	_, err := ws.AddValues("Schedule:Constant", []string{"Sched"})
	require.NoError(t, err)
	_, err = ws.AddValues("Fan", []string{"Fan", "Sched"})
	require.NoError(t, err)

	res := reverse(t, ws, translate.WithReverseFunc("Schedule:Constant", func(p *translate.ReversePass, r *workspace.Record) (*model.Object, error) {
		return nil, nil
	}))
	assert.Equal(t, 1, res.Model.Len())
	require.Len(t, res.Warnings, 1)
	assert.True(t, flatgraph.IsReferenceError(res.Warnings[0]))
}

func TestReverse_AmbiguousReference(t *testing.T) {
	reg := newRegistry(t)
	ws := workspace.New(reg)
	_, err := ws.AddValues("Coil", []string{"Unit"})
	require.NoError(t, err)
	_, err = ws.AddValues("Fan", []string{"unit"})
	require.NoError(t, err)
	_, err = ws.AddValues("BranchList", []string{"Branches", "UNIT"})
	require.NoError(t, err)

	res := reverse(t, ws)
	assert.False(t, res.HasErrors())
	list, ok := res.Model.ByName("BranchList", "Branches")
	require.True(t, ok)
	target, ok := list.RowRef(0, 0)
	require.True(t, ok)
	assert.Equal(t, "Fan", target.TypeName(), "reference types are tried in declared order")
	require.Len(t, res.Warnings, 1)
	assert.True(t, flatgraph.IsValidationError(res.Warnings[0]))
	assert.Contains(t, res.Warnings[0].Error(), "bound to Fan")
}

func TestForward_ReferenceCycle(t *testing.T) {
	m := model.New(newRegistry(t))
	east := m.MustAdd("Zone", "East")
	west := m.MustAdd("Zone", "West")
	require.NoError(t, east.SetRef("Neighbor Zone Name", west))
	require.NoError(t, west.SetRef("Neighbor Zone Name", east))

	res := forward(t, m)
	assert.False(t, res.HasErrors(), res.String())
	assert.False(t, res.HasWarnings(), res.String())
	assert.Equal(t, []string{"Zone,West,East", "Zone,East,West"}, records(res.Workspace))

	back := reverse(t, res.Workspace)
	require.False(t, back.HasWarnings(), back.String())
	e2, _ := back.Model.ByName("Zone", "East")
	w2, _ := back.Model.ByName("Zone", "West")
	target, ok := e2.Ref("Neighbor Zone Name")
	require.True(t, ok)
	assert.Same(t, w2, target)
	target, ok = w2.Ref("Neighbor Zone Name")
	require.True(t, ok)
	assert.Same(t, e2, target)
}

func TestForward_ChainedPrecedenceType(t *testing.T) {
	m := model.New(newRegistry(t))
	coil := m.MustAdd("Coil", "Heating Coil")
	m.MustAdd("Schedule:Constant", "Always On")
	fan := m.MustAdd("Fan", "Supply Fan")
	_, err := m.Connect(fan, "outlet", coil, "inlet")
	require.NoError(t, err)

	got := records(forward(t, m, translate.WithPrecedence("Coil", "Schedule:Constant")).Workspace)
	assert.Equal(t, []string{
		"Schedule:Constant,Always On",
		"Fan,Supply Fan,,,,Supply Fan Outlet Node",
		"Coil,Heating Coil,,Supply Fan Outlet Node",
	}, got, "chain members follow their head")
}

func TestRoundTrip_TakenNodeNames(t *testing.T) {
	m := model.New(newRegistry(t))
	fan := m.MustAdd("Fan", "Supply Fan")
	coil := m.MustAdd("Coil", "Heating Coil")
	spare := m.MustAdd("Coil", "Spare Coil")
	require.NoError(t, spare.SetString("Air Inlet Node Name", "Supply Fan Outlet Node"))
	_, err := m.Connect(fan, "outlet", coil, "inlet")
	require.NoError(t, err)

	first := forward(t, m)
	require.False(t, first.HasErrors(), first.String())
	assert.Contains(t, records(first.Workspace), "Coil,Heating Coil,,Supply Fan Outlet Node 2")
	assert.Contains(t, records(first.Workspace), "Coil,Spare Coil,,Supply Fan Outlet Node")

	back := reverse(t, first.Workspace)
	assert.False(t, back.HasWarnings(), back.String())
	conns := back.Model.Connections()
	require.Len(t, conns, 1)
	assert.Equal(t, "Supply Fan", conns[0].From.Name())
	assert.Equal(t, "Heating Coil", conns[0].To.Name())
	s2, _ := back.Model.ByName("Coil", "Spare Coil")
	assert.Equal(t, "Supply Fan Outlet Node", s2.Effective("Air Inlet Node Name").String())
}

func TestRoundTrip_SharedNodeRejected(t *testing.T) {
	m := model.New(newRegistry(t))
	f1, c1 := m.MustAdd("Fan", "F1"), m.MustAdd("Coil", "C1")
	f2, c2 := m.MustAdd("Fan", "F2"), m.MustAdd("Coil", "C2")
	_, err := m.Connect(f1, "outlet", c1, "inlet", model.WithNode("N"))
	require.NoError(t, err)
	_, err = m.Connect(f2, "outlet", c2, "inlet", model.WithNode("n"))
	assert.True(t, flatgraph.IsValidationError(err))
	_, err = m.Connect(f2, "outlet", c2, "inlet")
	require.NoError(t, err)

	back := reverse(t, forward(t, m).Workspace)
	assert.False(t, back.HasWarnings(), back.String())
	assert.Len(t, back.Model.Connections(), 2)
}
