package model

import "github.com/syssam/flatgraph/schema"

// RefCount returns how many reference slots point at the object.
func (m *Model) RefCount(o *Object) int { return m.refs[o.handle] }

// Orphans returns the objects of the given types that nothing references,
// in declaration order. With no types, every unreferenced object is
// returned.
func (m *Model) Orphans(typeNames ...string) []*Object {
	keys := make(map[string]struct{}, len(typeNames))
	for _, n := range typeNames {
		keys[schema.Key(n)] = struct{}{}
	}
	var orphans []*Object
	for _, o := range m.order {
		if m.refs[o.handle] > 0 {
			continue
		}
		if _, ok := keys[schema.Key(o.TypeName())]; len(keys) > 0 && !ok {
			continue
		}
		orphans = append(orphans, o)
	}
	return orphans
}

// Purge removes orphans of the given types until none remain, since
// removing an orphan may orphan the objects it referenced. It returns the
// number of removed objects.
func (m *Model) Purge(typeNames ...string) int {
	n := 0
	for {
		orphans := m.Orphans(typeNames...)
		if len(orphans) == 0 {
			return n
		}
		for _, o := range orphans {
			m.Remove(o)
		}
		n += len(orphans)
	}
}
