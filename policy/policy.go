// Package policy provides rules deciding which objects of a model a
// forward translation exports.
//
// A Policy is an ordered list of rules. Each rule returns Allow, Deny or
// Skip (or an error wrapping one of them); evaluation stops at the first
// rule that does not skip. An object no rule decides on is allowed.
//
//	p := policy.Policy{
//		policy.AllowTypes("Version"),
//		policy.DenyOpaque(),
//		policy.DenyOrphans("Schedule:Constant"),
//	}
//	fwd := translate.NewForward(reg, translate.WithPrecheck(p.Precheck))
package policy

import (
	"errors"
	"fmt"

	"github.com/syssam/flatgraph/model"
	"github.com/syssam/flatgraph/schema"
)

// Policy decision sentinel errors.
var (
	// Allow terminates the evaluation with an allow decision.
	Allow = errors.New("flatgraph/policy: allow rule")
	// Deny terminates the evaluation with a deny decision.
	Deny = errors.New("flatgraph/policy: deny rule")
	// Skip continues the evaluation with the next rule.
	Skip = errors.New("flatgraph/policy: skip rule")
)

// Allowf returns a formatted wrapped Allow decision.
func Allowf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Allow)...)
}

// Denyf returns a formatted wrapped Deny decision.
func Denyf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Deny)...)
}

// Skipf returns a formatted wrapped Skip decision.
func Skipf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Skip)...)
}

// Rule decides on one object.
type Rule interface {
	EvalObject(*model.Object) error
}

// RuleFunc adapts a function to a Rule.
type RuleFunc func(*model.Object) error

// EvalObject calls f(o).
func (f RuleFunc) EvalObject(o *model.Object) error { return f(o) }

// Policy is an ordered list of rules.
type Policy []Rule

// EvalObject evaluates the rules in order. It returns nil when the object
// is allowed and the deciding error otherwise. Errors other than the
// three decisions stop the evaluation and are returned as is.
func (p Policy) EvalObject(o *model.Object) error {
	for _, r := range p {
		switch err := r.EvalObject(o); {
		case err == nil || errors.Is(err, Skip):
		case errors.Is(err, Allow):
			return nil
		default:
			return err
		}
	}
	return nil
}

// Precheck has the shape of a translation precheck.
func (p Policy) Precheck(o *model.Object) error { return p.EvalObject(o) }

// AlwaysAllowRule allows every object.
func AlwaysAllowRule() Rule {
	return RuleFunc(func(*model.Object) error { return Allow })
}

// AlwaysDenyRule denies every object.
func AlwaysDenyRule() Rule {
	return RuleFunc(func(*model.Object) error { return Deny })
}

func typeSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[schema.Key(n)] = true
	}
	return set
}

// AllowTypes allows objects of the given record types.
func AllowTypes(names ...string) Rule {
	set := typeSet(names)
	return RuleFunc(func(o *model.Object) error {
		if set[schema.Key(o.TypeName())] {
			return Allow
		}
		return Skip
	})
}

// DenyTypes denies objects of the given record types.
func DenyTypes(names ...string) Rule {
	set := typeSet(names)
	return RuleFunc(func(o *model.Object) error {
		if set[schema.Key(o.TypeName())] {
			return Denyf("type %s excluded", o.TypeName())
		}
		return Skip
	})
}

// DenyOpaque denies objects of record types the registry does not know.
func DenyOpaque() Rule {
	return RuleFunc(func(o *model.Object) error {
		if o.Opaque() {
			return Denyf("opaque %s", o.TypeName())
		}
		return Skip
	})
}

// DenyComments denies free-standing comment objects.
func DenyComments() Rule {
	return RuleFunc(func(o *model.Object) error {
		if o.IsComment() {
			return Deny
		}
		return Skip
	})
}

// DenyOrphans denies objects of the given types that nothing references
// or connects to. With no types, it applies to every object.
func DenyOrphans(names ...string) Rule {
	set := typeSet(names)
	return RuleFunc(func(o *model.Object) error {
		if len(set) > 0 && !set[schema.Key(o.TypeName())] {
			return Skip
		}
		if o.Model().RefCount(o) > 0 || len(o.Inbound()) > 0 || len(o.Outbound()) > 0 {
			return Skip
		}
		return Denyf("%s is not referenced", o)
	})
}
