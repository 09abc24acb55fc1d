// Package validate expresses payload constraints as data so the registry can
// check them before any handler runs.
package validate

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/teajhaney/shopstack-microservices/internal/platform/rpc"
)

// Violation describes one failed constraint.
type Violation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Rule yields a violation, or nil when satisfied.
type Rule func() *Violation

// Set is the constraint set declared by a payload type.
type Set []Rule

// Subject is implemented by every payload the registry decodes.
type Subject interface {
	Rules() Set
}

// Check evaluates every rule and returns all violations.
func (s Set) Check() []Violation {
	var out []Violation
	for _, rule := range s {
		if v := rule(); v != nil {
			out = append(out, *v)
		}
	}
	return out
}

// Err returns a VALIDATION_ERROR listing the violations, or nil.
func (s Set) Err() error {
	violations := s.Check()
	if len(violations) == 0 {
		return nil
	}
	return rpc.ValidationError("validation failed", violations)
}

func violation(field, rule, format string, args ...any) *Violation {
	return &Violation{Field: field, Rule: rule, Message: fmt.Sprintf(format, args...)}
}

func Required(field, value string) Rule {
	return func() *Violation {
		if strings.TrimSpace(value) == "" {
			return violation(field, "required", "%s is required", field)
		}
		return nil
	}
}

func Positive(field string, value float64) Rule {
	return func() *Violation {
		if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
			return violation(field, "positive", "%s must be a number greater than 0", field)
		}
		return nil
	}
}

func Min(field string, value, min int) Rule {
	return func() *Violation {
		if value < min {
			return violation(field, "min", "%s must be >= %d", field, min)
		}
		return nil
	}
}

func OneOf(field, value string, allowed ...string) Rule {
	return func() *Violation {
		for _, a := range allowed {
			if value == a {
				return nil
			}
		}
		return violation(field, "oneOf", "%s must be one of %s", field, strings.Join(allowed, ", "))
	}
}

func HasPrefix(field, value, prefix string) Rule {
	return func() *Violation {
		if !strings.HasPrefix(value, prefix) {
			return violation(field, "prefix", "%s must start with %q", field, prefix)
		}
		return nil
	}
}

func MaxLen(field, value string, max int) Rule {
	return func() *Violation {
		if len(value) > max {
			return violation(field, "maxLen", "%s must be at most %d characters", field, max)
		}
		return nil
	}
}

func UUID(field, value string) Rule {
	return func() *Violation {
		if _, err := uuid.Parse(value); err != nil {
			return violation(field, "uuid", "%s must be a valid id", field)
		}
		return nil
	}
}

// When applies rule only if cond holds; used for optional fields.
func When(cond bool, rule Rule) Rule {
	return func() *Violation {
		if !cond {
			return nil
		}
		return rule()
	}
}
