package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Severity tells whether a violated invariant rejects the object or only warns
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// EntityKind names the type of object an invariant applies to
type EntityKind string

const (
	EntityTrade      EntityKind = "trade_parameters"
	EntityVolatility EntityKind = "volatility_profile"
	EntityRegime     EntityKind = "regime_classification"
)

// Invariant is one named rule. Check receives the subject registered for its entity kind
// and Fields extracts the values reported when the rule is violated.
type Invariant struct {
	Name     string
	Severity Severity
	Message  string
	Check    func(subject any) bool
	Fields   func(subject any) map[string]any
}

// Violation is a failed invariant with the values that failed it
type Violation struct {
	Invariant string         `json:"invariant"`
	Severity  Severity       `json:"severity"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

func (v Violation) String() string {
	if len(v.Fields) == 0 {
		return fmt.Sprintf("%s: %s", v.Invariant, v.Message)
	}
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v.Fields[k]))
	}
	return fmt.Sprintf("%s: %s (%s)", v.Invariant, v.Message, strings.Join(parts, ", "))
}

// ValidationError is returned when at least one ERROR invariant is violated
type ValidationError struct {
	Entity     EntityKind
	Violations []Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.String())
	}
	return fmt.Sprintf("invalid %s: %s", e.Entity, strings.Join(msgs, "; "))
}

// Names returns the names of the violated invariants
func (e *ValidationError) Names() []string {
	out := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		out = append(out, v.Invariant)
	}
	return out
}

// Report is the outcome of a validation that did not fail
type Report struct {
	Warnings []Violation `json:"warnings,omitempty"`
}

// Registry maps entity kinds to their invariants. It is filled once and then only read.
type Registry struct {
	invariants map[EntityKind][]Invariant
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{invariants: make(map[EntityKind][]Invariant)}
}

// Register adds invariants for kind
func (r *Registry) Register(kind EntityKind, invs ...Invariant) {
	r.invariants[kind] = append(r.invariants[kind], invs...)
}

// Invariants returns the invariants of kind in registration order
func (r *Registry) Invariants(kind EntityKind) []Invariant {
	return r.invariants[kind]
}

// DefaultRegistry returns a registry with every built-in invariant
func DefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterTradeInvariants(r)
	RegisterVolatilityInvariants(r)
	RegisterRegimeInvariants(r)
	return r
}

// Validator checks objects against a registry
type Validator struct {
	registry *Registry
	logger   zerolog.Logger
}

// NewValidator creates a validator over registry
func NewValidator(registry *Registry) *Validator {
	return &Validator{
		registry: registry,
		logger:   log.With().Str("component", "validator").Logger(),
	}
}

// Validate runs every invariant of kind. Warnings are logged and returned in the report;
// ERROR violations produce a *ValidationError listing all of them.
func (v *Validator) Validate(kind EntityKind, subject any) (Report, error) {
	var (
		report Report
		errs   []Violation
	)
	for _, inv := range v.registry.Invariants(kind) {
		if inv.Check(subject) {
			continue
		}
		viol := Violation{Invariant: inv.Name, Severity: inv.Severity, Message: inv.Message}
		if inv.Fields != nil {
			viol.Fields = inv.Fields(subject)
		}
		if inv.Severity == SeverityError {
			errs = append(errs, viol)
			continue
		}
		v.logger.Warn().
			Str("entity", string(kind)).
			Str("invariant", inv.Name).
			Interface("fields", viol.Fields).
			Msg(inv.Message)
		report.Warnings = append(report.Warnings, viol)
	}

	if len(errs) > 0 {
		return report, &ValidationError{Entity: kind, Violations: errs}
	}
	return report, nil
}
