// Package validate implements the declarative rule engine used by records.
//
// Rules are written per field as instruction strings of the form
//
//	method key="value" other='value'
//
// A field listed without instructions must not be blank. Each field runs its
// rules in order and stops at the first rule that fails or skips.
package validate

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// DefaultError is reported for a failed rule that registered no message.
const DefaultError = "Please ensure that you filled in all required fields."

// Subject is the record under validation.
type Subject interface {
	Get(field string) any
	Set(field string, value any)
	IsUnique(ctx context.Context, field, where string) (bool, error)
}

// Instruction holds the rules for one field.
type Instruction struct {
	Field string
	Rules []string
}

// Instructions is an ordered rule set.
type Instructions []Instruction

// Field returns an instruction for field. With no rules the field must not
// be blank.
func Field(field string, rules ...string) Instruction {
	return Instruction{Field: field, Rules: rules}
}

// Require returns instructions marking each field as not blank.
func Require(fields ...string) Instructions {
	return lo.Map(fields, func(f string, _ int) Instruction { return Field(f) })
}

// outcome is the tri-state result of a rule. skip neither passes nor fails
// the field but ends its rule chain.
type outcome int

const (
	skip outcome = iota
	pass
	fail
)

var (
	methodPattern = regexp.MustCompile(`^[a-zA-Z0-9_\[\]]+ `)
	paramPattern  = regexp.MustCompile(`([a-zA-Z0-9_\[\]]+)=["']([^"']*)["']`)
	tokenPattern  = regexp.MustCompile(`:(\w+)`)
)

// Validator runs instructions against one subject and collects failures.
type Validator struct {
	subject   Subject
	rules     map[string][]string
	order     []string
	validated map[string]outcome
	invalids  map[string][]string
	invalidOf []string
	passed    bool
}

// New returns a Validator for s.
func New(s Subject) *Validator {
	v := &Validator{subject: s}
	v.reset()
	return v
}

func (v *Validator) reset() {
	v.rules = map[string][]string{}
	v.order = nil
	v.validated = map[string]outcome{}
	v.invalids = map[string][]string{}
	v.invalidOf = nil
	v.passed = true
}

// Validate runs ins. It returns an error only when an instruction names an
// unknown rule or a rule is misconfigured; failed rules are reported through
// Passed, Errors and InvalidFields.
func (v *Validator) Validate(ctx context.Context, ins Instructions) error {
	v.reset()
	for _, in := range ins {
		rules := in.Rules
		if len(rules) == 0 {
			rules = []string{"notBlank"}
		}
		if _, ok := v.rules[in.Field]; !ok {
			v.order = append(v.order, in.Field)
		}
		v.rules[in.Field] = append(v.rules[in.Field], rules...)
	}
	for _, field := range v.order {
		if err := v.validateField(ctx, field); err != nil {
			return err
		}
	}
	return nil
}

// Passed reports whether every rule run so far passed.
func (v *Validator) Passed() bool {
	return v.passed
}

// Errors returns the distinct failure messages in the order they were
// registered.
func (v *Validator) Errors() []string {
	var all []string
	for _, f := range v.invalidOf {
		all = append(all, v.invalids[f]...)
	}
	return lo.Uniq(all)
}

// InvalidFields returns the fields that failed.
func (v *Validator) InvalidFields() []string {
	return append([]string(nil), v.invalidOf...)
}

// RegisterInvalid marks field invalid with reason. An empty reason uses
// DefaultError.
func (v *Validator) RegisterInvalid(field, reason string) {
	if reason == "" {
		reason = DefaultError
	}
	if _, ok := v.invalids[field]; !ok {
		v.invalidOf = append(v.invalidOf, field)
	}
	if !lo.Contains(v.invalids[field], reason) {
		v.invalids[field] = append(v.invalids[field], reason)
	}
	v.passed = false
}

// IsFieldInvalid validates field if it has not run yet and reports whether
// it failed.
func (v *Validator) IsFieldInvalid(ctx context.Context, field string) (bool, error) {
	if err := v.validateField(ctx, field); err != nil {
		return false, err
	}
	o, ok := v.validated[field]
	return ok && o == fail, nil
}

func (v *Validator) validateField(ctx context.Context, field string) error {
	rules, ok := v.rules[field]
	if !ok {
		return nil
	}
	if _, done := v.validated[field]; done {
		return nil
	}
	for _, rule := range rules {
		method, opts := ParseInstruction(rule)
		o, err := v.validateUsing(ctx, field, method, opts)
		if err != nil {
			return err
		}
		if o != pass {
			v.validated[field] = o
			return nil
		}
	}
	v.validated[field] = pass
	return nil
}

// validateUsing runs one rule against field.
func (v *Validator) validateUsing(ctx context.Context, field, method string, opts map[string]string) (outcome, error) {
	r, ok := rules[method]
	if !ok {
		return fail, fmt.Errorf("%w: validation rule %q", types.ErrUnsupportedOperation, method)
	}
	c := newCheck(v, field, r.defaults, opts)
	o, err := r.run(ctx, c)
	if err != nil {
		return fail, err
	}
	if o != fail {
		return o, nil
	}
	if len(v.invalids[field]) == 0 {
		v.RegisterInvalid(field, DefaultError)
	}
	v.passed = false
	return fail, nil
}

// ParseInstruction splits an instruction into its method and options.
func ParseInstruction(instruction string) (string, map[string]string) {
	opts := map[string]string{}
	m := methodPattern.FindString(instruction)
	if m == "" {
		return strings.TrimSpace(instruction), opts
	}
	rest := instruction[len(m):]
	for _, p := range paramPattern.FindAllStringSubmatch(rest, -1) {
		opts[strings.TrimSpace(p[1])] = p[2]
	}
	return strings.TrimSpace(m), opts
}

// check is the state of one rule run.
type check struct {
	v      *Validator
	field  string
	value  any
	opts   map[string]string
	extras map[string]string
}

func newCheck(v *Validator, field string, defaults, given map[string]string) *check {
	c := &check{
		v:      v,
		field:  field,
		value:  v.subject.Get(field),
		opts:   map[string]string{"error": DefaultError},
		extras: map[string]string{},
	}
	for k, val := range defaults {
		c.opts[k] = val
	}
	for k, val := range given {
		_, known := defaults[k]
		c.opts[k] = val
		if !known || k == "error" {
			c.extras[k] = val
		}
	}
	return c
}

func (c *check) opt(key string) string {
	return c.opts[key]
}

func (c *check) has(key string) bool {
	return c.opts[key] != ""
}

func (c *check) flag(key string) bool {
	b, _ := strconv.ParseBool(strings.ToLower(c.opts[key]))
	return b
}

// failWith registers the named message option, formatted, against the field.
func (c *check) failWith(key string) outcome {
	c.v.RegisterInvalid(c.field, c.format(c.opt(key)))
	return fail
}

// format substitutes :field, :value, option names and finally other field
// names into msg.
func (c *check) format(msg string) string {
	return tokenPattern.ReplaceAllStringFunc(msg, func(tok string) string {
		key := tok[1:]
		switch key {
		case "field":
			return c.field
		case "value":
			return stringify(c.value)
		}
		if val, ok := c.opts[key]; ok {
			return val
		}
		return stringify(c.v.subject.Get(key))
	})
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []byte:
		return len(strings.TrimSpace(string(t))) == 0
	case []string:
		return len(t) == 0
	case []any:
		return len(t) == 0
	default:
		return false
	}
}
