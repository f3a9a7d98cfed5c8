package validate

import (
	"context"
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/simpledb/pkg/types"
)

type rule struct {
	defaults map[string]string
	run      func(ctx context.Context, c *check) (outcome, error)
}

var rules map[string]rule

func init() {
	rules = map[string]rule{
		"notBlank": {run: notBlank},
		"isNumeric": {
			defaults: map[string]string{
				"minLength":        "",
				"maxLength":        "",
				"min":              "",
				"max":              "",
				"greaterThan":      "",
				"error":            "Please enter a number.",
				"minError":         "Please enter a number no less than :min.",
				"maxError":         "Please enter a number no greater than :max.",
				"greaterThanError": "Please enter a number greater than :greaterThan.",
				"lengthMinError":   "Please enter a number no less than :minLength in characters.",
				"lengthMaxError":   "Please enter a number no greater than :maxLength characters.",
			},
			run: isNumeric,
		},
		"isEmail": {
			defaults: map[string]string{"error": "You did not enter a valid e-mail address."},
			run:      isEmail,
		},
		"isUrl": {run: isURL},
		"isDate": {
			defaults: map[string]string{
				"format":          "Y-m-d H:i:s",
				"error":           "Please enter a valid date.",
				"before":          "",
				"onOrBefore":      "",
				"after":           "",
				"onOrAfter":       "",
				"chronologyError": "",
			},
			run: isDate,
		},
		"isTime": {
			defaults: map[string]string{
				"format":  "H:i:s",
				"error":   "Please enter a valid time.",
				"require": "hour, minute, meridian",
			},
			run: isTime,
		},
		"isPhone": {
			defaults: map[string]string{
				"error":           "You did not enter a valid phone number.",
				"defaultAreaCode": "207",
				"modify":          "false",
			},
			run: isPhone,
		},
		"mustMatch": {
			defaults: map[string]string{"field": "", "value": ""},
			run:      mustMatch,
		},
		"defaultTo": {
			defaults: map[string]string{"value": "", "strict": "false"},
			run:      defaultTo,
		},
		"validateWhenFilled": {
			defaults: map[string]string{"field": "", "using": "notBlank", "strict": "false"},
			run:      validateWhenFilled,
		},
		"validateWhen": {
			defaults: map[string]string{"field": "", "equals": "", "using": "notBlank", "strict": "false"},
			run:      validateWhen,
		},
		"linkTo": {
			defaults: map[string]string{"field": "", "fields": ""},
			run:      linkTo,
		},
		"isUnique": {
			defaults: map[string]string{"where": ""},
			run:      isUnique,
		},
		"isDateRange": {
			defaults: map[string]string{
				"startField":     "",
				"endField":       "",
				"requireBoth":    "false",
				"overlapAllowed": "false",
				"format":         "",
				"error":          "Please enter a valid date range.",
			},
			run: isDateRange,
		},
	}
}

// Rules returns the names of the supported rules.
func Rules() []string {
	names := make([]string, 0, len(rules))
	for name := range rules {
		names = append(names, name)
	}
	return names
}

var (
	identPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%-]+@[a-zA-Z0-9._%-]+\.[a-zA-Z]{2,4}`)
	schemePrefix = regexp.MustCompile(`^(ftp|http|https)://`)
	urlPattern   = regexp.MustCompile(`^(ftp|http|https)://(\w+:?\w*@)?(\S+)(:[0-9]+)?(/|/([\w#!:.?+=&%@!\-/]))?\.[a-zA-Z]{2,4}`)
	listSplit    = regexp.MustCompile(`[\s,]+`)
	nonDigits    = regexp.MustCompile(`\D`)
)

func notBlank(_ context.Context, c *check) (outcome, error) {
	if isBlank(c.value) {
		return c.failWith("error"), nil
	}
	return pass, nil
}

func isNumeric(_ context.Context, c *check) (outcome, error) {
	bounds := map[string]float64{}
	for _, key := range []string{"minLength", "maxLength", "min", "max", "greaterThan"} {
		if !c.has(key) {
			continue
		}
		n, ok := c.number(key)
		if !ok {
			c.v.RegisterInvalid(c.field, c.format("Please review the information you entered for accuracy."))
			return fail, nil
		}
		bounds[key] = n
	}

	n, ok := toFloat(c.value)
	if !ok {
		return c.failWith("error"), nil
	}
	length := float64(len(stringify(c.value)))

	if b, ok := bounds["minLength"]; ok && length < b {
		return c.failWith("lengthMinError"), nil
	}
	if b, ok := bounds["maxLength"]; ok && length > b {
		return c.failWith("lengthMaxError"), nil
	}
	if b, ok := bounds["greaterThan"]; ok && int64(n) <= int64(b) {
		return c.failWith("greaterThanError"), nil
	}
	if b, ok := bounds["min"]; ok && n < b {
		return c.failWith("minError"), nil
	}
	if b, ok := bounds["max"]; ok && n > b {
		return c.failWith("maxError"), nil
	}
	return pass, nil
}

// number resolves a numeric option. Plain identifiers name another field
// whose value is used.
func (c *check) number(key string) (float64, bool) {
	raw := strings.TrimSpace(c.opt(key))
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n, true
	}
	if !identPattern.MatchString(raw) {
		return 0, false
	}
	return toFloat(c.v.subject.Get(raw))
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	case string, []byte:
		n, err := strconv.ParseFloat(strings.TrimSpace(stringify(t)), 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func isEmail(_ context.Context, c *check) (outcome, error) {
	s := stringify(c.value)
	if !emailPattern.MatchString(s) {
		return c.failWith("error"), nil
	}
	if _, err := mail.ParseAddress(emailPattern.FindString(s)); err != nil {
		return c.failWith("error"), nil
	}
	return pass, nil
}

func isURL(_ context.Context, c *check) (outcome, error) {
	s := stringify(c.value)
	if !schemePrefix.MatchString(s) {
		s = "http://" + s
		c.v.subject.Set(c.field, s)
	}
	if !urlPattern.MatchString(s) {
		return fail, nil
	}
	return pass, nil
}

func isPhone(_ context.Context, c *check) (outcome, error) {
	digits := nonDigits.ReplaceAllString(stringify(c.value), "")
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) == 7 {
		digits = c.opt("defaultAreaCode") + digits
	}
	if len(digits) != 10 {
		return c.failWith("error"), nil
	}
	if c.flag("modify") {
		c.v.subject.Set(c.field, digits[:3]+"-"+digits[3:6]+"-"+digits[6:])
	}
	return pass, nil
}

func mustMatch(_ context.Context, c *check) (outcome, error) {
	if !c.has("field") && !c.has("value") {
		return fail, fmt.Errorf("%w: mustMatch needs field or value", types.ErrInvalidArgument)
	}
	if c.has("field") && stringify(c.v.subject.Get(c.opt("field"))) != stringify(c.value) {
		return c.failWith("error"), nil
	}
	if c.has("value") && !strings.EqualFold(c.opt("value"), stringify(c.value)) {
		return c.failWith("error"), nil
	}
	return pass, nil
}

func defaultTo(_ context.Context, c *check) (outcome, error) {
	if c.value == nil || (!c.flag("strict") && stringify(c.value) == "") {
		c.v.subject.Set(c.field, c.opt("value"))
	}
	return pass, nil
}

func isFilled(v any, strict bool) bool {
	if v == nil {
		return false
	}
	return strict || stringify(v) != ""
}

func validateWhenFilled(ctx context.Context, c *check) (outcome, error) {
	assess := c.value
	if c.has("field") {
		assess = c.v.subject.Get(c.opt("field"))
	}
	strict := c.flag("strict")

	filled := false
	switch t := assess.(type) {
	case []string:
		for _, s := range t {
			filled = filled || isFilled(s, strict)
		}
	case []any:
		for _, s := range t {
			filled = filled || isFilled(s, strict)
		}
	default:
		filled = isFilled(assess, strict)
	}
	if !filled {
		return skip, nil
	}
	return c.v.validateUsing(ctx, c.field, c.opt("using"), c.extras)
}

func validateWhen(ctx context.Context, c *check) (outcome, error) {
	other := c.v.subject.Get(c.opt("field"))
	var matches bool
	if c.flag("strict") {
		s, ok := other.(string)
		matches = ok && s == c.opt("equals")
	} else {
		matches = stringify(other) == c.opt("equals")
	}
	if !matches {
		return skip, nil
	}
	return c.v.validateUsing(ctx, c.field, c.opt("using"), c.extras)
}

func linkTo(ctx context.Context, c *check) (outcome, error) {
	fields := []string{c.opt("field")}
	if !c.has("field") {
		fields = listSplit.Split(strings.TrimSpace(c.opt("fields")), -1)
	}
	for _, f := range fields {
		if f == "" {
			continue
		}
		invalid, err := c.v.IsFieldInvalid(ctx, f)
		if err != nil {
			return fail, err
		}
		if invalid {
			c.v.RegisterInvalid(c.field, "")
			return fail, nil
		}
	}
	return pass, nil
}

func isUnique(ctx context.Context, c *check) (outcome, error) {
	unique, err := c.v.subject.IsUnique(ctx, c.field, c.opt("where"))
	if err != nil {
		return fail, err
	}
	if !unique {
		return c.failWith("error"), nil
	}
	return pass, nil
}

func isDateRange(ctx context.Context, c *check) (outcome, error) {
	start, end := c.opt("startField"), c.opt("endField")
	if start == "" || end == "" {
		return fail, fmt.Errorf("%w: isDateRange needs startField and endField", types.ErrInvalidArgument)
	}

	if c.flag("requireBoth") {
		startOK, err := c.v.validateUsing(ctx, start, "isDate", map[string]string{"error": c.opt("error")})
		if err != nil {
			return fail, err
		}
		endOK, err := c.v.validateUsing(ctx, end, "isDate", map[string]string{"error": c.opt("error")})
		if err != nil {
			return fail, err
		}
		if startOK != pass || endOK != pass {
			return fail, nil
		}
	}

	if stringify(c.v.subject.Get(start)) == "" || stringify(c.v.subject.Get(end)) == "" {
		return pass, nil
	}

	opts := map[string]string{"chronologyError": c.opt("error")}
	if c.has("format") {
		opts["format"] = c.opt("format")
	}
	if c.flag("overlapAllowed") {
		opts["onOrBefore"] = end
	} else {
		opts["before"] = end
	}
	o, err := c.v.validateUsing(ctx, start, "isDate", opts)
	if err != nil {
		return fail, err
	}
	if o != pass {
		c.v.RegisterInvalid(end, c.format(c.opt("error")))
		return fail, nil
	}
	return pass, nil
}
