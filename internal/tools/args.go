package tools

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Args holds validated, coerced tool arguments. Absent optional parameters
// have no key at all; a value that is present passed its declared constraint.
type Args map[string]any

// String returns the named argument as a string, or "" when absent.
func (a Args) String(name string) string {
	value, ok := a[name]
	if !ok || value == nil {
		return ""
	}

	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Has reports whether the named argument was supplied.
func (a Args) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// validateArgs checks the raw arguments against the declared parameters.
// Unknown arguments are ignored so that clients sending extras keep working;
// empty strings on optional parameters are treated as absent.
func validateArgs(params []Param, raw map[string]any) (Args, error) {
	args := Args{}
	for _, p := range params {
		value, ok := raw[p.Name]
		if !ok || value == nil {
			if p.Required {
				return nil, fmt.Errorf("%s is required", p.Name)
			}
			continue
		}

		coerced, present, err := coerce(p, value)
		if err != nil {
			return nil, err
		}
		if !present {
			if p.Required {
				return nil, fmt.Errorf("%s is required", p.Name)
			}
			continue
		}
		args[p.Name] = coerced
	}
	return args, nil
}

func coerce(p Param, value any) (any, bool, error) {
	switch p.Type {
	case TypeString:
		s, ok := value.(string)
		if !ok {
			if n, isNumber := value.(json.Number); isNumber {
				s = n.String()
			} else {
				return nil, false, fmt.Errorf("%s must be a string", p.Name)
			}
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, false, nil
		}
		if p.Pattern != nil && !p.Pattern.MatchString(s) {
			return nil, false, fmt.Errorf("invalid %s %q: must match %s", p.Name, s, p.Pattern)
		}
		if len(p.Enum) > 0 && !containsString(p.Enum, s) {
			return nil, false, fmt.Errorf("invalid %s %q: must be one of %s", p.Name, s, strings.Join(p.Enum, ", "))
		}
		return s, true, nil

	case TypeBoolean:
		switch v := value.(type) {
		case bool:
			return v, true, nil
		case string:
			parsed, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return nil, false, fmt.Errorf("%s must be a boolean", p.Name)
			}
			return parsed, true, nil
		default:
			return nil, false, fmt.Errorf("%s must be a boolean", p.Name)
		}

	case TypeInteger:
		switch v := value.(type) {
		case json.Number:
			parsed, err := v.Int64()
			if err != nil {
				return nil, false, fmt.Errorf("%s must be an integer", p.Name)
			}
			return int(parsed), true, nil
		case float64:
			return int(v), true, nil
		case int:
			return v, true, nil
		case string:
			parsed, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, false, fmt.Errorf("%s must be an integer", p.Name)
			}
			return parsed, true, nil
		default:
			return nil, false, fmt.Errorf("%s must be an integer", p.Name)
		}

	default:
		return nil, false, fmt.Errorf("%s has unsupported type %s", p.Name, p.Type)
	}
}

func containsString(list []string, target string) bool {
	for _, item := range list {
		if item == target {
			return true
		}
	}
	return false
}
