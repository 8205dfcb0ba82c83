package tools

import (
	"fmt"
	"strings"

	"github.com/trackle-io/trackle-mcp/internal/identity"
)

// field maps a validated argument onto an outgoing request field. Most
// mappings keep the name; renamed covers the rest.
type field struct {
	param  string
	target string
}

func f(name string) field {
	return field{param: name, target: name}
}

func renamed(param, target string) field {
	return field{param: param, target: target}
}

// buildBody copies supplied arguments into an outgoing request body. Omitted
// arguments stay omitted entirely; a missing optional field is never
// serialized as a null-valued key.
func buildBody(args Args, fields []field) map[string]any {
	body := map[string]any{}
	for _, fld := range fields {
		if value, ok := args[fld.param]; ok {
			body[fld.target] = value
		}
	}
	return body
}

// buildQuery copies supplied arguments into GET query parameters. Booleans
// serialize as "true" only when true; false and absent filters are dropped
// from the query string entirely.
func buildQuery(args Args, fields []field) map[string]string {
	params := map[string]string{}
	for _, fld := range fields {
		value, ok := args[fld.param]
		if !ok {
			continue
		}
		switch v := value.(type) {
		case string:
			if v != "" {
				params[fld.target] = v
			}
		case bool:
			if v {
				params[fld.target] = "true"
			}
		case int:
			params[fld.target] = fmt.Sprintf("%d", v)
		default:
			params[fld.target] = fmt.Sprint(v)
		}
	}
	return params
}

// embedActor stamps the resolved identity onto a mutating request body. The
// raw user override itself is never forwarded to the tracker.
func embedActor(body map[string]any, actor identity.Identity) {
	body["actorName"] = actor.ActorName
	body["actorType"] = actor.ActorType
}

func fieldNames(fields []field) string {
	names := make([]string, 0, len(fields))
	for _, fld := range fields {
		names = append(names, fld.target)
	}
	return strings.Join(names, ", ")
}
