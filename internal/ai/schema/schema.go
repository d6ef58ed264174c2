// Package schema validates model output against embedded JSON schemas
// before it is decoded into domain types.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/authorstack/authorstack/internal/validation"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	Insights = "insights"
	Pricing  = "pricing"
	Forecast = "forecast"

	CodeInvalidResponse = "invalid_ai_response"
)

//go:embed schemas/*.json
var files embed.FS

var jsonPayload = regexp.MustCompile(`\{[\s\S]*\}|\[[\s\S]*\]`)

// Registry holds the compiled output schemas.
type Registry struct {
	schemas map[string]*jsonschema.Schema
}

func NewRegistry() (*Registry, error) {
	r := &Registry{schemas: map[string]*jsonschema.Schema{}}
	for _, name := range []string{Insights, Pricing, Forecast} {
		compiled, err := compile(name)
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", name, err)
		}
		r.schemas[name] = compiled
	}
	return r, nil
}

func compile(name string) (*jsonschema.Schema, error) {
	raw, err := files.ReadFile("schemas/" + name + ".json")
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	url := name + ".json"
	if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return c.Compile(url)
}

// Extract returns the first JSON object or array embedded in a model reply,
// which is often wrapped in prose or markdown fences.
func Extract(content string) (string, bool) {
	match := jsonPayload.FindString(content)
	if match == "" {
		return "", false
	}
	return match, true
}

// Decode extracts, validates and unmarshals a model reply into dest.
// Every failure is reported as a validation error on the response field.
func (r *Registry) Decode(name, content string, dest any) error {
	compiled, ok := r.schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}

	payload, ok := Extract(content)
	if !ok {
		return invalid("response contains no JSON payload")
	}

	var doc any
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return invalid("response is not valid JSON")
	}

	if err := compiled.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return invalid(describe(verr))
		}
		return invalid(err.Error())
	}

	if err := json.Unmarshal([]byte(payload), dest); err != nil {
		return invalid("response does not match the expected shape")
	}
	return nil
}

func invalid(msg string) error {
	return validation.New("response", CodeInvalidResponse, msg)
}

func describe(err *jsonschema.ValidationError) string {
	var leaves []*jsonschema.ValidationError
	collect(err, &leaves)
	sort.Slice(leaves, func(i, j int) bool {
		return leaves[i].InstanceLocation < leaves[j].InstanceLocation
	})

	msgs := make([]string, 0, len(leaves))
	for _, e := range leaves {
		path := strings.ReplaceAll(strings.TrimLeft(e.InstanceLocation, "/"), "/", ".")
		msg := strings.ReplaceAll(e.Message, `'`, `"`)
		if path == "" {
			msgs = append(msgs, msg)
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: %s", path, msg))
	}
	return strings.Join(msgs, "; ")
}

func collect(err *jsonschema.ValidationError, out *[]*jsonschema.ValidationError) {
	if len(err.Causes) == 0 {
		*out = append(*out, err)
		return
	}
	for _, cause := range err.Causes {
		collect(cause, out)
	}
}
