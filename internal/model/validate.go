package model

import (
	_ "embed"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema/compile_request.schema.json
var compileRequestSchema []byte

var compileRequestLoader = gojsonschema.NewBytesLoader(compileRequestSchema)

// filenameLoader is the "filename" property of the request schema, so raw
// bodies naming their download through the query get the same rules.
var filenameLoader = func() gojsonschema.JSONLoader {
	var s struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(compileRequestSchema, &s); err != nil {
		panic(errors.Wrap(err, "parse embedded compile request schema"))
	}
	return gojsonschema.NewBytesLoader(s.Properties["filename"])
}()

// ParseCompileRequest validates body against the compile request schema and
// decodes it.
func ParseCompileRequest(body []byte) (*CompileRequest, error) {
	res, err := gojsonschema.Validate(compileRequestLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, errors.Wrap(err, "request body is not valid JSON")
	}
	if !res.Valid() {
		return nil, schemaError(res)
	}

	var req CompileRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, errors.Wrap(err, "decode compile request")
	}
	return &req, nil
}

// ValidateFilename checks a requested download name against the request
// schema. An empty name means "use the default" and is accepted.
func ValidateFilename(name string) error {
	if name == "" {
		return nil
	}
	res, err := gojsonschema.Validate(filenameLoader, gojsonschema.NewGoLoader(name))
	if err != nil {
		return errors.Wrap(err, "validate filename")
	}
	if !res.Valid() {
		return schemaError(res)
	}
	return nil
}

func schemaError(res *gojsonschema.Result) error {
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.Newf("schema validation failed: %s", strings.Join(msgs, "; "))
}
