package checkout

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed checkout_session.schema.json
var sessionSchemaJSON []byte

const sessionSchemaURL = "checkout_session.schema.json"

var ErrInvalidBody = errors.New("invalid checkout request")

func compileSessionSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	if err := compiler.AddResource(sessionSchemaURL, bytes.NewReader(sessionSchemaJSON)); err != nil {
		return nil, err
	}
	return compiler.Compile(sessionSchemaURL)
}

// validate checks raw against the schema before it is decoded into a typed request.
func validate(schema *jsonschema.Schema, raw []byte) error {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%w: body is not valid JSON", ErrInvalidBody)
	}
	if err := schema.Validate(v); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("%w: %s", ErrInvalidBody, firstCause(verr))
		}
		return fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	return nil
}

func firstCause(e *jsonschema.ValidationError) string {
	for len(e.Causes) > 0 {
		e = e.Causes[0]
	}
	loc := e.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return loc + ": " + e.Message
}
