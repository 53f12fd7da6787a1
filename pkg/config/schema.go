package config

import (
	"reflect"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/yxiaowhut/streamit/internal/bytesize"
)

// Schema reflects Config into a JSON schema keyed by the YAML field names.
// Sizes accept "256Ki" strings or plain integers, durations Go duration
// strings.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
		FieldNameTag:               "yaml",
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			switch t {
			case reflect.TypeOf(bytesize.ByteSize(0)):
				return &jsonschema.Schema{
					OneOf: []*jsonschema.Schema{
						{Type: "string", Pattern: `^\s*\d+(\.\d+)?\s*[A-Za-z]*\s*$`},
						{Type: "integer", Minimum: "0"},
					},
				}
			case reflect.TypeOf(time.Duration(0)):
				return &jsonschema.Schema{Type: "string", Pattern: `^(\d+(\.\d+)?(ns|us|µs|ms|s|m|h))+$`}
			}
			return nil
		},
	}

	schema := reflector.Reflect(&Config{})
	schema.Version = "https://json-schema.org/draft/2020-12/schema"
	schema.Title = "streamit configuration"
	schema.Description = "Configuration schema for the streamit command core"
	return schema
}
