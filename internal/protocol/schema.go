package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const schemaBase = "https://hearsay.ai/schemas/"

var (
	actSchema   *jsonschema.Schema
	helloSchema *jsonschema.Schema
)

func init() {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	for _, name := range []string{"act.schema.json", "hello.schema.json"} {
		b, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			panic("protocol: read schema " + name + ": " + err.Error())
		}
		if err := c.AddResource(schemaBase+name, bytes.NewReader(b)); err != nil {
			panic("protocol: add schema " + name + ": " + err.Error())
		}
	}
	actSchema = c.MustCompile(schemaBase + "act.schema.json")
	helloSchema = c.MustCompile(schemaBase + "hello.schema.json")
}

// ValidateAct checks a raw ACT message against the embedded schema.
func ValidateAct(raw []byte) error {
	return validate(actSchema, raw)
}

func ValidateHello(raw []byte) error {
	return validate(helloSchema, raw)
}

func validate(s *jsonschema.Schema, raw []byte) error {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return s.Validate(v)
}

// Schema returns the raw embedded schema document by file name.
func Schema(name string) ([]byte, error) {
	return schemaFS.ReadFile("schemas/" + name)
}
