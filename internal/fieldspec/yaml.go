package fieldspec

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/propgate/propgate/internal/entitlement"
	"gopkg.in/yaml.v3"
)

// document is the on-disk shape of a field spec table:
//
//	version: 1
//	fields:
//	  - field: exact_address
//	    tier: premium
type document struct {
	Version int      `yaml:"version"`
	Fields  []rowDoc `yaml:"fields"`
}

type rowDoc struct {
	Field string `yaml:"field"`
	Tier  string `yaml:"tier"`
}

// ParseYAML decodes a field spec table. Unknown keys are rejected so a typo in
// a column name cannot silently drop a restriction.
func ParseYAML(b []byte) (Table, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return Table{}, fmt.Errorf("fieldspec: decode: %w", err)
	}
	if doc.Version != 1 {
		return Table{}, fmt.Errorf("fieldspec: unsupported version %d", doc.Version)
	}
	if len(doc.Fields) == 0 {
		return Table{}, errors.New("fieldspec: no fields declared")
	}
	specs := make([]FieldSpec, 0, len(doc.Fields))
	for _, row := range doc.Fields {
		tier, err := entitlement.ParseTier(row.Tier)
		if err != nil {
			var cerr *entitlement.ConfigurationError
			if errors.As(err, &cerr) {
				cerr.FieldID = row.Field
			}
			return Table{}, err
		}
		specs = append(specs, FieldSpec{FieldID: row.Field, Required: tier})
	}
	return NewTable(specs...)
}

// LoadYAML reads a field spec table from path.
func LoadYAML(path string) (Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("fieldspec: read %s: %w", path, err)
	}
	return ParseYAML(b)
}

// MarshalYAML renders t in the format ParseYAML accepts.
func MarshalYAML(t Table) ([]byte, error) {
	doc := document{Version: 1}
	for _, s := range t.specs {
		doc.Fields = append(doc.Fields, rowDoc{Field: s.FieldID, Tier: s.Required.String()})
	}
	return yaml.Marshal(doc)
}
