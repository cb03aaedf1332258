package repository

import (
	"fmt"

	"github.com/joseph-ayodele/provider-ingest/db/ent/schema"
	"github.com/joseph-ayodele/provider-ingest/internal/common"
)

// Column validators declared on the ent Provider schema, keyed by column name.
var (
	stringValidators = map[string][]func(string) error{}
	intValidators    = map[string][]func(int) error{}
)

func init() {
	for _, f := range (schema.Provider{}).Fields() {
		d := f.Descriptor()
		name := d.Name
		if d.StorageKey != "" {
			name = d.StorageKey
		}
		for _, v := range d.Validators {
			switch fn := v.(type) {
			case func(string) error:
				stringValidators[name] = append(stringValidators[name], fn)
			case func(int) error:
				intValidators[name] = append(intValidators[name], fn)
			}
		}
	}
}

// checkColumns runs the schema's validators over the values about to be written.
func checkColumns(cols []column) error {
	for _, c := range cols {
		switch v := c.value.(type) {
		case string:
			for _, fn := range stringValidators[c.name] {
				if err := fn(v); err != nil {
					return common.NewAppError("INVALID_COLUMN", fmt.Sprintf("%s: %v", c.name, err), common.ErrValidation)
				}
			}
		case int:
			for _, fn := range intValidators[c.name] {
				if err := fn(v); err != nil {
					return common.NewAppError("INVALID_COLUMN", fmt.Sprintf("%s: %v", c.name, err), common.ErrValidation)
				}
			}
		}
	}
	return nil
}
