package sqlschema

import (
	"errors"
	"fmt"
)

// Validate checks the structural invariants of a schema. All violations are
// returned joined.
func Validate(s *Schema, allowMultipleAutoincrement bool) error {
	var errs []error
	for _, t := range s.Tables {
		errs = append(errs, validateTable(s, &t, allowMultipleAutoincrement)...)
	}
	return errors.Join(errs...)
}

func validateTable(s *Schema, t *Table, allowMultipleAutoincrement bool) []error {
	var errs []error
	has := func(name string) bool {
		_, ok := t.Column(name)
		return ok
	}

	for _, idx := range t.Indexes {
		for _, c := range idx.Columns {
			if !has(c) {
				errs = append(errs, fmt.Errorf("index %q on table %q references unknown column %q", idx.Name, t.Name, c))
			}
		}
	}

	for _, fk := range t.ForeignKeys {
		for _, c := range fk.Columns {
			if !has(c) {
				errs = append(errs, fmt.Errorf("foreign key %q on table %q references unknown column %q", fk.ConstraintName, t.Name, c))
			}
		}
		if len(fk.Columns) != len(fk.ReferencedColumns) {
			errs = append(errs, fmt.Errorf("foreign key %q on table %q has %d columns but references %d",
				fk.ConstraintName, t.Name, len(fk.Columns), len(fk.ReferencedColumns)))
		}
	}

	if t.PrimaryKey != nil {
		for _, name := range t.PrimaryKey.Columns {
			c, ok := t.Column(name)
			if !ok {
				errs = append(errs, fmt.Errorf("primary key of table %q references unknown column %q", t.Name, name))
				continue
			}
			if c.Type.Arity != Required {
				errs = append(errs, fmt.Errorf("primary key column %q on table %q must be required", name, t.Name))
			}
		}
	}

	autoincrements := 0
	for _, c := range t.Columns {
		isAuto := c.AutoIncrement || (c.Default != nil && c.Default.Kind == DefaultAutoincrement)
		if isAuto {
			autoincrements++
			if !c.Type.Family.IsInteger() {
				errs = append(errs, fmt.Errorf("autoincrement column %q on table %q must be an integer", c.Name, t.Name))
			}
		}
		if c.Type.Family == FamilyEnum {
			if _, ok := s.FindEnum(c.Type.EnumName); !ok {
				errs = append(errs, fmt.Errorf("column %q on table %q references unknown enum %q", c.Name, t.Name, c.Type.EnumName))
			}
		}
	}
	if autoincrements > 1 && !allowMultipleAutoincrement {
		errs = append(errs, fmt.Errorf("table %q has %d autoincrement columns", t.Name, autoincrements))
	}

	return errs
}
