package schema

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// FieldKind is the storage shape of one attribute.
type FieldKind string

const (
	KindString  FieldKind = "string"
	KindInt     FieldKind = "int"
	KindBool    FieldKind = "bool"
	KindInts    FieldKind = "[]int"
	KindStrings FieldKind = "[]string"
	KindOidList FieldKind = "oidlist"
	KindSet     FieldKind = "set"
)

// Field describes one attribute of a class.
type Field struct {
	Name string
	Kind FieldKind

	// Size is the initial length of an array field.
	Size int
}

// Class is a compiled class definition. Fields are sorted by name.
type Class struct {
	Name   string
	Fields []Field
}

// Field returns the named field.
func (c *Class) Field(name string) (Field, bool) {
	idx, found := slices.BinarySearchFunc(c.Fields, name, func(f Field, n string) int {
		return strings.Compare(f.Name, n)
	})
	if !found {
		return Field{}, false
	}
	return c.Fields[idx], true
}

// CompileClass parses a CUE value into a Class. The value should be the
// class struct itself, e.g. the result of looking up "class.Room".
func CompileClass(v cue.Value) (*Class, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	class := &Class{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		class.Name = labels[len(labels)-1].String()
	}
	if class.Name == "" {
		return nil, &CompileError{Field: "class", Message: "class name is required", Pos: v.Pos()}
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{
			Field:   "fields",
			Message: "fields are required",
			Pos:     v.Pos(),
		}
	}

	sizes, err := parseSizes(v)
	if err != nil {
		return nil, err
	}

	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		kind, err := extractKind(iter.Value())
		if err != nil {
			return nil, err
		}
		f := Field{Name: iter.Label(), Kind: kind}
		if size, ok := sizes[f.Name]; ok {
			if kind != KindInts && kind != KindStrings {
				return nil, &CompileError{
					Field:   "sizes." + f.Name,
					Message: "size given for a field that is not an array",
					Pos:     iter.Value().Pos(),
				}
			}
			f.Size = size
			delete(sizes, f.Name)
		}
		class.Fields = append(class.Fields, f)
	}

	if len(sizes) > 0 {
		name := slices.Sorted(maps.Keys(sizes))[0]
		return nil, &CompileError{
			Field:   "sizes." + name,
			Message: "size given for an undeclared field",
			Pos:     v.Pos(),
		}
	}

	slices.SortFunc(class.Fields, func(a, b Field) int {
		return strings.Compare(a.Name, b.Name)
	})
	return class, nil
}

func parseSizes(v cue.Value) (map[string]int, error) {
	sizes := make(map[string]int)
	sizesVal := v.LookupPath(cue.ParsePath("sizes"))
	if !sizesVal.Exists() {
		return sizes, nil
	}

	iter, err := sizesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		n, err := iter.Value().Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if n < 0 {
			return nil, &CompileError{
				Field:   "sizes." + iter.Label(),
				Message: "size must not be negative",
				Pos:     iter.Value().Pos(),
			}
		}
		sizes[iter.Label()] = int(n)
	}
	return sizes, nil
}

// extractKind maps a CUE field declaration to a FieldKind. The concrete
// strings "oidlist" and "set" name the collection kinds.
func extractKind(v cue.Value) (FieldKind, error) {
	if v.IsConcrete() && v.Kind() == cue.StringKind {
		s, _ := v.String()
		switch FieldKind(s) {
		case KindOidList, KindSet:
			return FieldKind(s), nil
		}
		return "", &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unknown collection kind %q", s),
			Pos:     v.Pos(),
		}
	}

	switch v.IncompleteKind() {
	case cue.StringKind:
		return KindString, nil
	case cue.IntKind:
		return KindInt, nil
	case cue.BoolKind:
		return KindBool, nil
	case cue.ListKind:
		elem := v.LookupPath(cue.MakePath(cue.AnyIndex))
		if !elem.Exists() {
			return "", &CompileError{
				Field:   "type",
				Message: "array fields must be declared as [...int] or [...string]",
				Pos:     v.Pos(),
			}
		}
		switch elem.IncompleteKind() {
		case cue.IntKind:
			return KindInts, nil
		case cue.StringKind:
			return KindStrings, nil
		}
		return "", &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported array element kind: %v", elem.IncompleteKind()),
			Pos:     v.Pos(),
		}
	case cue.FloatKind, cue.NumberKind:
		return "", &CompileError{
			Field:   "type",
			Message: "float types are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return "", &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError is a class definition error with its source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
