package config

import (
	"fmt"
	"reflect"

	"github.com/t14raptor/go-fast/parser"
)

// parseJSConfig parses a .js/.mjs/.cjs config file written as
//
//	module.exports = { ... };
//
// go-fast parses ES5+ but (per its own source comments) not ES6 module
// syntax, so `export default {...}` is out; the object literal assigned to
// module.exports (or exports) is what every config file in this format is
// expected to contain.
//
// The AST is walked reflectively rather than through a concrete type switch
// over every statement/expression shape go-fast defines: only a handful of
// node kinds (object/array/string/number/boolean/null literals, identifiers)
// are actually needed to decode a config literal, and resolving them by
// type name keeps this decoder correct even if go-fast nests the
// assignment's left/right-hand sides slightly differently than observed in
// the one analyzer this was grounded on.
func parseJSConfig(src []byte) (map[string]any, error) {
	program, err := parser.ParseFile(string(src))
	if err != nil {
		return nil, fmt.Errorf("parsing config script: %w", err)
	}

	lit := findObjectLiteral(reflect.ValueOf(program))
	if !lit.IsValid() {
		return nil, fmt.Errorf("no object literal found (expected module.exports = {...})")
	}

	raw, ok := decodeValue(lit)
	if !ok {
		return nil, fmt.Errorf("could not decode config object literal")
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("config export is not an object")
	}
	return m, nil
}

// findObjectLiteral walks v depth-first looking for the first node whose Go
// type name is "ObjectLiteral". It assumes the config's module.exports value
// is the only (or first) object literal of real size in the file, which
// holds for every config file this loader is meant to read.
func findObjectLiteral(v reflect.Value) reflect.Value {
	visited := map[uintptr]bool{}

	var walk func(reflect.Value) reflect.Value
	walk = func(v reflect.Value) reflect.Value {
		if !v.IsValid() {
			return reflect.Value{}
		}
		switch v.Kind() {
		case reflect.Ptr:
			if v.IsNil() {
				return reflect.Value{}
			}
			ptr := v.Pointer()
			if visited[ptr] {
				return reflect.Value{}
			}
			visited[ptr] = true
			return walk(v.Elem())
		case reflect.Interface:
			if v.IsNil() {
				return reflect.Value{}
			}
			return walk(v.Elem())
		case reflect.Struct:
			if typeName(v) == "ObjectLiteral" {
				return v
			}
			for i := 0; i < v.NumField(); i++ {
				f := v.Field(i)
				if !f.CanInterface() {
					continue
				}
				if found := walk(f); found.IsValid() {
					return found
				}
			}
		case reflect.Slice, reflect.Array:
			for i := 0; i < v.Len(); i++ {
				if found := walk(v.Index(i)); found.IsValid() {
					return found
				}
			}
		}
		return reflect.Value{}
	}
	return walk(v)
}

func typeName(v reflect.Value) string {
	if !v.IsValid() {
		return ""
	}
	return v.Type().Name()
}

// deref strips pointer/interface indirection and unwraps go-fast's
// Expression{Expr ast.Expr} envelope, if present, down to the concrete
// literal/identifier/object/array node.
func deref(v reflect.Value) reflect.Value {
	for {
		if !v.IsValid() {
			return v
		}
		switch v.Kind() {
		case reflect.Ptr, reflect.Interface:
			if v.IsNil() {
				return reflect.Value{}
			}
			v = v.Elem()
			continue
		case reflect.Struct:
			if typeName(v) == "Expression" {
				if f := v.FieldByName("Expr"); f.IsValid() {
					v = f
					continue
				}
			}
		}
		return v
	}
}

// decodeValue converts a go-fast expression node into a plain Go value:
// string, float64, bool, nil, map[string]any, or []any.
func decodeValue(v reflect.Value) (any, bool) {
	v = deref(v)
	if !v.IsValid() {
		return nil, false
	}

	switch typeName(v) {
	case "StringLiteral":
		if f := v.FieldByName("Value"); f.IsValid() && f.Kind() == reflect.String {
			return f.String(), true
		}
	case "NumberLiteral":
		if f := v.FieldByName("Value"); f.IsValid() {
			switch f.Kind() {
			case reflect.Float32, reflect.Float64:
				return f.Float(), true
			case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
				return float64(f.Int()), true
			}
		}
	case "BooleanLiteral":
		if f := v.FieldByName("Value"); f.IsValid() && f.Kind() == reflect.Bool {
			return f.Bool(), true
		}
	case "NullLiteral":
		return nil, true
	case "Identifier":
		if f := v.FieldByName("Name"); f.IsValid() {
			return fmt.Sprint(f.Interface()), true
		}
	case "ObjectLiteral":
		f := v.FieldByName("Value")
		if !f.IsValid() || f.Kind() != reflect.Slice {
			return nil, false
		}
		out := map[string]any{}
		for i := 0; i < f.Len(); i++ {
			key, val, ok := decodeProperty(f.Index(i))
			if !ok {
				continue
			}
			out[key] = val
		}
		return out, true
	case "ArrayLiteral":
		f := v.FieldByName("Value")
		if !f.IsValid() || f.Kind() != reflect.Slice {
			return nil, false
		}
		out := make([]any, 0, f.Len())
		for i := 0; i < f.Len(); i++ {
			val, ok := decodeValue(f.Index(i))
			if ok {
				out = append(out, val)
			}
		}
		return out, true
	}
	return nil, false
}

// decodeProperty extracts a key/value pair out of a go-fast object
// property node, whatever concrete shape it takes (PropertyKeyed and
// similar all expose Key and Value fields in practice).
func decodeProperty(v reflect.Value) (string, any, bool) {
	v = deref(v)
	if !v.IsValid() || v.Kind() != reflect.Struct {
		return "", nil, false
	}

	keyField := v.FieldByName("Key")
	if !keyField.IsValid() {
		return "", nil, false
	}
	keyVal, ok := decodeValue(keyField)
	if !ok {
		return "", nil, false
	}
	key, ok := keyVal.(string)
	if !ok || key == "" {
		return "", nil, false
	}

	valField := v.FieldByName("Value")
	if !valField.IsValid() {
		return "", nil, false
	}
	val, ok := decodeValue(valField)
	if !ok {
		return "", nil, false
	}
	return key, val, true
}
