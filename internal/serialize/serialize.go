// Package serialize turns resource structs into CloudFormation property maps
// and finds the logical IDs those properties reference.
package serialize

import (
	"encoding/json"
	"reflect"
	"regexp"
	"sort"
	"strings"
)

// Resource serializes a Go struct to CloudFormation resource properties.
// Nil and zero values are omitted. Values implementing json.Marshaler, such
// as intrinsic functions, are rendered through their own encoding.
func Resource(v any) (map[string]any, error) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return nil, nil
	}

	result := make(map[string]any)
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		fieldVal := val.Field(i)

		// Skip unexported fields
		if !field.IsExported() {
			continue
		}

		// Get the JSON tag or use field name
		name := getFieldName(field)
		if name == "-" {
			continue
		}

		// Skip zero values unless explicitly required
		if isZeroValue(fieldVal) {
			continue
		}

		// Serialize the field value
		serialized, err := serializeValue(fieldVal)
		if err != nil {
			return nil, err
		}

		if serialized != nil {
			result[name] = serialized
		}
	}

	return result, nil
}

// getFieldName returns the JSON field name for a struct field.
func getFieldName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" {
		return field.Name
	}

	parts := strings.Split(tag, ",")
	name := parts[0]
	if name == "" {
		return field.Name
	}
	return name
}

// isZeroValue returns true if the value is the zero value for its type.
func isZeroValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	case reflect.Slice, reflect.Map:
		return v.IsNil() || v.Len() == 0
	case reflect.String:
		return v.String() == ""
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Struct:
		// Check if it has an IsZero method
		if v.CanInterface() {
			if zeroer, ok := v.Interface().(interface{ IsZero() bool }); ok {
				return zeroer.IsZero()
			}
		}
		return false
	default:
		return false
	}
}

// serializeValue converts a reflect.Value to a JSON-compatible value.
func serializeValue(v reflect.Value) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}

	// Handle pointers
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, nil
		}
		return serializeValue(v.Elem())
	}

	// Handle interfaces
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, nil
		}
		return serializeValue(v.Elem())
	}

	// Check if the value implements json.Marshaler
	if v.CanInterface() {
		if marshaler, ok := v.Interface().(json.Marshaler); ok {
			data, err := marshaler.MarshalJSON()
			if err != nil {
				return nil, err
			}
			var result any
			if err := json.Unmarshal(data, &result); err != nil {
				return nil, err
			}
			return result, nil
		}
	}

	switch v.Kind() {
	case reflect.Struct:
		return Resource(v.Interface())

	case reflect.Slice:
		if v.Len() == 0 {
			return nil, nil
		}
		result := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			elem, err := serializeValue(v.Index(i))
			if err != nil {
				return nil, err
			}
			result[i] = elem
		}
		return result, nil

	case reflect.Map:
		if v.Len() == 0 {
			return nil, nil
		}
		result := make(map[string]any)
		iter := v.MapRange()
		for iter.Next() {
			key := iter.Key().String()
			val, err := serializeValue(iter.Value())
			if err != nil {
				return nil, err
			}
			result[key] = val
		}
		return result, nil

	case reflect.String:
		return v.String(), nil

	case reflect.Bool:
		return v.Bool(), nil

	// Numbers are normalized to float64 so values look the same whether they
	// came from a struct or from a decoded template.
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), nil

	case reflect.Float32, reflect.Float64:
		return v.Float(), nil

	default:
		// Fall back to JSON marshaling
		data, err := json.Marshal(v.Interface())
		if err != nil {
			return nil, err
		}
		var result any
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, err
		}
		return result, nil
	}
}

// subVariable matches ${Name} and ${Name.Attribute} inside Fn::Sub strings.
// ${!Literal} escapes are skipped.
var subVariable = regexp.MustCompile(`\$\{([^!}][^}]*)\}`)

// References returns the sorted, de-duplicated logical IDs referenced by
// serialized properties through Ref, Fn::GetAtt and Fn::Sub.
// Pseudo-parameters (AWS::*) are not reported.
func References(props map[string]any) []string {
	seen := make(map[string]bool)
	collectRefs(props, seen)

	refs := make([]string, 0, len(seen))
	for name := range seen {
		refs = append(refs, name)
	}
	sort.Strings(refs)
	return refs
}

func collectRefs(value any, seen map[string]bool) {
	switch v := value.(type) {
	case map[string]any:
		if ref, ok := v["Ref"].(string); ok && len(v) == 1 {
			addRef(ref, seen)
			return
		}
		if getAtt, ok := v["Fn::GetAtt"]; ok && len(v) == 1 {
			switch args := getAtt.(type) {
			case []any:
				if len(args) > 0 {
					if name, ok := args[0].(string); ok {
						addRef(name, seen)
					}
				}
			case string:
				addRef(strings.SplitN(args, ".", 2)[0], seen)
			}
			return
		}
		if sub, ok := v["Fn::Sub"]; ok && len(v) == 1 {
			switch args := sub.(type) {
			case string:
				collectSubRefs(args, nil, seen)
			case []any:
				if len(args) > 0 {
					str, _ := args[0].(string)
					var vars map[string]any
					if len(args) > 1 {
						vars, _ = args[1].(map[string]any)
						collectRefs(vars, seen)
					}
					collectSubRefs(str, vars, seen)
				}
			}
			return
		}
		for _, val := range v {
			collectRefs(val, seen)
		}

	case []any:
		for _, elem := range v {
			collectRefs(elem, seen)
		}
	}
}

func collectSubRefs(s string, vars map[string]any, seen map[string]bool) {
	for _, m := range subVariable.FindAllStringSubmatch(s, -1) {
		name := strings.SplitN(m[1], ".", 2)[0]
		if _, local := vars[name]; local {
			continue
		}
		addRef(name, seen)
	}
}

func addRef(name string, seen map[string]bool) {
	if name == "" || strings.HasPrefix(name, "AWS::") {
		return
	}
	seen[name] = true
}

// AttributeReferences returns the sorted logical IDs referenced through
// Fn::GetAtt only.
func AttributeReferences(props map[string]any) []string {
	seen := make(map[string]bool)
	collectAttRefs(props, seen)

	refs := make([]string, 0, len(seen))
	for name := range seen {
		refs = append(refs, name)
	}
	sort.Strings(refs)
	return refs
}

func collectAttRefs(value any, seen map[string]bool) {
	switch v := value.(type) {
	case map[string]any:
		if getAtt, ok := v["Fn::GetAtt"]; ok && len(v) == 1 {
			switch args := getAtt.(type) {
			case []any:
				if len(args) > 0 {
					if name, ok := args[0].(string); ok {
						addRef(name, seen)
					}
				}
			case string:
				addRef(strings.SplitN(args, ".", 2)[0], seen)
			}
			return
		}
		for _, val := range v {
			collectAttRefs(val, seen)
		}
	case []any:
		for _, elem := range v {
			collectAttRefs(elem, seen)
		}
	}
}
