package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// AddendumKey is the reserved top-level key mapping addendum slug to fields.
const AddendumKey = "addendum"

// Field is one display row derived from fieldsJson.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

var titleCaser = cases.Title(language.English)

// FlattenFields turns fieldsJson into display rows. Top-level keys pass through
// unchanged; each field under the addendum key becomes
// "<Humanized Addendum> - <humanized field key>". Keys are emitted in sorted
// order, addendum fields included, so the view is stable between polls.
func FlattenFields(fieldsJSON map[string]any) []Field {
	if len(fieldsJSON) == 0 {
		return nil
	}
	out := make([]Field, 0, len(fieldsJSON))
	for _, key := range sortedKeys(fieldsJSON) {
		value := fieldsJSON[key]
		if key == AddendumKey {
			if addenda, ok := value.(map[string]any); ok {
				out = append(out, flattenAddenda(addenda)...)
				continue
			}
		}
		out = append(out, Field{Key: key, Value: FormatValue(value)})
	}
	return out
}

func flattenAddenda(addenda map[string]any) []Field {
	var out []Field
	for _, slug := range sortedKeys(addenda) {
		name := HumanizeAddendum(slug)
		fields, ok := addenda[slug].(map[string]any)
		if !ok {
			out = append(out, Field{Key: name, Value: FormatValue(addenda[slug])})
			continue
		}
		for _, fieldKey := range sortedKeys(fields) {
			out = append(out, Field{
				Key:   name + " - " + HumanizeKey(fieldKey),
				Value: FormatValue(fields[fieldKey]),
			})
		}
	}
	return out
}

// HumanizeAddendum converts an addendum slug such as "solar-addendum" into
// "Solar Addendum".
func HumanizeAddendum(slug string) string {
	return titleCaser.String(HumanizeKey(slug))
}

// HumanizeKey replaces kebab-case and snake_case separators with spaces.
func HumanizeKey(key string) string {
	words := strings.FieldsFunc(key, func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	})
	return strings.Join(words, " ")
}

// FormatValue renders a field value for display: nil is empty, booleans are
// Yes/No, objects and arrays are compact JSON, anything else its string form.
func FormatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case bool:
		if v {
			return "Yes"
		}
		return "No"
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case json.Number:
		return v.String()
	case map[string]any, []any:
		return marshalCompact(v)
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return marshalCompact(value)
	case reflect.Pointer:
		if rv.IsNil() {
			return ""
		}
		return FormatValue(rv.Elem().Interface())
	}
	return fmt.Sprint(value)
}

func marshalCompact(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
