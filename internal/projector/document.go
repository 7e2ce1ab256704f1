package projector

import (
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Document — JSON-объект, построенный из одной строки.
// Порядок ключей совпадает с порядком столбцов. После построения не изменяется:
// экспортированы только методы чтения.
type Document struct {
	fields *orderedmap.OrderedMap[string, any]
}

// Pair — пара ключ/значение для NewDocument.
type Pair struct {
	Key   string
	Value any
}

// NewDocument собирает документ из готовых JSON-значений в заданном порядке.
// Повторный ключ перезаписывает значение, сохраняя первую позицию.
func NewDocument(pairs ...Pair) *Document {
	d := newDocument()
	for _, p := range pairs {
		d.set(p.Key, p.Value)
	}
	return d
}

func newDocument() *Document {
	return &Document{fields: orderedmap.New[string, any]()}
}

func (d *Document) set(key string, value any) {
	d.fields.Set(key, value)
}

// Get возвращает значение поля.
func (d *Document) Get(key string) (any, bool) {
	if d == nil {
		return nil, false
	}
	return d.fields.Get(key)
}

// String возвращает строковое поле; false, если поля нет или оно не строка.
func (d *Document) String(key string) (string, bool) {
	v, ok := d.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Len — количество полей.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return d.fields.Len()
}

// Keys возвращает имена полей в порядке столбцов.
func (d *Document) Keys() []string {
	if d == nil {
		return nil
	}
	keys := make([]string, 0, d.fields.Len())
	for pair := d.fields.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Clone возвращает независимую копию: изменяемые вложенные значения
// (массивы, объекты, сырой JSON) копируются.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := newDocument()
	for pair := d.fields.Oldest(); pair != nil; pair = pair.Next() {
		c.set(pair.Key, deepCopy(pair.Value))
	}
	return c
}

// MarshalJSON сериализует поля в порядке столбцов.
func (d *Document) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	return d.fields.MarshalJSON()
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case []string:
		if t == nil {
			return t
		}
		out := make([]string, len(t))
		copy(out, t)
		return out
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i := range t {
			out[i] = deepCopy(t[i])
		}
		return out
	case map[string]any:
		if t == nil {
			return t
		}
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case json.RawMessage:
		return append(json.RawMessage(nil), t...)
	default:
		return v
	}
}
