// Пакет projector — преобразование строк PostgreSQL с динамическими типами
// столбцов в JSON-документы без схемы на каждую таблицу.
// codec.go — кодек одной ячейки: (тип, сырое значение, признак NULL) → JSON-значение.
package projector

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Kind — тег типа столбца (закрытое перечисление).
type Kind int

// Поддерживаемые типы столбцов.
const (
	KindUnknown Kind = iota
	KindInt2
	KindInt4
	KindInt8
	KindFloat4
	KindFloat8
	KindBool
	KindText
	KindTimestamp
	KindTimestamptz
	KindDate
	KindJSON
	KindUUID
	KindTextArray
)

// Форматы времени в JSON.
const (
	// TimestampLayout — timestamp без зоны, дробная часть только если не нулевая.
	TimestampLayout = "2006-01-02T15:04:05.999999999"
	// DateLayout — календарная дата.
	DateLayout = "2006-01-02"
)

var kindNames = map[Kind]string{
	KindUnknown:     "unknown",
	KindInt2:        "int2",
	KindInt4:        "int4",
	KindInt8:        "int8",
	KindFloat4:      "float4",
	KindFloat8:      "float8",
	KindBool:        "bool",
	KindText:        "text",
	KindTimestamp:   "timestamp",
	KindTimestamptz: "timestamptz",
	KindDate:        "date",
	KindJSON:        "json",
	KindUUID:        "uuid",
	KindTextArray:   "text[]",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ColumnValue — одна ячейка строки: тег типа, сырое значение драйвера и признак NULL.
type ColumnValue struct {
	Kind Kind
	Raw  any
	Null bool
}

// Encode преобразует ячейку в JSON-значение, пригодное для encoding/json.
// Никогда не возвращает ошибку: несоответствие типа или неизвестный тип
// деградирует до nil (JSON null) только для этой ячейки.
func Encode(v ColumnValue) (out any) {
	if v.Null || v.Raw == nil {
		return nil
	}

	// Сторонние Stringer/Valuer могут паниковать — ячейка становится null.
	defer func() {
		if recover() != nil {
			out = nil
		}
	}()

	switch v.Kind {
	case KindInt2, KindInt4, KindInt8:
		return encodeInt(v.Raw)
	case KindFloat4:
		return encodeFloat4(v.Raw)
	case KindFloat8:
		return encodeFloat8(v.Raw)
	case KindBool:
		if b, ok := v.Raw.(bool); ok {
			return b
		}
		return nil
	case KindText:
		return encodeText(v.Raw)
	case KindTimestamp:
		if t, ok := asTime(v.Raw); ok {
			return t.Format(TimestampLayout)
		}
		return nil
	case KindTimestamptz:
		if t, ok := asTime(v.Raw); ok {
			return t.UTC().Format(time.RFC3339Nano)
		}
		return nil
	case KindDate:
		if t, ok := asTime(v.Raw); ok {
			return t.Format(DateLayout)
		}
		return nil
	case KindJSON:
		return encodeJSON(v.Raw)
	case KindUUID:
		return encodeUUID(v.Raw)
	case KindTextArray:
		return encodeTextArray(v.Raw)
	default:
		return encodeFallback(v.Raw)
	}
}

// encodeInt расширяет любое целое до int64: encoding/json пишет его без потери точности.
func encodeInt(raw any) any {
	switch n := raw.(type) {
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	default:
		return nil
	}
}

// encodeFloat4 сохраняет кратчайшее представление float32 (0.1 остаётся 0.1).
func encodeFloat4(raw any) any {
	f, ok := raw.(float32)
	if !ok {
		return nil
	}
	f64 := float64(f)
	if math.IsNaN(f64) || math.IsInf(f64, 0) {
		return nil
	}
	return json.Number(strconv.FormatFloat(f64, 'g', -1, 32))
}

func encodeFloat8(raw any) any {
	var f float64
	switch n := raw.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func encodeText(raw any) any {
	switch s := raw.(type) {
	case string:
		return s
	case []byte:
		if utf8.Valid(s) {
			return string(s)
		}
	}
	return nil
}

// asTime принимает time.Time и конечные значения pgtype.
func asTime(raw any) (time.Time, bool) {
	switch t := raw.(type) {
	case time.Time:
		return t, true
	case pgtype.Timestamp:
		return t.Time, t.Valid && t.InfinityModifier == pgtype.Finite
	case pgtype.Timestamptz:
		return t.Time, t.Valid && t.InfinityModifier == pgtype.Finite
	case pgtype.Date:
		return t.Time, t.Valid && t.InfinityModifier == pgtype.Finite
	default:
		return time.Time{}, false
	}
}

// encodeJSON пропускает уже декодированное значение как есть,
// сырые байты — только если это валидный JSON.
func encodeJSON(raw any) any {
	switch j := raw.(type) {
	case json.RawMessage:
		if json.Valid(j) {
			return append(json.RawMessage(nil), j...)
		}
		return nil
	case []byte:
		if json.Valid(j) {
			return json.RawMessage(append([]byte(nil), j...))
		}
		return nil
	case bool, string, float64, json.Number, map[string]any, []any:
		return j
	default:
		b, err := json.Marshal(j)
		if err != nil {
			return nil
		}
		return json.RawMessage(b)
	}
}

func encodeUUID(raw any) any {
	switch u := raw.(type) {
	case [16]byte:
		return uuid.UUID(u).String()
	case uuid.UUID:
		return u.String()
	case pgtype.UUID:
		if !u.Valid {
			return nil
		}
		return uuid.UUID(u.Bytes).String()
	case []byte:
		parsed, err := uuid.FromBytes(u)
		if err != nil {
			return nil
		}
		return parsed.String()
	case string:
		parsed, err := uuid.Parse(u)
		if err != nil {
			return nil
		}
		return parsed.String()
	default:
		return nil
	}
}

// encodeTextArray сохраняет порядок и дубликаты; NULL-элемент делает всё поле null.
func encodeTextArray(raw any) any {
	switch arr := raw.(type) {
	case []string:
		return append(make([]string, 0, len(arr)), arr...)
	case []any:
		out := make([]string, 0, len(arr))
		for _, item := range arr {
			s, ok := item.(string)
			if !ok {
				return nil
			}
			out = append(out, s)
		}
		return out
	default:
		return nil
	}
}

// encodeFallback — best-effort строка для неизвестных типов (numeric, inet, enum...).
func encodeFallback(raw any) any {
	switch v := raw.(type) {
	case string:
		return v
	case []byte:
		if utf8.Valid(v) {
			return string(v)
		}
		return nil
	case driver.Valuer:
		val, err := v.Value()
		if err != nil {
			return nil
		}
		if s, ok := val.(string); ok {
			return s
		}
		return nil
	case fmt.Stringer:
		return v.String()
	default:
		return nil
	}
}
