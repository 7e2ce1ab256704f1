package projector

// Field — именованная ячейка строки.
type Field struct {
	Name  string
	Value ColumnValue
}

// Row — строка результата; все строки одного набора разделяют схему столбцов.
type Row []Field

// ProjectRow строит документ из одной строки.
// Одинаковые имена столбцов не дедуплицируются: побеждает последнее значение.
func ProjectRow(row Row) *Document {
	d := newDocument()
	for _, f := range row {
		d.set(f.Name, Encode(f.Value))
	}
	return d
}

// Project строит по документу на строку. Пустой набор — пустой (не nil) срез.
func Project(rows []Row) []*Document {
	docs := make([]*Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, ProjectRow(row))
	}
	return docs
}

// Columns возвращает имена столбцов первой строки (пусто для пустого набора).
func Columns(rows []Row) []string {
	if len(rows) == 0 {
		return []string{}
	}
	names := make([]string, 0, len(rows[0]))
	for _, f := range rows[0] {
		names = append(names, f.Name)
	}
	return names
}
