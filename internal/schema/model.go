package schema

type Table struct {
	Schema  string    `json:"schema,omitempty"`
	Name    string    `json:"name"`
	Columns []*Column `json:"columns,omitempty"`
}

// QualifiedName returns schema.name, or name when the schema is empty.
func (t *Table) QualifiedName() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

type Column struct {
	Name         string `json:"name"`
	DataType     string `json:"dataType"`
	Nullable     bool   `json:"nullable"`
	IsPrimaryKey bool   `json:"isPrimaryKey"`
	MaxLength    int64  `json:"maxLength,omitempty"`
	Precision    int64  `json:"precision,omitempty"`
	Scale        int64  `json:"scale,omitempty"`
}

// Preview is the head of a query's result set.
type Preview struct {
	Columns  []string `json:"columns"`
	Rows     [][]any  `json:"rows"`
	RowCount int      `json:"rowCount"`
}
