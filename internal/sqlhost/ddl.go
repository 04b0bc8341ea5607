package sqlhost

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/tombstone/internal/schema"
)

// createTables creates one table per model. Every model needs an ID field.
// This function is idempotent.
//
// Column rules:
//   - int ID fields are INTEGER PRIMARY KEY (assigned when omitted)
//   - boolean fields are NOT NULL DEFAULT 0
//   - timestamp and optional fields are nullable
//   - other fields are NOT NULL
func createTables(db *sql.DB, facts *schema.Facts) error {
	for _, name := range facts.Models() {
		m, _ := facts.Model(name)
		if m.PrimaryKey() == "" {
			return fmt.Errorf("model %s has no id field", name)
		}
		if _, err := db.Exec(tableDDL(m)); err != nil {
			return fmt.Errorf("create table %s: %w", name, err)
		}
	}
	return nil
}

func tableDDL(m *schema.Model) string {
	var cols []string
	for _, f := range m.Fields {
		cols = append(cols, quote(f.Name)+" "+columnDef(f))
	}
	for _, group := range m.Unique {
		quoted := make([]string, len(group))
		for i, f := range group {
			quoted[i] = quote(f)
		}
		cols = append(cols, "UNIQUE ("+strings.Join(quoted, ", ")+")")
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", quote(m.Name), strings.Join(cols, ",\n\t"))
}

func columnDef(f schema.Field) string {
	var def string
	switch f.Type {
	case schema.FieldInt, schema.FieldBoolean:
		def = "INTEGER"
	default:
		def = "TEXT"
	}

	switch {
	case f.ID:
		def += " PRIMARY KEY"
	case f.Type == schema.FieldBoolean:
		def += " NOT NULL DEFAULT 0"
	case f.Optional || f.Type == schema.FieldTimestamp:
	default:
		def += " NOT NULL"
	}
	if f.Unique && !f.ID {
		def += " UNIQUE"
	}
	return def
}

func quote(ident string) string {
	return `"` + ident + `"`
}
