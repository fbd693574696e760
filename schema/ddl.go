package schema

import (
	"fmt"
	"regexp"
)

const (
	// Version is the layout version written to and expected from the registry.
	Version = 2

	// RegistryTable records the schema version of every managed table.
	RegistryTable = "schema_versions"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name can be rendered into SQL unquoted.
func ValidIdentifier(name string) bool { return identifier.MatchString(name) }

// RegistryDDL returns the DDL of the schema version registry.
func RegistryDDL() string {
	return `CREATE TABLE IF NOT EXISTS ` + RegistryTable + ` (
    table_name     TEXT PRIMARY KEY,
    schema_version INTEGER NOT NULL
);`
}

// TableDDL returns the statements creating a document table named name:
// the table itself plus its shard and timestamp indexes. Snapshot tables are
// created from the same statements so they are structural clones of the
// primary table.
func TableDDL(name string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    doc_id       TEXT PRIMARY KEY,
    embedding    BLOB,
    doc          BLOB,
    shard        INTEGER NOT NULL,
    last_updated INTEGER NOT NULL
);`, name),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_shard_idx ON %[1]s(shard, doc_id);`, name),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_updated_idx ON %[1]s(last_updated);`, name),
	}
}

// DropTableDDL returns the statement dropping name (and with it, its indexes).
func DropTableDDL(name string) string {
	return `DROP TABLE IF EXISTS ` + name
}
