// Package schema owns the physical layout of document tables and the schema
// version registry.
//
// Every managed table has exactly one row in the registry recording the
// schema version it was created under. Guard.Ensure refuses to operate on a
// table whose recorded version is missing or differs from Version; there is
// no automatic migration.
package schema
