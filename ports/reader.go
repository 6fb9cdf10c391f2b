package ports

import "colsense/domain/mapping"

// ColumnReader extracts ordered (name, values) columns from a tabular file.
// File parsing is a collaborator concern; the engine only consumes the
// resulting columns.
type ColumnReader interface {
	ReadColumns(path string) ([]mapping.Column, error)
}
