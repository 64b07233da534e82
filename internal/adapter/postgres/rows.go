package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// rowsToMaps converts pgx.Rows into a slice of maps keyed by column name,
// with values normalized for JSON serialization.
func rowsToMaps(rows pgx.Rows) ([]map[string]any, error) {
	fields := rows.FieldDescriptions()
	var result []map[string]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("reading row values: %w", err)
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[fd.Name] = normalizeValue(vals[i])
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return result, nil
}

// normalizeValue renders values without a native JSON representation as
// text: timestamps as RFC 3339, numerics as decimal strings, uuids in
// canonical form. Everything else passes through untouched.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		if dv, err := val.Value(); err == nil {
			return dv
		}
		return fmt.Sprintf("%v", val)
	case [16]byte:
		return uuid.UUID(val).String()
	default:
		return v
	}
}
