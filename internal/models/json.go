package models

import (
	"database/sql/driver"
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// JSON is a wrapper around gorm.io/datatypes.JSON to allow for custom data type mapping
type JSON struct {
	datatypes.JSON
}

// Value promotes the embedded JSON's Value method
func (j JSON) Value() (driver.Value, error) {
	return j.JSON.Value()
}

// Scan promotes the embedded JSON's Scan method
func (j *JSON) Scan(value interface{}) error {
	return j.JSON.Scan(value)
}

// NewJSON marshals v into a JSON column value.
func NewJSON(v interface{}) (JSON, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return JSON{}, err
	}
	return JSON{JSON: datatypes.JSON(data)}, nil
}

// RawJSON wraps already-encoded JSON bytes as a column value.
func RawJSON(data []byte) JSON {
	return JSON{JSON: datatypes.JSON(data)}
}

// MustJSON marshals v into a JSON column value, panicking on failure.
// Use only for values built from plain structs and maps.
func MustJSON(v interface{}) JSON {
	j, err := NewJSON(v)
	if err != nil {
		panic(err)
	}
	return j
}

// Decode unmarshals the column value into out. An empty column is a
// no-op, leaving out at its zero value.
func (j JSON) Decode(out interface{}) error {
	if len(j.JSON) == 0 {
		return nil
	}
	return json.Unmarshal(j.JSON, out)
}

// GormDBDataType ensures the correct data type is used for each database driver.
// This resolves the issue where MSSQL does not support the 'json' data type.
func (JSON) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "mysql":
		return "JSON"
	case "postgres":
		return "JSONB"
	case "sqlserver", "mssql":
		return "NVARCHAR(MAX)"
	case "sqlite":
		return "JSON"
	}
	return "TEXT"
}
