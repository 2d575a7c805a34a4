// Package dbtypes holds column types gorm cannot map on its own.
package dbtypes

import (
	"database/sql/driver"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// UUIDArray maps a Postgres uuid[] column. Encoding is delegated to pq's array
// literal codec; an empty array is stored as {} rather than NULL.
type UUIDArray []uuid.UUID

func (a *UUIDArray) Scan(src any) error {
	ids := []uuid.UUID{}
	if src != nil {
		if err := (pq.GenericArray{A: &ids}).Scan(src); err != nil {
			return fmt.Errorf("scan uuid[]: %w", err)
		}
	}
	*a = ids
	return nil
}

func (a UUIDArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "{}", nil
	}
	return pq.GenericArray{A: []uuid.UUID(a)}.Value()
}

// Contains reports whether id is part of the array.
func (a UUIDArray) Contains(id uuid.UUID) bool {
	return slices.Contains(a, id)
}

// Strings renders the ids for logs and event payloads.
func (a UUIDArray) Strings() []string {
	out := make([]string, len(a))
	for i, id := range a {
		out[i] = id.String()
	}
	return out
}
