package utils

import "github.com/google/uuid"

// UUIDGenerator produces time-ordered identifiers for sync ledger rows.
// UUIDv7 keeps ledger ids roughly insert-ordered, which helps index locality
// on the append-mostly sync_records table.
type UUIDGenerator struct {
}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

func (g *UUIDGenerator) Generate() string {
	v7, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return v7.String()
}
