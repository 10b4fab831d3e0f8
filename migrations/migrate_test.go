package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrateNilDB(t *testing.T) {
	err := Migrate(nil)
	assert.EqualError(t, err, "migration error: db is nil")
}
