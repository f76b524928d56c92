package repository

import (
	"testing"

	"github.com/blues/cfl/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

func TestOpenMigratesTables(t *testing.T) {
	db, err := Open(sqlite.Open("file::memory:"))
	require.NoError(t, err)

	for _, table := range []string{"campaign", "contribute_record", "refund_record", "settlement_record", "escrow_record", "event"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.True(t, db.Migrator().HasIndex(&model.EventModel{}, "Seq"))
}
