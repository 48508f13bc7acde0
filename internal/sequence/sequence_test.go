package sequence_test

import (
	"context"
	"sync"
	"testing"

	"github.com/crewdeck/crewdeck/internal/model"
	"github.com/crewdeck/crewdeck/internal/sequence"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	// One connection serialises writers; in-memory sqlite otherwise reports
	// busy errors under concurrent updates.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.Counter{}))
	return db
}

func TestNext_StrictlyIncreasing(t *testing.T) {
	db := openTestDB(t)
	alloc := sequence.New(db)
	ctx := context.Background()

	var prev int64
	for i := 0; i < 5; i++ {
		n, err := alloc.Next(ctx, sequence.TicketNumber)
		require.NoError(t, err)
		assert.Greater(t, n, prev)
		prev = n
	}
	assert.EqualValues(t, 5, prev)
}

func TestNext_IndependentCounters(t *testing.T) {
	db := openTestDB(t)
	alloc := sequence.New(db)
	ctx := context.Background()

	n1, err := alloc.Next(ctx, sequence.EmployeeNumber)
	require.NoError(t, err)
	n2, err := alloc.Next(ctx, sequence.AssetTag)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n1)
	assert.EqualValues(t, 1, n2)
}

func TestNext_ConcurrentCallersGetDistinctValues(t *testing.T) {
	db := openTestDB(t)
	alloc := sequence.New(db)
	ctx := context.Background()

	const callers = 20
	results := make(chan int64, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := alloc.Next(ctx, sequence.ClaimNumber)
			assert.NoError(t, err)
			results <- n
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool)
	for n := range results {
		assert.False(t, seen[n], "value %d issued twice", n)
		seen[n] = true
	}
	assert.Len(t, seen, callers)
}
