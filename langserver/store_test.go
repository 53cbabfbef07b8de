package langserver

import (
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreAcquireRelease(t *testing.T) {
	store := NewMemoryStore()

	acquired, err := store.Acquire("rust")
	require.NoError(t, err)
	assert.True(t, acquired)

	// Second acquire loses
	acquired, err = store.Acquire("rust")
	require.NoError(t, err)
	assert.False(t, acquired)

	active, err := store.IsActive("rust")
	require.NoError(t, err)
	assert.True(t, active)

	require.NoError(t, store.Release("rust"))

	active, err = store.IsActive("rust")
	require.NoError(t, err)
	assert.False(t, active)

	// Released language can be acquired again
	acquired, err = store.Acquire("rust")
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestMemoryStoreConcurrentAcquire(t *testing.T) {
	store := NewMemoryStore()

	const contenders = 32
	var wins int64
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acquired, err := store.Acquire("rust")
			require.NoError(t, err)
			if acquired {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), wins, "exactly one concurrent acquirer must win")
}

func TestMemoryStoreUpdatePIDAndActive(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Acquire("rust")
	require.NoError(t, err)
	require.NoError(t, store.UpdatePID("rust", 31337))

	servers, err := store.Active()
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, "rust", servers[0].Language)
	assert.Equal(t, 31337, servers[0].PID)
	assert.False(t, servers[0].StartedAt.IsZero())
}

func TestSQLiteStoreAcquire(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLiteStoreWithDB(db)

	mock.ExpectExec("INSERT OR IGNORE INTO active_servers").
		WithArgs("rust", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	acquired, err := store.Acquire("rust")
	require.NoError(t, err)
	assert.True(t, acquired)

	// A second acquire affects zero rows and loses
	mock.ExpectExec("INSERT OR IGNORE INTO active_servers").
		WithArgs("rust", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	acquired, err = store.Acquire("rust")
	require.NoError(t, err)
	assert.False(t, acquired)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStoreReleaseAndIsActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLiteStoreWithDB(db)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("rust").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	active, err := store.IsActive("rust")
	require.NoError(t, err)
	assert.True(t, active)

	mock.ExpectExec("DELETE FROM active_servers").
		WithArgs("rust").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Release("rust"))

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("rust").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	active, err = store.IsActive("rust")
	require.NoError(t, err)
	assert.False(t, active)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStoreActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLiteStoreWithDB(db)

	started := time.Now()
	mock.ExpectQuery("SELECT language, pid, started_at FROM active_servers").
		WillReturnRows(sqlmock.NewRows([]string{"language", "pid", "started_at"}).
			AddRow("rust", 31337, started))

	servers, err := store.Active()
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, "rust", servers[0].Language)
	assert.Equal(t, 31337, servers[0].PID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStoreUpdatePID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLiteStoreWithDB(db)

	mock.ExpectExec("UPDATE active_servers SET pid").
		WithArgs(4242, "rust").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.UpdatePID("rust", 4242))
	assert.NoError(t, mock.ExpectationsWereMet())
}
