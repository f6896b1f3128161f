package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conveyr/conveyr/pkg/dataset"
)

func seedDatabase(t *testing.T, n int) string {
	t.Helper()

	uri := "file:" + filepath.Join(t.TempDir(), "dataset.db")

	db, err := sql.Open("sqlite", uri)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT, score INTEGER)`)
	require.NoError(t, err)

	for i := range n {
		_, err = db.Exec(`INSERT INTO items (id, name, score) VALUES (?, ?, ?)`,
			i+1, fmt.Sprintf("item-%d", i+1), (i+1)*10)
		require.NoError(t, err)
	}

	return uri
}

func TestPrepareDSN(t *testing.T) {
	dsn, err := PrepareDSN("file:/tmp/data.db")
	require.NoError(t, err)
	require.Contains(t, dsn, "journal_mode%28WAL%29")
	require.Contains(t, dsn, "busy_timeout%28100%29")

	dsn, err = PrepareDSN("file:/tmp/data.db?_pragma=busy_timeout(500)")
	require.NoError(t, err)
	require.Contains(t, dsn, "busy_timeout%28500%29")
	require.NotContains(t, dsn, "busy_timeout%28100%29")
}

func TestNewRequiresTableAndKeyColumn(t *testing.T) {
	_, err := New("file:/tmp/none.db", &Config{})
	require.Error(t, err)

	_, err = New("file:/tmp/none.db", nil)
	require.Error(t, err)
}

func TestIndexLoadedInOrder(t *testing.T) {
	uri := seedDatabase(t, 5)

	ds, err := New(uri, &Config{Table: "items", KeyColumn: "id"})
	require.NoError(t, err)
	defer ds.Close()

	require.Equal(t, dataset.Index{"1", "2", "3", "4", "5"}, ds.Index())
	require.Equal(t, 5, ds.Len())
}

func TestCreateBatchReturnsRowsInIndexOrder(t *testing.T) {
	uri := seedDatabase(t, 5)

	ds, err := New(uri, &Config{Table: "items", KeyColumn: "id"})
	require.NoError(t, err)
	defer ds.Close()

	batch, err := ds.CreateBatch(context.Background(), dataset.Index{"4", "2"})
	require.NoError(t, err)

	rb := batch.(*dataset.RecordBatch)
	require.Equal(t, dataset.Index{"4", "2"}, rb.Index())
	require.Equal(t, "item-4", rb.Records()[0]["name"])
	require.Equal(t, "item-2", rb.Records()[1]["name"])
	require.Equal(t, int64(40), rb.Records()[0]["score"])
}

func TestCreateBatchMissingKey(t *testing.T) {
	uri := seedDatabase(t, 2)

	ds, err := New(uri, &Config{Table: "items", KeyColumn: "id"})
	require.NoError(t, err)
	defer ds.Close()

	_, err = ds.CreateBatch(context.Background(), dataset.Index{"9"})
	require.Error(t, err)
	require.Contains(t, err.Error(), `"9"`)
}

func TestGenBatchOverSQLiteKeys(t *testing.T) {
	uri := seedDatabase(t, 10)

	ds, err := New(uri, &Config{Table: "items", KeyColumn: "id"})
	require.NoError(t, err)
	defer ds.Close()

	it := ds.GenBatch(dataset.GenOptions{BatchSize: 3})
	defer it.Stop()

	var sizes []int
	for {
		idx, err := it.Next(context.Background())
		if err != nil {
			require.ErrorIs(t, err, dataset.ErrIteratorDone)
			break
		}
		sizes = append(sizes, len(idx))
	}
	require.Equal(t, []int{3, 3, 3, 1}, sizes)
}
