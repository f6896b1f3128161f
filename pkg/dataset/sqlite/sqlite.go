// Package sqlite provides a dataset.Dataset backed by a SQLite table. The
// key space is one column loaded in order at open time; batches are rows
// selected by key.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/conveyr/conveyr/pkg/dataset"
	"github.com/conveyr/conveyr/pkg/logger"
)

// Config holds the options for a SQLite dataset. Table and KeyColumn are
// interpolated into SQL identifiers and must come from trusted
// configuration, not user input.
type Config struct {
	Table         string
	KeyColumn     string
	Logger        logger.Logger
	ExportMetrics bool
}

// Dataset reads batches from a SQLite table.
type Dataset struct {
	*dataset.IndexSource

	stbl             sq.StatementBuilderType
	db               *sql.DB
	table            string
	keyColumn        string
	logger           logger.Logger
	dbStatsCollector prometheus.Collector
}

var _ dataset.Dataset = (*Dataset)(nil)

// PrepareDSN prepares a raw DSN for use with SQLite, specifying defaults
// for journal mode and busy timeout.
func PrepareDSN(uri string) (string, error) {
	query := url.Values{}
	var err error

	if i := strings.Index(uri, "?"); i != -1 {
		query, err = url.ParseQuery(uri[i+1:])
		if err != nil {
			return uri, fmt.Errorf("error parsing dsn: %w", err)
		}

		uri = uri[:i]
	}

	foundJournalMode := false
	foundBusyTimeout := false
	for _, val := range query["_pragma"] {
		if strings.HasPrefix(val, "journal_mode") {
			foundJournalMode = true
		} else if strings.HasPrefix(val, "busy_timeout") {
			foundBusyTimeout = true
		}
	}

	if !foundJournalMode {
		query.Add("_pragma", "journal_mode(WAL)")
	}
	if !foundBusyTimeout {
		query.Add("_pragma", "busy_timeout(100)")
	}

	uri += "?" + query.Encode()

	return uri, nil
}

// New opens the database, loads the ordered key space from cfg.KeyColumn
// and returns a [Dataset] over it.
func New(uri string, cfg *Config) (*Dataset, error) {
	if cfg == nil || cfg.Table == "" || cfg.KeyColumn == "" {
		return nil, fmt.Errorf("sqlite dataset requires a table and a key column")
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewNoopLogger()
	}

	uri, err := PrepareDSN(uri)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", uri)
	if err != nil {
		return nil, fmt.Errorf("initialize sqlite connection: %w", err)
	}

	var collector prometheus.Collector
	if cfg.ExportMetrics {
		collector = collectors.NewDBStatsCollector(db, "conveyr")
		if err := prometheus.Register(collector); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("initialize metrics: %w", err)
		}
	}

	stbl := sq.StatementBuilder.RunWith(db)

	d := &Dataset{
		stbl:             stbl,
		db:               db,
		table:            cfg.Table,
		keyColumn:        cfg.KeyColumn,
		logger:           log,
		dbStatsCollector: collector,
	}

	keys, err := d.loadKeys(context.Background())
	if err != nil {
		d.Close()
		return nil, err
	}
	d.IndexSource = dataset.NewIndexSource(keys)

	log.Debug("sqlite dataset opened",
		zap.String("table", cfg.Table),
		zap.String("key_column", cfg.KeyColumn),
		zap.Int("keys", len(keys)),
	)

	return d, nil
}

// Close releases the database handle and unregisters metrics.
func (d *Dataset) Close() {
	if d.dbStatsCollector != nil {
		prometheus.Unregister(d.dbStatsCollector)
	}
	_ = d.db.Close()
}

func (d *Dataset) loadKeys(ctx context.Context) (dataset.Index, error) {
	rows, err := d.stbl.
		Select(d.keyColumn).
		From(d.table).
		OrderBy(d.keyColumn).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("load keys from %s.%s: %w", d.table, d.keyColumn, err)
	}
	defer rows.Close()

	var keys dataset.Index
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		keys = append(keys, keyString(v))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// CreateBatch selects the rows for idx and returns them as a record batch
// in idx order.
func (d *Dataset) CreateBatch(ctx context.Context, idx dataset.Index) (dataset.Batch, error) {
	rows, err := d.stbl.
		Select("*").
		From(d.table).
		Where(sq.Eq{d.keyColumn: []string(idx)}).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("select batch rows: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]dataset.Record, len(idx))
	for rows.Next() {
		values := make([]any, len(columns))
		scan := make([]any, len(columns))
		for i := range values {
			scan[i] = &values[i]
		}
		if err := rows.Scan(scan...); err != nil {
			return nil, err
		}

		record := make(dataset.Record, len(columns))
		for i, col := range columns {
			record[col] = values[i]
		}
		byKey[keyString(record[d.keyColumn])] = record
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	records := make([]dataset.Record, 0, len(idx))
	for _, k := range idx {
		r, ok := byKey[k]
		if !ok {
			return nil, fmt.Errorf("key %q not found in %s", k, d.table)
		}
		records = append(records, r)
	}
	return dataset.NewRecordBatch(idx.Clone(), records), nil
}

// keyString renders a scanned key value in the canonical form used by the
// index.
func keyString(v any) string {
	switch k := v.(type) {
	case string:
		return k
	case []byte:
		return string(k)
	case int64:
		return strconv.FormatInt(k, 10)
	default:
		return fmt.Sprint(k)
	}
}
