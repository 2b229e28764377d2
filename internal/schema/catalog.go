// Package schema introspects the target database and builds the catalog the
// pruner draws context from.
package schema

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arjunms/sqlscope/pkg/models"
)

// Inspector reads table, column, and index metadata from the target
// database's system catalogs.
type Inspector struct {
	pool *pgxpool.Pool
}

func NewInspector(pool *pgxpool.Pool) *Inspector {
	return &Inspector{pool: pool}
}

// Catalog builds a full schema catalog for the public schema: every table
// with its columns in ordinal order, its indexes, and size estimates.
func (i *Inspector) Catalog(ctx context.Context) (models.SchemaCatalog, error) {
	catalog := make(models.SchemaCatalog)

	if err := i.loadColumns(ctx, catalog); err != nil {
		return nil, err
	}
	if err := i.loadIndexes(ctx, catalog); err != nil {
		return nil, err
	}
	if err := i.loadStats(ctx, catalog); err != nil {
		return nil, err
	}

	return catalog, nil
}

func (i *Inspector) loadColumns(ctx context.Context, catalog models.SchemaCatalog) error {
	rows, err := i.pool.Query(ctx,
		`SELECT table_name, column_name, data_type
		 FROM information_schema.columns
		 WHERE table_schema = 'public'
		 ORDER BY table_name, ordinal_position`)
	if err != nil {
		return fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var table, column, dataType string
		if err := rows.Scan(&table, &column, &dataType); err != nil {
			return fmt.Errorf("scan column: %w", err)
		}
		info := catalog[table]
		info.Columns = append(info.Columns, models.Column{Name: column, Type: dataType})
		catalog[table] = info
	}
	return rows.Err()
}

func (i *Inspector) loadIndexes(ctx context.Context, catalog models.SchemaCatalog) error {
	rows, err := i.pool.Query(ctx,
		`SELECT t.relname, i.relname, ix.indisunique, a.attname
		 FROM pg_class t
		 JOIN pg_namespace n ON n.oid = t.relnamespace
		 JOIN pg_index ix ON ix.indrelid = t.oid
		 JOIN pg_class i ON i.oid = ix.indexrelid
		 JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		 WHERE n.nspname = 'public' AND t.relkind = 'r'
		 ORDER BY t.relname, i.relname, array_position(ix.indkey, a.attnum)`)
	if err != nil {
		return fmt.Errorf("query indexes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var table, index, column string
		var unique bool
		if err := rows.Scan(&table, &index, &unique, &column); err != nil {
			return fmt.Errorf("scan index: %w", err)
		}

		info, ok := catalog[table]
		if !ok {
			continue
		}

		// Consecutive rows for the same index carry its columns in order.
		if n := len(info.Indexes); n > 0 && info.Indexes[n-1].Name == index {
			info.Indexes[n-1].Columns = append(info.Indexes[n-1].Columns, column)
		} else {
			info.Indexes = append(info.Indexes, models.Index{
				Name:    index,
				Columns: []string{column},
				Unique:  unique,
			})
		}
		catalog[table] = info
	}
	return rows.Err()
}

func (i *Inspector) loadStats(ctx context.Context, catalog models.SchemaCatalog) error {
	rows, err := i.pool.Query(ctx,
		`SELECT t.relname, GREATEST(t.reltuples::bigint, 0), pg_total_relation_size(t.oid)
		 FROM pg_class t
		 JOIN pg_namespace n ON n.oid = t.relnamespace
		 WHERE n.nspname = 'public' AND t.relkind = 'r'`)
	if err != nil {
		return fmt.Errorf("query table stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var table string
		var rowCount, sizeBytes int64
		if err := rows.Scan(&table, &rowCount, &sizeBytes); err != nil {
			return fmt.Errorf("scan table stats: %w", err)
		}
		if info, ok := catalog[table]; ok {
			info.RowCount = rowCount
			info.SizeMB = float64(sizeBytes) / (1024 * 1024)
			catalog[table] = info
		}
	}
	return rows.Err()
}
