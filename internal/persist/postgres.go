package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/safar/retail-ledger/internal/database"
)

type collectionRow struct {
	Data    []byte `db:"data"`
	Version int64  `db:"version"`
}

// Postgres stores collections as JSONB rows of tenant_collections.
type Postgres struct {
	db   *sqlx.DB
	opts database.TxOptions
}

// NewPostgres makes one attempt per batch. The tenant flush owns retries, so
// retrying here as well would multiply attempts.
func NewPostgres(db *sqlx.DB) *Postgres {
	opts := database.DefaultTxOptions()
	opts.MaxRetries = 0
	return &Postgres{db: db, opts: opts}
}

func (p *Postgres) Load(ctx context.Context, tenantID, key string) ([]byte, bool, error) {
	var row collectionRow
	err := p.db.GetContext(ctx, &row,
		`SELECT data, version FROM tenant_collections
		 WHERE tenant_id = $1 AND collection_key = $2`,
		tenantID, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load collection %s/%s: %w", tenantID, key, err)
	}
	return row.Data, true, nil
}

func (p *Postgres) Save(ctx context.Context, tenantID, key string, data []byte) error {
	return p.SaveBatch(ctx, tenantID, map[string][]byte{key: data})
}

// SaveBatch upserts all collections in one transaction. Keys are written in
// sorted order so concurrent batches take row locks in the same order.
func (p *Postgres) SaveBatch(ctx context.Context, tenantID string, batch map[string][]byte) error {
	if len(batch) == 0 {
		return nil
	}

	keys := make([]string, 0, len(batch))
	for key := range batch {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return database.WithRetry(ctx, p.db, p.opts, func(tx *sqlx.Tx) error {
		for _, key := range keys {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO tenant_collections (tenant_id, collection_key, data, version, updated_at)
				 VALUES ($1, $2, $3, 1, NOW())
				 ON CONFLICT (tenant_id, collection_key)
				 DO UPDATE SET data = EXCLUDED.data,
				               version = tenant_collections.version + 1,
				               updated_at = NOW()`,
				tenantID, key, batch[key])
			if err != nil {
				return fmt.Errorf("save collection %s/%s: %w", tenantID, key, err)
			}
		}
		return nil
	})
}

// Version reports how many times a collection has been written.
func (p *Postgres) Version(ctx context.Context, tenantID, key string) (int64, error) {
	var version int64
	err := p.db.GetContext(ctx, &version,
		`SELECT version FROM tenant_collections WHERE tenant_id = $1 AND collection_key = $2`,
		tenantID, key)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get version %s/%s: %w", tenantID, key, err)
	}
	return version, nil
}
