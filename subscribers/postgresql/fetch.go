package postgresql

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sync-labs/model-el-sync/internals/types"
)

// Records fetches the full rows for the given references, keyed by
// reference.
func (pg *Subscriber) Records(ctx context.Context, table, referenceField string, refs []string) (map[string]map[string]any, error) {
	sql := fmt.Sprintf(
		`SELECT t."%s"::TEXT, row_to_json(t.*)::TEXT FROM "%s" t WHERE t."%s"::TEXT = ANY($1)`,
		referenceField, table, referenceField,
	)
	rows, err := pg.conn.Query(ctx, sql, refs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make(map[string]map[string]any, len(refs))
	for rows.Next() {
		var reference, raw string
		if err := rows.Scan(&reference, &raw); err != nil {
			return nil, err
		}
		var data map[string]any
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return nil, err
		}
		records[reference] = data
	}
	return records, rows.Err()
}

// AllRecords streams every row of table. A failure mid-stream is
// delivered as the final Record with Err set, so consumers can tell an
// interrupted stream from an exhausted one.
func (pg *Subscriber) AllRecords(ctx context.Context, table, referenceField string) (<-chan types.Record, error) {
	sql := fmt.Sprintf(
		`SELECT t."%s"::TEXT, row_to_json(t.*)::TEXT FROM "%s" t`,
		referenceField, table,
	)
	rows, err := pg.conn.Query(ctx, sql)
	if err != nil {
		return nil, err
	}

	out := make(chan types.Record, 100)
	fail := func(err error) {
		select {
		case out <- types.Record{Err: err}:
		case <-ctx.Done():
		}
	}
	go func() {
		defer close(out)
		defer rows.Close()
		for rows.Next() {
			var reference, raw string
			if err := rows.Scan(&reference, &raw); err != nil {
				fail(fmt.Errorf("scan record from %s: %w", table, err))
				return
			}
			var data map[string]any
			if err := json.Unmarshal([]byte(raw), &data); err != nil {
				fail(fmt.Errorf("decode record from %s: %w", table, err))
				return
			}
			select {
			case out <- types.Record{Reference: reference, Data: data}:
			case <-ctx.Done():
				return
			}
		}
		if err := rows.Err(); err != nil {
			fail(fmt.Errorf("stream records from %s: %w", table, err))
		}
	}()
	return out, nil
}

// RelatedRefs returns the references of the rows in table whose
// foreignKey column points at ref.
func (pg *Subscriber) RelatedRefs(ctx context.Context, table, referenceField, foreignKey, ref string) ([]string, error) {
	sql := fmt.Sprintf(
		`SELECT t."%s"::TEXT FROM "%s" t WHERE t."%s"::TEXT = $1`,
		referenceField, table, foreignKey,
	)
	rows, err := pg.conn.Query(ctx, sql, ref)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var reference string
		if err := rows.Scan(&reference); err != nil {
			return nil, err
		}
		refs = append(refs, reference)
	}
	return refs, rows.Err()
}
