package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	apperrors "github.com/johann/primevista/internal/errors"
	"github.com/johann/primevista/internal/model"
)

// collectionSpec describes how a model struct maps onto its table.
type collectionSpec struct {
	table string
	noun  string
	// columns are the writable columns, excluding id and created_at.
	columns []string
	// unique names a UNIQUE column; creating a row whose value already
	// exists is a no-op that returns the stored row.
	unique string
	// immutable rows can only be created and deleted.
	immutable bool
}

// Collection provides list/get/create/update/delete over one content table.
// T must be a struct whose `db` tags cover id, the mapped columns and created_at.
type Collection[T any] struct {
	store *Storage
	spec  collectionSpec

	selectSQL string
	insertSQL string
	updateSQL string
}

func newCollection[T any](store *Storage, spec collectionSpec) *Collection[T] {
	all := append(append([]string{"id"}, spec.columns...), "created_at")

	named := make([]string, len(spec.columns))
	sets := make([]string, len(spec.columns))
	for i, col := range spec.columns {
		named[i] = ":" + col
		sets[i] = col + " = :" + col
	}

	// Named parameters come first; the trailing positional parameter is
	// appended to the bound args by the caller (created_at or id).
	insert := fmt.Sprintf("INSERT INTO %s (%s, created_at) VALUES (%s, ?)",
		spec.table, strings.Join(spec.columns, ", "), strings.Join(named, ", "))
	if spec.unique != "" {
		insert += fmt.Sprintf(" ON CONFLICT(%s) DO NOTHING", spec.unique)
	}

	return &Collection[T]{
		store:     store,
		spec:      spec,
		selectSQL: fmt.Sprintf("SELECT %s FROM %s", strings.Join(all, ", "), spec.table),
		insertSQL: insert,
		updateSQL: fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", spec.table, strings.Join(sets, ", ")),
	}
}

// Name returns the table name.
func (c *Collection[T]) Name() string {
	return c.spec.table
}

// List returns every row in insertion order.
func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	rows := []T{}
	if err := c.store.db.SelectContext(ctx, &rows, c.selectSQL+" ORDER BY id ASC"); err != nil {
		return nil, fmt.Errorf("listing %s: %w", c.spec.table, err)
	}
	return rows, nil
}

// Get returns the row with the given id or a not-found error.
func (c *Collection[T]) Get(ctx context.Context, id int64) (T, error) {
	return c.get(ctx, c.store.db, id)
}

// Create validates row, inserts it and returns the stored row with its
// assigned id. row is normalised in place.
func (c *Collection[T]) Create(ctx context.Context, row *T) (T, error) {
	out, _, err := c.CreateOrGet(ctx, row)
	return out, err
}

// CreateOrGet behaves like Create and also reports whether a new row was
// inserted. It is false only when the collection has a unique column and a
// row with the same value already exists; that row is returned unchanged.
func (c *Collection[T]) CreateOrGet(ctx context.Context, row *T) (T, bool, error) {
	var out T
	if err := c.store.validate.Check(row); err != nil {
		return out, false, err
	}

	query, args, err := sqlx.Named(c.insertSQL, row)
	if err != nil {
		return out, false, fmt.Errorf("binding %s: %w", c.spec.noun, err)
	}
	args = append(args, model.Now())

	inserted := true
	err = c.store.write(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
		if err != nil {
			return fmt.Errorf("inserting %s: %w", c.spec.noun, err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking insert of %s: %w", c.spec.noun, err)
		}
		if affected == 0 && c.spec.unique != "" {
			inserted = false
			out, err = c.getByUnique(ctx, tx, row)
			return err
		}

		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading id of new %s: %w", c.spec.noun, err)
		}
		out, err = c.get(ctx, tx, id)
		return err
	})
	return out, inserted && err == nil, err
}

// Update replaces the writable columns of the row with the given id and
// returns the stored row. created_at is preserved.
func (c *Collection[T]) Update(ctx context.Context, id int64, row *T) (T, error) {
	var out T
	if c.spec.immutable {
		if _, err := c.get(ctx, c.store.db, id); err != nil {
			return out, err
		}
		return out, apperrors.Validation(fmt.Sprintf("%s rows cannot be edited; delete and re-create instead", c.spec.noun))
	}
	if err := c.store.validate.Check(row); err != nil {
		return out, err
	}

	query, args, err := sqlx.Named(c.updateSQL, row)
	if err != nil {
		return out, fmt.Errorf("binding %s: %w", c.spec.noun, err)
	}
	args = append(args, id)

	err = c.store.write(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
		if err != nil {
			return fmt.Errorf("updating %s %d: %w", c.spec.noun, id, err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking update of %s %d: %w", c.spec.noun, id, err)
		}
		if affected == 0 {
			return c.notFound(id)
		}

		out, err = c.get(ctx, tx, id)
		return err
	})
	return out, err
}

// Delete removes the row with the given id and returns what was stored.
func (c *Collection[T]) Delete(ctx context.Context, id int64) (T, error) {
	var out T
	err := c.store.write(ctx, func(tx *sqlx.Tx) error {
		var err error
		out, err = c.get(ctx, tx, id)
		if err != nil {
			return err
		}

		query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", c.spec.table)
		if _, err := tx.ExecContext(ctx, query, id); err != nil {
			return fmt.Errorf("deleting %s %d: %w", c.spec.noun, id, err)
		}
		return nil
	})
	return out, err
}

// Count returns the number of rows.
func (c *Collection[T]) Count(ctx context.Context) (int, error) {
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", c.spec.table)
	if err := c.store.db.GetContext(ctx, &n, query); err != nil {
		return 0, fmt.Errorf("counting %s: %w", c.spec.table, err)
	}
	return n, nil
}

func (c *Collection[T]) get(ctx context.Context, q sqlx.QueryerContext, id int64) (T, error) {
	var out T
	err := sqlx.GetContext(ctx, q, &out, c.selectSQL+" WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return out, c.notFound(id)
	}
	if err != nil {
		return out, fmt.Errorf("getting %s %d: %w", c.spec.noun, id, err)
	}
	return out, nil
}

func (c *Collection[T]) getByUnique(ctx context.Context, tx *sqlx.Tx, row *T) (T, error) {
	var out T
	query, args, err := sqlx.Named(fmt.Sprintf("%s WHERE %s = :%s", c.selectSQL, c.spec.unique, c.spec.unique), row)
	if err != nil {
		return out, fmt.Errorf("binding %s lookup: %w", c.spec.noun, err)
	}
	if err := tx.GetContext(ctx, &out, tx.Rebind(query), args...); err != nil {
		return out, fmt.Errorf("loading existing %s: %w", c.spec.noun, err)
	}
	return out, nil
}

func (c *Collection[T]) notFound(id int64) error {
	return apperrors.NotFoundf("%s %d not found", c.spec.noun, id)
}
