package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/flowtrail/flowtrail/internal/domain"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// Compile-time checks: Store implements both persistence ports.
var (
	_ domain.EntityStore = (*Store)(nil)
	_ domain.Ledger      = (*Store)(nil)
)

// Store implements domain.EntityStore and domain.Ledger using SQLite.
// Entity snapshots and ledger records live in the same database so every
// mutator can cover both writes with a single transaction.
type Store struct {
	db *sql.DB
}

// New opens a SQLite database, runs migrations, and returns a ready store.
func New(dataSourceName string) (*Store, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	// Enable foreign keys (off by default in SQLite).
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return NewFromDB(db)
}

// NewFromDB wraps an existing database connection, runs migrations, and
// returns a ready store. Use this when the *sql.DB has been pre-configured
// (e.g., with otelsql instrumentation).
func NewFromDB(db *sql.DB) (*Store, error) {
	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for use by other adapters
// (e.g., river).
func (s *Store) DB() *sql.DB {
	return s.db
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

// timeFormat is fixed-width so stored timestamps sort lexicographically;
// that makes the recorded_at indexes and range filters order correctly.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error. This is what makes entity write + ledger append a
// single atomic unit.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (s *Store) Create(ctx context.Context, e domain.Entity, rec domain.TransitionRecord) error {
	attrs, err := encodeAttributes(e.Attributes)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO entities (id, tenant_id, type, code, name, state, location, attributes,
			                       created_at, updated_at, last_transition_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.TenantID, string(e.Type), e.Code, e.Name, string(e.State), e.Location, attrs,
			e.CreatedAt.Format(timeFormat),
			e.UpdatedAt.Format(timeFormat),
			e.LastTransitionAt.Format(timeFormat),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return &domain.CodeConflictError{Code: e.Code}
			}
			return fmt.Errorf("inserting entity: %w", err)
		}

		return appendRecord(ctx, tx, rec)
	})
}

func (s *Store) GetByID(ctx context.Context, tenantID, id string) (domain.Entity, error) {
	return s.scanEntity(s.db.QueryRowContext(ctx,
		entitySelect+` WHERE tenant_id = ? AND id = ? AND deleted_at IS NULL`,
		tenantID, id,
	))
}

func (s *Store) List(ctx context.Context, tenantID string, filter domain.ListFilter) ([]domain.Entity, error) {
	query := entitySelect + ` WHERE tenant_id = ? AND deleted_at IS NULL`
	args := []any{tenantID}

	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(filter.Type))
	}

	if filter.State != nil {
		query += ` AND state = ?`
		args = append(args, string(*filter.State))
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	defer rows.Close()

	var entities []domain.Entity
	for rows.Next() {
		e, err := s.scanEntityFromRows(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}

	return entities, rows.Err()
}

func (s *Store) UpdateFields(ctx context.Context, e domain.Entity, rec domain.TransitionRecord) error {
	attrs, err := encodeAttributes(e.Attributes)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE entities SET name = ?, location = ?, attributes = ?, updated_at = ?
			 WHERE tenant_id = ? AND id = ? AND deleted_at IS NULL`,
			e.Name, e.Location, attrs, e.UpdatedAt.Format(timeFormat),
			e.TenantID, e.ID,
		)
		if err != nil {
			return fmt.Errorf("updating entity fields: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking rows affected: %w", err)
		}
		if rows == 0 {
			return domain.ErrEntityNotFound
		}

		return appendRecord(ctx, tx, rec)
	})
}

// ApplyTransition updates the snapshot guarded by the expected previous
// state. The `state = ?` predicate is the serialization point: of two racing
// transitions only one matches, the other observes ErrStaleState and must
// re-validate against the committed state.
func (s *Store) ApplyTransition(ctx context.Context, e domain.Entity, rec domain.TransitionRecord) error {
	if rec.PreviousState == nil {
		return fmt.Errorf("transition record for entity %s has no previous state", e.ID)
	}
	expected := *rec.PreviousState

	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE entities SET state = ?, location = ?, updated_at = ?, last_transition_at = ?
			 WHERE tenant_id = ? AND id = ? AND state = ? AND deleted_at IS NULL`,
			string(e.State), e.Location,
			e.UpdatedAt.Format(timeFormat),
			e.LastTransitionAt.Format(timeFormat),
			e.TenantID, e.ID, string(expected),
		)
		if err != nil {
			return fmt.Errorf("applying transition: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking rows affected: %w", err)
		}
		if rows == 0 {
			// Distinguish a lost race from a missing entity.
			var one int
			err := tx.QueryRowContext(ctx,
				`SELECT 1 FROM entities WHERE tenant_id = ? AND id = ? AND deleted_at IS NULL`,
				e.TenantID, e.ID,
			).Scan(&one)
			if err == sql.ErrNoRows {
				return domain.ErrEntityNotFound
			}
			if err != nil {
				return fmt.Errorf("checking entity existence: %w", err)
			}
			return domain.ErrStaleState
		}

		return appendRecord(ctx, tx, rec)
	})
}

func (s *Store) Delete(ctx context.Context, tenantID, id string, rec domain.TransitionRecord) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE entities SET deleted_at = ? WHERE tenant_id = ? AND id = ? AND deleted_at IS NULL`,
			time.Now().UTC().Format(timeFormat), tenantID, id,
		)
		if err != nil {
			return fmt.Errorf("deleting entity: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking rows affected: %w", err)
		}
		if rows == 0 {
			return domain.ErrEntityNotFound
		}

		return appendRecord(ctx, tx, rec)
	})
}

// appendRecord inserts one ledger entry inside the caller's transaction.
func appendRecord(ctx context.Context, tx *sql.Tx, rec domain.TransitionRecord) error {
	var previous any
	if rec.PreviousState != nil {
		previous = string(*rec.PreviousState)
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO transition_records (id, entity_id, tenant_id, entity_type, action,
		                                 previous_state, new_state, actor_id, reason, location, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.EntityID, rec.TenantID, string(rec.EntityType), string(rec.Action),
		previous, string(rec.NewState), rec.ActorID, rec.Reason, rec.Location,
		rec.RecordedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("appending transition record: %w", err)
	}
	return nil
}

// HistoryByEntity returns the entity's records oldest first. rowid breaks
// equal-timestamp ties in insertion order, which is commit order for an
// append-only table.
func (s *Store) HistoryByEntity(ctx context.Context, tenantID, entityID string) ([]domain.TransitionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entity_id, tenant_id, entity_type, action, previous_state, new_state,
		        actor_id, reason, location, recorded_at
		 FROM transition_records
		 WHERE tenant_id = ? AND entity_id = ?
		 ORDER BY recorded_at, rowid`,
		tenantID, entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying entity history: %w", err)
	}
	defer rows.Close()

	var records []domain.TransitionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

func (s *Store) Aggregate(ctx context.Context, filter domain.AggregateFilter) ([]domain.AggregateRow, error) {
	query := `SELECT action, entity_type, actor_id, COUNT(*)
	          FROM transition_records WHERE 1 = 1`
	var args []any

	if filter.TenantID != "" {
		query += ` AND tenant_id = ?`
		args = append(args, filter.TenantID)
	}

	if filter.From != nil {
		query += ` AND recorded_at >= ?`
		args = append(args, filter.From.UTC().Format(timeFormat))
	}

	if filter.To != nil {
		query += ` AND recorded_at <= ?`
		args = append(args, filter.To.UTC().Format(timeFormat))
	}

	if filter.ActorID != "" {
		query += ` AND actor_id = ?`
		args = append(args, filter.ActorID)
	}

	if filter.Action != "" {
		query += ` AND action = ?`
		args = append(args, string(filter.Action))
	}

	if filter.EntityType != "" {
		query += ` AND entity_type = ?`
		args = append(args, string(filter.EntityType))
	}

	query += ` GROUP BY action, entity_type, actor_id ORDER BY action, entity_type, actor_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying ledger aggregate: %w", err)
	}
	defer rows.Close()

	var out []domain.AggregateRow
	for rows.Next() {
		var row domain.AggregateRow
		var action, entityType string
		if err := rows.Scan(&action, &entityType, &row.ActorID, &row.Count); err != nil {
			return nil, fmt.Errorf("scanning aggregate row: %w", err)
		}
		row.Action = domain.Action(action)
		row.EntityType = domain.EntityType(entityType)
		out = append(out, row)
	}

	return out, rows.Err()
}

const entitySelect = `SELECT id, tenant_id, type, code, name, state, location, attributes,
                             created_at, updated_at, last_transition_at
                      FROM entities`

// scanEntity scans a single row from QueryRow into a domain.Entity.
func (s *Store) scanEntity(row *sql.Row) (domain.Entity, error) {
	var e domain.Entity
	var typ, state, attrs, createdAt, updatedAt, lastTransitionAt string

	err := row.Scan(&e.ID, &e.TenantID, &typ, &e.Code, &e.Name, &state, &e.Location, &attrs,
		&createdAt, &updatedAt, &lastTransitionAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Entity{}, domain.ErrEntityNotFound
		}
		return domain.Entity{}, fmt.Errorf("scanning entity: %w", err)
	}

	return decodeEntity(e, typ, state, attrs, createdAt, updatedAt, lastTransitionAt)
}

// scanEntityFromRows scans a single row from Rows (used in List).
func (s *Store) scanEntityFromRows(rows *sql.Rows) (domain.Entity, error) {
	var e domain.Entity
	var typ, state, attrs, createdAt, updatedAt, lastTransitionAt string

	err := rows.Scan(&e.ID, &e.TenantID, &typ, &e.Code, &e.Name, &state, &e.Location, &attrs,
		&createdAt, &updatedAt, &lastTransitionAt)
	if err != nil {
		return domain.Entity{}, fmt.Errorf("scanning entity row: %w", err)
	}

	return decodeEntity(e, typ, state, attrs, createdAt, updatedAt, lastTransitionAt)
}

func decodeEntity(e domain.Entity, typ, state, attrs, createdAt, updatedAt, lastTransitionAt string) (domain.Entity, error) {
	e.Type = domain.EntityType(typ)
	e.State = domain.State(state)
	e.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	e.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)
	e.LastTransitionAt, _ = time.Parse(timeFormat, lastTransitionAt)

	if attrs != "" && attrs != "{}" {
		if err := json.Unmarshal([]byte(attrs), &e.Attributes); err != nil {
			return domain.Entity{}, fmt.Errorf("decoding entity attributes: %w", err)
		}
	}

	return e, nil
}

func scanRecord(rows *sql.Rows) (domain.TransitionRecord, error) {
	var rec domain.TransitionRecord
	var entityType, action, newState, recordedAt string
	var previous sql.NullString

	err := rows.Scan(&rec.ID, &rec.EntityID, &rec.TenantID, &entityType, &action,
		&previous, &newState, &rec.ActorID, &rec.Reason, &rec.Location, &recordedAt)
	if err != nil {
		return domain.TransitionRecord{}, fmt.Errorf("scanning transition record: %w", err)
	}

	rec.EntityType = domain.EntityType(entityType)
	rec.Action = domain.Action(action)
	rec.NewState = domain.State(newState)
	if previous.Valid {
		p := domain.State(previous.String)
		rec.PreviousState = &p
	}
	rec.RecordedAt, _ = time.Parse(timeFormat, recordedAt)

	return rec, nil
}

func encodeAttributes(attrs map[string]any) (string, error) {
	if attrs == nil {
		return "{}", nil
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("encoding entity attributes: %w", err)
	}
	return string(b), nil
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
