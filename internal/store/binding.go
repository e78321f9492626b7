package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Binding attaches an export hook to an exercise. An empty Exercise matches
// every exercise.
type Binding struct {
	ID        string          `json:"id"`
	HookName  string          `json:"hook"`
	Exercise  string          `json:"exercise"`
	Config    json.RawMessage `json:"config"`
	Enabled   bool            `json:"enabled"`
	CreatedAt time.Time       `json:"created_at"`
}

// BindingRepository provides CRUD operations for hook bindings.
type BindingRepository struct {
	db *sql.DB
}

// Bindings returns the hook binding repository for this store.
func (s *Store) Bindings() *BindingRepository {
	return &BindingRepository{db: s.db}
}

const bindingColumns = `id, hook_name, exercise, config, enabled, created_at`

// Create inserts a new binding into the database.
func (r *BindingRepository) Create(b *Binding) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.CreatedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO hook_bindings (`+bindingColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.HookName, b.Exercise, string(configOrEmpty(b.Config)), b.Enabled, b.CreatedAt,
	)
	return err
}

// GetByID retrieves a binding by its ID.
func (r *BindingRepository) GetByID(id string) (*Binding, error) {
	b, err := scanBinding(r.db.QueryRow(`SELECT `+bindingColumns+` FROM hook_bindings WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// List retrieves all bindings, newest first.
func (r *BindingRepository) List() ([]*Binding, error) {
	return r.query(`SELECT ` + bindingColumns + ` FROM hook_bindings ORDER BY created_at DESC`)
}

// ForExercise retrieves the enabled bindings that apply to exercise,
// oldest first so hooks run in the order they were added.
func (r *BindingRepository) ForExercise(exercise string) ([]*Binding, error) {
	return r.query(
		`SELECT `+bindingColumns+` FROM hook_bindings
		 WHERE enabled = 1 AND (exercise = '' OR exercise = ?)
		 ORDER BY created_at, rowid`,
		exercise,
	)
}

// Update updates an existing binding in the database.
func (r *BindingRepository) Update(b *Binding) error {
	result, err := r.db.Exec(
		`UPDATE hook_bindings SET hook_name = ?, exercise = ?, config = ?, enabled = ? WHERE id = ?`,
		b.HookName, b.Exercise, string(configOrEmpty(b.Config)), b.Enabled, b.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a binding from the database by its ID.
func (r *BindingRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM hook_bindings WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *BindingRepository) query(q string, args ...any) ([]*Binding, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bindings []*Binding
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return bindings, nil
}

func scanBinding(row rowScanner) (*Binding, error) {
	b := &Binding{}
	var config string

	if err := row.Scan(&b.ID, &b.HookName, &b.Exercise, &config, &b.Enabled, &b.CreatedAt); err != nil {
		return nil, err
	}

	b.Config = json.RawMessage(config)
	return b, nil
}

func configOrEmpty(c json.RawMessage) json.RawMessage {
	if len(c) == 0 {
		return json.RawMessage("{}")
	}
	return c
}
