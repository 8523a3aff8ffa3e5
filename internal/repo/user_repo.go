package repo

import (
	"context"
	"database/sql"

	dom "github.com/birlikkoshan/todohub/internal/domain"
)

// UserRepo provides user persistence.
type UserRepo interface {
	Create(ctx context.Context, u dom.User) (dom.User, error)
	GetByID(ctx context.Context, id string) (dom.User, error)
	List(ctx context.Context) ([]dom.User, error)
	Update(ctx context.Context, u dom.User) (dom.User, error)
	Delete(ctx context.Context, id string) (dom.User, error)
}

// SQLUserRepo implements UserRepo on database/sql.
type SQLUserRepo struct {
	db *sql.DB
}

// NewSQLUserRepo returns a new SQLUserRepo.
func NewSQLUserRepo(db *sql.DB) *SQLUserRepo {
	return &SQLUserRepo{db: db}
}

// Create inserts a new user and returns it.
func (r *SQLUserRepo) Create(ctx context.Context, u dom.User) (dom.User, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Email, u.Name, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return dom.User{}, err
	}
	return r.GetByID(ctx, u.ID)
}

// GetByID returns the user by id.
func (r *SQLUserRepo) GetByID(ctx context.Context, id string) (dom.User, error) {
	return getUser(ctx, r.db, id)
}

// List returns all users ordered by email.
func (r *SQLUserRepo) List(ctx context.Context) ([]dom.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, name, created_at, updated_at FROM users ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []dom.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

// Update writes email and name.
func (r *SQLUserRepo) Update(ctx context.Context, u dom.User) (dom.User, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET email = $1, name = $2, updated_at = $3 WHERE id = $4`,
		u.Email, u.Name, u.UpdatedAt, u.ID,
	)
	if err != nil {
		return dom.User{}, err
	}
	if err := checkAffected(res); err != nil {
		return dom.User{}, err
	}
	return r.GetByID(ctx, u.ID)
}

// Delete removes the user and returns their last snapshot. A user who still
// owns todos is protected by the foreign key and the delete fails.
func (r *SQLUserRepo) Delete(ctx context.Context, id string) (dom.User, error) {
	var snapshot dom.User
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		snapshot, err = getUser(ctx, tx, id)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return err
		}
		return checkAffected(res)
	})
	return snapshot, err
}

func getUser(ctx context.Context, q DBTX, id string) (dom.User, error) {
	return scanUser(q.QueryRowContext(ctx, `
		SELECT id, email, name, created_at, updated_at FROM users WHERE id = $1`, id))
}

func scanUser(row scanner) (dom.User, error) {
	var u dom.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return dom.User{}, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}
