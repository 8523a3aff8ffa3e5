package repo

import (
	"context"
	"database/sql"

	dom "github.com/birlikkoshan/todohub/internal/domain"
)

// TagRepo provides tag persistence.
type TagRepo interface {
	Create(ctx context.Context, t dom.Tag) (dom.Tag, error)
	GetByID(ctx context.Context, id string) (dom.Tag, error)
	List(ctx context.Context) ([]dom.Tag, error)
	ListByTodo(ctx context.Context, todoID string) ([]dom.Tag, error)
	Update(ctx context.Context, t dom.Tag) (dom.Tag, error)
	Delete(ctx context.Context, id string) (dom.Tag, []dom.Todo, error)
}

// SQLTagRepo implements TagRepo on database/sql.
type SQLTagRepo struct {
	db *sql.DB
}

// NewSQLTagRepo returns a new SQLTagRepo.
func NewSQLTagRepo(db *sql.DB) *SQLTagRepo {
	return &SQLTagRepo{db: db}
}

// Create inserts a tag. ID and timestamps must already be set.
func (r *SQLTagRepo) Create(ctx context.Context, t dom.Tag) (dom.Tag, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tags (id, name, color, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.Name, t.Color, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return dom.Tag{}, err
	}
	return r.GetByID(ctx, t.ID)
}

// GetByID returns the tag or sql.ErrNoRows.
func (r *SQLTagRepo) GetByID(ctx context.Context, id string) (dom.Tag, error) {
	return getTag(ctx, r.db, id)
}

// List returns all tags ordered by name.
func (r *SQLTagRepo) List(ctx context.Context) ([]dom.Tag, error) {
	return queryTags(ctx, r.db, `
		SELECT g.id, g.name, g.color, g.created_at, g.updated_at
		FROM tags g ORDER BY g.name`)
}

// ListByTodo returns the tags attached to todoID.
func (r *SQLTagRepo) ListByTodo(ctx context.Context, todoID string) ([]dom.Tag, error) {
	return queryTags(ctx, r.db, `
		SELECT g.id, g.name, g.color, g.created_at, g.updated_at
		FROM tags g JOIN todo_tags tt ON tt.tag_id = g.id
		WHERE tt.todo_id = $1 ORDER BY g.name`, todoID)
}

// Update writes name and color. Returns sql.ErrNoRows if t.ID is unknown.
func (r *SQLTagRepo) Update(ctx context.Context, t dom.Tag) (dom.Tag, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tags SET name = $1, color = $2, updated_at = $3 WHERE id = $4`,
		t.Name, t.Color, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return dom.Tag{}, err
	}
	if err := checkAffected(res); err != nil {
		return dom.Tag{}, err
	}
	return r.GetByID(ctx, t.ID)
}

// Delete removes the tag and returns its last snapshot together with the
// todos that carried it, as they are after the tag was detached.
func (r *SQLTagRepo) Delete(ctx context.Context, id string) (dom.Tag, []dom.Todo, error) {
	var (
		snapshot dom.Tag
		detached []dom.Todo
	)
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		snapshot, err = getTag(ctx, tx, id)
		if err != nil {
			return err
		}
		detached, err = queryTodos(ctx, tx, `
			SELECT `+todoColumns+`
			FROM todos t JOIN todo_tags tt ON tt.todo_id = t.id
			WHERE tt.tag_id = $1 ORDER BY t.created_at, t.id`, id)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE id = $1`, id)
		if err != nil {
			return err
		}
		return checkAffected(res)
	})
	if err != nil {
		return dom.Tag{}, nil, err
	}
	for i := range detached {
		detached[i].TagIDs = without(detached[i].TagIDs, id)
	}
	return snapshot, detached, nil
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func getTag(ctx context.Context, q DBTX, id string) (dom.Tag, error) {
	return scanTag(q.QueryRowContext(ctx, `
		SELECT g.id, g.name, g.color, g.created_at, g.updated_at
		FROM tags g WHERE g.id = $1`, id))
}

func queryTags(ctx context.Context, q DBTX, query string, args ...any) ([]dom.Tag, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []dom.Tag{}
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

func scanTag(row scanner) (dom.Tag, error) {
	var t dom.Tag
	if err := row.Scan(&t.ID, &t.Name, &t.Color, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return dom.Tag{}, err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}
