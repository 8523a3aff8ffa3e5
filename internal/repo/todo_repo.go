package repo

import (
	"context"
	"database/sql"

	dom "github.com/birlikkoshan/todohub/internal/domain"
)

// TodoRepo provides todo persistence.
type TodoRepo interface {
	Create(ctx context.Context, t dom.Todo) (dom.Todo, error)
	GetByID(ctx context.Context, id string) (dom.Todo, error)
	List(ctx context.Context) ([]dom.Todo, error)
	ListByUser(ctx context.Context, userID string) ([]dom.Todo, error)
	ListByTag(ctx context.Context, tagID string) ([]dom.Todo, error)
	Update(ctx context.Context, t dom.Todo, replaceTags bool) (dom.Todo, error)
	Delete(ctx context.Context, id string) (dom.Todo, error)
}

const todoColumns = `t.id, t.title, t.description, t.completed, t.priority, t.start_date, t.due_date,
	t.user_id, t.created_at, t.updated_at`

// SQLTodoRepo implements TodoRepo on database/sql.
type SQLTodoRepo struct {
	db *sql.DB
}

// NewSQLTodoRepo returns a new SQLTodoRepo.
func NewSQLTodoRepo(db *sql.DB) *SQLTodoRepo {
	return &SQLTodoRepo{db: db}
}

// Create inserts the todo and its tag links in one transaction. ID and
// timestamps must already be set.
func (r *SQLTodoRepo) Create(ctx context.Context, t dom.Todo) (dom.Todo, error) {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO todos (id, title, description, completed, priority, start_date, due_date,
				user_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			t.ID, t.Title, t.Description, t.Completed, string(t.Priority), utcPtr(t.StartDate),
			utcPtr(t.DueDate), t.UserID, t.CreatedAt, t.UpdatedAt,
		)
		if err != nil {
			return err
		}
		return insertTodoTags(ctx, tx, t.ID, t.TagIDs)
	})
	if err != nil {
		return dom.Todo{}, err
	}
	return r.GetByID(ctx, t.ID)
}

// GetByID returns the todo or sql.ErrNoRows.
func (r *SQLTodoRepo) GetByID(ctx context.Context, id string) (dom.Todo, error) {
	return getTodo(ctx, r.db, id)
}

// List returns all todos, oldest first.
func (r *SQLTodoRepo) List(ctx context.Context) ([]dom.Todo, error) {
	return queryTodos(ctx, r.db, `
		SELECT `+todoColumns+`
		FROM todos t ORDER BY t.created_at, t.id`)
}

// ListByUser returns the todos owned by userID.
func (r *SQLTodoRepo) ListByUser(ctx context.Context, userID string) ([]dom.Todo, error) {
	return queryTodos(ctx, r.db, `
		SELECT `+todoColumns+`
		FROM todos t WHERE t.user_id = $1 ORDER BY t.created_at, t.id`, userID)
}

// ListByTag returns the todos carrying tagID.
func (r *SQLTodoRepo) ListByTag(ctx context.Context, tagID string) ([]dom.Todo, error) {
	return queryTodos(ctx, r.db, `
		SELECT `+todoColumns+`
		FROM todos t JOIN todo_tags tt ON tt.todo_id = t.id
		WHERE tt.tag_id = $1 ORDER BY t.created_at, t.id`, tagID)
}

// Update writes every mutable column of t. When replaceTags is set the tag
// links are replaced by t.TagIDs. Returns sql.ErrNoRows if t.ID is unknown.
func (r *SQLTodoRepo) Update(ctx context.Context, t dom.Todo, replaceTags bool) (dom.Todo, error) {
	var out dom.Todo
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE todos
			SET title = $1, description = $2, completed = $3, priority = $4, start_date = $5,
				due_date = $6, user_id = $7, updated_at = $8
			WHERE id = $9`,
			t.Title, t.Description, t.Completed, string(t.Priority), utcPtr(t.StartDate),
			utcPtr(t.DueDate), t.UserID, t.UpdatedAt, t.ID,
		)
		if err != nil {
			return err
		}
		if err := checkAffected(res); err != nil {
			return err
		}
		if replaceTags {
			if _, err := tx.ExecContext(ctx, `DELETE FROM todo_tags WHERE todo_id = $1`, t.ID); err != nil {
				return err
			}
			if err := insertTodoTags(ctx, tx, t.ID, t.TagIDs); err != nil {
				return err
			}
		}
		out, err = getTodo(ctx, tx, t.ID)
		return err
	})
	return out, err
}

// Delete removes the todo and returns its last snapshot.
func (r *SQLTodoRepo) Delete(ctx context.Context, id string) (dom.Todo, error) {
	var snapshot dom.Todo
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		snapshot, err = getTodo(ctx, tx, id)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM todos WHERE id = $1`, id)
		if err != nil {
			return err
		}
		return checkAffected(res)
	})
	return snapshot, err
}

func getTodo(ctx context.Context, q DBTX, id string) (dom.Todo, error) {
	t, err := scanTodo(q.QueryRowContext(ctx, `
		SELECT `+todoColumns+`
		FROM todos t WHERE t.id = $1`, id))
	if err != nil {
		return dom.Todo{}, err
	}
	list := []dom.Todo{t}
	if err := attachTagIDs(ctx, q, list); err != nil {
		return dom.Todo{}, err
	}
	return list[0], nil
}

func queryTodos(ctx context.Context, q DBTX, query string, args ...any) ([]dom.Todo, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []dom.Todo{}
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := attachTagIDs(ctx, q, list); err != nil {
		return nil, err
	}
	return list, nil
}

func scanTodo(row scanner) (dom.Todo, error) {
	var (
		t        dom.Todo
		priority string
	)
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Completed, &priority, &t.StartDate, &t.DueDate,
		&t.UserID, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return dom.Todo{}, err
	}
	t.Priority = dom.Priority(priority)
	t.StartDate = utcPtr(t.StartDate)
	t.DueDate = utcPtr(t.DueDate)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	t.TagIDs = []string{}
	return t, nil
}

// attachTagIDs loads the tag links of every todo in list with one query.
func attachTagIDs(ctx context.Context, q DBTX, list []dom.Todo) error {
	if len(list) == 0 {
		return nil
	}
	index := make(map[string]int, len(list))
	args := make([]any, len(list))
	for i, t := range list {
		index[t.ID] = i
		args[i] = t.ID
	}

	rows, err := q.QueryContext(ctx, `
		SELECT todo_id, tag_id FROM todo_tags
		WHERE todo_id IN (`+placeholders(1, len(args))+`)
		ORDER BY tag_id`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var todoID, tagID string
		if err := rows.Scan(&todoID, &tagID); err != nil {
			return err
		}
		if i, ok := index[todoID]; ok {
			list[i].TagIDs = append(list[i].TagIDs, tagID)
		}
	}
	return rows.Err()
}

func insertTodoTags(ctx context.Context, tx *sql.Tx, todoID string, tagIDs []string) error {
	for _, tagID := range tagIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO todo_tags (todo_id, tag_id) VALUES ($1, $2)`, todoID, tagID); err != nil {
			return err
		}
	}
	return nil
}
