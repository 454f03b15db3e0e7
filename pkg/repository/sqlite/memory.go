package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

const memoryColumns = `id, text, text_hash, embedding, project, tags, created_at, updated_at, archived`

type memoryRepository struct {
	db    *sql.DB
	ready func() error
}

func newMemoryRepository(db *sql.DB, ready func() error) *memoryRepository {
	return &memoryRepository{db: db, ready: ready}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*model.Memory, error) {
	var (
		m         model.Memory
		textHash  sql.NullString
		embedding []byte
		project   sql.NullString
		tags      sql.NullString
		createdAt sql.NullInt64
		updatedAt sql.NullInt64
		archived  sql.NullInt64
	)
	if err := row.Scan(&m.ID, &m.Text, &textHash, &embedding, &project, &tags, &createdAt, &updatedAt, &archived); err != nil {
		return nil, err
	}

	m.TextHash = textHash.String
	m.Project = project.String
	m.CreatedAt = createdAt.Int64
	m.UpdatedAt = updatedAt.Int64
	m.Archived = archived.Int64 != 0

	if len(embedding) > 0 {
		if err := json.Unmarshal(embedding, &m.Embedding); err != nil {
			return nil, goerr.Wrap(err, "failed to decode embedding", goerr.V(model.MemoryIDKey, m.ID))
		}
	}

	m.Tags = []string{}
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &m.Tags); err != nil {
			return nil, goerr.Wrap(err, "failed to decode tags", goerr.V(model.MemoryIDKey, m.ID))
		}
	}

	return &m, nil
}

func (r *memoryRepository) queryMemories(ctx context.Context, query string, args ...any) ([]*model.Memory, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query memories")
	}
	defer rows.Close()

	memories := make([]*model.Memory, 0)
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan memory")
		}
		memories = append(memories, m)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate memories")
	}

	return memories, nil
}

func (r *memoryRepository) Put(ctx context.Context, mem *model.Memory) error {
	if err := r.ready(); err != nil {
		return err
	}

	var embedding []byte
	if mem.Embedding != nil {
		raw, err := json.Marshal(mem.Embedding)
		if err != nil {
			return goerr.Wrap(err, "failed to encode embedding", goerr.V(model.MemoryIDKey, mem.ID))
		}
		embedding = raw
	}

	tags := mem.Tags
	if tags == nil {
		tags = []string{}
	}
	rawTags, err := json.Marshal(tags)
	if err != nil {
		return goerr.Wrap(err, "failed to encode tags", goerr.V(model.MemoryIDKey, mem.ID))
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM memories WHERE id = ?`, mem.ID).Scan(&exists)
	switch {
	case err == nil:
		return goerr.Wrap(model.ErrConflict, "memory ID already exists", goerr.V(model.MemoryIDKey, mem.ID))
	case !errors.Is(err, sql.ErrNoRows):
		return goerr.Wrap(err, "failed to check memory ID", goerr.V(model.MemoryIDKey, mem.ID))
	}

	archived := 0
	if mem.Archived {
		archived = 1
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO memories (`+memoryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		mem.ID, mem.Text, mem.TextHash, embedding, nullString(mem.Project), string(rawTags),
		mem.CreatedAt, mem.UpdatedAt, archived,
	); err != nil {
		return goerr.Wrap(err, "failed to insert memory", goerr.V(model.MemoryIDKey, mem.ID))
	}

	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit memory", goerr.V(model.MemoryIDKey, mem.ID))
	}
	return nil
}

func (r *memoryRepository) GetByID(ctx context.Context, id model.MemoryID) (*model.Memory, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get memory", goerr.V(model.MemoryIDKey, id))
	}
	return m, nil
}

func (r *memoryRepository) GetByHash(ctx context.Context, textHash string) (*model.Memory, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE text_hash = ? AND archived = 0 ORDER BY rowid LIMIT 1`,
		textHash)
	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get memory by hash", goerr.V("text_hash", textHash))
	}
	return m, nil
}

// whereActive builds the WHERE clause shared by List and Count.
// Tags match by exact membership in the JSON array column.
func whereActive(filter model.ListFilter) (string, []any) {
	var sb strings.Builder
	var args []any

	sb.WriteString(` WHERE archived = 0`)
	if filter.Project != "" {
		sb.WriteString(` AND project = ?`)
		args = append(args, filter.Project)
	}
	if len(filter.Tags) > 0 {
		sb.WriteString(` AND EXISTS (SELECT 1 FROM json_each(memories.tags) WHERE json_each.value IN (`)
		for i, tag := range filter.Tags {
			if i > 0 {
				sb.WriteString(`, `)
			}
			sb.WriteString(`?`)
			args = append(args, tag)
		}
		sb.WriteString(`))`)
	}
	return sb.String(), args
}

func (r *memoryRepository) List(ctx context.Context, filter model.ListFilter) ([]*model.Memory, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	where, args := whereActive(filter)
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit, max(filter.Offset, 0))

	return r.queryMemories(ctx,
		`SELECT `+memoryColumns+` FROM memories`+where+` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		args...)
}

func (r *memoryRepository) Count(ctx context.Context, filter model.ListFilter) (int, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}

	where, args := whereActive(filter)
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`+where, args...).Scan(&count); err != nil {
		return 0, goerr.Wrap(err, "failed to count memories")
	}
	return count, nil
}

func (r *memoryRepository) HardDelete(ctx context.Context, id model.MemoryID) (bool, error) {
	if err := r.ready(); err != nil {
		return false, err
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return false, goerr.Wrap(err, "failed to delete memory", goerr.V(model.MemoryIDKey, id))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, goerr.Wrap(err, "failed to get affected rows", goerr.V(model.MemoryIDKey, id))
	}
	return n > 0, nil
}

func (r *memoryRepository) SoftDelete(ctx context.Context, id model.MemoryID) (bool, error) {
	if err := r.ready(); err != nil {
		return false, err
	}

	res, err := r.db.ExecContext(ctx, `UPDATE memories SET archived = 1 WHERE id = ? AND archived = 0`, id)
	if err != nil {
		return false, goerr.Wrap(err, "failed to archive memory", goerr.V(model.MemoryIDKey, id))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, goerr.Wrap(err, "failed to get affected rows", goerr.V(model.MemoryIDKey, id))
	}
	return n > 0, nil
}

func (r *memoryRepository) BulkHardDelete(ctx context.Context, filter model.BulkDeleteFilter) (int, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}

	query := `DELETE FROM memories WHERE 1=1`
	var args []any
	if filter.Project != "" {
		query += ` AND project = ?`
		args = append(args, filter.Project)
	}
	if filter.Before != nil {
		query += ` AND created_at < ?`
		args = append(args, *filter.Before)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to bulk delete memories", goerr.V(model.ProjectKey, filter.Project))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, goerr.Wrap(err, "failed to get affected rows")
	}
	return int(n), nil
}

func (r *memoryRepository) ListAllActive(ctx context.Context) ([]*model.Memory, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	return r.queryMemories(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE archived = 0 ORDER BY created_at DESC, rowid DESC`)
}

func (r *memoryRepository) Stats(ctx context.Context) (*model.Stats, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	stats := &model.Stats{ByProject: make(map[string]int)}

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories WHERE archived = 0`).Scan(&stats.TotalCount); err != nil {
		return nil, goerr.Wrap(err, "failed to count memories")
	}

	byProject, err := r.countByProject(ctx)
	if err != nil {
		return nil, err
	}
	stats.ByProject = byProject

	topTags, err := r.topTags(ctx)
	if err != nil {
		return nil, err
	}
	stats.TopTags = topTags

	var pageCount, pageSize int64
	if err := r.db.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&pageCount); err != nil {
		return nil, goerr.Wrap(err, "failed to read page count")
	}
	if err := r.db.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&pageSize); err != nil {
		return nil, goerr.Wrap(err, "failed to read page size")
	}
	stats.StorageBytes = pageCount * pageSize

	return stats, nil
}

// countByProject and topTags each close their rows before returning; the pool has a single connection.
func (r *memoryRepository) countByProject(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT project, COUNT(*) FROM memories
		WHERE project IS NOT NULL AND project != '' AND archived = 0
		GROUP BY project`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to count memories by project")
	}
	defer rows.Close()

	byProject := make(map[string]int)
	for rows.Next() {
		var project string
		var count int
		if err := rows.Scan(&project, &count); err != nil {
			return nil, goerr.Wrap(err, "failed to scan project count")
		}
		byProject[project] = count
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate project counts")
	}
	return byProject, nil
}

func (r *memoryRepository) topTags(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT tags FROM memories WHERE tags IS NOT NULL AND archived = 0 ORDER BY created_at, rowid`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query tags")
	}
	defer rows.Close()

	counter := model.NewTagCounter()
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, goerr.Wrap(err, "failed to scan tags")
		}
		var tags []string
		if err := json.Unmarshal([]byte(raw), &tags); err != nil {
			return nil, goerr.Wrap(err, "failed to decode tags", goerr.V("tags", raw))
		}
		counter.Add(tags...)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate tags")
	}
	return counter.Top(model.TopTagLimit), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
