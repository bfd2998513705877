package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/flowdose/invite-dispatcher/internal/domain"
	"github.com/flowdose/invite-dispatcher/internal/service/invite"
)

// InviteRepo implements invite.Repository against the admin invite table.
// Rows come back as raw column maps because the table has carried the
// recipient under different column names over time.
type InviteRepo struct {
	db    *sql.DB
	table string
}

// NewInviteRepo creates a Postgres-backed invite repository reading table.
func NewInviteRepo(db *sql.DB, table string) *InviteRepo {
	if table == "" {
		table = "invite"
	}
	return &InviteRepo{db: db, table: table}
}

func (r *InviteRepo) ListInvites(ctx context.Context, f invite.ListFilter) ([]domain.RawRecord, error) {
	q := fmt.Sprintf(`SELECT * FROM %s WHERE id = $1`, pq.QuoteIdentifier(r.table))
	rows, err := r.db.QueryContext(ctx, q, f.ID)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("invite columns: %w", err)
	}

	var out []domain.RawRecord
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan invite: %w", err)
		}
		rec := make(domain.RawRecord, len(cols))
		for i, c := range cols {
			rec[c] = columnValue(vals[i])
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invites: %w", err)
	}
	return out, nil
}

// Ping reports whether the database is reachable.
func (r *InviteRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func columnValue(v interface{}) interface{} {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	}
	return v
}
