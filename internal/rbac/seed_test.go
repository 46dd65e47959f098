package rbac

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	_ "github.com/akada-sms/akada/testing"
)

// seedTx scripts just enough of pgx.Tx to capture the inserts SeedSchool
// issues through the bound repository.
type seedTx struct {
	nextID      int64
	roleInserts [][]any
	memberships [][]any
}

func (t *seedTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	switch {
	case strings.Contains(sql, "INSERT INTO roles"):
		t.nextID++
		t.roleInserts = append(t.roleInserts, args)
		return &seedRoleRow{id: t.nextID, args: args}
	case strings.Contains(sql, "INSERT INTO memberships"):
		t.nextID++
		t.memberships = append(t.memberships, args)
		return &seedIDRow{id: t.nextID}
	}
	panic("unexpected query: " + sql)
}

func (t *seedTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	panic("unexpected exec: " + sql)
}

func (t *seedTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("unexpected query: " + sql)
}

func (t *seedTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not scripted") }
func (t *seedTx) Commit(ctx context.Context) error          { panic("not scripted") }
func (t *seedTx) Rollback(ctx context.Context) error        { panic("not scripted") }
func (t *seedTx) CopyFrom(ctx context.Context, name pgx.Identifier, cols []string, src pgx.CopyFromSource) (int64, error) {
	panic("not scripted")
}
func (t *seedTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { panic("not scripted") }
func (t *seedTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *seedTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not scripted")
}
func (t *seedTx) Conn() *pgx.Conn { return nil }

// seedRoleRow echoes an inserted role back the way RETURNING would.
type seedRoleRow struct {
	id   int64
	args []any
}

func (r *seedRoleRow) Scan(dest ...any) error {
	*dest[0].(*int64) = r.id
	*dest[1].(*int64) = r.args[0].(int64)
	*dest[2].(*string) = r.args[1].(string)
	*dest[3].(*string) = r.args[2].(string)
	*dest[4].(*string) = r.args[3].(string)
	*dest[5].(*[]string) = r.args[4].([]string)
	for i := 0; i < 8; i++ {
		*dest[6+i].(*bool) = r.args[5+i].(bool)
	}
	*dest[14].(*bool) = r.args[13].(bool)
	*dest[15].(*bool) = true
	*dest[16].(*time.Time) = time.Now()
	*dest[17].(*time.Time) = time.Now()
	return nil
}

type seedIDRow struct {
	id int64
}

func (r *seedIDRow) Scan(dest ...any) error {
	*dest[0].(*int64) = r.id
	return nil
}

func TestSeedSchoolRunsOnCallerTransaction(t *testing.T) {
	tx := &seedTx{}
	svc := NewService(nil, nil, nil)

	if err := svc.SeedSchool(context.Background(), tx, 4, 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(tx.roleInserts) != 3 {
		t.Fatalf("expected 3 system roles, got %d", len(tx.roleInserts))
	}
	names := make(map[string]int64, 3)
	for i, args := range tx.roleInserts {
		if got := args[0].(int64); got != 4 {
			t.Fatalf("role inserted for school %d, want 4", got)
		}
		names[args[1].(string)] = int64(i + 1)
	}
	for _, want := range []string{"Principal", "Teacher", "Admin Staff"} {
		if _, ok := names[want]; !ok {
			t.Fatalf("missing system role %q, got %v", want, names)
		}
	}

	if len(tx.memberships) != 1 {
		t.Fatalf("expected one owner membership, got %d", len(tx.memberships))
	}
	m := tx.memberships[0]
	if m[0].(int64) != 7 || m[1].(int64) != 4 {
		t.Fatalf("owner membership for user %v school %v, want 7 and 4", m[0], m[1])
	}
	if m[2].(int64) != names["Principal"] {
		t.Fatalf("owner assigned role %v, want the principal role %d", m[2], names["Principal"])
	}
}
