// Package pg persists accounts, roles, audit records and visit aggregates in
// PostgreSQL via database/sql over the pgx stdlib driver.
package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"gatehouse.org/internal/audit"
	"gatehouse.org/internal/auth"
	"gatehouse.org/internal/visits"
)

// Store implements auth.Store, audit.Store and the visit-stats source.
type Store struct {
	db *sql.DB
}

var (
	_ auth.Store    = (*Store)(nil)
	_ audit.Store   = (*Store)(nil)
	_ visits.Source = (*Store)(nil)
)

// Open connects with tuned pool defaults.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing handle (used by tests with sqlmock).
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// FindByEmail matches the email exactly and case-sensitively, then loads the
// account's roles ordered by assignment age so the primary role is stable.
func (s *Store) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, name, email, password_hash, active, last_login_at, created_at, updated_at
		from users
		where email = $1
	`, email)
	acc, err := scanAccount(row)
	if err != nil {
		return nil, err
	}
	if acc.Roles, err = s.rolesForUser(ctx, acc.ID); err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *Store) rolesForUser(ctx context.Context, userID int64) ([]auth.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.name, r.description
		from roles r
		join user_roles ur on ur.role_id = r.id
		where ur.user_id = $1
		order by ur.created_at, r.id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []auth.Role
	for rows.Next() {
		var role auth.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (s *Store) FindRole(ctx context.Context, id int64) (*auth.Role, error) {
	var role auth.Role
	err := s.db.QueryRowContext(ctx,
		`select id, name, description from roles where id = $1`, id,
	).Scan(&role.ID, &role.Name, &role.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// CreateAccount inserts the user and its single role assignment in one
// transaction and fills in the generated id and timestamps.
func (s *Store) CreateAccount(ctx context.Context, acc *auth.Account) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var hash any
	if acc.PasswordHash != "" {
		hash = acc.PasswordHash
	}
	err = tx.QueryRowContext(ctx, `
		insert into users(name, email, password_hash, active)
		values ($1, $2, $3, $4)
		returning id, created_at, updated_at
	`, acc.Name, acc.Email, hash, acc.Active).Scan(&acc.ID, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		return err
	}
	for _, role := range acc.Roles {
		if _, err := tx.ExecContext(ctx,
			`insert into user_roles(user_id, role_id) values ($1, $2)`,
			acc.ID, role.ID,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) TouchLastLogin(ctx context.Context, accountID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`update users set last_login_at = $2, updated_at = now() where id = $1`,
		accountID, at,
	)
	return err
}

// Append writes one immutable audit row. Durations are stored in
// milliseconds.
func (s *Store) Append(ctx context.Context, rec *audit.Record) error {
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		meta = []byte("{}")
	}
	return s.db.QueryRowContext(ctx, `
		insert into audit_logs(
			trace_id, actor_id, action, resource_type, resource_id, metadata,
			severity, client_ip, user_agent, method, path, status_code,
			duration_ms, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		returning id
	`, rec.TraceID, rec.ActorID, rec.Action, rec.ResourceType, rec.ResourceID,
		meta, rec.Severity.String(), rec.ClientIP, rec.UserAgent, rec.Method,
		rec.Path, rec.StatusCode, rec.Duration.Milliseconds(), rec.CreatedAt,
	).Scan(&rec.ID)
}

// VisitStats computes the visit aggregate in one scan over visits.
func (s *Store) VisitStats(ctx context.Context) (visits.Stats, error) {
	var stats visits.Stats
	err := s.db.QueryRowContext(ctx, `
		select count(*),
		       count(*) filter (where status = 'active'),
		       count(*) filter (where status = 'closed'),
		       count(distinct visitor_id)
		from visits
	`).Scan(&stats.TotalVisits, &stats.ActiveVisits, &stats.ClosedVisits, &stats.UniqueVisitors)
	if err != nil {
		return visits.Stats{}, err
	}
	return stats, nil
}

func scanAccount(row *sql.Row) (*auth.Account, error) {
	var (
		acc       auth.Account
		hash      sql.NullString
		lastLogin sql.NullTime
	)
	err := row.Scan(&acc.ID, &acc.Name, &acc.Email, &hash, &acc.Active, &lastLogin, &acc.CreatedAt, &acc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if hash.Valid {
		acc.PasswordHash = hash.String
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		acc.LastLoginAt = &t
	}
	return &acc, nil
}
