// Copyright (c) 2026 TOC Simulator. All rights reserved.
// Author: dev@tocsimulator.com

package simulation

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tocsimulator/tocsim/internal/platform/apperr"
	"github.com/tocsimulator/tocsim/internal/platform/dberr"
)

const sessionColumns = "id, publicid, ownerid, name, description, automatatype, payload, isshared, isfavorite, createdat, updatedat, lastaccessedat"

// sessionListColumns adds the derived run count used by list responses.
const sessionListColumns = sessionColumns +
	", (SELECT count(*) FROM simulator.run WHERE sessionid = simulator.session.id)"

type PostgresSessionRepository struct {
	db *pgxpool.Pool
}

func NewPostgresSessionRepository(db *pgxpool.Pool) *PostgresSessionRepository {
	return &PostgresSessionRepository{db: db}
}

func (repository *PostgresSessionRepository) List(context context.Context, ownerID string, filter Filter, limit, offset int) ([]*Session, int, error) {
	query := `SELECT ` + sessionListColumns + ` FROM simulator.session WHERE ownerid = $1`
	countQuery := `SELECT count(*) FROM simulator.session WHERE ownerid = $1`

	args := []any{ownerID}

	if filter.Type != "" {
		args = append(args, filter.Type)
		clause := ` AND automatatype = $` + itos(len(args))
		query += clause
		countQuery += clause
	}

	if filter.Favorite != nil {
		args = append(args, *filter.Favorite)
		clause := ` AND isfavorite = $` + itos(len(args))
		query += clause
		countQuery += clause
	}

	if filter.Query != "" {
		args = append(args, "%"+filter.Query+"%")
		clause := ` AND (name ILIKE $` + itos(len(args)) + ` OR description ILIKE $` + itos(len(args)) + `)`
		query += clause
		countQuery += clause
	}

	query += orderClause(filter.OrderBy)

	countArgs := make([]any, len(args))
	copy(countArgs, args)

	query += ` LIMIT $` + itos(len(args)+1) + ` OFFSET $` + itos(len(args)+2)
	args = append(args, limit, offset)

	var total int
	if err := repository.db.QueryRow(context, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, dberr.Wrap(err, "count_sessions")
	}

	rows, err := repository.db.Query(context, query, args...)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "list_sessions")
	}

	sessions, err := collectSessions(rows)
	if err != nil {
		return nil, 0, err
	}

	return sessions, total, nil
}

// collectSessions drains rows produced by a sessionListColumns query.
func collectSessions(rows pgx.Rows) ([]*Session, error) {
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s := &Session{}
		if err := rows.Scan(
			&s.ID, &s.PublicID, &s.OwnerID, &s.Name, &s.Description, &s.AutomataType,
			&s.Payload, &s.IsShared, &s.IsFavorite, &s.CreatedAt, &s.UpdatedAt, &s.LastAccessedAt,
			&s.RunCount,
		); err != nil {
			return nil, dberr.Wrap(err, "scan_session")
		}
		sessions = append(sessions, s)
	}

	return sessions, nil
}

func (repository *PostgresSessionRepository) ListRecent(context context.Context, ownerID string, since time.Time, limit, offset int) ([]*Session, int, error) {
	const query = `
		SELECT ` + sessionListColumns + `
		FROM simulator.session
		WHERE ownerid = $1 AND lastaccessedat >= $2
		ORDER BY lastaccessedat DESC
		LIMIT $3 OFFSET $4`

	const countQuery = `
		SELECT count(*)
		FROM simulator.session
		WHERE ownerid = $1 AND lastaccessedat >= $2`

	var total int
	if err := repository.db.QueryRow(context, countQuery, ownerID, since).Scan(&total); err != nil {
		return nil, 0, dberr.Wrap(err, "count_recent_sessions")
	}

	rows, err := repository.db.Query(context, query, ownerID, since, limit, offset)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "list_recent_sessions")
	}

	sessions, err := collectSessions(rows)
	if err != nil {
		return nil, 0, err
	}

	return sessions, total, nil
}

// orderClause maps the client-facing sort key to a SQL ORDER BY. Unknown keys
// fall back to the default (most recently accessed first).
func orderClause(orderBy string) string {
	switch orderBy {
	case "created":
		return ` ORDER BY createdat DESC`
	case "updated":
		return ` ORDER BY updatedat DESC`
	case "name":
		return ` ORDER BY name ASC`
	default:
		return ` ORDER BY lastaccessedat DESC`
	}
}

func (repository *PostgresSessionRepository) FindByPublicID(context context.Context, publicID string) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM simulator.session WHERE publicid = $1`

	s := &Session{}
	err := repository.db.QueryRow(context, query, publicID).Scan(
		&s.ID, &s.PublicID, &s.OwnerID, &s.Name, &s.Description, &s.AutomataType,
		&s.Payload, &s.IsShared, &s.IsFavorite, &s.CreatedAt, &s.UpdatedAt, &s.LastAccessedAt,
	)
	if err != nil {
		return nil, dberr.Wrap(err, "get_session")
	}

	return s, nil
}

func (repository *PostgresSessionRepository) Create(context context.Context, session *Session) error {
	const query = `
		INSERT INTO simulator.session (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := repository.db.Exec(context, query,
		session.ID, session.PublicID, session.OwnerID, session.Name, session.Description,
		session.AutomataType, session.Payload, session.IsShared, session.IsFavorite,
		session.CreatedAt, session.UpdatedAt, session.LastAccessedAt,
	)

	if err != nil {
		if dberr.IsUniqueViolation(err) {
			return apperr.Conflict("You already have a session with this name")
		}
		return dberr.Wrap(err, "create_session")
	}
	return nil
}

func (repository *PostgresSessionRepository) Update(context context.Context, session *Session) error {
	const query = `
		UPDATE simulator.session
		SET name = $2, description = $3, automatatype = $4, payload = $5,
		    isshared = $6, isfavorite = $7, updatedat = $8, lastaccessedat = $8
		WHERE id = $1
		RETURNING updatedat`

	session.UpdatedAt = time.Now()
	err := repository.db.QueryRow(context, query,
		session.ID, session.Name, session.Description, session.AutomataType,
		session.Payload, session.IsShared, session.IsFavorite, session.UpdatedAt,
	).Scan(&session.UpdatedAt)

	if err != nil {
		if dberr.IsUniqueViolation(err) {
			return apperr.Conflict("You already have a session with this name")
		}
		return dberr.Wrap(err, "update_session")
	}
	return nil
}

// Delete removes the session and its runs. The cascade is explicit — runs
// first, then the session row — inside a single transaction.
func (repository *PostgresSessionRepository) Delete(context context.Context, sessionID string) error {
	tx, err := repository.db.Begin(context)
	if err != nil {
		return dberr.Wrap(err, "delete_session_begin")
	}
	defer func() { _ = tx.Rollback(context) }()

	if _, err := tx.Exec(context, `DELETE FROM simulator.run WHERE sessionid = $1`, sessionID); err != nil {
		return dberr.Wrap(err, "delete_session_runs")
	}

	cmd, err := tx.Exec(context, `DELETE FROM simulator.session WHERE id = $1`, sessionID)
	if err != nil {
		return dberr.Wrap(err, "delete_session")
	}
	if cmd.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}

	return dberr.Wrap(tx.Commit(context), "delete_session_commit")
}

func (repository *PostgresSessionRepository) TouchLastAccessed(context context.Context, sessionID string) error {
	_, err := repository.db.Exec(context,
		`UPDATE simulator.session SET lastaccessedat = NOW() WHERE id = $1`, sessionID)
	return dberr.Wrap(err, "touch_session")
}

func (repository *PostgresSessionRepository) Statistics(context context.Context, ownerID string) (*Statistics, error) {
	const query = `
		SELECT
			count(*),
			count(*) FILTER (WHERE isfavorite),
			count(*) FILTER (WHERE isshared),
			count(*) FILTER (WHERE createdat >= NOW() - INTERVAL '7 days')
		FROM simulator.session
		WHERE ownerid = $1`

	stats := &Statistics{}
	err := repository.db.QueryRow(context, query, ownerID).Scan(
		&stats.Total, &stats.Favorites, &stats.Shared, &stats.Recent,
	)
	if err != nil {
		return nil, dberr.Wrap(err, "session_statistics")
	}

	return stats, nil
}

func (repository *PostgresSessionRepository) OwnerSummary(context context.Context, ownerID string) (*Owner, error) {
	owner := &Owner{}
	err := repository.db.QueryRow(context,
		`SELECT username, firstname, lastname FROM users.account WHERE id = $1`, ownerID,
	).Scan(&owner.Username, &owner.FirstName, &owner.LastName)
	if err != nil {
		return nil, dberr.Wrap(err, "owner_summary")
	}

	return owner, nil
}

// # Run Repository

type PostgresRunRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRunRepository(db *pgxpool.Pool) *PostgresRunRepository {
	return &PostgresRunRepository{db: db}
}

func (repository *PostgresRunRepository) Create(context context.Context, run *Run) error {
	const query = `
		INSERT INTO simulator.run (id, sessionid, inputstring, accepted, executiontimems, trace, createdat)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := repository.db.Exec(context, query,
		run.ID, run.SessionID, run.InputString, run.Accepted,
		run.ExecutionTimeMS, run.Trace, run.CreatedAt,
	)
	return dberr.Wrap(err, "create_run")
}

func (repository *PostgresRunRepository) ListByOwner(context context.Context, ownerID string, limit, offset int) ([]*Run, int, error) {
	const query = `
		SELECT r.id, r.sessionid, s.publicid, r.inputstring, r.accepted, r.executiontimems, r.trace, r.createdat
		FROM simulator.run r
		JOIN simulator.session s ON s.id = r.sessionid
		WHERE s.ownerid = $1
		ORDER BY r.createdat DESC
		LIMIT $2 OFFSET $3`

	const countQuery = `
		SELECT count(*)
		FROM simulator.run r
		JOIN simulator.session s ON s.id = r.sessionid
		WHERE s.ownerid = $1`

	var total int
	if err := repository.db.QueryRow(context, countQuery, ownerID).Scan(&total); err != nil {
		return nil, 0, dberr.Wrap(err, "count_runs")
	}

	rows, err := repository.db.Query(context, query, ownerID, limit, offset)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "list_runs")
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r := &Run{}
		if err := rows.Scan(
			&r.ID, &r.SessionID, &r.SessionPublicID, &r.InputString,
			&r.Accepted, &r.ExecutionTimeMS, &r.Trace, &r.CreatedAt,
		); err != nil {
			return nil, 0, dberr.Wrap(err, "scan_run")
		}
		runs = append(runs, r)
	}

	return runs, total, nil
}

func (repository *PostgresRunRepository) ListBySession(context context.Context, sessionID string, limit int) ([]*Run, error) {
	const query = `
		SELECT r.id, r.sessionid, s.publicid, r.inputstring, r.accepted, r.executiontimems, r.trace, r.createdat
		FROM simulator.run r
		JOIN simulator.session s ON s.id = r.sessionid
		WHERE r.sessionid = $1
		ORDER BY r.createdat DESC
		LIMIT $2`

	rows, err := repository.db.Query(context, query, sessionID, limit)
	if err != nil {
		return nil, dberr.Wrap(err, "list_session_runs")
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r := &Run{}
		if err := rows.Scan(
			&r.ID, &r.SessionID, &r.SessionPublicID, &r.InputString,
			&r.Accepted, &r.ExecutionTimeMS, &r.Trace, &r.CreatedAt,
		); err != nil {
			return nil, dberr.Wrap(err, "scan_run")
		}
		runs = append(runs, r)
	}

	return runs, nil
}

func itos(i int) string {
	return strconv.Itoa(i)
}
