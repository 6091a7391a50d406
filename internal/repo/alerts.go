package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/domain"
)

// InsertAlert inserts a hygiene alert unless one with the same dedup key
// (user, type, ticket-or-commit, window) already exists. The unique index
// is the authority: concurrent detections racing on the same key produce
// exactly one row. Returns the stored alert and whether it was created.
func (r *Repository) InsertAlert(ctx context.Context, a domain.HygieneAlert) (domain.HygieneAlert, bool, error) {
	const q = `
        INSERT INTO hygiene_alerts(user_id, alert_type, severity, title, description, recommendation,
            ticket_id, commit_id, window_start, window_end)
        VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        ON CONFLICT (user_id, alert_type, COALESCE(ticket_id,0), COALESCE(commit_id,0), window_start, window_end)
            DO NOTHING
        RETURNING id, created_at`
	err := r.db.Pool.QueryRow(ctx, q, a.UserID, string(a.Type), string(a.Severity), a.Title, a.Description, a.Recommendation,
		a.TicketID, a.CommitID, a.WindowStart, a.WindowEnd).Scan(&a.ID, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return a, false, nil
	}
	if err != nil {
		return a, false, err
	}
	return a, true, nil
}

// UnresolvedAlerts returns unresolved alerts whose detection window lies
// inside [since, until], most recent first.
func (r *Repository) UnresolvedAlerts(ctx context.Context, userID string, since, until time.Time) ([]domain.HygieneAlert, error) {
	rows, err := r.db.Pool.Query(ctx, `
        SELECT a.id, a.user_id, a.alert_type, a.severity, a.title, a.description, a.recommendation,
               a.ticket_id, a.commit_id, a.window_start, a.window_end, a.is_resolved, a.resolved_at, a.created_at
        FROM hygiene_alerts a
        WHERE a.user_id=$1 AND NOT a.is_resolved
          AND a.window_start >= $2 AND a.window_end <= $3
        ORDER BY a.created_at DESC, a.id DESC`, userID, since, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.HygieneAlert
	for rows.Next() {
		var a domain.HygieneAlert
		var typ, sev string
		if err := rows.Scan(&a.ID, &a.UserID, &typ, &sev, &a.Title, &a.Description, &a.Recommendation,
			&a.TicketID, &a.CommitID, &a.WindowStart, &a.WindowEnd, &a.Resolved, &a.ResolvedAt, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Type, a.Severity = domain.AlertType(typ), domain.Severity(sev)
		out = append(out, a)
	}
	return out, rows.Err()
}

// AlertSubjects resolves ticket keys and commit SHAs referenced by the
// given alerts, for summary rendering.
func (r *Repository) AlertSubjects(ctx context.Context, userID string, alerts []domain.HygieneAlert) (map[int64]string, map[int64]string, error) {
	ticketIDs := make([]int64, 0, len(alerts))
	commitIDs := make([]int64, 0, len(alerts))
	for _, a := range alerts {
		if a.TicketID != nil {
			ticketIDs = append(ticketIDs, *a.TicketID)
		}
		if a.CommitID != nil {
			commitIDs = append(commitIDs, *a.CommitID)
		}
	}
	keys := map[int64]string{}
	shas := map[int64]string{}
	if len(ticketIDs) > 0 {
		rows, err := r.db.Pool.Query(ctx, `SELECT id, key FROM tickets WHERE user_id=$1 AND id = ANY($2)`, userID, ticketIDs)
		if err != nil {
			return nil, nil, err
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			var k string
			if err := rows.Scan(&id, &k); err != nil {
				return nil, nil, err
			}
			keys[id] = k
		}
	}
	if len(commitIDs) > 0 {
		rows, err := r.db.Pool.Query(ctx, `SELECT id, sha FROM commits WHERE user_id=$1 AND id = ANY($2)`, userID, commitIDs)
		if err != nil {
			return nil, nil, err
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			var s string
			if err := rows.Scan(&id, &s); err != nil {
				return nil, nil, err
			}
			shas[id] = s
		}
	}
	return keys, shas, nil
}

// ResolveAlerts marks the given unresolved alerts resolved and returns how
// many rows changed. Already-resolved or foreign alerts are skipped.
func (r *Repository) ResolveAlerts(ctx context.Context, userID string, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.db.Pool.Exec(ctx, `
        UPDATE hygiene_alerts SET is_resolved=true, resolved_at=now()
        WHERE user_id=$1 AND id = ANY($2) AND NOT is_resolved`, userID, ids)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
