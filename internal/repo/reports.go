package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/domain"
)

const weeklyReportCols = `
    id, user_id, start_date, end_date, total_tickets, total_commits, tickets_completed,
    total_time_logged_seconds, unlinked_commits, non_code_activities,
    COALESCE(summary_text,''), COALESCE(markdown_report,''), report_data, created_at`

// UpsertWeeklyReport stores one report per (user, start, end); regenerating
// the same window overwrites the previous row.
func (r *Repository) UpsertWeeklyReport(ctx context.Context, w domain.WeeklyReport) (int64, error) {
	const q = `
        INSERT INTO weekly_reports(user_id, start_date, end_date, total_tickets, total_commits,
            tickets_completed, total_time_logged_seconds, unlinked_commits, non_code_activities,
            summary_text, markdown_report, report_data)
        VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        ON CONFLICT (user_id, start_date, end_date) DO UPDATE SET
            total_tickets=EXCLUDED.total_tickets,
            total_commits=EXCLUDED.total_commits,
            tickets_completed=EXCLUDED.tickets_completed,
            total_time_logged_seconds=EXCLUDED.total_time_logged_seconds,
            unlinked_commits=EXCLUDED.unlinked_commits,
            non_code_activities=EXCLUDED.non_code_activities,
            summary_text=EXCLUDED.summary_text,
            markdown_report=EXCLUDED.markdown_report,
            report_data=EXCLUDED.report_data
        RETURNING id`
	var id int64
	err := r.db.Pool.QueryRow(ctx, q, w.UserID, w.StartDate, w.EndDate, w.TotalTickets, w.TotalCommits,
		w.Completed, w.TimeLoggedSecs, w.Unlinked, w.NonCode,
		w.SummaryText, w.Markdown, w.Document).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Repository) scanWeeklyReport(row pgx.Row) (*domain.WeeklyReport, error) {
	var w domain.WeeklyReport
	err := row.Scan(&w.ID, &w.UserID, &w.StartDate, &w.EndDate, &w.TotalTickets, &w.TotalCommits,
		&w.Completed, &w.TimeLoggedSecs, &w.Unlinked, &w.NonCode,
		&w.SummaryText, &w.Markdown, &w.Document, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// LatestWeeklyReport returns the user's most recent stored report by
// start_date, or nil when none exist.
func (r *Repository) LatestWeeklyReport(ctx context.Context, userID string) (*domain.WeeklyReport, error) {
	row := r.db.Pool.QueryRow(ctx, `
        SELECT `+weeklyReportCols+`
        FROM weekly_reports WHERE user_id=$1
        ORDER BY start_date DESC LIMIT 1`, userID)
	return r.scanWeeklyReport(row)
}

// WeeklyReportByRange returns the stored report for an exact window, or nil.
func (r *Repository) WeeklyReportByRange(ctx context.Context, userID string, start, end time.Time) (*domain.WeeklyReport, error) {
	row := r.db.Pool.QueryRow(ctx, `
        SELECT `+weeklyReportCols+`
        FROM weekly_reports WHERE user_id=$1 AND start_date=$2 AND end_date=$3`, userID, start, end)
	return r.scanWeeklyReport(row)
}

func (r *Repository) ListWeeklyReports(ctx context.Context, userID string) ([]domain.WeeklyReport, error) {
	rows, err := r.db.Pool.Query(ctx, `
        SELECT `+weeklyReportCols+`
        FROM weekly_reports WHERE user_id=$1
        ORDER BY start_date DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.WeeklyReport
	for rows.Next() {
		w, err := r.scanWeeklyReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}
