package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/config"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/domain"
)

type DB struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

func MustOpen(ctx context.Context, cfg config.Config, log zerolog.Logger) *DB {
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	ctx2, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(ctx2); err != nil {
		log.Fatal().Err(err).Msg("db ping failed")
	}
	return &DB{Pool: pool, log: log}
}

func (d *DB) Close() { d.Pool.Close() }

type Repository struct {
	db  *DB
	log zerolog.Logger
}

func NewRepository(d *DB, log zerolog.Logger) *Repository { return &Repository{db: d, log: log} }

func (r *Repository) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var ok bool
	err := r.db.Pool.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok)
	return ok, err
}

func (r *Repository) AdvisoryUnlock(ctx context.Context, key int64) error {
	var ok bool
	err := r.db.Pool.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&ok)
	if !ok && err == nil {
		return errors.New("advisory unlock returned false")
	}
	return err
}

// ActiveUserIDs lists every user with at least one tracked repo or ticket,
// for the weekly batch.
func (r *Repository) ActiveUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `
        SELECT user_id FROM repos WHERE is_tracked
        UNION
        SELECT user_id FROM tickets`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ---- repos ----

func (r *Repository) UpsertRepo(ctx context.Context, rp domain.Repo) (int64, error) {
	const q = `
        INSERT INTO repos(user_id, github_id, name, full_name, url, is_private, is_tracked)
        VALUES($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (user_id, github_id) DO UPDATE SET
            name=EXCLUDED.name,
            full_name=EXCLUDED.full_name,
            url=EXCLUDED.url,
            is_private=EXCLUDED.is_private
        RETURNING id`
	var id int64
	err := r.db.Pool.QueryRow(ctx, q, rp.UserID, rp.GithubID, rp.Name, rp.FullName, rp.URL, rp.IsPrivate, rp.IsTracked).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Repository) TrackedRepos(ctx context.Context, userID string) ([]domain.Repo, error) {
	rows, err := r.db.Pool.Query(ctx, `
        SELECT id, user_id, github_id, name, full_name, url, is_private, is_tracked, last_synced_at
        FROM repos WHERE user_id=$1 AND is_tracked`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Repo
	for rows.Next() {
		var rp domain.Repo
		if err := rows.Scan(&rp.ID, &rp.UserID, &rp.GithubID, &rp.Name, &rp.FullName, &rp.URL, &rp.IsPrivate, &rp.IsTracked, &rp.LastSyncedAt); err != nil {
			return nil, err
		}
		out = append(out, rp)
	}
	return out, rows.Err()
}

func (r *Repository) TouchRepoSynced(ctx context.Context, repoID int64, at time.Time) error {
	_, err := r.db.Pool.Exec(ctx, `UPDATE repos SET last_synced_at=$2 WHERE id=$1`, repoID, at)
	return err
}

// ---- tickets ----

func (r *Repository) UpsertTicket(ctx context.Context, t domain.Ticket) (int64, error) {
	const q = `
        INSERT INTO tickets(user_id, jira_id, key, title, status, issue_type, url, created_at_jira, updated_at_jira)
        VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (user_id, jira_id) DO UPDATE SET
            key=EXCLUDED.key,
            title=EXCLUDED.title,
            status=EXCLUDED.status,
            issue_type=EXCLUDED.issue_type,
            url=EXCLUDED.url,
            updated_at_jira=EXCLUDED.updated_at_jira
        RETURNING id`
	var id int64
	err := r.db.Pool.QueryRow(ctx, q, t.UserID, t.JiraID, t.Key, t.Title, t.Status, t.IssueType, t.URL, t.CreatedAtJira, t.UpdatedAtJira).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// TicketByKey returns nil when the key is unknown for this user.
func (r *Repository) TicketByKey(ctx context.Context, userID, key string) (*domain.Ticket, error) {
	const q = `
        SELECT id, user_id, jira_id, key, title, status, issue_type, url, created_at_jira, updated_at_jira
        FROM tickets WHERE user_id=$1 AND key=$2`
	var t domain.Ticket
	err := r.db.Pool.QueryRow(ctx, q, userID, key).Scan(
		&t.ID, &t.UserID, &t.JiraID, &t.Key, &t.Title, &t.Status, &t.IssueType, &t.URL, &t.CreatedAtJira, &t.UpdatedAtJira)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repository) TicketsByIDs(ctx context.Context, userID string, ids []int64) (map[int64]domain.Ticket, error) {
	out := map[int64]domain.Ticket{}
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.Pool.Query(ctx, `
        SELECT id, user_id, jira_id, key, title, status, issue_type, url, created_at_jira, updated_at_jira
        FROM tickets WHERE user_id=$1 AND id = ANY($2)`, userID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var t domain.Ticket
		if err := rows.Scan(&t.ID, &t.UserID, &t.JiraID, &t.Key, &t.Title, &t.Status, &t.IssueType, &t.URL, &t.CreatedAtJira, &t.UpdatedAtJira); err != nil {
			return nil, err
		}
		out[t.ID] = t
	}
	return out, rows.Err()
}

// ---- commits ----

func (r *Repository) UpsertCommit(ctx context.Context, c domain.Commit) (int64, error) {
	const q = `
        INSERT INTO commits(user_id, repo_id, ticket_id, sha, message, author_name, author_email,
            committed_at, url, additions, deletions, files_changed, extracted_keys, is_unlinked)
        VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
        ON CONFLICT (user_id, repo_id, sha) DO UPDATE SET
            ticket_id=EXCLUDED.ticket_id,
            message=EXCLUDED.message,
            author_name=EXCLUDED.author_name,
            author_email=EXCLUDED.author_email,
            committed_at=EXCLUDED.committed_at,
            url=EXCLUDED.url,
            additions=EXCLUDED.additions,
            deletions=EXCLUDED.deletions,
            files_changed=EXCLUDED.files_changed,
            extracted_keys=EXCLUDED.extracted_keys,
            is_unlinked=EXCLUDED.is_unlinked
        RETURNING id`
	var id int64
	err := r.db.Pool.QueryRow(ctx, q, c.UserID, c.RepoID, c.TicketID, c.SHA, c.Message, c.AuthorName, c.AuthorEmail,
		c.CommittedAt, c.URL, c.Additions, c.Deletions, c.FilesChanged, c.ExtractedKeys, c.Unlinked).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// CommitsInWindow returns all of the user's commits with committed_at in
// [since, until], repo name joined in, oldest first.
func (r *Repository) CommitsInWindow(ctx context.Context, userID string, since, until time.Time) ([]domain.Commit, error) {
	rows, err := r.db.Pool.Query(ctx, `
        SELECT c.id, c.user_id, c.repo_id, COALESCE(rp.full_name,''), c.ticket_id, c.sha, c.message,
               c.author_name, c.author_email, c.committed_at, c.url,
               c.additions, c.deletions, c.files_changed, COALESCE(c.extracted_keys,'{}'), c.is_unlinked
        FROM commits c
        LEFT JOIN repos rp ON rp.id = c.repo_id
        WHERE c.user_id=$1 AND c.committed_at >= $2 AND c.committed_at <= $3
        ORDER BY c.committed_at`, userID, since, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Commit
	for rows.Next() {
		var c domain.Commit
		if err := rows.Scan(&c.ID, &c.UserID, &c.RepoID, &c.RepoFullName, &c.TicketID, &c.SHA, &c.Message,
			&c.AuthorName, &c.AuthorEmail, &c.CommittedAt, &c.URL,
			&c.Additions, &c.Deletions, &c.FilesChanged, &c.ExtractedKeys, &c.Unlinked); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ---- ticket activities ----

func (r *Repository) BulkInsertActivities(ctx context.Context, acts []domain.TicketActivity) error {
	if len(acts) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	const q = `
        INSERT INTO ticket_activities(user_id, ticket_id, jira_id, activity_type, author, activity_at,
            from_status, to_status, comment_body, field_name, from_value, to_value)
        VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        ON CONFLICT (user_id, ticket_id, jira_id) DO NOTHING`
	for _, a := range acts {
		var fromStatus, toStatus, body, fieldName, fromVal, toVal *string
		switch p := a.Payload.(type) {
		case domain.StatusChange:
			fromStatus, toStatus = &p.From, &p.To
		case domain.CommentActivity:
			body = &p.Body
		case domain.FieldChange:
			fieldName, fromVal, toVal = &p.Field, &p.From, &p.To
		}
		batch.Queue(q, a.UserID, a.TicketID, a.JiraID, string(a.Payload.Kind()), a.Author, a.At,
			fromStatus, toStatus, body, fieldName, fromVal, toVal)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range acts {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ActivitiesInWindow returns all of the user's ticket activities with
// activity_at in [since, until], rebuilding the variant payloads.
func (r *Repository) ActivitiesInWindow(ctx context.Context, userID string, since, until time.Time) ([]domain.TicketActivity, error) {
	rows, err := r.db.Pool.Query(ctx, `
        SELECT id, user_id, ticket_id, jira_id, activity_type, COALESCE(author,''), activity_at,
               from_status, to_status, comment_body, field_name, from_value, to_value
        FROM ticket_activities
        WHERE user_id=$1 AND activity_at >= $2 AND activity_at <= $3
        ORDER BY activity_at`, userID, since, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.TicketActivity
	for rows.Next() {
		var a domain.TicketActivity
		var kind string
		var fromStatus, toStatus, body, fieldName, fromVal, toVal *string
		if err := rows.Scan(&a.ID, &a.UserID, &a.TicketID, &a.JiraID, &kind, &a.Author, &a.At,
			&fromStatus, &toStatus, &body, &fieldName, &fromVal, &toVal); err != nil {
			return nil, err
		}
		switch domain.ActivityKind(kind) {
		case domain.ActivityStatusChange:
			a.Payload = domain.StatusChange{From: deref(fromStatus), To: deref(toStatus)}
		case domain.ActivityComment:
			a.Payload = domain.CommentActivity{Body: deref(body)}
		default:
			a.Payload = domain.FieldChange{Field: deref(fieldName), From: deref(fromVal), To: deref(toVal)}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ---- worklogs ----

func (r *Repository) BulkInsertWorklogs(ctx context.Context, wl []domain.Worklog) error {
	if len(wl) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	const q = `
        INSERT INTO worklogs(user_id, ticket_id, jira_id, author, seconds, started_at)
        VALUES($1,$2,$3,$4,$5,$6)
        ON CONFLICT (user_id, jira_id) DO NOTHING`
	for _, w := range wl {
		batch.Queue(q, w.UserID, w.TicketID, w.JiraID, w.Author, w.Seconds, w.StartedAt)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range wl {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) WorklogsInWindow(ctx context.Context, userID string, since, until time.Time) ([]domain.Worklog, error) {
	rows, err := r.db.Pool.Query(ctx, `
        SELECT id, user_id, ticket_id, jira_id, COALESCE(author,''), seconds, started_at
        FROM worklogs
        WHERE user_id=$1 AND started_at >= $2 AND started_at <= $3
        ORDER BY started_at`, userID, since, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Worklog
	for rows.Next() {
		var w domain.Worklog
		if err := rows.Scan(&w.ID, &w.UserID, &w.TicketID, &w.JiraID, &w.Author, &w.Seconds, &w.StartedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
