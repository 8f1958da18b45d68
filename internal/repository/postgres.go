package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/franzego/partnernotify/internal/config"
	"github.com/franzego/partnernotify/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	columns = `id::text, title, message, coalesce(image_url, ''), coalesce(link_url, ''),
coalesce(button_text, ''), delay_seconds, is_active, target_scope,
coalesce(show_on_pages, '{}'::jsonb), created_at, updated_at`

	qListActive = `SELECT ` + columns + `
FROM partner_notifications
WHERE is_active = true
ORDER BY created_at DESC;`

	qList = `SELECT ` + columns + `
FROM partner_notifications
ORDER BY created_at DESC;`

	qGet = `SELECT ` + columns + `
FROM partner_notifications
WHERE id::text = $1;`

	qInsert = `
INSERT INTO partner_notifications
	(title, message, image_url, link_url, button_text, delay_seconds, is_active, target_scope, show_on_pages)
VALUES ($1, $2, nullif($3, ''), nullif($4, ''), nullif($5, ''), $6, $7, $8, $9)
RETURNING ` + columns + `;`

	qDelete = `DELETE FROM partner_notifications WHERE id::text = $1;`
)

// PostgresRepository reads partner notifications straight from the Supabase
// database instead of going through its REST layer.
type PostgresRepository struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

func NewPostgresPool(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(hctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

func NewPostgresRepository(pool *pgxpool.Pool, queryTimeout time.Duration) *PostgresRepository {
	return &PostgresRepository{pool: pool, queryTimeout: queryTimeout}
}

func (r *PostgresRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.queryTimeout)
}

func (r *PostgresRepository) ListActive(ctx context.Context) ([]models.Notification, error) {
	return r.query(ctx, qListActive)
}

func (r *PostgresRepository) List(ctx context.Context) ([]models.Notification, error) {
	return r.query(ctx, qList)
}

func (r *PostgresRepository) query(ctx context.Context, sql string, args ...any) ([]models.Notification, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query notifications: %v", models.ErrUpstream, err)
	}
	defer rows.Close()

	out := make([]models.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan notification: %v", models.ErrUpstream, err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", models.ErrUpstream, err)
	}
	return out, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Notification, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.one(r.pool.QueryRow(ctx, qGet, id), "get notification "+id)
}

func (r *PostgresRepository) Create(ctx context.Context, req models.CreateNotificationRequest) (*models.Notification, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	pages := req.ShowOnPages
	if pages == nil {
		pages = map[string]bool{}
	}
	row := r.pool.QueryRow(ctx, qInsert,
		req.Title,
		req.Message,
		req.ImageURL,
		req.LinkURL,
		req.ButtonText,
		req.DelaySeconds,
		req.IsActive,
		string(req.TargetScope),
		pages,
	)
	return r.one(row, "insert notification")
}

func (r *PostgresRepository) Update(ctx context.Context, id string, req models.UpdateNotificationRequest) (*models.Notification, error) {
	sql, args := buildUpdate(id, req)
	if sql == "" {
		return r.Get(ctx, id)
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.one(r.pool.QueryRow(ctx, sql, args...), "update notification "+id)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tag, err := r.pool.Exec(ctx, qDelete, id)
	if err != nil {
		return fmt.Errorf("%w: delete notification %s: %v", models.ErrUpstream, id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) one(row pgx.Row, what string) (*models.Notification, error) {
	n, err := scanNotification(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrUpstream, what, err)
	}
	return &n, nil
}

func scanNotification(row pgx.Row) (models.Notification, error) {
	var (
		n     models.Notification
		scope string
	)
	err := row.Scan(
		&n.ID,
		&n.Title,
		&n.Message,
		&n.ImageURL,
		&n.LinkURL,
		&n.ButtonText,
		&n.DelaySeconds,
		&n.IsActive,
		&scope,
		&n.ShowOnPages,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	n.TargetScope = models.TargetScope(scope)
	return n, err
}

// buildUpdate renders an UPDATE touching only the fields set in req.
// It returns an empty statement when nothing is set.
func buildUpdate(id string, req models.UpdateNotificationRequest) (string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if req.Title != nil {
		add("title", *req.Title)
	}
	if req.Message != nil {
		add("message", *req.Message)
	}
	if req.ImageURL != nil {
		add("image_url", *req.ImageURL)
	}
	if req.LinkURL != nil {
		add("link_url", *req.LinkURL)
	}
	if req.ButtonText != nil {
		add("button_text", *req.ButtonText)
	}
	if req.DelaySeconds != nil {
		add("delay_seconds", *req.DelaySeconds)
	}
	if req.IsActive != nil {
		add("is_active", *req.IsActive)
	}
	if req.TargetScope != nil {
		add("target_scope", string(*req.TargetScope))
	}
	if req.ShowOnPages != nil {
		add("show_on_pages", *req.ShowOnPages)
	}
	if len(sets) == 0 {
		return "", nil
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)
	sql := fmt.Sprintf("UPDATE partner_notifications SET %s WHERE id::text = $%d RETURNING %s;",
		strings.Join(sets, ", "), len(args), columns)
	return sql, args
}
