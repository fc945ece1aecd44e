package repository

import (
	"context"

	"github.com/agnosto/fbtweeter/db/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS fb_posts (
  id TEXT PRIMARY KEY,
  text TEXT NOT NULL,
  image_url TEXT NOT NULL,
  created_time TIMESTAMPTZ NOT NULL,
  published BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_fb_posts_pending ON fb_posts(published, created_time);
`

const postColumns = `id, text, image_url, created_time, published`

// PostgresPostRepository implements PostRepository on a pgx pool.
type PostgresPostRepository struct{ pool *pgxpool.Pool }

func NewPostgresPostRepository(pool *pgxpool.Pool) *PostgresPostRepository {
	return &PostgresPostRepository{pool: pool}
}

// Migrate creates the fb_posts table and its index when missing.
func (s *PostgresPostRepository) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresSchema)
	return err
}

func (s *PostgresPostRepository) FindByIDs(ctx context.Context, ids []string) ([]models.PostRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT `+postColumns+` FROM fb_posts WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[models.PostRecord])
}

func (s *PostgresPostRepository) InsertMany(ctx context.Context, posts []models.PostRecord) error {
	if len(posts) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, p := range posts {
		b.Queue(`INSERT INTO fb_posts (`+postColumns+`) VALUES ($1,$2,$3,$4,$5)`,
			p.ID, p.Text, p.ImageURL, p.CreatedTime, p.Published)
	}
	br := s.pool.SendBatch(ctx, b)
	defer br.Close()
	for range posts {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresPostRepository) FindUnpublishedOldest(ctx context.Context, limit int) ([]models.PostRecord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+postColumns+`
FROM fb_posts
WHERE published = FALSE
ORDER BY created_time ASC
LIMIT $1
`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[models.PostRecord])
}

func (s *PostgresPostRepository) MarkPublished(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE fb_posts SET published = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresPostRepository) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}
