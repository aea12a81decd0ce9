package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"slideloop/internal/models"
)

var ErrCarouselNotFound = errors.New("carousel not found")
var ErrSlideNotFound = errors.New("slide not found")

type CarouselRepository struct {
	db *pgxpool.Pool
}

func NewCarouselRepository(db *pgxpool.Pool) *CarouselRepository {
	return &CarouselRepository{db: db}
}

func (r *CarouselRepository) Get(ctx context.Context, id string) (*models.Carousel, error) {
	var c models.Carousel
	err := r.db.QueryRow(ctx, `
		SELECT id, owner_id, title, template_html
		FROM carousels
		WHERE id=$1 AND deleted_at IS NULL
	`, id).Scan(&c.ID, &c.OwnerID, &c.Title, &c.TemplateHTML)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCarouselNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Slides returns a carousel's slides ordered by index.
func (r *CarouselRepository) Slides(ctx context.Context, carouselID string) ([]models.Slide, error) {
	rows, err := r.db.Query(ctx, `
		SELECT carousel_id, idx, heading, body, background_json
		FROM slides
		WHERE carousel_id=$1
		ORDER BY idx ASC
	`, carouselID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Slide
	for rows.Next() {
		var s models.Slide
		if err := rows.Scan(&s.CarouselID, &s.Index, &s.Heading, &s.Body, &s.BackgroundJSON); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *CarouselRepository) Slide(ctx context.Context, carouselID string, index int) (*models.Slide, error) {
	var s models.Slide
	err := r.db.QueryRow(ctx, `
		SELECT carousel_id, idx, heading, body, background_json
		FROM slides
		WHERE carousel_id=$1 AND idx=$2
	`, carouselID, index).Scan(&s.CarouselID, &s.Index, &s.Heading, &s.Body, &s.BackgroundJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlideNotFound
		}
		return nil, err
	}
	return &s, nil
}

// UpdateSlideBackground persists a reshuffled background descriptor.
func (r *CarouselRepository) UpdateSlideBackground(ctx context.Context, carouselID string, index int, backgroundJSON []byte) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE slides
		SET background_json=$3
		WHERE carousel_id=$1 AND idx=$2
	`, carouselID, index, backgroundJSON)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrSlideNotFound
	}
	return nil
}
