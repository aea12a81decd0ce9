package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"slideloop/internal/httpkit"
	"slideloop/internal/models"
)

var ErrRunNotFound = errors.New("export run not found")
var ErrRunExists = errors.New("export run already exists")

type ExportRepository struct {
	db *pgxpool.Pool
}

func NewExportRepository(db *pgxpool.Pool) *ExportRepository {
	return &ExportRepository{db: db}
}

func (r *ExportRepository) Create(ctx context.Context, run *models.ExportRun) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO export_runs (id, owner_id, carousel_id, format, width, height, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at
	`, run.ID, run.OwnerID, run.CarouselID, run.Format, run.Size.Width, run.Size.Height, run.Status).
		Scan(&run.CreatedAt)
	if err != nil {
		if httpkit.IsUniqueViolation(err) {
			return ErrRunExists
		}
		return err
	}
	return nil
}

func (r *ExportRepository) Get(ctx context.Context, id string) (*models.ExportRun, error) {
	var run models.ExportRun
	err := r.db.QueryRow(ctx, `
		SELECT id, owner_id, carousel_id, format, width, height, status,
		       archive_key, error_text, created_at, started_at, finished_at
		FROM export_runs
		WHERE id=$1
	`, id).Scan(
		&run.ID,
		&run.OwnerID,
		&run.CarouselID,
		&run.Format,
		&run.Size.Width,
		&run.Size.Height,
		&run.Status,
		&run.ArchiveKey,
		&run.ErrorText,
		&run.CreatedAt,
		&run.StartedAt,
		&run.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return &run, nil
}

// MarkRendering flips a pending run to rendering. A run already picked up by
// another worker stays untouched and ok=false is returned.
func (r *ExportRepository) MarkRendering(ctx context.Context, id string) (bool, error) {
	cmd, err := r.db.Exec(ctx, `
		UPDATE export_runs
		SET status='rendering', started_at=now()
		WHERE id=$1 AND status='pending'
	`, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *ExportRepository) MarkReady(ctx context.Context, id, archiveKey string) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE export_runs
		SET status='ready', archive_key=$2, finished_at=now()
		WHERE id=$1 AND status='rendering'
	`, id, archiveKey)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

func (r *ExportRepository) MarkFailed(ctx context.Context, id, cause string) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE export_runs
		SET status='failed', error_text=$2, finished_at=now()
		WHERE id=$1 AND status IN ('pending','rendering')
	`, id, cause)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}
