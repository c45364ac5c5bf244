package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/farmalink/erpbridge/internal/domain"
)

type RunRepository interface {
	// Begin records a new run in the running state, refusing to start
	// while the most recent run is still in progress.
	Begin(ctx context.Context, correlationID string) (*domain.Run, error)
	Finish(ctx context.Context, id uint, state domain.RunState) error
	Last(ctx context.Context) (*domain.Run, error)
}

type GormRunRepo struct {
	db *gorm.DB
}

func NewGormRunRepo(db *gorm.DB) *GormRunRepo {
	return &GormRunRepo{db: db}
}

func (r *GormRunRepo) Begin(ctx context.Context, correlationID string) (*domain.Run, error) {
	var run *domain.Run
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last domain.Run
		err := tx.Order("id DESC").First(&last).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err == nil && !last.State.Terminal() {
			return domain.ErrRunInProgress
		}

		run = &domain.Run{
			CorrelationID: correlationID,
			State:         domain.RunRunning,
			StartedAt:     time.Now(),
		}
		return tx.Create(run).Error
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (r *GormRunRepo) Finish(ctx context.Context, id uint, state domain.RunState) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&domain.Run{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"state":       state,
			"finished_at": &now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormRunRepo) Last(ctx context.Context) (*domain.Run, error) {
	var run domain.Run
	err := r.db.WithContext(ctx).Order("id DESC").First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}
