package repository

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"github.com/farmalink/erpbridge/internal/domain"
)

type LedgerRepository interface {
	CreateBatch(ctx context.Context, entries []*domain.LedgerEntry) error
	ByFile(ctx context.Context, module, fileName string) ([]*domain.LedgerEntry, error)
	// Pending returns the entries for a file not yet sent upstream.
	Pending(ctx context.Context, module, fileName string) ([]*domain.LedgerEntry, error)
	// Retryable returns the submitted entries whose status classifies as
	// upstream-rejected, connection-failed, or timed-out.
	Retryable(ctx context.Context, module, fileName string) ([]*domain.LedgerEntry, error)
	// UpdateSubmission writes one submission outcome back: the flag, the
	// status text, and the source lines re-serialized with the status
	// mirrored on them, plus the payload in case a reconciliation rebuilt
	// its line items.
	UpdateSubmission(ctx context.Context, entry *domain.LedgerEntry) error
	DeleteByFile(ctx context.Context, module, fileName string) error
	// Files lists the file names a module still has ledger entries for,
	// the working set a second-wave pass iterates.
	Files(ctx context.Context, module string) ([]string, error)
}

type GormLedgerRepo struct {
	db *gorm.DB
}

func NewGormLedgerRepo(db *gorm.DB) *GormLedgerRepo {
	return &GormLedgerRepo{db: db}
}

func (r *GormLedgerRepo) CreateBatch(ctx context.Context, entries []*domain.LedgerEntry) error {
	models := make([]LedgerEntryModel, 0, len(entries))
	modelIndexes := make([]int, 0, len(entries))
	for i, e := range entries {
		model, err := ledgerModelFromDomain(e)
		if err != nil {
			return err
		}
		if model != nil {
			models = append(models, *model)
			modelIndexes = append(modelIndexes, i)
		}
	}

	if len(models) == 0 {
		return nil
	}

	if err := r.db.WithContext(ctx).CreateInBatches(&models, 100).Error; err != nil {
		return err
	}

	for i := range models {
		idx := modelIndexes[i]
		entries[idx].ID = models[i].ID
		entries[idx].CreatedAt = models[i].CreatedAt
	}
	return nil
}

func (r *GormLedgerRepo) ByFile(ctx context.Context, module, fileName string) ([]*domain.LedgerEntry, error) {
	return r.query(ctx, r.db.Where("module = ? AND file_name = ?", module, fileName))
}

func (r *GormLedgerRepo) Pending(ctx context.Context, module, fileName string) ([]*domain.LedgerEntry, error) {
	return r.query(ctx, r.db.Where("module = ? AND file_name = ? AND submitted = ?", module, fileName, false))
}

func (r *GormLedgerRepo) Retryable(ctx context.Context, module, fileName string) ([]*domain.LedgerEntry, error) {
	// Classification is a substring convention over free status text, so
	// the filter runs here rather than in SQL.
	entries, err := r.query(ctx, r.db.Where("module = ? AND file_name = ? AND submitted = ?", module, fileName, true))
	if err != nil {
		return nil, err
	}
	out := entries[:0]
	for _, e := range entries {
		if e.Retryable() {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *GormLedgerRepo) UpdateSubmission(ctx context.Context, entry *domain.LedgerEntry) error {
	lines, err := json.Marshal(entry.Records)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return err
	}

	result := r.db.WithContext(ctx).
		Model(&LedgerEntryModel{}).
		Where("id = ?", entry.ID).
		Updates(map[string]any{
			"submitted": entry.Submitted,
			"status":    entry.Status,
			"lines":     lines,
			"payload":   payload,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormLedgerRepo) DeleteByFile(ctx context.Context, module, fileName string) error {
	return r.db.WithContext(ctx).
		Where("module = ? AND file_name = ?", module, fileName).
		Delete(&LedgerEntryModel{}).Error
}

func (r *GormLedgerRepo) Files(ctx context.Context, module string) ([]string, error) {
	var files []string
	err := r.db.WithContext(ctx).
		Model(&LedgerEntryModel{}).
		Where("module = ?", module).
		Distinct("file_name").
		Order("file_name ASC").
		Pluck("file_name", &files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (r *GormLedgerRepo) query(ctx context.Context, query *gorm.DB) ([]*domain.LedgerEntry, error) {
	var models []LedgerEntryModel
	if err := query.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	entries := make([]*domain.LedgerEntry, 0, len(models))
	for i := range models {
		entry, err := ledgerModelToDomain(&models[i])
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
