package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("analysis not found")

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// AnalysisRepo 封装对 analysis_runs 表的所有操作
type AnalysisRepo struct {
	db *gorm.DB
}

func NewAnalysisRepo(db *gorm.DB) *AnalysisRepo {
	return &AnalysisRepo{db: db}
}

// Save inserts rec or overwrites the stored run with the same contract id.
func (r *AnalysisRepo) Save(ctx context.Context, rec *AnalysisRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "contract_id"}},
			UpdateAll: true,
		}).
		Create(rec).Error
}

func (r *AnalysisRepo) Get(ctx context.Context, contractID string) (*AnalysisRecord, error) {
	var rec AnalysisRecord
	err := r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns the most recent runs, newest first, without result bodies.
func (r *AnalysisRepo) List(ctx context.Context, limit int) ([]RunSummary, error) {
	limit = ClampLimit(limit)
	var recs []AnalysisRecord
	err := r.db.WithContext(ctx).
		Omit("result").
		Order("created_at DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]RunSummary, len(recs))
	for i := range recs {
		out[i] = recs[i].Summary()
	}
	return out, nil
}

// PurgeBefore 用于定时任务清理过期记录
func (r *AnalysisRepo) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&AnalysisRecord{})
	return result.RowsAffected, result.Error
}

func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return min(limit, MaxListLimit)
}
