package learning

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/tutorloop-backend/internal/domain"
	"github.com/yungbote/tutorloop-backend/internal/platform/dbctx"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
)

type UnitRepo interface {
	Create(dbc dbctx.Context, units []*types.Unit) ([]*types.Unit, error)
	CreateItems(dbc dbctx.Context, items []*types.ExerciseItem) ([]*types.ExerciseItem, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Unit, error)
	GetItem(dbc dbctx.Context, id uuid.UUID) (*types.ExerciseItem, error)
	// ListItems returns a unit's exercises in ascending order.
	ListItems(dbc dbctx.Context, unitID uuid.UUID) ([]*types.ExerciseItem, error)
}

type unitRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUnitRepo(db *gorm.DB, baseLog *logger.Logger) UnitRepo {
	return &unitRepo{db: db, log: baseLog.With("repo", "UnitRepo")}
}

func (r *unitRepo) Create(dbc dbctx.Context, units []*types.Unit) ([]*types.Unit, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(units) == 0 {
		return []*types.Unit{}, nil
	}
	for _, u := range units {
		if u.ID == uuid.Nil {
			u.ID = uuid.New()
		}
	}
	if err := transaction.WithContext(dbc.Context()).Create(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}

func (r *unitRepo) CreateItems(dbc dbctx.Context, items []*types.ExerciseItem) ([]*types.ExerciseItem, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(items) == 0 {
		return []*types.ExerciseItem{}, nil
	}
	for _, it := range items {
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
	}
	if err := transaction.WithContext(dbc.Context()).Create(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *unitRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Unit, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var unit types.Unit
	if err := transaction.WithContext(dbc.Context()).
		Where("id = ?", id).
		Limit(1).
		Find(&unit).Error; err != nil {
		return nil, err
	}
	if unit.ID == uuid.Nil {
		return nil, nil
	}
	return &unit, nil
}

func (r *unitRepo) GetItem(dbc dbctx.Context, id uuid.UUID) (*types.ExerciseItem, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var item types.ExerciseItem
	if err := transaction.WithContext(dbc.Context()).
		Where("id = ?", id).
		Limit(1).
		Find(&item).Error; err != nil {
		return nil, err
	}
	if item.ID == uuid.Nil {
		return nil, nil
	}
	return &item, nil
}

func (r *unitRepo) ListItems(dbc dbctx.Context, unitID uuid.UUID) ([]*types.ExerciseItem, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ExerciseItem
	if unitID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Context()).
		Where("unit_id = ?", unitID).
		Order("item_order ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
