package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/tutorloop-backend/internal/domain"
	"github.com/yungbote/tutorloop-backend/internal/platform/dbctx"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
)

type SessionRepo interface {
	Create(dbc dbctx.Context, session *types.Session) (*types.Session, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Session, error)
	// LockByID reads the row with SELECT ... FOR UPDATE. Only meaningful
	// inside a transaction.
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Session, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	CountByUnit(dbc dbctx.Context, unitID uuid.UUID) (int64, error)
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	return &sessionRepo{db: db, log: baseLog.With("repo", "SessionRepo")}
}

func (r *sessionRepo) Create(dbc dbctx.Context, session *types.Session) (*types.Session, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if err := transaction.WithContext(dbc.Context()).Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

func (r *sessionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Session, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return r.find(transaction.WithContext(dbc.Context()), id)
}

func (r *sessionRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Session, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return r.find(transaction.WithContext(dbc.Context()).
		Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *sessionRepo) find(q *gorm.DB, id uuid.UUID) (*types.Session, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var session types.Session
	if err := q.Where("id = ?", id).Limit(1).Find(&session).Error; err != nil {
		return nil, err
	}
	if session.ID == uuid.Nil {
		return nil, nil
	}
	return &session, nil
}

func (r *sessionRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return transaction.WithContext(dbc.Context()).
		Model(&types.Session{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *sessionRepo) CountByUnit(dbc dbctx.Context, unitID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := transaction.WithContext(dbc.Context()).
		Model(&types.Session{}).
		Where("unit_id = ?", unitID).
		Count(&n).Error
	return n, err
}
