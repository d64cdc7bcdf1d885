package learning

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/tutorloop-backend/internal/domain"
	"github.com/yungbote/tutorloop-backend/internal/platform/dbctx"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
)

type DeckRepo interface {
	Create(dbc dbctx.Context, decks []*types.Deck) ([]*types.Deck, error)
	CreateCards(dbc dbctx.Context, cards []*types.Card) ([]*types.Card, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Deck, error)
	ListCards(dbc dbctx.Context, deckID uuid.UUID) ([]*types.Card, error)
	GetCardsByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Card, error)
}

type deckRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDeckRepo(db *gorm.DB, baseLog *logger.Logger) DeckRepo {
	return &deckRepo{db: db, log: baseLog.With("repo", "DeckRepo")}
}

func (r *deckRepo) Create(dbc dbctx.Context, decks []*types.Deck) ([]*types.Deck, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(decks) == 0 {
		return []*types.Deck{}, nil
	}
	for _, d := range decks {
		if d.ID == uuid.Nil {
			d.ID = uuid.New()
		}
	}
	if err := transaction.WithContext(dbc.Context()).Create(&decks).Error; err != nil {
		return nil, err
	}
	return decks, nil
}

func (r *deckRepo) CreateCards(dbc dbctx.Context, cards []*types.Card) ([]*types.Card, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(cards) == 0 {
		return []*types.Card{}, nil
	}
	for _, c := range cards {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
	}
	if err := transaction.WithContext(dbc.Context()).CreateInBatches(&cards, 500).Error; err != nil {
		return nil, err
	}
	return cards, nil
}

func (r *deckRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Deck, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var deck types.Deck
	if err := transaction.WithContext(dbc.Context()).
		Where("id = ?", id).
		Limit(1).
		Find(&deck).Error; err != nil {
		return nil, err
	}
	if deck.ID == uuid.Nil {
		return nil, nil
	}
	return &deck, nil
}

func (r *deckRepo) ListCards(dbc dbctx.Context, deckID uuid.UUID) ([]*types.Card, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Card
	if deckID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Context()).
		Where("deck_id = ?", deckID).
		Order("position ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *deckRepo) GetCardsByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Card, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Card
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Context()).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
