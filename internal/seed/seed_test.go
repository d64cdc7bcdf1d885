package seed

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/tutorloop-backend/internal/data/repos"
	"github.com/yungbote/tutorloop-backend/internal/data/repos/testutil"
	"github.com/yungbote/tutorloop-backend/internal/domain/learning"
	"github.com/yungbote/tutorloop-backend/internal/platform/dbctx"
)

const fixture = `
decks:
  - key: spanish-a1
    title: Spanish A1
    cards:
      - {front: hola, back: hello}
      - {front: adios, back: goodbye}
units:
  - id: 6f1d3c4e-6a43-4a57-9d59-3c0a1f6a1f10
    title: Week 1
    items:
      - type: vocabulary_deck
        deck: spanish-a1
        config: {new_cards_per_session: 5}
      - type: GRAMMAR
        content:
          questions:
            - {id: q1, prompt: "Yo ___ estudiante", choices: [soy, estoy], answer: 0}
relationships:
  - teacher_id: 0b7e7c0e-3d8e-4f8b-9b1e-7f5f6a3c2d10
    student_id: 5c4f2a9d-8e1b-4c6a-a3d2-1e9f8b7c6d20
    enroll_decks: [spanish-a1]
`

func TestBuildResolvesDecksAndValidatesItems(t *testing.T) {
	fx, err := Parse(strings.NewReader(fixture))
	require.NoError(t, err)

	plan, err := Build(fx)
	require.NoError(t, err)

	require.Len(t, plan.Decks, 1)
	require.Len(t, plan.Cards, 2)
	assert.Equal(t, 1, plan.Cards[1].Position)
	require.Len(t, plan.Units, 1)
	assert.Equal(t, "6f1d3c4e-6a43-4a57-9d59-3c0a1f6a1f10", plan.Units[0].ID.String())

	require.Len(t, plan.Items, 2)
	assert.Equal(t, learning.ExerciseVocabularyDeck, plan.Items[0].Type)
	require.NotNil(t, plan.Items[0].DeckID)
	assert.Equal(t, plan.Decks[0].ID, *plan.Items[0].DeckID)
	assert.Equal(t, 1, plan.Items[1].Order)

	require.Len(t, plan.Enrollments, 1)
	assert.Equal(t, plan.Decks[0].ID, plan.Enrollments[0].DeckID)
}

func TestBuildRejectsBadFixtures(t *testing.T) {
	cases := map[string]string{
		"unknown deck": `
units:
  - title: u
    items:
      - {type: VOCABULARY_DECK, deck: missing}
`,
		"answer out of range": `
units:
  - title: u
    items:
      - type: GRAMMAR
        content: {questions: [{id: q1, prompt: p, choices: [a], answer: 3}]}
`,
		"empty unit": `
units:
  - title: u
`,
		"bad student id": `
relationships:
  - {teacher_id: 0b7e7c0e-3d8e-4f8b-9b1e-7f5f6a3c2d10, student_id: nope}
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			fx, err := Parse(strings.NewReader(body))
			require.NoError(t, err)
			_, err = Build(fx)
			assert.Error(t, err)
		})
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse(strings.NewReader("deks: []\n"))
	assert.Error(t, err)
}

func TestLoaderApply(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	rs := repos.New(db, log)

	fx, err := Parse(strings.NewReader(fixture))
	require.NoError(t, err)
	plan, err := Build(fx)
	require.NoError(t, err)

	sum, err := NewLoader(db, log, rs).Apply(dbc, plan)
	require.NoError(t, err)
	assert.Equal(t, Summary{Relationships: 1, Decks: 1, Cards: 2, Units: 1, Items: 2}, sum)

	items, err := rs.Unit.ListItems(dbc, plan.Units[0].ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, it := range items {
		_, err := it.Payload()
		assert.NoError(t, err)
	}

	cards, err := rs.Deck.ListCards(dbc, plan.Decks[0].ID)
	require.NoError(t, err)
	assert.Len(t, cards, 2)

	ok, err := rs.TeacherStudent.Exists(dbc, plan.Relationships[0].TeacherID, plan.Relationships[0].StudentID)
	require.NoError(t, err)
	assert.True(t, ok)
}
