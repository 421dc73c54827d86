package rummy

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tablehost/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tile(v int, c models.Color) models.Tile {
	return models.Tile{ID: uuid.New(), Value: v, Color: c}
}

func joker() models.Tile {
	return models.Tile{ID: uuid.New(), IsJoker: true}
}

const (
	red    = models.ColorRed
	blue   = models.ColorBlue
	black  = models.ColorBlack
	orange = models.ColorOrange
)

func TestGenerateDeck(t *testing.T) {
	deck := GenerateDeck(rand.New(rand.NewSource(3)))
	require.Len(t, deck, DeckSize)
	assert.Equal(t, 106, DeckSize)

	ids := map[uuid.UUID]bool{}
	counts := map[models.Tile]int{}
	jokers := 0
	for _, tl := range deck {
		require.False(t, ids[tl.ID], "duplicate tile identity")
		ids[tl.ID] = true
		if tl.IsJoker {
			jokers++
			continue
		}
		counts[models.Tile{Value: tl.Value, Color: tl.Color}]++
	}
	assert.Equal(t, 2, jokers)
	assert.Len(t, counts, 52)
	for k, n := range counts {
		assert.Equal(t, 2, n, "tile %v", k)
	}

	other := GenerateDeck(rand.New(rand.NewSource(3)))
	assert.NotEqual(t, deck[0].ID, other[0].ID, "identities are never reused")
}

func TestDeal(t *testing.T) {
	deck := GenerateDeck(rand.New(rand.NewSource(1)))
	hand, rest := Deal(deck, 14)
	assert.Len(t, hand, 14)
	assert.Len(t, rest, DeckSize-14)
	assert.Equal(t, deck[14].ID, rest[0].ID)

	hand, rest = Deal(rest[:3], 14)
	assert.Len(t, hand, 3)
	assert.Empty(t, rest)
}

func TestHandPenalty(t *testing.T) {
	assert.Zero(t, HandPenalty(nil))
	assert.Equal(t, 17, HandPenalty([]models.Tile{tile(4, red), tile(13, blue)}))
	assert.Equal(t, 31, HandPenalty([]models.Tile{tile(1, black), joker()}))
}

func TestIsValidSetAndScore(t *testing.T) {
	tests := []struct {
		name  string
		tiles []models.Tile
		kind  SetKind
		score int
	}{
		{"group of sevens", []models.Tile{tile(7, red), tile(7, blue), tile(7, black)}, SetGroup, 21},
		{"run with trailing joker", []models.Tile{tile(5, red), tile(6, red), joker()}, SetRun, 18},
		{"pair is too short", []models.Tile{tile(5, red), tile(5, red)}, SetInvalid, 0},
		{"duplicate color group", []models.Tile{tile(5, red), tile(5, red), tile(5, blue)}, SetInvalid, 0},
		{"duplicate value run", []models.Tile{tile(5, red), tile(5, red), tile(6, red)}, SetInvalid, 0},
		{"four colors", []models.Tile{tile(9, red), tile(9, blue), tile(9, black), tile(9, orange)}, SetGroup, 36},
		{"group of five", []models.Tile{tile(9, red), tile(9, blue), tile(9, black), tile(9, orange), joker()}, SetInvalid, 0},
		{"group with joker", []models.Tile{tile(11, red), joker(), tile(11, black)}, SetGroup, 33},
		{"mixed colors run", []models.Tile{tile(3, red), tile(4, blue), tile(5, red)}, SetInvalid, 0},
		{"gap filled by joker", []models.Tile{tile(3, blue), joker(), tile(5, blue)}, SetRun, 12},
		{"gap too wide", []models.Tile{tile(3, blue), joker(), tile(6, blue)}, SetInvalid, 0},
		{"joker extends downward at the top", []models.Tile{tile(12, orange), tile(13, orange), joker()}, SetRun, 36},
		{"unordered run", []models.Tile{tile(10, black), tile(8, black), tile(9, black)}, SetRun, 27},
		{"jokers only", []models.Tile{joker(), joker(), joker()}, SetInvalid, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, Classify(tt.tiles))
			assert.Equal(t, tt.kind != SetInvalid, IsValidSet(tt.tiles))
			assert.Equal(t, tt.score, CalculateSetScore(tt.tiles))
		})
	}
}

func TestRunValuesJokerPlacement(t *testing.T) {
	assert.Equal(t, []int{5, 6, 7}, RunValues([]models.Tile{tile(5, red), tile(6, red), joker()}))
	assert.Equal(t, []int{11, 12, 13}, RunValues([]models.Tile{joker(), tile(12, red), tile(13, red)}))
	assert.Nil(t, RunValues([]models.Tile{tile(1, red), tile(13, red), joker()}))
	assert.Equal(t, []int{1, 2, 3, 4}, RunValues([]models.Tile{tile(1, red), joker(), tile(3, red), joker()}))
}

func TestSortHands(t *testing.T) {
	j := joker()
	hand := []models.Tile{tile(9, blue), j, tile(2, red), tile(2, blue), tile(13, red)}
	SortByColor(hand)
	assert.Equal(t, []string{"r2", "r13", "b2", "b9", "J*"}, names(hand))

	SortByValue(hand)
	assert.Equal(t, []string{"r2", "b2", "b9", "r13", "J*"}, names(hand))
}

func names(tiles []models.Tile) []string {
	out := make([]string, len(tiles))
	for i, t := range tiles {
		out[i] = t.String()
	}
	return out
}

func TestGridRoundTrip(t *testing.T) {
	a, b, c := tile(1, red), tile(2, red), tile(3, red)
	d, e := tile(4, blue), tile(4, black)
	sets := [][]models.Tile{{a, b, c}, {d, e}}

	g, err := EncodeGrid(sets, 13, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, g.Rows())
	assert.Equal(t, sets, g.Decode())
}

func TestGridRowBreaksArePreserved(t *testing.T) {
	s1 := []models.Tile{tile(1, red), tile(2, red), tile(3, red)}
	s2 := []models.Tile{tile(7, blue), tile(7, red), tile(7, black)}
	s3 := []models.Tile{tile(9, orange), tile(10, orange), tile(11, orange)}

	// width 7: s1 and s2 fill row 0 exactly, s3 starts row 1 directly after
	// s2's last cell in reading order.
	g, err := EncodeGrid([][]models.Tile{s1, s2, s3}, 7, 0)
	require.NoError(t, err)
	require.Equal(t, 2, g.Rows())
	assert.NotNil(t, g.At(0, 6))
	assert.NotNil(t, g.At(1, 0))
	assert.Equal(t, [][]models.Tile{s1, s2, s3}, g.Decode())
}

func TestGridSetWrapsToNextRow(t *testing.T) {
	long := make([]models.Tile, 0, 10)
	for v := 1; v <= 10; v++ {
		long = append(long, tile(v, black))
	}
	short := []models.Tile{tile(5, red), tile(5, blue), tile(5, orange)}
	g, err := EncodeGrid([][]models.Tile{short, long}, 13, 0)
	require.NoError(t, err)
	assert.Nil(t, g.At(0, 4), "long set must not start on the first row")
	assert.Equal(t, long[0].ID, g.At(1, 0).ID)
	assert.Equal(t, [][]models.Tile{short, long}, g.Decode())
}

func TestGridRejectsOversizedSet(t *testing.T) {
	set := []models.Tile{tile(1, red), tile(2, red), tile(3, red), tile(4, red)}
	_, err := EncodeGrid([][]models.Tile{set}, 3, 1)
	assert.True(t, errors.Is(err, ErrSetTooWide))
}

func TestGridPutTake(t *testing.T) {
	g := NewGrid(5, 2)
	x := tile(4, red)
	require.NoError(t, g.Put(1, 4, x))
	assert.True(t, errors.Is(g.Put(1, 4, x), ErrCellOccupied))
	assert.True(t, errors.Is(g.Put(2, 0, x), ErrCellOutOfRange))
	got, err := g.Take(1, 4)
	require.NoError(t, err)
	assert.Equal(t, x.ID, got.ID)
	_, err = g.Take(1, 4)
	assert.True(t, errors.Is(err, ErrCellEmpty))
}
