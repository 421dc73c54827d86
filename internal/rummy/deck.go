// Package rummy implements the tile-rummy rules: the deck, set legality and
// scoring, the fixed-width board grid and the turn commit checks.
package rummy

import (
	"math/rand"
	"sort"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tablehost/internal/models"
)

const (
	MaxValue   = 13
	copies     = 2
	jokerCount = 2

	// DeckSize is two copies of 1..13 in four colors plus the jokers.
	DeckSize = copies*MaxValue*4 + jokerCount
)

// GenerateDeck builds a shuffled 106-tile deck. Every tile gets a fresh
// identity.
func GenerateDeck(r *rand.Rand) []models.Tile {
	deck := make([]models.Tile, 0, DeckSize)
	for c := 0; c < copies; c++ {
		for _, color := range models.Colors {
			for v := 1; v <= MaxValue; v++ {
				deck = append(deck, models.Tile{ID: uuid.New(), Value: v, Color: color})
			}
		}
	}
	for i := 0; i < jokerCount; i++ {
		deck = append(deck, models.Tile{ID: uuid.New(), IsJoker: true})
	}
	r.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}

// Deal takes up to n tiles off the top of pool.
func Deal(pool []models.Tile, n int) (hand, rest []models.Tile) {
	if n > len(pool) {
		n = len(pool)
	}
	hand = append([]models.Tile(nil), pool[:n]...)
	return hand, pool[n:]
}

// SortByColor orders a hand by color, then value. Jokers go last.
func SortByColor(hand []models.Tile) {
	sort.SliceStable(hand, func(i, j int) bool {
		a, b := hand[i], hand[j]
		if a.IsJoker != b.IsJoker {
			return b.IsJoker
		}
		if a.Color != b.Color {
			return models.ColorRank(a.Color) < models.ColorRank(b.Color)
		}
		return a.Value < b.Value
	})
}

// SortByValue orders a hand by value, then color, so groups sit together.
// Jokers go last.
func SortByValue(hand []models.Tile) {
	sort.SliceStable(hand, func(i, j int) bool {
		a, b := hand[i], hand[j]
		if a.IsJoker != b.IsJoker {
			return b.IsJoker
		}
		if a.Value != b.Value {
			return a.Value < b.Value
		}
		return models.ColorRank(a.Color) < models.ColorRank(b.Color)
	})
}

// JokerPenalty is what a joker left in hand counts against its holder.
const JokerPenalty = 30

// HandPenalty sums the face values left in hand.
func HandPenalty(hand []models.Tile) int {
	n := 0
	for _, t := range hand {
		if t.IsJoker {
			n += JokerPenalty
		} else {
			n += t.Value
		}
	}
	return n
}
