package game

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countColors(board []Card) map[CardColor]int {
	out := make(map[CardColor]int)
	for _, c := range board {
		out[c.Color]++
	}
	return out
}

func TestGenerateBoard_Layouts(t *testing.T) {
	cases := []struct {
		name   string
		layout Layout
		want   map[CardColor]int
		scores Scores
	}{
		{
			name:   "default",
			layout: DefaultLayout,
			want:   map[CardColor]int{ColorBlue: 9, ColorRed: 8, ColorAssassin: 1, ColorNeutral: 7},
			scores: Scores{A: 9, B: 8},
		},
		{
			name:   "custom",
			layout: Layout{TeamA: 8, TeamB: 8, Assassins: 3},
			want:   map[CardColor]int{ColorBlue: 8, ColorRed: 8, ColorAssassin: 3, ColorNeutral: 6},
			scores: Scores{A: 8, B: 8},
		},
		{
			name:   "no_neutral_room_falls_back",
			layout: Layout{TeamA: 15, TeamB: 15, Assassins: 1},
			want:   map[CardColor]int{ColorBlue: 9, ColorRed: 8, ColorAssassin: 1, ColorNeutral: 7},
			scores: Scores{A: 9, B: 8},
		},
		{
			name:   "negative_falls_back",
			layout: Layout{TeamA: -1, TeamB: 8, Assassins: 1},
			want:   map[CardColor]int{ColorBlue: 9, ColorRed: 8, ColorAssassin: 1, ColorNeutral: 7},
			scores: Scores{A: 9, B: 8},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			board, scores, err := GenerateBoard(testWords(60), tc.layout)
			require.NoError(t, err)
			require.Len(t, board, BoardSize)
			assert.Equal(t, tc.want, countColors(board))
			assert.Equal(t, tc.scores, scores)
		})
	}
}

func TestGenerateBoard_DistinctUnrevealedWords(t *testing.T) {
	pool := append(testWords(25), testWords(25)...)
	board, _, err := GenerateBoard(pool, DefaultLayout)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, c := range board {
		assert.False(t, seen[c.Word], "duplicate word %q", c.Word)
		assert.False(t, c.Revealed)
		seen[c.Word] = true
	}
}

func TestGenerateBoard_DoesNotModifyPool(t *testing.T) {
	pool := testWords(30)
	orig := append([]string(nil), pool...)
	_, _, err := GenerateBoard(pool, DefaultLayout)
	require.NoError(t, err)
	assert.Equal(t, orig, pool)
}

func TestGenerateBoard_Shuffles(t *testing.T) {
	pool := testWords(25)
	// 20 identical orderings in a row would be astronomically unlikely
	same := true
	for i := 0; i < 20 && same; i++ {
		board, _, err := GenerateBoard(pool, DefaultLayout)
		require.NoError(t, err)
		for j, c := range board {
			if c.Word != pool[j] {
				same = false
				break
			}
		}
	}
	assert.False(t, same)
}

func TestGenerateBoard_NotEnoughWords(t *testing.T) {
	pool := append(testWords(20), testWords(20)...)
	_, _, err := GenerateBoard(pool, DefaultLayout)
	assert.True(t, errors.Is(err, ErrNotEnoughWords))
}
