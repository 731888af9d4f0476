package game

import (
	"errors"
	"fmt"
	"math/rand"
)

// BoardSize is the number of cards on a board (5x5).
const BoardSize = 25

var ErrNotEnoughWords = errors.New("not enough words to build a board")

// Layout is the color allotment of a board.
type Layout struct {
	TeamA     int // blue
	TeamB     int // red
	Assassins int
}

// DefaultLayout 9 синих / 8 красных / 1 убийца, остальное нейтральные.
var DefaultLayout = Layout{TeamA: 9, TeamB: 8, Assassins: 1}

// fallbackLayout is used whenever the configured layout leaves no room for
// neutral cards.
var fallbackLayout = Layout{TeamA: 9, TeamB: 8, Assassins: 1}

func (l Layout) neutral() int {
	return BoardSize - l.TeamA - l.TeamB - l.Assassins
}

// effective returns the layout actually used for generation.
func (l Layout) effective() Layout {
	if l.TeamA < 0 || l.TeamB < 0 || l.Assassins < 0 || l.neutral() < 0 {
		return fallbackLayout
	}
	return l
}

// GenerateBoard draws BoardSize distinct words from pool and colors them
// according to layout. The pool is not modified.
func GenerateBoard(pool []string, layout Layout) ([]Card, Scores, error) {
	words := distinct(pool)
	if len(words) < BoardSize {
		return nil, Scores{}, fmt.Errorf("%w: have %d, need %d", ErrNotEnoughWords, len(words), BoardSize)
	}

	// частичный Fisher–Yates: первые BoardSize позиций — равномерная выборка без повторов
	for i := 0; i < BoardSize; i++ {
		j := i + rand.Intn(len(words)-i)
		words[i], words[j] = words[j], words[i]
	}
	words = words[:BoardSize]

	l := layout.effective()
	colors := make([]CardColor, 0, BoardSize)
	colors = appendN(colors, ColorBlue, l.TeamA)
	colors = appendN(colors, ColorRed, l.TeamB)
	colors = appendN(colors, ColorAssassin, l.Assassins)
	colors = appendN(colors, ColorNeutral, l.neutral())
	rand.Shuffle(len(colors), func(i, j int) {
		colors[i], colors[j] = colors[j], colors[i]
	})

	board := make([]Card, BoardSize)
	for i := range board {
		board[i] = Card{Word: words[i], Color: colors[i]}
	}
	return board, Scores{A: l.TeamA, B: l.TeamB}, nil
}

func appendN(dst []CardColor, c CardColor, n int) []CardColor {
	for i := 0; i < n; i++ {
		dst = append(dst, c)
	}
	return dst
}

func distinct(pool []string) []string {
	seen := make(map[string]struct{}, len(pool))
	out := make([]string, 0, len(pool))
	for _, w := range pool {
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
