package game

// guessOutcome describes what revealing a card does to the game.
type guessOutcome struct {
	assassin bool
	scored   *Team // team whose counter goes down
	endsTurn bool
}

// resolveGuess applies the reveal rules for a card of the given color
// guessed by the team on turn.
func resolveGuess(color CardColor, turn Team) guessOutcome {
	if color == ColorAssassin {
		return guessOutcome{assassin: true, endsTurn: true}
	}
	owner, ok := color.owner()
	if !ok {
		// нейтральная карта
		return guessOutcome{endsTurn: true}
	}
	return guessOutcome{scored: &owner, endsTurn: owner != turn}
}

// scoreWinner reports the team that has no cards left, if any.
// Team on turn is checked first so a simultaneous zero can't happen anyway
// (only one counter changes per guess).
func scoreWinner(s Scores, turn Team) (Team, bool) {
	if *s.of(turn) <= 0 {
		return turn, true
	}
	if *s.of(turn.Other()) <= 0 {
		return turn.Other(), true
	}
	return "", false
}
