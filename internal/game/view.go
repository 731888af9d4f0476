package game

// buildStateLocked builds the snapshot for one viewer. Only the board differs
// between viewers: unrevealed colors are hidden from everyone but spymasters
// until the game ends.
func (g *Game) buildStateLocked(viewer *Player) StatePayload {
	reveal := g.phase == PhaseEnded || (viewer != nil && viewer.seat != nil && viewer.seat.Role == RoleSpymaster)

	board := make([]Card, len(g.board))
	for i, c := range g.board {
		board[i] = c
		if !reveal && !c.Revealed {
			board[i].Color = ColorHidden
		}
	}

	players := make([]PlayerView, 0, len(g.order))
	for _, id := range g.order {
		p := g.players[id]
		pv := PlayerView{
			ID:        p.id,
			Username:  p.name,
			Connected: p.peer != nil,
			IsCreator: p.id == g.creatorID,
		}
		if p.seat != nil {
			team, role := p.seat.Team, p.seat.Role
			pv.Team, pv.Role = &team, &role
		}
		players = append(players, pv)
	}

	var clue *Clue
	if g.clue != nil {
		c := *g.clue
		clue = &c
	}

	return StatePayload{
		RoomID:           g.roomID,
		CreatorID:        g.creatorID,
		MaxPlayers:       g.maxPlayers,
		Players:          players,
		Board:            board,
		Turn:             g.turn,
		Phase:            g.phase,
		Clue:             clue,
		GuessesRemaining: g.guessesRemaining,
		Scores:           g.scores,
		Winner:           g.winner,
		Log:              append([]string(nil), g.events...),
		Timer:            g.countdown.value(),
	}
}

// broadcastStateLocked sends every connected player their own snapshot.
func (g *Game) broadcastStateLocked() {
	for _, id := range g.order {
		p := g.players[id]
		if p.peer == nil {
			continue
		}
		g.sendLocked(p.peer, Envelope{Type: MsgGameStateUpdate, Payload: mustJSON(g.buildStateLocked(p))})
	}
}
