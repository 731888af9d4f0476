package game

import "encoding/json"

// Envelope WS envelope: {"type":"...","payload":{...}}
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// входящие
const (
	MsgJoinGame  = "JOIN_GAME"
	MsgStartGame = "START_GAME"
	MsgJoinTeam  = "JOIN_TEAM"
	MsgLeaveTeam = "LEAVE_TEAM"
	MsgExitLobby = "EXIT_LOBBY"
	MsgGiveClue  = "GIVE_CLUE"
	MsgMakeGuess = "MAKE_GUESS"
	MsgPassTurn  = "PASS_TURN"
)

// исходящие
const (
	MsgGameStateUpdate           = "GAME_STATE_UPDATE"
	MsgError                     = "ERROR"
	MsgCreatorDisconnected       = "CREATOR_DISCONNECTED_WARNING"
	MsgCreatorReconnected        = "CREATOR_RECONNECTED"
	MsgEssentialRoleDisconnected = "ESSENTIAL_ROLE_DISCONNECTED"
	MsgEssentialRoleReconnected  = "ESSENTIAL_ROLE_RECONNECTED"
	MsgLobbyClosed               = "LOBBY_CLOSED"
)

// Close codes used when the server drops a peer.
const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	ClosePolicyViolation = 1008
	CloseInternalError   = 1011
	CloseRoomNotFound    = 4404
)

type Team string

const (
	TeamA Team = "A"
	TeamB Team = "B"
)

// Other returns the opposing team.
func (t Team) Other() Team {
	if t == TeamA {
		return TeamB
	}
	return TeamA
}

func (t Team) valid() bool { return t == TeamA || t == TeamB }

// Color is the card color owned by the team.
func (t Team) Color() CardColor {
	if t == TeamA {
		return ColorBlue
	}
	return ColorRed
}

type Role string

const (
	RoleSpymaster Role = "spymaster"
	RoleOperative Role = "operative"
)

func (r Role) valid() bool { return r == RoleSpymaster || r == RoleOperative }

type Phase string

const (
	PhaseWaiting    Phase = "waiting"
	PhaseGivingClue Phase = "giving_clue"
	PhaseGuessing   Phase = "guessing"
	PhaseEnded      Phase = "ended"
)

type CardColor string

const (
	ColorBlue     CardColor = "blue"
	ColorRed      CardColor = "red"
	ColorNeutral  CardColor = "neutral"
	ColorAssassin CardColor = "assassin"
	// ColorHidden is what non-spymasters see for unrevealed cards.
	ColorHidden CardColor = "hidden"
)

// owner returns the team a card color belongs to, if any.
func (c CardColor) owner() (Team, bool) {
	switch c {
	case ColorBlue:
		return TeamA, true
	case ColorRed:
		return TeamB, true
	}
	return "", false
}

type Card struct {
	Word     string    `json:"word"`
	Color    CardColor `json:"color"`
	Revealed bool      `json:"revealed"`
}

type Clue struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// Scores holds the number of unrevealed cards left per team.
type Scores struct {
	A int `json:"A"`
	B int `json:"B"`
}

func (s *Scores) of(t Team) *int {
	if t == TeamA {
		return &s.A
	}
	return &s.B
}

type PlayerView struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Team      *Team  `json:"team"`
	Role      *Role  `json:"role"`
	Connected bool   `json:"connected"`
	IsCreator bool   `json:"isCreator"`
}

// StatePayload is the personalized snapshot sent with GAME_STATE_UPDATE.
type StatePayload struct {
	RoomID           string       `json:"roomId"`
	CreatorID        string       `json:"creatorId"`
	MaxPlayers       int          `json:"maxPlayers"`
	Players          []PlayerView `json:"players"`
	Board            []Card       `json:"board"`
	Turn             Team         `json:"turn"`
	Phase            Phase        `json:"phase"`
	Clue             *Clue        `json:"clue"`
	GuessesRemaining int          `json:"guessesRemaining"`
	Scores           Scores       `json:"scores"`
	Winner           *Team        `json:"winner"`
	Log              []string     `json:"log"`
	Timer            *int         `json:"timer"` // null если таймер не взведён
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type LobbyClosedPayload struct {
	Reason string `json:"reason"`
}

type TeamPayload struct {
	Team Team `json:"team"`
}

type GracePayload struct {
	TimeoutSeconds int `json:"timeoutSeconds"`
}
