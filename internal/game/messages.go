package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrUnknownMessage   = errors.New("unknown message type")
)

// ClientMessage is one of the typed client messages below.
type ClientMessage interface {
	messageType() string
}

type JoinGame struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type StartGame struct{}

type JoinTeam struct {
	Team Team `json:"team"`
	Role Role `json:"role"`
}

type LeaveTeam struct{}

type ExitLobby struct{}

type GiveClue struct {
	Clue  string `json:"clue"`
	Count int    `json:"count"`
}

type MakeGuess struct {
	Word string `json:"word"`
}

type PassTurn struct{}

func (JoinGame) messageType() string  { return MsgJoinGame }
func (StartGame) messageType() string { return MsgStartGame }
func (JoinTeam) messageType() string  { return MsgJoinTeam }
func (LeaveTeam) messageType() string { return MsgLeaveTeam }
func (ExitLobby) messageType() string { return MsgExitLobby }
func (GiveClue) messageType() string  { return MsgGiveClue }
func (MakeGuess) messageType() string { return MsgMakeGuess }
func (PassTurn) messageType() string  { return MsgPassTurn }

// DecodeClientMessage parses {"type","payload"} into a typed message and
// validates the payload. Unknown types yield ErrUnknownMessage, anything
// that doesn't parse or validate yields ErrMalformedMessage.
func DecodeClientMessage(raw []byte) (ClientMessage, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch env.Type {
	case MsgJoinGame:
		var m JoinGame
		if err := decodePayload(env.Payload, &m); err != nil {
			return nil, err
		}
		m.UserID = strings.TrimSpace(m.UserID)
		m.Username = strings.TrimSpace(m.Username)
		if m.UserID == "" {
			return nil, fmt.Errorf("%w: userId is required", ErrMalformedMessage)
		}
		if m.Username == "" {
			m.Username = m.UserID
		}
		return m, nil

	case MsgStartGame:
		return StartGame{}, nil

	case MsgJoinTeam:
		var m JoinTeam
		if err := decodePayload(env.Payload, &m); err != nil {
			return nil, err
		}
		if !m.Team.valid() {
			return nil, fmt.Errorf("%w: team must be A or B", ErrMalformedMessage)
		}
		if !m.Role.valid() {
			return nil, fmt.Errorf("%w: role must be spymaster or operative", ErrMalformedMessage)
		}
		return m, nil

	case MsgLeaveTeam:
		return LeaveTeam{}, nil

	case MsgExitLobby:
		return ExitLobby{}, nil

	case MsgGiveClue:
		var m GiveClue
		if err := decodePayload(env.Payload, &m); err != nil {
			return nil, err
		}
		m.Clue = strings.TrimSpace(m.Clue)
		if m.Clue == "" || strings.ContainsAny(m.Clue, " \t\n") {
			return nil, fmt.Errorf("%w: clue must be a single word", ErrMalformedMessage)
		}
		if m.Count < 0 {
			return nil, fmt.Errorf("%w: count must be >= 0", ErrMalformedMessage)
		}
		return m, nil

	case MsgMakeGuess:
		var m MakeGuess
		if err := decodePayload(env.Payload, &m); err != nil {
			return nil, err
		}
		m.Word = strings.TrimSpace(m.Word)
		if m.Word == "" {
			return nil, fmt.Errorf("%w: word is required", ErrMalformedMessage)
		}
		return m, nil

	case MsgPassTurn:
		return PassTurn{}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%w: missing payload", ErrMalformedMessage)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return nil
}

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
