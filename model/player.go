package model

import (
	"encoding/json"
	"log/slog"
)

type EliminationCause string

const (
	C_NIGHT_KILL   EliminationCause = "night_kill"
	C_VOTED_OUT    EliminationCause = "voted_out"
	C_DISCONNECTED EliminationCause = "disconnected"
)

type Player struct {
	ID                  string
	Name                string
	Role                Role
	IsAlive             bool
	EliminatedRound     *int
	EliminatedCause     *EliminationCause
	ConsecutiveTimeouts int
}

type RosterEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func NewPlayer(entry RosterEntry, role Role) *Player {
	player := &Player{
		ID:      entry.ID,
		Name:    entry.Name,
		Role:    role,
		IsAlive: true,
	}
	slog.Info("プレイヤーを作成しました", "id", player.ID, "name", player.Name, "role", player.Role)
	return player
}

func (p *Player) Eliminate(round int, cause EliminationCause) {
	p.IsAlive = false
	p.EliminatedRound = &round
	p.EliminatedCause = &cause
}

func (p Player) String() string {
	return p.Name
}

func (p Player) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}
