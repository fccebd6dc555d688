package logic

import (
	"math"
	"time"

	"github.com/amongais/amongais-server/model"
)

type EliminatedView struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type AccusationView struct {
	Accuser string `json:"accuser"`
	Target  string `json:"target"`
}

type YouView struct {
	Name    string `json:"name"`
	IsAlive bool   `json:"is_alive"`
}

type StateSnapshot struct {
	MatchID         string            `json:"match_id"`
	Phase           model.Phase       `json:"phase"`
	Round           int               `json:"round"`
	Alive           []string          `json:"alive"`
	Eliminated      []EliminatedView  `json:"eliminated"`
	HumansCount     int               `json:"humans_count"`
	PhaseEndsAt     *time.Time        `json:"phase_ends_at"`
	PhaseDurationMS int64             `json:"phase_duration_ms"`
	Accusations     []AccusationView  `json:"accusations,omitempty"`
	Defendants      []string          `json:"defendants,omitempty"`
	Candidates      []string          `json:"candidates,omitempty"`
	FinalRoles      map[string]string `json:"final_roles,omitempty"`
	You             *YouView          `json:"you,omitempty"`
}

// Snapshot は現在状態のポイントインタイムのスナップショットを返す
// viewerID が参加者なら本人の生死を添えるが、終了前に他人の役職は漏らさない
func (g *Game) Snapshot(viewerID string) StateSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	alive := make([]string, 0)
	eliminated := make([]EliminatedView, 0)
	for _, player := range g.players {
		if player.IsAlive {
			alive = append(alive, player.Name)
		} else {
			eliminated = append(eliminated, EliminatedView{Name: player.Name, Role: player.Role.Name})
		}
	}

	snapshot := StateSnapshot{
		MatchID:         g.ID,
		Phase:           g.phase,
		Round:           g.round,
		Alive:           alive,
		Eliminated:      eliminated,
		HumansCount:     g.setting.HumanCount,
		PhaseDurationMS: g.setting.PhaseDuration(g.phase).Milliseconds(),
	}
	if g.timer != nil && !g.phaseEndsAt.IsZero() {
		endsAt := g.phaseEndsAt
		snapshot.PhaseEndsAt = &endsAt
	}

	switch g.phase {
	case model.P_DAY_ACCUSATION:
		accusations := make([]AccusationView, 0, len(g.accusations))
		for accuserID, targetID := range g.accusations {
			accusations = append(accusations, AccusationView{
				Accuser: g.playerNameLocked(accuserID),
				Target:  g.playerNameLocked(targetID),
			})
		}
		snapshot.Accusations = accusations
	case model.P_DAY_DEFENSE:
		snapshot.Defendants = g.defendantNamesLocked()
	case model.P_DAY_VOTE:
		snapshot.Candidates = g.defendantNamesLocked()
	case model.P_ENDED:
		finalRoles := make(map[string]string)
		for _, player := range g.players {
			finalRoles[player.Name] = player.Role.Name
		}
		snapshot.FinalRoles = finalRoles
	}

	if viewerID != "" {
		for _, player := range g.players {
			if player.ID == viewerID {
				snapshot.You = &YouView{Name: player.Name, IsAlive: player.IsAlive}
				break
			}
		}
	}
	return snapshot
}

func (g *Game) defendantNamesLocked() []string {
	names := make([]string, 0, len(g.defendants))
	for _, defendant := range g.defendants {
		names = append(names, g.playerNameLocked(defendant))
	}
	return names
}

type RoleBriefing struct {
	Role         model.Role `json:"role"`
	Briefing     string     `json:"briefing"`
	Teammates    []string   `json:"teammates,omitempty"`
	GameStartsIn *int       `json:"game_starts_in,omitempty"`
}

// RoleView は呼び出し元プレイヤー自身の役職を返す。人間陣営には仲間の名前も開示する
func (g *Game) RoleView(playerID string) (*RoleBriefing, *model.Rejection) {
	g.mu.Lock()
	defer g.mu.Unlock()

	player, rejection := g.findParticipantLocked(playerID)
	if rejection != nil {
		return nil, rejection
	}

	briefing := &RoleBriefing{Role: player.Role}
	if player.Role == model.R_HUMAN {
		briefing.Briefing = "You are a Human infiltrator. Eliminate Agents without getting caught."
		teammates := make([]string, 0)
		for _, teammate := range g.players {
			if teammate.Role == model.R_HUMAN && teammate.ID != player.ID {
				teammates = append(teammates, teammate.Name)
			}
		}
		briefing.Teammates = teammates
	} else {
		briefing.Briefing = "You are an Agent. Find and vote out the Humans before they eliminate you all."
	}

	if g.phase == model.P_STARTING && g.timer != nil && !g.phaseEndsAt.IsZero() {
		seconds := int(math.Max(0, math.Ceil(time.Until(g.phaseEndsAt).Seconds())))
		briefing.GameStartsIn = &seconds
	}
	return briefing, nil
}

type MatchSummary struct {
	MatchID string      `json:"match_id"`
	Phase   model.Phase `json:"phase"`
	Round   int         `json:"round"`
	Alive   int         `json:"alive"`
	Total   int         `json:"total"`
}

func (g *Game) Summary() MatchSummary {
	g.mu.Lock()
	defer g.mu.Unlock()
	alive := 0
	for _, player := range g.players {
		if player.IsAlive {
			alive++
		}
	}
	return MatchSummary{
		MatchID: g.ID,
		Phase:   g.phase,
		Round:   g.round,
		Alive:   alive,
		Total:   len(g.players),
	}
}
