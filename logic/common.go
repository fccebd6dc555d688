package logic

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/amongais/amongais-server/model"
	"github.com/amongais/amongais-server/util"
)

func (g *Game) requirePhaseLocked(required model.Phase) *model.Rejection {
	if g.ended {
		return model.NewRejection(model.REJ_MATCH_NOT_ACTIVE, "This match has ended.", http.StatusConflict)
	}
	if g.phase != required {
		return model.NewRejection(model.REJ_WRONG_PHASE,
			fmt.Sprintf("Cannot perform this action during '%s'. Required phase: '%s'.", g.phase, required),
			http.StatusConflict).
			WithDetail("current_phase", g.phase).
			WithDetail("required_phase", required)
	}
	return nil
}

func (g *Game) findParticipantLocked(playerID string) (*model.Player, *model.Rejection) {
	player := util.FindPlayerByID(g.players, playerID)
	if player == nil {
		return nil, model.NewRejection(model.REJ_NOT_PARTICIPANT, "You are not in this match.", http.StatusNotFound)
	}
	return player, nil
}

func (g *Game) requireAliveLocked(player *model.Player) *model.Rejection {
	if !player.IsAlive {
		round := g.round
		if player.EliminatedRound != nil {
			round = *player.EliminatedRound
		}
		return model.NewRejection(model.REJ_ALREADY_ELIMINATED,
			fmt.Sprintf("You were eliminated in Round %d. Dead players cannot act.", round),
			http.StatusForbidden)
	}
	return nil
}

// resolveTargetLocked はターゲット名解決を行う。全てのターゲット指定アクションで共通である
// 完全一致 → 死亡者の区別 → あいまい一致の提案(自動訂正はしない) → 未発見の順に判定する
func (g *Game) resolveTargetLocked(targetName string) (*model.Player, *model.Rejection) {
	alivePlayers := g.alivePlayersLocked()
	aliveNames := make([]string, 0, len(alivePlayers))
	for _, player := range alivePlayers {
		aliveNames = append(aliveNames, player.Name)
	}

	for _, player := range alivePlayers {
		if player.Name == targetName {
			return player, nil
		}
	}

	for _, player := range g.players {
		if !player.IsAlive && player.Name == targetName {
			return nil, model.NewRejection(model.REJ_INVALID_TARGET,
				fmt.Sprintf("%s is eliminated and cannot be targeted. Alive players: %s.", targetName, strings.Join(aliveNames, ", ")),
				http.StatusUnprocessableEntity).
				WithDetail("target_status", "eliminated").
				WithDetail("alive_players", aliveNames)
		}
	}

	suggestion := util.FindClosestName(targetName, aliveNames, g.setting.FuzzyMaxDistance)
	rejection := model.NewRejection(model.REJ_PLAYER_NOT_FOUND,
		fmt.Sprintf("No player named '%s'. Alive players: %s.", targetName, strings.Join(aliveNames, ", ")),
		http.StatusUnprocessableEntity).
		WithDetail("alive_players", aliveNames)
	if suggestion != "" {
		rejection.Message = fmt.Sprintf("No player named '%s'. Did you mean '%s'? Alive players: %s.",
			targetName, suggestion, strings.Join(aliveNames, ", "))
		rejection.WithDetail("suggestion", suggestion).WithRetry()
	}
	return nil, rejection
}

func (g *Game) alivePlayersLocked() []*model.Player {
	return util.FilterPlayers(g.players, func(player *model.Player) bool {
		return player.IsAlive
	})
}

func (g *Game) aliveHumansLocked() []*model.Player {
	return util.FilterPlayers(g.players, func(player *model.Player) bool {
		return player.IsAlive && player.Role == model.R_HUMAN
	})
}

func (g *Game) aliveAgentsLocked() []*model.Player {
	return util.FilterPlayers(g.players, func(player *model.Player) bool {
		return player.IsAlive && player.Role == model.R_AGENT
	})
}

func (g *Game) playerNameLocked(playerID string) string {
	if player := util.FindPlayerByID(g.players, playerID); player != nil {
		return player.Name
	}
	return playerID
}

func (g *Game) messageKeyLocked(playerID string, phase model.Phase) string {
	return fmt.Sprintf("%s:%d:%s", playerID, g.round, phase)
}

func (g *Game) messageCountLocked(playerID string, phase model.Phase) int {
	return g.messageCounts[g.messageKeyLocked(playerID, phase)]
}

func (g *Game) incrementMessageCountLocked(playerID string, phase model.Phase) int {
	key := g.messageKeyLocked(playerID, phase)
	g.messageCounts[key]++
	return g.messageCounts[key]
}

func (g *Game) distinctAccusationTargetsLocked() []string {
	seen := make(map[string]bool)
	targets := make([]string, 0)
	for _, target := range g.accusations {
		if !seen[target] {
			seen[target] = true
			targets = append(targets, target)
		}
	}
	return targets
}

func (g *Game) isDefendantLocked(playerID string) bool {
	for _, defendant := range g.defendants {
		if defendant == playerID {
			return true
		}
	}
	return false
}

// scheduleEarlyAdvanceLocked は全員行動済みによる早期遷移を予約する
// ハンドラのレスポンスを遷移でブロックしないよう、短い遅延の後に非同期で実行する
func (g *Game) scheduleEarlyAdvanceLocked(trigger model.PhaseEvent) {
	g.cancelTimerLocked()
	phase := g.phase
	round := g.round
	time.AfterFunc(g.setting.EarlyAdvanceDelay, func() {
		g.advancePhase(trigger, func() bool {
			return g.phase == phase && g.round == round
		})
	})
}
