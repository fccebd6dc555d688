package logic

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/amongais/amongais-server/model"
	"github.com/amongais/amongais-server/util"
)

type TalkResult struct {
	MessagesRemaining int `json:"messages_remaining"`
}

type KillVoteResult struct {
	Votes      map[string]int `json:"votes"`
	Consensus  bool           `json:"consensus"`
	WaitingFor int            `json:"waiting_for"`
}

// HandleNightDiscuss は人間陣営の夜間密談メッセージを受け付ける
func (g *Game) HandleNightDiscuss(playerID string, text string) (*TalkResult, *model.Rejection) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if rejection := g.requirePhaseLocked(model.P_NIGHT); rejection != nil {
		return nil, rejection
	}
	player, rejection := g.findParticipantLocked(playerID)
	if rejection != nil {
		return nil, rejection
	}
	if rejection := g.requireAliveLocked(player); rejection != nil {
		return nil, rejection
	}
	if player.Role != model.R_HUMAN {
		return nil, model.NewRejection(model.REJ_WRONG_ROLE,
			"Only Humans can use night discussion. You are an Agent. You have no actions during the night phase.",
			http.StatusForbidden).
			WithDetail("your_role", player.Role).
			WithDetail("required_role", model.R_HUMAN)
	}

	count := g.messageCountLocked(player.ID, model.P_NIGHT)
	if count >= g.setting.NightMessagesPerPhase {
		return nil, model.NewRejection(model.REJ_MESSAGE_QUOTA,
			fmt.Sprintf("You have used all %d messages for this night phase.", g.setting.NightMessagesPerPhase),
			http.StatusTooManyRequests).
			WithDetail("messages_used", count).
			WithDetail("messages_allowed", g.setting.NightMessagesPerPhase)
	}
	newCount := g.incrementMessageCountLocked(player.ID, model.P_NIGHT)

	g.messages = append(g.messages, model.ChatMessage{
		From:      player.Name,
		Message:   text,
		Round:     g.round,
		Phase:     model.P_NIGHT,
		Timestamp: time.Now(),
	})
	// 夜のメッセージは参加者には秘匿されるが、観戦者には配信される
	g.emitEvent(model.EV_NIGHT_MESSAGE, map[string]any{
		"from":    player.Name,
		"message": text,
		"phase":   model.P_NIGHT,
	})

	return &TalkResult{MessagesRemaining: g.setting.NightMessagesPerPhase - newCount}, nil
}

// NightMessages は当該ラウンドの夜間密談を返す。生存中の人間陣営のみ閲覧できる
func (g *Game) NightMessages(playerID string) ([]model.ChatMessage, *model.Rejection) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if rejection := g.requirePhaseLocked(model.P_NIGHT); rejection != nil {
		return nil, rejection
	}
	player, rejection := g.findParticipantLocked(playerID)
	if rejection != nil {
		return nil, rejection
	}
	if player.Role != model.R_HUMAN {
		return nil, model.NewRejection(model.REJ_WRONG_ROLE,
			"Only Humans can read night messages. You are an Agent.",
			http.StatusForbidden)
	}

	messages := make([]model.ChatMessage, 0)
	for _, msg := range g.messages {
		if msg.Round == g.round && msg.Phase == model.P_NIGHT {
			messages = append(messages, msg)
		}
	}
	return messages, nil
}

// HandleNightKill は人間陣営の襲撃投票を受け付ける。1ラウンドにつき1票で上書き不可
func (g *Game) HandleNightKill(playerID string, targetName string) (*KillVoteResult, *model.Rejection) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if rejection := g.requirePhaseLocked(model.P_NIGHT); rejection != nil {
		return nil, rejection
	}
	player, rejection := g.findParticipantLocked(playerID)
	if rejection != nil {
		return nil, rejection
	}
	if rejection := g.requireAliveLocked(player); rejection != nil {
		return nil, rejection
	}
	if player.Role != model.R_HUMAN {
		return nil, model.NewRejection(model.REJ_WRONG_ROLE,
			"Only Humans can perform night kills. You are an Agent.",
			http.StatusForbidden)
	}
	if _, exists := g.nightKills[player.ID]; exists {
		return nil, model.NewRejection(model.REJ_ALREADY_SUBMITTED,
			"You have already submitted your night kill vote this round.",
			http.StatusTooManyRequests)
	}

	target, rejection := g.resolveTargetLocked(targetName)
	if rejection != nil {
		return nil, rejection
	}
	if target.ID == player.ID {
		return nil, model.NewRejection(model.REJ_INVALID_TARGET,
			"You cannot target yourself.", http.StatusUnprocessableEntity)
	}

	g.nightKills[player.ID] = target.ID
	g.nightKillList = append(g.nightKillList, model.KillVote{Voter: player.ID, Target: target.ID})
	g.emitEvent(model.EV_KILL_VOTE, map[string]any{
		"voter":  player.Name,
		"target": target.Name,
	})

	aliveHumans := g.aliveHumansLocked()
	allVoted := true
	for _, human := range aliveHumans {
		if _, exists := g.nightKills[human.ID]; !exists {
			allVoted = false
			break
		}
	}

	voteTally := make(map[string]int)
	for _, targetID := range g.nightKills {
		voteTally[g.playerNameLocked(targetID)]++
	}

	if allVoted {
		g.scheduleEarlyAdvanceLocked(model.E_ALL_ACTIONS_COMPLETE)
	}

	return &KillVoteResult{
		Votes:      voteTally,
		Consensus:  allVoted,
		WaitingFor: len(aliveHumans) - len(g.nightKills),
	}, nil
}

// resolveNightLocked は夜明けの解決を行う。未投票者のタイムアウト加算と切断追放、
// 襲撃投票の解決、全員不投票時のランダムフォールバックを含む
func (g *Game) resolveNightLocked() {
	for _, human := range g.aliveHumansLocked() {
		if _, voted := g.nightKills[human.ID]; !voted {
			status := util.CheckTimeout(human.ConsecutiveTimeouts, g.setting.MaxConsecutiveTimeouts)
			human.ConsecutiveTimeouts = status.ConsecutiveTimeouts
			if status.ShouldDisconnect {
				g.eliminateLocked(human.ID, model.C_DISCONNECTED)
			}
		} else {
			human.ConsecutiveTimeouts = 0
		}
	}

	var targetID string
	if len(g.nightKillList) == 0 {
		// 人間が全員タイムアウトまたは切断した場合は生存エージェントからランダムに犠牲者を選ぶ
		aliveAgents := g.aliveAgentsLocked()
		if len(aliveAgents) == 0 {
			return
		}
		targetID = util.SelectRandomPlayer(aliveAgents).ID
	} else {
		resolved, err := util.ResolveKillTarget(g.nightKillList)
		if err != nil {
			slog.Error("襲撃投票の解決に失敗しました", "id", g.ID, "error", err)
			return
		}
		targetID = resolved
	}

	g.eliminateLocked(targetID, model.C_NIGHT_KILL)

	victim := util.FindPlayerByID(g.players, targetID)
	g.emitEvent(model.EV_NIGHT_KILL, map[string]any{
		"victim": victim.Name,
		"role":   victim.Role,
	})
}
