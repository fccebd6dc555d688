package logic

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/amongais/amongais-server/model"
	"github.com/amongais/amongais-server/util"
)

type AccuseResult struct {
	OK bool `json:"ok"`
}

type DefendResult struct {
	OK bool `json:"ok"`
}

type DayVoteResult struct {
	OK         bool `json:"ok"`
	Consensus  bool `json:"consensus"`
	WaitingFor int  `json:"waiting_for"`
}

// HandleDayDiscuss は昼の公開討論メッセージを受け付ける。役職の制限はない
func (g *Game) HandleDayDiscuss(playerID string, text string) (*TalkResult, *model.Rejection) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if rejection := g.requirePhaseLocked(model.P_DAY_DISCUSSION); rejection != nil {
		return nil, rejection
	}
	player, rejection := g.findParticipantLocked(playerID)
	if rejection != nil {
		return nil, rejection
	}
	if rejection := g.requireAliveLocked(player); rejection != nil {
		return nil, rejection
	}

	count := g.messageCountLocked(player.ID, model.P_DAY_DISCUSSION)
	if count >= g.setting.DayMessagesPerPhase {
		return nil, model.NewRejection(model.REJ_MESSAGE_QUOTA,
			fmt.Sprintf("You have used all %d messages for this discussion phase. Wait for the next round.", g.setting.DayMessagesPerPhase),
			http.StatusTooManyRequests).
			WithDetail("messages_used", count).
			WithDetail("messages_allowed", g.setting.DayMessagesPerPhase)
	}
	newCount := g.incrementMessageCountLocked(player.ID, model.P_DAY_DISCUSSION)

	g.messages = append(g.messages, model.ChatMessage{
		From:      player.Name,
		Message:   text,
		Round:     g.round,
		Phase:     model.P_DAY_DISCUSSION,
		Timestamp: time.Now(),
	})
	g.emitEvent(model.EV_MESSAGE, map[string]any{
		"from":    player.Name,
		"message": text,
		"phase":   model.P_DAY_DISCUSSION,
	})

	return &TalkResult{MessagesRemaining: g.setting.DayMessagesPerPhase - newCount}, nil
}

// DayMessages は指定ラウンド・フェーズの昼メッセージを返す。誰でも閲覧できる
func (g *Game) DayMessages(round *int, phase *model.Phase) []model.ChatMessage {
	g.mu.Lock()
	defer g.mu.Unlock()

	targetRound := g.round
	if round != nil {
		targetRound = *round
	}
	targetPhase := model.P_DAY_DISCUSSION
	if phase != nil {
		targetPhase = *phase
	}

	messages := make([]model.ChatMessage, 0)
	for _, msg := range g.messages {
		if msg.Round == targetRound && msg.Phase == targetPhase && msg.Phase != model.P_NIGHT {
			messages = append(messages, msg)
		}
	}
	return messages
}

// HandleAccuse は告発を受け付ける。1ラウンドにつき1回で上書き不可
func (g *Game) HandleAccuse(playerID string, targetName string, reason string) (*AccuseResult, *model.Rejection) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if rejection := g.requirePhaseLocked(model.P_DAY_ACCUSATION); rejection != nil {
		return nil, rejection
	}
	player, rejection := g.findParticipantLocked(playerID)
	if rejection != nil {
		return nil, rejection
	}
	if rejection := g.requireAliveLocked(player); rejection != nil {
		return nil, rejection
	}
	if existingTarget, exists := g.accusations[player.ID]; exists {
		return nil, model.NewRejection(model.REJ_ALREADY_SUBMITTED,
			fmt.Sprintf("You already accused %s this round.", g.playerNameLocked(existingTarget)),
			http.StatusTooManyRequests)
	}

	target, rejection := g.resolveTargetLocked(targetName)
	if rejection != nil {
		return nil, rejection
	}
	if target.ID == player.ID {
		return nil, model.NewRejection(model.REJ_INVALID_TARGET,
			"You cannot accuse yourself.", http.StatusUnprocessableEntity)
	}

	g.accusations[player.ID] = target.ID
	g.emitEvent(model.EV_ACCUSATION, map[string]any{
		"accuser": player.Name,
		"target":  target.Name,
		"reason":  reason,
	})

	alivePlayers := g.alivePlayersLocked()
	allAccused := true
	for _, alive := range alivePlayers {
		if _, exists := g.accusations[alive.ID]; !exists {
			allAccused = false
			break
		}
	}
	if allAccused {
		g.scheduleEarlyAdvanceLocked(model.E_ALL_ACTIONS_COMPLETE)
	}

	return &AccuseResult{OK: true}, nil
}

// HandleDefend は被告発者の弁明を受け付ける。被告発者1人につき1回である
func (g *Game) HandleDefend(playerID string, text string) (*DefendResult, *model.Rejection) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if rejection := g.requirePhaseLocked(model.P_DAY_DEFENSE); rejection != nil {
		return nil, rejection
	}
	player, rejection := g.findParticipantLocked(playerID)
	if rejection != nil {
		return nil, rejection
	}
	if rejection := g.requireAliveLocked(player); rejection != nil {
		return nil, rejection
	}
	if !g.isDefendantLocked(player.ID) {
		return nil, model.NewRejection(model.REJ_WRONG_ROLE,
			"You were not accused this round.", http.StatusConflict)
	}
	if g.defenses[player.ID] {
		return nil, model.NewRejection(model.REJ_ALREADY_SUBMITTED,
			"You have already defended this round.", http.StatusConflict)
	}
	g.defenses[player.ID] = true

	g.messages = append(g.messages, model.ChatMessage{
		From:      player.Name,
		Message:   text,
		Round:     g.round,
		Phase:     model.P_DAY_DEFENSE,
		Timestamp: time.Now(),
	})
	g.emitEvent(model.EV_DEFENSE, map[string]any{
		"from":    player.Name,
		"message": text,
	})

	allDefended := true
	for _, defendant := range g.defendants {
		if !g.defenses[defendant] {
			allDefended = false
			break
		}
	}
	if allDefended {
		g.scheduleEarlyAdvanceLocked(model.E_ALL_DEFENSES_DONE)
	}

	return &DefendResult{OK: true}, nil
}

// HandleVote は日中投票を受け付ける。ターゲットは被告発者または skip に限る
func (g *Game) HandleVote(playerID string, targetName string) (*DayVoteResult, *model.Rejection) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if rejection := g.requirePhaseLocked(model.P_DAY_VOTE); rejection != nil {
		return nil, rejection
	}
	player, rejection := g.findParticipantLocked(playerID)
	if rejection != nil {
		return nil, rejection
	}
	if rejection := g.requireAliveLocked(player); rejection != nil {
		return nil, rejection
	}
	if _, exists := g.dayVotes[player.ID]; exists {
		return nil, model.NewRejection(model.REJ_ALREADY_SUBMITTED,
			"You have already voted this round.", http.StatusTooManyRequests)
	}

	var targetID string
	if targetName == model.SkipVote {
		targetID = model.SkipVote
	} else {
		target, rejection := g.resolveTargetLocked(targetName)
		if rejection != nil {
			return nil, rejection
		}
		if target.ID == player.ID {
			return nil, model.NewRejection(model.REJ_INVALID_TARGET,
				"You cannot target yourself.", http.StatusUnprocessableEntity)
		}
		if !g.isDefendantLocked(target.ID) {
			defendantNames := make([]string, 0, len(g.defendants))
			for _, defendant := range g.defendants {
				defendantNames = append(defendantNames, g.playerNameLocked(defendant))
			}
			return nil, model.NewRejection(model.REJ_INVALID_TARGET,
				fmt.Sprintf("You can only vote for accused players or skip. Accused: %s.", strings.Join(defendantNames, ", ")),
				http.StatusUnprocessableEntity).
				WithDetail("valid_targets", append(defendantNames, model.SkipVote))
		}
		targetID = target.ID
	}

	g.dayVotes[player.ID] = targetID
	g.dayVoteList = append(g.dayVoteList, model.Vote{Voter: player.ID, Target: targetID})

	voteTargetName := model.SkipVote
	if targetID != model.SkipVote {
		voteTargetName = g.playerNameLocked(targetID)
	}
	g.emitEvent(model.EV_VOTE_CAST, map[string]any{
		"voter":  player.Name,
		"target": voteTargetName,
	})

	alivePlayers := g.alivePlayersLocked()
	allVoted := true
	for _, alive := range alivePlayers {
		if _, exists := g.dayVotes[alive.ID]; !exists {
			allVoted = false
			break
		}
	}
	if allVoted {
		g.scheduleEarlyAdvanceLocked(model.E_ALL_ACTIONS_COMPLETE)
	}

	return &DayVoteResult{
		OK:         true,
		Consensus:  allVoted,
		WaitingFor: len(alivePlayers) - len(g.dayVotes),
	}, nil
}

// resolveDayVoteLocked は日中投票を解決する。過半数の基準は未投票者の
// タイムアウト処理よりも前の生存者数で評価される
func (g *Game) resolveDayVoteLocked() {
	alivePlayers := g.alivePlayersLocked()
	aliveCount := len(alivePlayers)

	for _, player := range alivePlayers {
		if _, voted := g.dayVotes[player.ID]; !voted {
			status := util.CheckTimeout(player.ConsecutiveTimeouts, g.setting.MaxConsecutiveTimeouts)
			player.ConsecutiveTimeouts = status.ConsecutiveTimeouts
			g.emitEvent(model.EV_VOTE_TIMEOUT, map[string]any{
				"player":    player.Name,
				"timed_out": true,
			})
			if status.ShouldDisconnect {
				g.eliminateLocked(player.ID, model.C_DISCONNECTED)
			}
		} else {
			player.ConsecutiveTimeouts = 0
		}
	}

	result := util.ResolveVotes(g.dayVoteList, aliveCount)

	tallyByName := make(map[string]*model.TallyEntry)
	for targetID, entry := range result.Tally {
		name := model.SkipVote
		if targetID != model.SkipVote {
			name = g.playerNameLocked(targetID)
		}
		voters := make([]string, 0, len(entry.Voters))
		for _, voterID := range entry.Voters {
			voters = append(voters, g.playerNameLocked(voterID))
		}
		tallyByName[name] = &model.TallyEntry{Count: entry.Count, Voters: voters}
	}

	payload := map[string]any{
		"tally":   tallyByName,
		"outcome": result.Outcome,
	}
	if result.Outcome == model.O_ELIMINATED {
		g.eliminateLocked(result.Eliminated, model.C_VOTED_OUT)
		eliminated := util.FindPlayerByID(g.players, result.Eliminated)
		payload["eliminated_player"] = eliminated.Name
		payload["eliminated_role"] = eliminated.Role
	}
	g.emitEvent(model.EV_VOTE_RESULT, payload)
}
