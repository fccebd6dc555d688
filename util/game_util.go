package util

import (
	"errors"
	"math/rand"

	"github.com/amongais/amongais-server/model"
)

// AssignRoles は名簿をシャッフルし、先頭 humanCount 人を人間陣営に割り当てる
func AssignRoles(roster []model.RosterEntry, humanCount int) map[string]model.Role {
	shuffled := make([]model.RosterEntry, len(roster))
	copy(shuffled, roster)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	assignment := make(map[string]model.Role)
	for i, entry := range shuffled {
		if i < humanCount {
			assignment[entry.ID] = model.R_HUMAN
		} else {
			assignment[entry.ID] = model.R_AGENT
		}
	}
	return assignment
}

// ResolveKillTarget は襲撃投票の最多得票ターゲットを決定する
// 同数の場合は一様ランダムに選ぶ。空の投票でのフォールバックはエンジン側の責務であり、ここではエラーを返す
func ResolveKillTarget(votes []model.KillVote) (string, error) {
	counter := make(map[string]int)
	for _, vote := range votes {
		counter[vote.Target]++
	}
	var max int
	for _, count := range counter {
		if count > max {
			max = count
		}
	}
	candidates := make([]string, 0)
	for target, count := range counter {
		if count == max {
			candidates = append(candidates, target)
		}
	}
	if len(candidates) == 0 {
		return "", errors.New("解決すべき襲撃投票がありません")
	}
	return candidates[rand.Intn(len(candidates))], nil
}

// ResolveVotes は日中投票を集計する。skip は候補の最大値比較から除外され、
// 候補を厳密に上回る場合のみ skip が成立する。処刑には生存者の過半数が必要である
func ResolveVotes(votes []model.Vote, aliveCount int) model.VoteResult {
	tally := model.BuildTally(votes)

	var maxTarget string
	var maxCount int
	var isTied bool
	for target, entry := range tally {
		if target == model.SkipVote {
			continue
		}
		if entry.Count > maxCount {
			maxCount = entry.Count
			maxTarget = target
			isTied = false
		} else if entry.Count == maxCount && maxCount > 0 {
			isTied = true
		}
	}

	var skipCount int
	if entry, exists := tally[model.SkipVote]; exists {
		skipCount = entry.Count
	}
	if skipCount > maxCount {
		return model.VoteResult{Tally: tally, Outcome: model.O_SKIP}
	}

	majority := aliveCount/2 + 1
	if isTied || maxCount < majority {
		return model.VoteResult{Tally: tally, Outcome: model.O_NO_MAJORITY}
	}
	return model.VoteResult{Tally: tally, Eliminated: maxTarget, Outcome: model.O_ELIMINATED}
}

func CountAliveTeams(players []*model.Player) (int, int) {
	var humans, agents int
	for _, player := range players {
		if player.IsAlive {
			switch player.Role.Team {
			case model.T_HUMAN:
				humans++
			case model.T_AGENT:
				agents++
			}
		}
	}
	return humans, agents
}

// CalcWinSide は勝敗を判定する。人間全滅でエージェント勝利、同数以上で人間勝利
func CalcWinSide(players []*model.Player) (model.Team, string) {
	humans, agents := CountAliveTeams(players)
	if humans == 0 {
		return model.T_AGENT, "All Humans have been eliminated"
	}
	if humans >= agents {
		return model.T_HUMAN, "Humans equal or outnumber Agents"
	}
	return model.T_NONE, ""
}

type TimeoutStatus struct {
	ConsecutiveTimeouts int
	ShouldDisconnect    bool
}

func CheckTimeout(currentTimeouts int, maxConsecutive int) TimeoutStatus {
	newCount := currentTimeouts + 1
	return TimeoutStatus{
		ConsecutiveTimeouts: newCount,
		ShouldDisconnect:    newCount >= maxConsecutive,
	}
}

func FilterPlayers(players []*model.Player, condition func(*model.Player) bool) []*model.Player {
	filtered := make([]*model.Player, 0)
	for _, player := range players {
		if condition(player) {
			filtered = append(filtered, player)
		}
	}
	return filtered
}

func FindPlayerByID(players []*model.Player, id string) *model.Player {
	for _, player := range players {
		if player.ID == id {
			return player
		}
	}
	return nil
}

func SelectRandomPlayer(players []*model.Player) *model.Player {
	return players[rand.Intn(len(players))]
}
