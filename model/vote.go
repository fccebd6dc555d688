package model

// SkipVote は日中投票で処刑を見送るための番兵ターゲットである
const SkipVote = "skip"

type KillVote struct {
	Voter  string
	Target string
}

type Vote struct {
	Voter  string
	Target string
}

type TallyEntry struct {
	Count  int      `json:"count"`
	Voters []string `json:"voters"`
}

type Tally map[string]*TallyEntry

func BuildTally(votes []Vote) Tally {
	tally := make(Tally)
	for _, vote := range votes {
		entry, exists := tally[vote.Target]
		if !exists {
			entry = &TallyEntry{Voters: []string{}}
			tally[vote.Target] = entry
		}
		entry.Count++
		entry.Voters = append(entry.Voters, vote.Voter)
	}
	return tally
}

type VoteOutcome string

const (
	O_ELIMINATED  VoteOutcome = "eliminated"
	O_NO_MAJORITY VoteOutcome = "no_majority"
	O_SKIP        VoteOutcome = "skip"
)

type VoteResult struct {
	Tally      Tally
	Eliminated string
	Outcome    VoteOutcome
}
