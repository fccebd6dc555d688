package model

type Phase string

const (
	P_STARTING         Phase = "starting"
	P_NIGHT            Phase = "night"
	P_DAY_ANNOUNCEMENT Phase = "day_announcement"
	P_DAY_DISCUSSION   Phase = "day_discussion"
	P_DAY_ACCUSATION   Phase = "day_accusation"
	P_DAY_DEFENSE      Phase = "day_defense"
	P_DAY_VOTE         Phase = "day_vote"
	P_DAY_RESULT       Phase = "day_result"
	P_ENDED            Phase = "ended"
)

func (p Phase) String() string {
	return string(p)
}

type PhaseEvent string

const (
	E_TIMER_EXPIRED        PhaseEvent = "timer_expired"
	E_ALL_ACTIONS_COMPLETE PhaseEvent = "all_actions_complete"
	E_NO_ACCUSATIONS       PhaseEvent = "no_accusations"
	E_ALL_DEFENSES_DONE    PhaseEvent = "all_defenses_done"
	E_GAME_OVER            PhaseEvent = "game_over"
)

type PhaseContext struct {
	HasAccusations bool
	IsGameOver     bool
}

// NextPhase は現在のフェーズとトリガーイベントから次のフェーズを決定する純粋関数である
func NextPhase(current Phase, event PhaseEvent, context PhaseContext) Phase {
	if context.IsGameOver {
		return P_ENDED
	}
	switch current {
	case P_STARTING:
		return P_NIGHT
	case P_NIGHT:
		return P_DAY_ANNOUNCEMENT
	case P_DAY_ANNOUNCEMENT:
		return P_DAY_DISCUSSION
	case P_DAY_DISCUSSION:
		return P_DAY_ACCUSATION
	case P_DAY_ACCUSATION:
		if !context.HasAccusations || event == E_NO_ACCUSATIONS {
			return P_NIGHT
		}
		return P_DAY_DEFENSE
	case P_DAY_DEFENSE:
		return P_DAY_VOTE
	case P_DAY_VOTE:
		return P_DAY_RESULT
	case P_DAY_RESULT:
		return P_NIGHT
	}
	return P_ENDED
}
