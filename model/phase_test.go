package model

import "testing"

func TestNextPhaseNormalCycle(t *testing.T) {
	t.Log("フェーズ遷移: 通常の1ラウンドのサイクルが順番に進む")
	cases := []struct {
		current Phase
		event   PhaseEvent
		context PhaseContext
		expect  Phase
	}{
		{P_STARTING, E_TIMER_EXPIRED, PhaseContext{}, P_NIGHT},
		{P_NIGHT, E_TIMER_EXPIRED, PhaseContext{}, P_DAY_ANNOUNCEMENT},
		{P_NIGHT, E_ALL_ACTIONS_COMPLETE, PhaseContext{}, P_DAY_ANNOUNCEMENT},
		{P_DAY_ANNOUNCEMENT, E_TIMER_EXPIRED, PhaseContext{}, P_DAY_DISCUSSION},
		{P_DAY_DISCUSSION, E_TIMER_EXPIRED, PhaseContext{}, P_DAY_ACCUSATION},
		{P_DAY_ACCUSATION, E_TIMER_EXPIRED, PhaseContext{HasAccusations: true}, P_DAY_DEFENSE},
		{P_DAY_DEFENSE, E_TIMER_EXPIRED, PhaseContext{HasAccusations: true}, P_DAY_VOTE},
		{P_DAY_DEFENSE, E_ALL_DEFENSES_DONE, PhaseContext{HasAccusations: true}, P_DAY_VOTE},
		{P_DAY_VOTE, E_TIMER_EXPIRED, PhaseContext{HasAccusations: true}, P_DAY_RESULT},
		{P_DAY_RESULT, E_TIMER_EXPIRED, PhaseContext{}, P_NIGHT},
	}
	for _, c := range cases {
		actual := NextPhase(c.current, c.event, c.context)
		if actual != c.expect {
			t.Errorf("遷移が一致しません: %s + %s -> %s (期待値: %s)", c.current, c.event, actual, c.expect)
		}
	}
}

func TestNextPhaseSkipsDefenseWithoutAccusations(t *testing.T) {
	t.Log("フェーズ遷移: 告発が1件もない場合は弁明と投票を飛ばして夜に戻る")
	if actual := NextPhase(P_DAY_ACCUSATION, E_TIMER_EXPIRED, PhaseContext{HasAccusations: false}); actual != P_NIGHT {
		t.Errorf("告発なしの遷移先が %s でした (期待値: %s)", actual, P_NIGHT)
	}
	if actual := NextPhase(P_DAY_ACCUSATION, E_NO_ACCUSATIONS, PhaseContext{HasAccusations: true}); actual != P_NIGHT {
		t.Errorf("no_accusations イベントの遷移先が %s でした (期待値: %s)", actual, P_NIGHT)
	}
}

func TestNextPhaseGameOverShortCircuits(t *testing.T) {
	t.Log("フェーズ遷移: 勝敗が決した場合はどのフェーズからでも ended に遷移する")
	phases := []Phase{P_STARTING, P_NIGHT, P_DAY_ANNOUNCEMENT, P_DAY_DISCUSSION, P_DAY_ACCUSATION, P_DAY_DEFENSE, P_DAY_VOTE, P_DAY_RESULT}
	for _, phase := range phases {
		if actual := NextPhase(phase, E_TIMER_EXPIRED, PhaseContext{IsGameOver: true}); actual != P_ENDED {
			t.Errorf("%s からの勝敗確定時の遷移先が %s でした (期待値: %s)", phase, actual, P_ENDED)
		}
	}
}

func TestNextPhaseUnknownFallsToEnded(t *testing.T) {
	t.Log("フェーズ遷移: 未定義の状態からは防御的に ended へ落ちる")
	if actual := NextPhase(P_ENDED, E_TIMER_EXPIRED, PhaseContext{}); actual != P_ENDED {
		t.Errorf("未定義遷移の結果が %s でした (期待値: %s)", actual, P_ENDED)
	}
}
