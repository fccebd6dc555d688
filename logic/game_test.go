package logic

import (
	"testing"
	"time"

	"github.com/amongais/amongais-server/model"
)

func testSetting() *model.Setting {
	return &model.Setting{
		PlayerCount:            6,
		HumanCount:             2,
		PhaseDurations:         map[model.Phase]time.Duration{},
		DayMessagesPerPhase:    2,
		NightMessagesPerPhase:  2,
		MaxConsecutiveTimeouts: 3,
		FuzzyMaxDistance:       3,
		EarlyAdvanceDelay:      5 * time.Millisecond,
	}
}

func testRoster() []model.RosterEntry {
	names := []string{"Alice", "Bob", "Carol", "Dave", "Eve", "Frank"}
	roster := make([]model.RosterEntry, 0, len(names))
	for _, name := range names {
		roster = append(roster, model.RosterEntry{ID: name, Name: name})
	}
	return roster
}

func newTestGame(t *testing.T) *Game {
	t.Helper()
	game, err := NewGame("test-match", testSetting(), testRoster(), nil)
	if err != nil {
		t.Fatalf("マッチの作成に失敗しました: %v", err)
	}
	return game
}

func (g *Game) testPhase() model.Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

func (g *Game) testRound() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.round
}

func (g *Game) testHumans() []*model.Player {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.aliveHumansLocked()
}

func (g *Game) testAgents() []*model.Player {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.aliveAgentsLocked()
}

func waitForPhase(t *testing.T, game *Game, expect model.Phase) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if game.testPhase() == expect {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("フェーズが %s に遷移しませんでした (現在: %s)", expect, game.testPhase())
}

func TestNewGameValidatesRosterSize(t *testing.T) {
	t.Log("マッチ作成: 名簿の人数が設定と一致しない場合はエラーになる")
	if _, err := NewGame("x", testSetting(), testRoster()[:4], nil); err == nil {
		t.Error("名簿不足の作成がエラーになりませんでした")
	}
}

func TestStartIsIdempotent(t *testing.T) {
	t.Log("マッチ開始: 二重に開始しても状態は変わらない")
	game := newTestGame(t)
	game.Start()
	game.Start()
	if game.testPhase() != model.P_STARTING {
		t.Errorf("開始直後のフェーズが %s でした (期待値: %s)", game.testPhase(), model.P_STARTING)
	}
	if game.testRound() != 0 {
		t.Errorf("開始直後のラウンドが %d でした (期待値: 0)", game.testRound())
	}
}

func TestRoleAssignmentCounts(t *testing.T) {
	t.Log("マッチ作成: 役職は設定どおりの人数で割り当てられる")
	game := newTestGame(t)
	if len(game.testHumans()) != 2 {
		t.Errorf("人間の人数が %d でした (期待値: 2)", len(game.testHumans()))
	}
	if len(game.testAgents()) != 4 {
		t.Errorf("エージェントの人数が %d でした (期待値: 4)", len(game.testAgents()))
	}
}

func TestFullRoundScenario(t *testing.T) {
	t.Log("シナリオ: 夜の襲撃合意から日中投票の追放まで1ラウンドを通しで進める")
	game := newTestGame(t)
	game.Start()

	game.advancePhase(model.E_TIMER_EXPIRED, nil)
	if game.testPhase() != model.P_NIGHT {
		t.Fatalf("夜フェーズに入れませんでした (現在: %s)", game.testPhase())
	}
	if game.testRound() != 1 {
		t.Errorf("夜突入時のラウンドが %d でした (期待値: 1)", game.testRound())
	}

	humans := game.testHumans()
	agents := game.testAgents()
	victim := agents[0]

	if _, rejection := game.HandleNightDiscuss(humans[0].ID, "今夜は誰を狙う?"); rejection != nil {
		t.Fatalf("夜間密談が拒否されました: %v", rejection)
	}
	if _, rejection := game.HandleNightDiscuss(agents[0].ID, "こっそり"); rejection == nil {
		t.Error("エージェントの夜間密談が拒否されませんでした")
	}

	result, rejection := game.HandleNightKill(humans[0].ID, victim.Name)
	if rejection != nil {
		t.Fatalf("襲撃投票が拒否されました: %v", rejection)
	}
	if result.Consensus {
		t.Error("1票の時点で合意と判定されました")
	}
	if _, rejection := game.HandleNightKill(humans[0].ID, victim.Name); rejection == nil {
		t.Error("襲撃投票の上書きが拒否されませんでした")
	}
	result, rejection = game.HandleNightKill(humans[1].ID, victim.Name)
	if rejection != nil {
		t.Fatalf("2票目の襲撃投票が拒否されました: %v", rejection)
	}
	if !result.Consensus {
		t.Error("全員投票済みなのに合意と判定されませんでした")
	}

	waitForPhase(t, game, model.P_DAY_ANNOUNCEMENT)
	if victim.IsAlive {
		t.Error("襲撃対象が追放されていません")
	}

	game.advancePhase(model.E_TIMER_EXPIRED, nil)
	if game.testPhase() != model.P_DAY_DISCUSSION {
		t.Fatalf("討論フェーズに入れませんでした (現在: %s)", game.testPhase())
	}
	if _, rejection := game.HandleDayDiscuss(agents[1].ID, "昨夜は誰がやられた?"); rejection != nil {
		t.Fatalf("昼の討論が拒否されました: %v", rejection)
	}
	if _, rejection := game.HandleDayDiscuss(victim.ID, "無念"); rejection == nil {
		t.Error("追放済みプレイヤーの発言が拒否されませんでした")
	}

	game.advancePhase(model.E_TIMER_EXPIRED, nil)
	if game.testPhase() != model.P_DAY_ACCUSATION {
		t.Fatalf("告発フェーズに入れませんでした (現在: %s)", game.testPhase())
	}
	accused := humans[0]
	if _, rejection := game.HandleAccuse(agents[1].ID, accused.Name, "様子が怪しい"); rejection != nil {
		t.Fatalf("告発が拒否されました: %v", rejection)
	}
	if _, rejection := game.HandleAccuse(agents[1].ID, accused.Name, "もう一度"); rejection == nil {
		t.Error("二重の告発が拒否されませんでした")
	}

	game.advancePhase(model.E_TIMER_EXPIRED, nil)
	if game.testPhase() != model.P_DAY_DEFENSE {
		t.Fatalf("弁明フェーズに入れませんでした (現在: %s)", game.testPhase())
	}
	if _, rejection := game.HandleDefend(agents[1].ID, "私は無実だ"); rejection == nil {
		t.Error("被告発者以外の弁明が拒否されませんでした")
	}
	if _, rejection := game.HandleDefend(accused.ID, "私は無実だ"); rejection != nil {
		t.Fatalf("被告発者の弁明が拒否されました: %v", rejection)
	}

	waitForPhase(t, game, model.P_DAY_VOTE)
	if _, rejection := game.HandleVote(agents[1].ID, humans[1].Name); rejection == nil {
		t.Error("被告発者以外への投票が拒否されませんでした")
	}
	for _, agent := range game.testAgents() {
		if _, rejection := game.HandleVote(agent.ID, accused.Name); rejection != nil {
			t.Fatalf("エージェントの投票が拒否されました: %v", rejection)
		}
	}
	if _, rejection := game.HandleVote(accused.ID, model.SkipVote); rejection != nil {
		t.Fatalf("skip 投票が拒否されました: %v", rejection)
	}
	if _, rejection := game.HandleVote(humans[1].ID, model.SkipVote); rejection != nil {
		t.Fatalf("2票目の skip 投票が拒否されました: %v", rejection)
	}

	waitForPhase(t, game, model.P_DAY_RESULT)
	if accused.IsAlive {
		t.Error("過半数の得票者が追放されていません")
	}

	game.advancePhase(model.E_TIMER_EXPIRED, nil)
	if game.testPhase() != model.P_NIGHT {
		t.Fatalf("2周目の夜に入れませんでした (現在: %s)", game.testPhase())
	}
	if game.testRound() != 2 {
		t.Errorf("2周目のラウンドが %d でした (期待値: 2)", game.testRound())
	}
}

func TestNoAccusationsSkipsToNight(t *testing.T) {
	t.Log("シナリオ: 告発が1件もないラウンドは弁明と投票を飛ばして夜に戻る")
	game := newTestGame(t)
	game.Start()
	game.advancePhase(model.E_TIMER_EXPIRED, nil)

	humans := game.testHumans()
	agents := game.testAgents()
	game.HandleNightKill(humans[0].ID, agents[0].Name)
	game.HandleNightKill(humans[1].ID, agents[0].Name)
	waitForPhase(t, game, model.P_DAY_ANNOUNCEMENT)

	game.advancePhase(model.E_TIMER_EXPIRED, nil)
	game.advancePhase(model.E_TIMER_EXPIRED, nil)
	if game.testPhase() != model.P_DAY_ACCUSATION {
		t.Fatalf("告発フェーズに入れませんでした (現在: %s)", game.testPhase())
	}
	game.advancePhase(model.E_TIMER_EXPIRED, nil)
	if game.testPhase() != model.P_NIGHT {
		t.Errorf("告発なしの遷移先が %s でした (期待値: %s)", game.testPhase(), model.P_NIGHT)
	}
	if game.testRound() != 2 {
		t.Errorf("夜に戻った際のラウンドが %d でした (期待値: 2)", game.testRound())
	}
}

func TestWrongPhaseRejections(t *testing.T) {
	t.Log("フェーズ制約: フェーズ外のアクションは拒否される")
	game := newTestGame(t)
	game.Start()

	humans := game.testHumans()
	if _, rejection := game.HandleNightKill(humans[0].ID, "Bob"); rejection == nil {
		t.Error("開始前フェーズでの襲撃投票が拒否されませんでした")
	} else if rejection.Code != model.REJ_WRONG_PHASE {
		t.Errorf("拒否コードが %s でした (期待値: %s)", rejection.Code, model.REJ_WRONG_PHASE)
	}
	if _, rejection := game.HandleVote(humans[0].ID, model.SkipVote); rejection == nil {
		t.Error("開始前フェーズでの投票が拒否されませんでした")
	}
	if _, rejection := game.HandleDayDiscuss("Nobody", "hello"); rejection == nil {
		t.Error("フェーズ外のアクションが拒否されませんでした")
	}
}

func TestTargetResolution(t *testing.T) {
	t.Log("ターゲット解決: 誤記には提案を返すが自動訂正はしない")
	game := newTestGame(t)
	game.Start()
	game.advancePhase(model.E_TIMER_EXPIRED, nil)

	humans := game.testHumans()
	agents := game.testAgents()
	typo := agents[0].Name + "x"
	_, rejection := game.HandleNightKill(humans[0].ID, typo)
	if rejection == nil {
		t.Fatal("誤記のターゲットが拒否されませんでした")
	}
	if rejection.Code != model.REJ_PLAYER_NOT_FOUND {
		t.Errorf("拒否コードが %s でした (期待値: %s)", rejection.Code, model.REJ_PLAYER_NOT_FOUND)
	}
	if suggestion, exists := rejection.Details["suggestion"]; !exists || suggestion != agents[0].Name {
		t.Errorf("提案が %v でした (期待値: %s)", suggestion, agents[0].Name)
	}

	if _, rejection := game.HandleNightKill(humans[0].ID, humans[0].Name); rejection == nil {
		t.Error("自分自身へのターゲット指定が拒否されませんでした")
	}
}

func TestMessageQuota(t *testing.T) {
	t.Log("メッセージ上限: フェーズごとの上限を超えた発言は拒否される")
	game := newTestGame(t)
	game.Start()
	game.advancePhase(model.E_TIMER_EXPIRED, nil)

	human := game.testHumans()[0]
	for i := 0; i < 2; i++ {
		if _, rejection := game.HandleNightDiscuss(human.ID, "密談"); rejection != nil {
			t.Fatalf("%d回目の密談が拒否されました: %v", i+1, rejection)
		}
	}
	_, rejection := game.HandleNightDiscuss(human.ID, "もう一言")
	if rejection == nil {
		t.Fatal("上限超過の密談が拒否されませんでした")
	}
	if rejection.Code != model.REJ_MESSAGE_QUOTA {
		t.Errorf("拒否コードが %s でした (期待値: %s)", rejection.Code, model.REJ_MESSAGE_QUOTA)
	}
}

func TestNightMessagesVisibility(t *testing.T) {
	t.Log("夜間密談: 人間陣営のみが閲覧でき、エージェントには開示されない")
	game := newTestGame(t)
	game.Start()
	game.advancePhase(model.E_TIMER_EXPIRED, nil)

	humans := game.testHumans()
	agents := game.testAgents()
	game.HandleNightDiscuss(humans[0].ID, "標的を決めよう")

	messages, rejection := game.NightMessages(humans[1].ID)
	if rejection != nil {
		t.Fatalf("人間陣営の閲覧が拒否されました: %v", rejection)
	}
	if len(messages) != 1 {
		t.Errorf("密談の件数が %d でした (期待値: 1)", len(messages))
	}
	if _, rejection := game.NightMessages(agents[0].ID); rejection == nil {
		t.Error("エージェントの閲覧が拒否されませんでした")
	}
}

func TestNightFallbackWhenNoVotes(t *testing.T) {
	t.Log("夜明け解決: 襲撃投票が空の場合は生存エージェントからランダムに犠牲者が選ばれる")
	game := newTestGame(t)
	game.Start()
	game.advancePhase(model.E_TIMER_EXPIRED, nil)

	game.advancePhase(model.E_TIMER_EXPIRED, nil)
	if game.testPhase() != model.P_DAY_ANNOUNCEMENT {
		t.Fatalf("朝フェーズに入れませんでした (現在: %s)", game.testPhase())
	}
	if len(game.testAgents()) != 3 {
		t.Errorf("生存エージェントが %d 人でした (期待値: 3)", len(game.testAgents()))
	}
	for _, human := range game.testHumans() {
		if human.ConsecutiveTimeouts != 1 {
			t.Errorf("未投票の人間のタイムアウト回数が %d でした (期待値: 1)", human.ConsecutiveTimeouts)
		}
	}
}

func TestConsecutiveTimeoutsDisconnect(t *testing.T) {
	t.Log("タイムアウト: 3ラウンド連続で未行動の人間は切断扱いで追放される")
	game := newTestGame(t)
	game.Start()
	game.advancePhase(model.E_TIMER_EXPIRED, nil)

	humans := game.testHumans()
	humans[0].ConsecutiveTimeouts = 2
	game.mu.Lock()
	game.resolveNightLocked()
	game.mu.Unlock()

	if humans[0].IsAlive {
		t.Error("3回連続タイムアウトの人間が追放されていません")
	}
	if humans[0].EliminatedCause == nil || *humans[0].EliminatedCause != model.C_DISCONNECTED {
		t.Errorf("追放理由が %v でした (期待値: %s)", humans[0].EliminatedCause, model.C_DISCONNECTED)
	}
}

func TestAgentsWinWhenHumansEliminated(t *testing.T) {
	t.Log("勝敗: 人間が全滅したらエージェント陣営の勝利でマッチが終了する")
	game := newTestGame(t)
	game.Start()
	game.advancePhase(model.E_TIMER_EXPIRED, nil)

	game.mu.Lock()
	for _, human := range game.aliveHumansLocked() {
		game.eliminateLocked(human.ID, model.C_VOTED_OUT)
	}
	game.mu.Unlock()

	game.advancePhase(model.E_TIMER_EXPIRED, nil)
	if game.testPhase() != model.P_ENDED {
		t.Fatalf("マッチが終了していません (現在: %s)", game.testPhase())
	}
	game.mu.Lock()
	winner := game.winner
	game.mu.Unlock()
	if winner != model.T_AGENT {
		t.Errorf("勝者が %s でした (期待値: %s)", winner, model.T_AGENT)
	}
	if _, rejection := game.HandleDayDiscuss("Alice", "まだ話せる?"); rejection == nil {
		t.Error("終了後のアクションが拒否されませんでした")
	} else if rejection.Code != model.REJ_MATCH_NOT_ACTIVE {
		t.Errorf("拒否コードが %s でした (期待値: %s)", rejection.Code, model.REJ_MATCH_NOT_ACTIVE)
	}
}

func TestHumansWinWhenEqualNumbers(t *testing.T) {
	t.Log("勝敗: 人間がエージェントと同数以上になったら人間陣営の勝利で終了する")
	game := newTestGame(t)
	game.Start()
	game.advancePhase(model.E_TIMER_EXPIRED, nil)

	game.mu.Lock()
	agents := game.aliveAgentsLocked()
	game.eliminateLocked(agents[0].ID, model.C_NIGHT_KILL)
	game.eliminateLocked(agents[1].ID, model.C_NIGHT_KILL)
	game.mu.Unlock()

	game.advancePhase(model.E_TIMER_EXPIRED, nil)
	if game.testPhase() != model.P_ENDED {
		t.Fatalf("マッチが終了していません (現在: %s)", game.testPhase())
	}
	game.mu.Lock()
	winner := game.winner
	game.mu.Unlock()
	if winner != model.T_HUMAN {
		t.Errorf("勝者が %s でした (期待値: %s)", winner, model.T_HUMAN)
	}
}

func TestSnapshotHidesRolesUntilEnd(t *testing.T) {
	t.Log("状態照会: 終了前のスナップショットは生存者の役職を開示しない")
	game := newTestGame(t)
	game.Start()

	snapshot := game.Snapshot("Alice")
	if snapshot.FinalRoles != nil {
		t.Error("進行中のスナップショットに最終役職が含まれています")
	}
	if snapshot.You == nil || snapshot.You.Name != "Alice" {
		t.Errorf("本人ビューが %+v でした (期待値: Alice)", snapshot.You)
	}
	if len(snapshot.Alive) != 6 {
		t.Errorf("生存者数が %d でした (期待値: 6)", len(snapshot.Alive))
	}

	game.mu.Lock()
	game.endLocked(model.T_AGENT, "test")
	game.mu.Unlock()
	snapshot = game.Snapshot("")
	if len(snapshot.FinalRoles) != 6 {
		t.Errorf("終了後の最終役職が %d 件でした (期待値: 6)", len(snapshot.FinalRoles))
	}
}

func TestRoleViewRevealsTeammates(t *testing.T) {
	t.Log("役職照会: 人間陣営には仲間の名前が開示され、エージェントには開示されない")
	game := newTestGame(t)
	game.Start()

	humans := game.testHumans()
	agents := game.testAgents()

	briefing, rejection := game.RoleView(humans[0].ID)
	if rejection != nil {
		t.Fatalf("役職照会が拒否されました: %v", rejection)
	}
	if len(briefing.Teammates) != 1 || briefing.Teammates[0] != humans[1].Name {
		t.Errorf("仲間の開示が %v でした (期待値: [%s])", briefing.Teammates, humans[1].Name)
	}

	briefing, rejection = game.RoleView(agents[0].ID)
	if rejection != nil {
		t.Fatalf("役職照会が拒否されました: %v", rejection)
	}
	if len(briefing.Teammates) != 0 {
		t.Errorf("エージェントに仲間が開示されました: %v", briefing.Teammates)
	}

	if _, rejection := game.RoleView("Nobody"); rejection == nil {
		t.Error("非参加者の役職照会が拒否されませんでした")
	}
}

func TestStrayTimerIsNoOp(t *testing.T) {
	t.Log("タイマー: キャンセル済み世代のタイマー発火はフェーズを進めない")
	game := newTestGame(t)
	game.Start()
	game.advancePhase(model.E_TIMER_EXPIRED, nil)

	game.mu.Lock()
	staleGen := game.timerGen
	game.cancelTimerLocked()
	game.mu.Unlock()

	game.onPhaseTimeout(staleGen)
	if game.testPhase() != model.P_NIGHT {
		t.Errorf("旧世代のタイマー発火でフェーズが %s に進みました", game.testPhase())
	}
}
