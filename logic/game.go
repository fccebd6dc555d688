package logic

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/amongais/amongais-server/model"
	"github.com/amongais/amongais-server/service"
	"github.com/amongais/amongais-server/util"
)

// Game は1マッチの可変状態を唯一所有するオーケストレータである
// タイマー満了と早期完了の両方が advancePhase に合流し、単一飛行ガードで直列化される
type Game struct {
	ID      string
	setting *model.Setting

	mu        sync.Mutex
	players   []*model.Player
	phase     model.Phase
	round     int
	started   bool
	ended     bool
	advancing bool
	winner    model.Team
	winReason string

	defendants    []string
	nightKills    map[string]string
	nightKillList []model.KillVote
	dayVotes      map[string]string
	dayVoteList   []model.Vote
	accusations   map[string]string
	defenses      map[string]bool
	messageCounts map[string]int
	messages      []model.ChatMessage

	timer       *time.Timer
	timerGen    int
	phaseEndsAt time.Time

	bus      *service.EventBus
	eventIdx int
}

func NewGame(id string, setting *model.Setting, roster []model.RosterEntry, bus *service.EventBus) (*Game, error) {
	if len(roster) != setting.PlayerCount {
		return nil, errors.New("名簿の人数が設定と一致しません")
	}
	if id == "" {
		id = ulid.Make().String()
	}
	assignment := util.AssignRoles(roster, setting.HumanCount)
	players := make([]*model.Player, 0, len(roster))
	for _, entry := range roster {
		players = append(players, model.NewPlayer(entry, assignment[entry.ID]))
	}
	game := &Game{
		ID:            id,
		setting:       setting,
		players:       players,
		nightKills:    make(map[string]string),
		dayVotes:      make(map[string]string),
		accusations:   make(map[string]string),
		defenses:      make(map[string]bool),
		messageCounts: make(map[string]int),
		bus:           bus,
	}
	slog.Info("マッチを作成しました", "id", id, "players", len(players), "humans", setting.HumanCount)
	return game, nil
}

func (g *Game) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started {
		return
	}
	g.started = true
	g.phase = model.P_STARTING
	g.round = 0
	slog.Info("マッチを開始します", "id", g.ID)

	playersPayload := make([]map[string]any, 0, len(g.players))
	for _, player := range g.players {
		playersPayload = append(playersPayload, map[string]any{
			"id":   player.ID,
			"name": player.Name,
			"role": player.Role,
		})
	}
	g.emitEvent(model.EV_MATCH_CREATED, map[string]any{
		"players":      playersPayload,
		"humans_count": g.setting.HumanCount,
	})
	g.enterPhaseLocked()
}

func (g *Game) IsFinished() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ended
}

// Destroy はタイマーを破棄する。マッチ終了後のレジストリからの撤去時に呼ばれる
func (g *Game) Destroy() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelTimerLocked()
}

func (g *Game) schedulePhaseEndLocked() {
	g.cancelTimerLocked()
	duration := g.setting.PhaseDuration(g.phase)
	if duration <= 0 {
		g.phaseEndsAt = time.Time{}
		return
	}
	g.phaseEndsAt = time.Now().Add(duration)
	gen := g.timerGen
	g.timer = time.AfterFunc(duration, func() {
		g.onPhaseTimeout(gen)
	})
}

func (g *Game) cancelTimerLocked() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.timerGen++
}

func (g *Game) onPhaseTimeout(gen int) {
	g.advancePhase(model.E_TIMER_EXPIRED, func() bool {
		// キャンセル済みタイマーの遅延発火は no-op
		return gen == g.timerGen
	})
}

// advancePhase はフェーズ遷移の唯一の入口である。二重進行は黙って無視される
func (g *Game) advancePhase(trigger model.PhaseEvent, stillValid func() bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ended || g.advancing {
		return
	}
	if stillValid != nil && !stillValid() {
		return
	}
	g.advancing = true
	defer func() { g.advancing = false }()
	g.advanceLocked(trigger)
}

func (g *Game) advanceLocked(trigger model.PhaseEvent) {
	g.exitPhaseLocked()

	winner, reason := util.CalcWinSide(g.players)
	context := model.PhaseContext{
		HasAccusations: len(g.defendants) > 0,
		IsGameOver:     winner != model.T_NONE,
	}
	next := model.NextPhase(g.phase, trigger, context)

	if next == model.P_ENDED {
		if context.IsGameOver {
			g.endLocked(winner, reason)
		} else {
			// 正常プレイでは到達しない防御的フォールバック
			slog.Warn("未定義のフェーズ遷移のためマッチを終了します", "id", g.ID, "phase", g.phase, "event", trigger)
			g.endLocked(model.T_NONE, "No matching phase transition")
		}
		return
	}

	if next == model.P_NIGHT && g.phase != model.P_NIGHT {
		g.round++
		slog.Info("ラウンドが進みました", "id", g.ID, "round", g.round)
	}

	g.phase = next
	g.enterPhaseLocked()
}

func (g *Game) exitPhaseLocked() {
	switch g.phase {
	case model.P_NIGHT:
		g.resolveNightLocked()
	case model.P_DAY_ACCUSATION:
		g.defendants = g.distinctAccusationTargetsLocked()
	case model.P_DAY_VOTE:
		g.resolveDayVoteLocked()
	}
}

func (g *Game) enterPhaseLocked() {
	if g.phase == model.P_NIGHT {
		g.nightKills = make(map[string]string)
		g.nightKillList = nil
		g.dayVotes = make(map[string]string)
		g.dayVoteList = nil
		g.accusations = make(map[string]string)
		g.defenses = make(map[string]bool)
		g.messageCounts = make(map[string]int)
		g.defendants = nil
	}
	if g.phase == model.P_DAY_VOTE {
		g.dayVotes = make(map[string]string)
		g.dayVoteList = nil
	}

	g.schedulePhaseEndLocked()
	slog.Info("フェーズに入りました", "id", g.ID, "phase", g.phase, "round", g.round)
	g.emitEvent(model.EV_PHASE_CHANGE, map[string]any{
		"phase": g.phase,
		"round": g.round,
	})
}

func (g *Game) eliminateLocked(playerID string, cause model.EliminationCause) {
	player := util.FindPlayerByID(g.players, playerID)
	if player == nil || !player.IsAlive {
		return
	}
	player.Eliminate(g.round, cause)
	slog.Info("プレイヤーを追放しました", "id", g.ID, "player", player.Name, "cause", cause, "round", g.round)
	g.emitEvent(model.EV_ELIMINATION, map[string]any{
		"player": player.Name,
		"role":   player.Role,
		"cause":  cause,
		"round":  g.round,
	})
}

// endLocked の二重呼び出しは no-op である。タイマー経路とリゾルバ経路が
// 同時にゲーム終了を結論づけることがあるためエラーにはしない
func (g *Game) endLocked(winner model.Team, reason string) {
	if g.ended {
		return
	}
	g.ended = true
	g.phase = model.P_ENDED
	g.winner = winner
	g.winReason = reason
	g.cancelTimerLocked()

	finalRoles := make(map[string]string)
	for _, player := range g.players {
		finalRoles[player.Name] = player.Role.Name
	}
	g.emitEvent(model.EV_GAME_END, map[string]any{
		"winner":      winner,
		"reason":      reason,
		"final_roles": finalRoles,
	})
	slog.Info("マッチが終了しました", "id", g.ID, "winner", winner, "reason", reason)
}

func (g *Game) emitEvent(kind model.EventKind, payload map[string]any) {
	if g.bus == nil {
		return
	}
	event := model.Event{
		ID:        ulid.Make().String(),
		MatchID:   g.ID,
		Round:     g.round,
		Phase:     g.phase,
		Kind:      kind,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	g.bus.PublishAudit(event)

	g.eventIdx++
	packet := model.BroadcastPacket{
		Event:           event,
		Idx:             g.eventIdx,
		PhaseDurationMS: g.setting.PhaseDuration(g.phase).Milliseconds(),
	}
	if g.timer != nil && !g.phaseEndsAt.IsZero() {
		endsAt := g.phaseEndsAt
		packet.PhaseEndsAt = &endsAt
	}
	g.bus.PublishBroadcast(packet)
}
