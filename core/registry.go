package core

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/amongais/amongais-server/logic"
	"github.com/amongais/amongais-server/model"
	"github.com/amongais/amongais-server/service"
)

// Registry はプロセス内の進行中マッチの表である。グローバル変数ではなく
// コンポジションルートから注入される。同一IDに対する生成は冪等である
type Registry struct {
	mu      sync.Mutex
	matches map[string]*logic.Game
	setting *model.Setting
	bus     *service.EventBus
}

func NewRegistry(setting *model.Setting, bus *service.EventBus) *Registry {
	return &Registry{
		matches: make(map[string]*logic.Game),
		setting: setting,
		bus:     bus,
	}
}

func (r *Registry) CreateMatch(roster []model.RosterEntry) (*logic.Game, error) {
	return r.StartMatch(ulid.Make().String(), roster)
}

// StartMatch は非同期処理の前に同期的にエントリを登録する
// ロビー充足の同時トリガーが同一IDに対して競合しても、後続は先行インスタンスに従う
func (r *Registry) StartMatch(id string, roster []model.RosterEntry) (*logic.Game, error) {
	r.mu.Lock()
	if existing, exists := r.matches[id]; exists {
		r.mu.Unlock()
		return existing, nil
	}
	game, err := logic.NewGame(id, r.setting, roster, r.bus)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.matches[id] = game
	r.mu.Unlock()

	game.Start()
	return game, nil
}

func (r *Registry) Get(id string) (*logic.Game, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	game, exists := r.matches[id]
	return game, exists
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if game, exists := r.matches[id]; exists {
		game.Destroy()
		delete(r.matches, id)
		slog.Info("マッチをレジストリから撤去しました", "id", id)
	}
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.matches)
}

func (r *Registry) Summaries() []logic.MatchSummary {
	r.mu.Lock()
	games := make([]*logic.Game, 0, len(r.matches))
	for _, game := range r.matches {
		games = append(games, game)
	}
	r.mu.Unlock()

	summaries := make([]logic.MatchSummary, 0, len(games))
	for _, game := range games {
		summaries = append(summaries, game.Summary())
	}
	return summaries
}

func (r *Registry) AllFinished() bool {
	r.mu.Lock()
	games := make([]*logic.Game, 0, len(r.matches))
	for _, game := range r.matches {
		games = append(games, game)
	}
	r.mu.Unlock()

	for _, game := range games {
		if !game.IsFinished() {
			return false
		}
	}
	return true
}

// WatchEndings はゲーム終了イベントを購読し、終了したマッチを撤去する
func (r *Registry) WatchEndings(ctx context.Context) error {
	messages, err := r.bus.SubscribeAudit(ctx)
	if err != nil {
		return err
	}
	for msg := range messages {
		var event model.Event
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			msg.Ack()
			continue
		}
		if event.Kind == model.EV_GAME_END {
			r.Remove(event.MatchID)
		}
		msg.Ack()
	}
	return nil
}
