package core

import (
	"testing"
	"time"

	"github.com/amongais/amongais-server/model"
)

func testRegistry() *Registry {
	setting := &model.Setting{
		PlayerCount:            6,
		HumanCount:             2,
		PhaseDurations:         map[model.Phase]time.Duration{},
		DayMessagesPerPhase:    30,
		NightMessagesPerPhase:  5,
		MaxConsecutiveTimeouts: 3,
		FuzzyMaxDistance:       3,
		EarlyAdvanceDelay:      5 * time.Millisecond,
	}
	return NewRegistry(setting, nil)
}

func testRoster() []model.RosterEntry {
	names := []string{"Alice", "Bob", "Carol", "Dave", "Eve", "Frank"}
	roster := make([]model.RosterEntry, 0, len(names))
	for _, name := range names {
		roster = append(roster, model.RosterEntry{ID: name, Name: name})
	}
	return roster
}

func TestStartMatchIsIdempotent(t *testing.T) {
	t.Log("レジストリ: 同一IDの二重開始は先行インスタンスを返す")
	registry := testRegistry()
	first, err := registry.StartMatch("match-1", testRoster())
	if err != nil {
		t.Fatalf("マッチの開始に失敗しました: %v", err)
	}
	second, err := registry.StartMatch("match-1", testRoster())
	if err != nil {
		t.Fatalf("二重開始がエラーになりました: %v", err)
	}
	if first != second {
		t.Error("二重開始で別のインスタンスが作成されました")
	}
	if registry.Count() != 1 {
		t.Errorf("マッチ数が %d でした (期待値: 1)", registry.Count())
	}
}

func TestStartMatchRejectsBadRoster(t *testing.T) {
	t.Log("レジストリ: 名簿の人数が不正なマッチは登録されない")
	registry := testRegistry()
	if _, err := registry.StartMatch("match-1", testRoster()[:3]); err == nil {
		t.Error("名簿不足のマッチがエラーになりませんでした")
	}
	if registry.Count() != 0 {
		t.Errorf("失敗したマッチが登録されています (件数: %d)", registry.Count())
	}
}

func TestCreateMatchGeneratesID(t *testing.T) {
	t.Log("レジストリ: ID未指定の作成には一意なIDが発行される")
	registry := testRegistry()
	first, err := registry.CreateMatch(testRoster())
	if err != nil {
		t.Fatalf("マッチの作成に失敗しました: %v", err)
	}
	second, err := registry.CreateMatch(testRoster())
	if err != nil {
		t.Fatalf("マッチの作成に失敗しました: %v", err)
	}
	if first.ID == "" || first.ID == second.ID {
		t.Errorf("IDが一意ではありません: %s / %s", first.ID, second.ID)
	}
}

func TestRemove(t *testing.T) {
	t.Log("レジストリ: 撤去したマッチは照会できなくなる")
	registry := testRegistry()
	game, err := registry.StartMatch("match-1", testRoster())
	if err != nil {
		t.Fatalf("マッチの開始に失敗しました: %v", err)
	}
	if _, exists := registry.Get(game.ID); !exists {
		t.Fatal("開始したマッチが照会できません")
	}
	registry.Remove(game.ID)
	if _, exists := registry.Get(game.ID); exists {
		t.Error("撤去したマッチが照会できてしまいます")
	}
	if len(registry.Summaries()) != 0 {
		t.Errorf("撤去後のサマリが %d 件でした (期待値: 0)", len(registry.Summaries()))
	}
}
