package util

import "testing"

func TestFindClosestName(t *testing.T) {
	t.Log("あいまい一致: 編集距離が閾値以内の最近傍候補を提案する")
	candidates := []string{"Alice", "Bob", "Carol"}
	if suggestion := FindClosestName("Alise", candidates, 3); suggestion != "Alice" {
		t.Errorf("提案が %q でした (期待値: Alice)", suggestion)
	}
	if suggestion := FindClosestName("carol", candidates, 3); suggestion != "Carol" {
		t.Errorf("大文字小文字を無視した提案が %q でした (期待値: Carol)", suggestion)
	}
}

func TestFindClosestNameBeyondDistance(t *testing.T) {
	t.Log("あいまい一致: 閾値を超える入力には何も提案しない")
	candidates := []string{"Alice", "Bob"}
	if suggestion := FindClosestName("Zzzzzzzz", candidates, 3); suggestion != "" {
		t.Errorf("提案が %q でした (期待値: 空文字)", suggestion)
	}
}

func TestFindClosestNamePicksNearest(t *testing.T) {
	t.Log("あいまい一致: 複数候補のうち最も近い名前を選ぶ")
	candidates := []string{"Dave", "Davide"}
	if suggestion := FindClosestName("Dav", candidates, 3); suggestion != "Dave" {
		t.Errorf("提案が %q でした (期待値: Dave)", suggestion)
	}
}
