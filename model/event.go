package model

import "time"

type EventKind string

const (
	EV_MATCH_CREATED EventKind = "match_created"
	EV_PHASE_CHANGE  EventKind = "phase_change"
	EV_NIGHT_MESSAGE EventKind = "night_message"
	EV_MESSAGE       EventKind = "message"
	EV_KILL_VOTE     EventKind = "kill_vote"
	EV_NIGHT_KILL    EventKind = "night_kill"
	EV_ACCUSATION    EventKind = "accusation"
	EV_DEFENSE       EventKind = "defense"
	EV_VOTE_CAST     EventKind = "vote_cast"
	EV_VOTE_TIMEOUT  EventKind = "vote_timeout"
	EV_VOTE_RESULT   EventKind = "vote_result"
	EV_ELIMINATION   EventKind = "elimination"
	EV_GAME_END      EventKind = "game_end"
)

// Event は永続化コラボレータへ渡す監査レコードである
type Event struct {
	ID        string         `json:"id"`
	MatchID   string         `json:"match_id"`
	Round     int            `json:"round"`
	Phase     Phase          `json:"phase"`
	Kind      EventKind      `json:"kind"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

// BroadcastPacket は観戦者向けのライブ配信パケットである
// 監査レコードと内容等価だが、フェーズタイマーの導出フィールドを送信時に再計算して持つ
type BroadcastPacket struct {
	Event
	Idx             int        `json:"idx"`
	PhaseEndsAt     *time.Time `json:"phase_ends_at,omitempty"`
	PhaseDurationMS int64      `json:"phase_duration_ms"`
}

type ChatMessage struct {
	From      string    `json:"from"`
	Message   string    `json:"message"`
	Round     int       `json:"round"`
	Phase     Phase     `json:"phase"`
	Timestamp time.Time `json:"timestamp"`
}
