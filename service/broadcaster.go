package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/amongais/amongais-server/model"
)

// Broadcaster は観戦者へのベストエフォートなファンアウトである
// 追いつけないリスナーはログに記録して切り離し、フェーズ進行を決してブロックしない
type Broadcaster struct {
	mu        sync.Mutex
	nextID    int
	listeners map[string]map[int]chan model.BroadcastPacket
}

const listenerBuffer = 64

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		listeners: make(map[string]map[int]chan model.BroadcastPacket),
	}
}

func (b *Broadcaster) AddListener(matchID string) (int, <-chan model.BroadcastPacket) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	if b.listeners[matchID] == nil {
		b.listeners[matchID] = make(map[int]chan model.BroadcastPacket)
	}
	channel := make(chan model.BroadcastPacket, listenerBuffer)
	b.listeners[matchID][id] = channel
	slog.Info("観戦リスナーを追加しました", "match_id", matchID, "listener", id)
	return id, channel
}

func (b *Broadcaster) RemoveListener(matchID string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeListenerLocked(matchID, id)
}

func (b *Broadcaster) removeListenerLocked(matchID string, id int) {
	if channels, exists := b.listeners[matchID]; exists {
		if channel, exists := channels[id]; exists {
			close(channel)
			delete(channels, id)
		}
		if len(channels) == 0 {
			delete(b.listeners, matchID)
		}
	}
}

func (b *Broadcaster) Broadcast(packet model.BroadcastPacket) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, channel := range b.listeners[packet.MatchID] {
		select {
		case channel <- packet:
		default:
			slog.Warn("リスナーが追いついていないため切り離します", "match_id", packet.MatchID, "listener", id)
			b.removeListenerLocked(packet.MatchID, id)
		}
	}
}

func (b *Broadcaster) CloseMatch(matchID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id := range b.listeners[matchID] {
		b.removeListenerLocked(matchID, id)
	}
}

func (b *Broadcaster) ListenerCount(matchID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners[matchID])
}

func (b *Broadcaster) Run(ctx context.Context, bus *EventBus) error {
	messages, err := bus.SubscribeBroadcast(ctx)
	if err != nil {
		return err
	}
	for msg := range messages {
		var packet model.BroadcastPacket
		if err := json.Unmarshal(msg.Payload, &packet); err != nil {
			slog.Error("配信パケットのパースに失敗しました", "error", err)
			msg.Ack()
			continue
		}
		b.Broadcast(packet)
		if packet.Kind == model.EV_GAME_END {
			b.CloseMatch(packet.MatchID)
		}
		msg.Ack()
	}
	return nil
}
