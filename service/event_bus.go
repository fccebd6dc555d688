package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/amongais/amongais-server/model"
)

const (
	TopicAudit     = "match.audit"
	TopicBroadcast = "match.broadcast"
)

// EventBus はエンジンと監査・配信・ロビーの各コンシューマを疎結合にするプロセス内 Pub/Sub である
// 低速なコンシューマがフェーズ進行をブロックしないよう、出力チャネルはバッファリングされる
type EventBus struct {
	pubsub *gochannel.GoChannel
}

func NewEventBus() *EventBus {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		watermill.NewSlogLogger(slog.Default()),
	)
	return &EventBus{pubsub: pubsub}
}

func (b *EventBus) PublishAudit(event model.Event) {
	b.publish(TopicAudit, event)
}

func (b *EventBus) PublishBroadcast(packet model.BroadcastPacket) {
	b.publish(TopicBroadcast, packet)
}

func (b *EventBus) publish(topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("イベントのJSON化に失敗しました", "topic", topic, "error", err)
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	if err := b.pubsub.Publish(topic, msg); err != nil {
		slog.Error("イベントの配信に失敗しました", "topic", topic, "error", err)
	}
}

func (b *EventBus) SubscribeAudit(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, TopicAudit)
}

func (b *EventBus) SubscribeBroadcast(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, TopicBroadcast)
}

func (b *EventBus) Close() {
	if err := b.pubsub.Close(); err != nil {
		slog.Error("イベントバスのクローズに失敗しました", "error", err)
	}
}
