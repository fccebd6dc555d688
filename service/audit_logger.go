package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/amongais/amongais-server/model"
)

// AuditLogger は永続化コラボレータである。マッチごとの追記専用 JSONL と
// ステータスを持つ matches.json 索引を書き出す。エンジン状態の第二の書き手にはならない
type AuditLogger struct {
	outputDir        string
	templateFilename string

	mu    sync.Mutex
	index map[string]*AuditIndexEntry
}

type AuditIndexEntry struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	matchStatusInProgress = "in_progress"
	matchStatusEnded      = "ended"
)

func NewAuditLogger(config model.Config) *AuditLogger {
	logger := &AuditLogger{
		outputDir:        config.AuditLogger.OutputDir,
		templateFilename: config.AuditLogger.Filename,
		index:            make(map[string]*AuditIndexEntry),
	}
	if err := os.MkdirAll(logger.outputDir, 0755); err != nil {
		slog.Error("出力ディレクトリの作成に失敗しました", "error", err)
		return nil
	}
	// 再起動復旧のため、既存の索引は上書きせず読み込む
	indexPath := filepath.Join(logger.outputDir, "matches.json")
	if data, err := os.ReadFile(indexPath); err == nil {
		var entries []*AuditIndexEntry
		if err := json.Unmarshal(data, &entries); err == nil {
			for _, entry := range entries {
				logger.index[entry.ID] = entry
			}
		}
	} else {
		logger.writeIndexLocked()
	}
	slog.Info("監査ロガーを初期化しました", "output_dir", logger.outputDir)
	return logger
}

func (a *AuditLogger) Run(ctx context.Context, bus *EventBus) error {
	messages, err := bus.SubscribeAudit(ctx)
	if err != nil {
		return err
	}
	for msg := range messages {
		var event model.Event
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			slog.Error("監査イベントのパースに失敗しました", "error", err)
			msg.Ack()
			continue
		}
		a.Append(event)
		msg.Ack()
	}
	return nil
}

func (a *AuditLogger) Append(event model.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry, exists := a.index[event.MatchID]
	if !exists {
		filename := strings.ReplaceAll(a.templateFilename, "{match_id}", event.MatchID)
		filename = strings.ReplaceAll(filename, "{timestamp}", fmt.Sprintf("%d", time.Now().Unix()))
		entry = &AuditIndexEntry{
			ID:       event.MatchID,
			Filename: filename,
			Status:   matchStatusInProgress,
		}
		a.index[event.MatchID] = entry
	}
	entry.UpdatedAt = time.Now()
	if event.Kind == model.EV_GAME_END {
		entry.Status = matchStatusEnded
	}

	a.appendLineLocked(entry.Filename, event)
	a.writeIndexLocked()
}

// TerminateInProgress は再起動時に進行中のまま残っていたマッチを一律に終了扱いにする
// フェーズ途中からの再開は行わない
func (a *AuditLogger) TerminateInProgress(reason string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	terminated := make([]string, 0)
	for id, entry := range a.index {
		if entry.Status != matchStatusInProgress {
			continue
		}
		event := model.Event{
			ID:      ulid.Make().String(),
			MatchID: id,
			Phase:   model.P_ENDED,
			Kind:    model.EV_GAME_END,
			Payload: map[string]any{
				"winner": model.T_NONE,
				"reason": reason,
			},
			Timestamp: time.Now(),
		}
		a.appendLineLocked(entry.Filename, event)
		entry.Status = matchStatusEnded
		entry.UpdatedAt = time.Now()
		terminated = append(terminated, id)
		slog.Warn("進行中のマッチを強制終了しました", "id", id, "reason", reason)
	}
	a.writeIndexLocked()
	return terminated
}

func (a *AuditLogger) InProgressIDs() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]string, 0)
	for id, entry := range a.index {
		if entry.Status == matchStatusInProgress {
			ids = append(ids, id)
		}
	}
	return ids
}

func (a *AuditLogger) appendLineLocked(filename string, event model.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("監査イベントのJSON化に失敗しました", "error", err)
		return
	}
	filePath := filepath.Join(a.outputDir, fmt.Sprintf("%s.jsonl", filename))
	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		slog.Error("監査ファイルのオープンに失敗しました", "error", err, "path", filePath)
		return
	}
	defer file.Close()
	if _, err := file.Write(append(data, '\n')); err != nil {
		slog.Error("監査ファイルの書き込みに失敗しました", "error", err, "path", filePath)
	}
}

func (a *AuditLogger) writeIndexLocked() {
	entries := make([]*AuditIndexEntry, 0, len(a.index))
	for _, entry := range a.index {
		entries = append(entries, entry)
	}
	data, err := json.Marshal(entries)
	if err != nil {
		slog.Error("マッチ一覧のJSON生成に失敗しました", "error", err)
		return
	}
	filePath := filepath.Join(a.outputDir, "matches.json")
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		slog.Error("マッチ一覧ファイルの作成に失敗しました", "error", err)
	}
}
