package model

import (
	"log/slog"
	"os"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Web struct {
			Host string `yaml:"host"`
			Port int    `yaml:"port"`
		} `yaml:"web"`
		Authentication struct {
			Enable bool   `yaml:"enable"`
			Secret string `yaml:"secret"`
		} `yaml:"authentication"`
	} `yaml:"server"`
	Game struct {
		PlayerCount int `yaml:"player_count"`
		HumanCount  int `yaml:"human_count"`
		Phase       struct {
			Starting        int `yaml:"starting"`
			Night           int `yaml:"night"`
			DayAnnouncement int `yaml:"day_announcement"`
			DayDiscussion   int `yaml:"day_discussion"`
			DayAccusation   int `yaml:"day_accusation"`
			DayDefense      int `yaml:"day_defense"`
			DayVote         int `yaml:"day_vote"`
			DayResult       int `yaml:"day_result"`
		} `yaml:"phase"`
		Talk struct {
			MaxCount struct {
				PerPhase int `yaml:"per_phase"`
			} `yaml:"max_count"`
		} `yaml:"talk"`
		Whisper struct {
			MaxCount struct {
				PerPhase int `yaml:"per_phase"`
			} `yaml:"max_count"`
		} `yaml:"whisper"`
		Timeout struct {
			MaxConsecutive int `yaml:"max_consecutive"`
		} `yaml:"timeout"`
		Fuzzy struct {
			MaxDistance int `yaml:"max_distance"`
		} `yaml:"fuzzy"`
		EarlyAdvanceDelay int `yaml:"early_advance_delay"`
	} `yaml:"game"`
	AuditLogger struct {
		Enable    bool   `yaml:"enable"`
		OutputDir string `yaml:"output_dir"`
		Filename  string `yaml:"filename"`
	} `yaml:"audit_logger"`
	Broadcaster struct {
		Enable bool `yaml:"enable"`
	} `yaml:"broadcaster"`
}

func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("設定ファイルの読み込みに失敗しました", "error", err)
		return nil, err
	}
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		slog.Error("設定ファイルのパースに失敗しました", "error", err)
		return nil, err
	}
	return &config, nil
}
