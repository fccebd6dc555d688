package model

import (
	"errors"
	"time"
)

type Setting struct {
	PlayerCount            int                     `json:"playerCount"`
	HumanCount             int                     `json:"humanCount"`
	PhaseDurations         map[Phase]time.Duration `json:"-"`
	DayMessagesPerPhase    int                     `json:"dayMessagesPerPhase"`
	NightMessagesPerPhase  int                     `json:"nightMessagesPerPhase"`
	MaxConsecutiveTimeouts int                     `json:"maxConsecutiveTimeouts"`
	FuzzyMaxDistance       int                     `json:"-"`
	EarlyAdvanceDelay      time.Duration           `json:"-"`
}

func NewSetting(config Config) (*Setting, error) {
	if config.Game.HumanCount <= 0 || config.Game.HumanCount >= config.Game.PlayerCount {
		return nil, errors.New("人間の人数がプレイヤー数に対して不正です")
	}
	setting := Setting{
		PlayerCount: config.Game.PlayerCount,
		HumanCount:  config.Game.HumanCount,
		PhaseDurations: map[Phase]time.Duration{
			P_STARTING:         time.Duration(config.Game.Phase.Starting) * time.Second,
			P_NIGHT:            time.Duration(config.Game.Phase.Night) * time.Second,
			P_DAY_ANNOUNCEMENT: time.Duration(config.Game.Phase.DayAnnouncement) * time.Second,
			P_DAY_DISCUSSION:   time.Duration(config.Game.Phase.DayDiscussion) * time.Second,
			P_DAY_ACCUSATION:   time.Duration(config.Game.Phase.DayAccusation) * time.Second,
			P_DAY_DEFENSE:      time.Duration(config.Game.Phase.DayDefense) * time.Second,
			P_DAY_VOTE:         time.Duration(config.Game.Phase.DayVote) * time.Second,
			P_DAY_RESULT:       time.Duration(config.Game.Phase.DayResult) * time.Second,
		},
		DayMessagesPerPhase:    config.Game.Talk.MaxCount.PerPhase,
		NightMessagesPerPhase:  config.Game.Whisper.MaxCount.PerPhase,
		MaxConsecutiveTimeouts: config.Game.Timeout.MaxConsecutive,
		FuzzyMaxDistance:       config.Game.Fuzzy.MaxDistance,
		EarlyAdvanceDelay:      time.Duration(config.Game.EarlyAdvanceDelay) * time.Millisecond,
	}
	if setting.FuzzyMaxDistance <= 0 {
		setting.FuzzyMaxDistance = 3
	}
	if setting.EarlyAdvanceDelay <= 0 {
		setting.EarlyAdvanceDelay = 100 * time.Millisecond
	}
	return &setting, nil
}

func (s Setting) PhaseDuration(phase Phase) time.Duration {
	if duration, exists := s.PhaseDurations[phase]; exists {
		return duration
	}
	return 0
}
