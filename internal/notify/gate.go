// Package notify decides which scored jobs reach the user and hands them to a
// dispatcher.
package notify

import (
	"github.com/spigell/jobradar/internal/model"
)

const (
	DefaultImmediateFloor = 80
	DefaultDigestFloor    = 60
	DefaultDailyCap       = 1
)

type GateConfig struct {
	ImmediateFloor float64 `mapstructure:"immediate-floor" validate:"gte=0,lte=100"`
	DigestFloor    float64 `mapstructure:"digest-floor" validate:"gte=0,lte=100"`
	DailyCap       int     `mapstructure:"daily-cap" validate:"gte=0"`
}

func DefaultGateConfig() GateConfig {
	return GateConfig{
		ImmediateFloor: DefaultImmediateFloor,
		DigestFloor:    DefaultDigestFloor,
		DailyCap:       DefaultDailyCap,
	}
}

type Decision struct {
	Tier   model.Tier
	Reason string
}

// Gate is stateless; the caller supplies the daily count and the
// already-notified flag from the notification ledger.
type Gate struct {
	cfg GateConfig
}

func NewGate(cfg GateConfig) *Gate {
	return &Gate{cfg: cfg}
}

// Decide picks the tier for one scored job. A job already notified to the
// user is always suppressed. An immediate candidate over the daily cap is
// demoted to the digest.
func (g *Gate) Decide(b model.ScoreBreakdown, prefs *model.Preferences, dailySentCount int, alreadyNotified bool) Decision {
	if alreadyNotified {
		return Decision{Tier: model.TierSuppressed, Reason: "already notified"}
	}

	threshold := 0.0
	if prefs != nil {
		threshold = float64(prefs.NotificationThreshold)
	}

	score := b.FinalScore
	if score >= g.cfg.ImmediateFloor && score >= threshold {
		if dailySentCount < g.cfg.DailyCap {
			return Decision{Tier: model.TierImmediate, Reason: "above immediate floor and user threshold"}
		}
		return Decision{Tier: model.TierDigest, Reason: "daily immediate cap reached"}
	}

	if score >= g.cfg.DigestFloor {
		return Decision{Tier: model.TierDigest, Reason: "above digest floor"}
	}

	return Decision{Tier: model.TierSuppressed, Reason: "below digest floor"}
}
