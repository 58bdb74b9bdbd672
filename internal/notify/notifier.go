package notify

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/jobradar/internal/apperrors"
	"github.com/spigell/jobradar/internal/clock"
	"github.com/spigell/jobradar/internal/logger"
	"github.com/spigell/jobradar/internal/model"
)

// DailyWindow is the rolling window the immediate cap applies to.
const DailyWindow = 24 * time.Hour

// ErrAlreadyRecorded is returned by a Ledger when a record for the same user
// and job exists.
var ErrAlreadyRecorded = errors.New("notification already recorded")

// Ledger is the part of persistence that remembers sent notifications.
type Ledger interface {
	// HasNotification reports whether any of jobIDs was recorded for the user,
	// either as a record's job id or as one of its aliases.
	HasNotification(ctx context.Context, userID string, jobIDs []string) (bool, error)
	CountImmediateSince(ctx context.Context, userID string, since time.Time) (int, error)
	RecordNotification(ctx context.Context, rec model.NotificationRecord) error
}

// Notification is one message handed to the notification collaborator. An
// immediate notification carries one job, a digest carries all of them.
type Notification struct {
	UserID  string             `json:"user_id"`
	Channel string             `json:"channel"`
	Tier    model.Tier         `json:"tier"`
	Jobs    []model.JobSummary `json:"jobs"`
	SentAt  time.Time          `json:"sent_at"`
}

type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

type Result struct {
	Immediate      int `json:"immediate"`
	Digest         int `json:"digest"`
	Suppressed     int `json:"suppressed"`
	DispatchErrors int `json:"dispatch_errors"`
}

type Notifier struct {
	gate       *Gate
	ledger     Ledger
	dispatcher Dispatcher
	channel    string
	clock      clock.Clock
	logger     *zap.Logger
}

func NewNotifier(gate *Gate, ledger Ledger, dispatcher Dispatcher, c clock.Clock, log *zap.Logger) *Notifier {
	return &Notifier{
		gate:       gate,
		ledger:     ledger,
		dispatcher: dispatcher,
		channel:    model.ChannelDefault,
		clock:      clock.OrSystem(c),
		logger:     logger.OrNop(log),
	}
}

// Process runs every scored job through the gate, highest score first, so
// the daily immediate slot goes to the best match. Each record is written
// before it is dispatched; a dispatch failure is logged and counted but the
// record stays, so the job is never sent twice.
func (n *Notifier) Process(ctx context.Context, prefs *model.Preferences, scored []model.ScoredJob) (Result, error) {
	var res Result
	if prefs == nil {
		return res, apperrors.InvalidInput("preferences are required", nil)
	}
	userID := prefs.UserID
	log := n.logger.With(zap.String(logger.FieldUserID, userID))

	ordered := make([]model.ScoredJob, len(scored))
	copy(ordered, scored)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Breakdown.FinalScore > ordered[j].Breakdown.FinalScore
	})

	now := n.clock.Now().UTC()
	sent, err := n.ledger.CountImmediateSince(ctx, userID, now.Add(-DailyWindow))
	if err != nil {
		return res, apperrors.Persistence("count immediate notifications", err).WithUser(userID)
	}

	var digest []model.JobSummary
	for _, sj := range ordered {
		already, err := n.ledger.HasNotification(ctx, userID, sj.Job.LedgerIDs())
		if err != nil {
			return res, apperrors.Persistence("check notification ledger", err).WithUser(userID)
		}

		decision := n.gate.Decide(sj.Breakdown, prefs, sent, already)
		if decision.Tier == model.TierSuppressed {
			res.Suppressed++
			log.Debug("notification suppressed", zap.String(logger.FieldJobID, sj.Job.ID), zap.String("reason", decision.Reason))
			continue
		}

		err = n.ledger.RecordNotification(ctx, model.NotificationRecord{
			ID:      uuid.NewString(),
			UserID:  userID,
			JobID:      sj.Job.ID,
			JobAliases: sj.Job.AliasIDs,
			Channel:    n.channel,
			Tier:       decision.Tier,
			SentAt:     now,
		})
		if errors.Is(err, ErrAlreadyRecorded) {
			res.Suppressed++
			continue
		}
		if err != nil {
			return res, apperrors.Persistence("record notification", err).WithUser(userID)
		}

		if decision.Tier == model.TierDigest {
			res.Digest++
			digest = append(digest, model.SummaryOf(sj))
			continue
		}

		sent++
		res.Immediate++
		n.dispatch(ctx, log, &res, Notification{
			UserID:  userID,
			Channel: n.channel,
			Tier:    model.TierImmediate,
			Jobs:    []model.JobSummary{model.SummaryOf(sj)},
			SentAt:  now,
		})
	}

	if len(digest) > 0 {
		n.dispatch(ctx, log, &res, Notification{
			UserID:  userID,
			Channel: n.channel,
			Tier:    model.TierDigest,
			Jobs:    digest,
			SentAt:  now,
		})
	}

	log.Info("notifications processed",
		zap.Int("immediate", res.Immediate),
		zap.Int("digest", res.Digest),
		zap.Int("suppressed", res.Suppressed),
	)
	return res, nil
}

func (n *Notifier) dispatch(ctx context.Context, log *zap.Logger, res *Result, msg Notification) {
	if n.dispatcher == nil {
		return
	}
	if err := n.dispatcher.Dispatch(ctx, msg); err != nil {
		res.DispatchErrors++
		log.Error("notification dispatch failed", zap.String("tier", string(msg.Tier)), zap.Int("jobs", len(msg.Jobs)), zap.Error(err))
	}
}
