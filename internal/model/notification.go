package model

import "time"

type Tier string

const (
	TierImmediate  Tier = "immediate"
	TierDigest     Tier = "digest"
	TierSuppressed Tier = "suppressed"
)

const ChannelDefault = "default"

// NotificationRecord is written once per (user, job) and never updated.
type NotificationRecord struct {
	ID      string    `json:"id"`
	UserID  string    `json:"user_id"`
	JobID   string    `json:"job_id"`
	Channel string    `json:"channel"`
	Tier    Tier      `json:"tier"`
	SentAt  time.Time `json:"sent_at"`
	// JobAliases are the other ids of the posting when it was sent.
	JobAliases []string `json:"job_aliases,omitempty"`
}

// JobSummary is what the notification collaborator receives.
type JobSummary struct {
	JobID      string     `json:"job_id"`
	Title      string     `json:"title"`
	Company    string     `json:"company"`
	Location   string     `json:"location"`
	URL        string     `json:"url"`
	FinalScore float64    `json:"final_score"`
	Label      MatchLabel `json:"label"`
	Rationale  string     `json:"rationale,omitempty"`
}

func SummaryOf(s ScoredJob) JobSummary {
	return JobSummary{
		JobID:      s.Job.ID,
		Title:      s.Job.Title,
		Company:    s.Job.Company,
		Location:   s.Job.Location,
		URL:        s.Job.SourceURL,
		FinalScore: s.Breakdown.FinalScore,
		Label:      s.Breakdown.Label,
		Rationale:  s.Breakdown.Rationale,
	}
}
