package pricefeed

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sljivkov/feedsync/domain"
)

// Report summarizes one synchronization run
type Report struct {
	RunID    uuid.UUID
	Started  time.Time
	Duration time.Duration
	Outcomes []domain.SyncOutcome
}

// Counts returns the number of outcomes per kind
func (r Report) Counts() map[domain.OutcomeKind]int {
	counts := map[domain.OutcomeKind]int{
		domain.OutcomeSkipped:     0,
		domain.OutcomeUpdated:     0,
		domain.OutcomeProvisioned: 0,
		domain.OutcomeFailed:      0,
	}

	for _, o := range r.Outcomes {
		counts[o.Kind]++
	}

	return counts
}

// HasFailures reports whether any pair ended Failed
func (r Report) HasFailures() bool {
	return r.Counts()[domain.OutcomeFailed] > 0
}

// OutcomeView is the JSON form of a SyncOutcome
type OutcomeView struct {
	Pair    string `json:"pair"`
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
	Old     string `json:"old,omitempty"`
	New     string `json:"new,omitempty"`
	Address string `json:"address,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ReportView is the JSON form of a Report
type ReportView struct {
	RunID    string         `json:"run_id"`
	Started  time.Time      `json:"started"`
	Duration string         `json:"duration"`
	Counts   map[string]int `json:"counts"`
	Outcomes []OutcomeView  `json:"outcomes"`
}

// View converts the report for JSON rendering
func (r Report) View() ReportView {
	v := ReportView{
		RunID:    r.RunID.String(),
		Started:  r.Started,
		Duration: r.Duration.String(),
		Counts:   make(map[string]int),
		Outcomes: make([]OutcomeView, 0, len(r.Outcomes)),
	}

	for kind, n := range r.Counts() {
		v.Counts[string(kind)] = n
	}

	for _, o := range r.Outcomes {
		ov := OutcomeView{
			Pair:    o.Pair.String(),
			Outcome: string(o.Kind),
			Reason:  o.Reason,
		}

		if o.Old != nil {
			ov.Old = o.Old.String()
		}

		if o.New != nil {
			ov.New = o.New.String()
		}

		if o.Kind == domain.OutcomeProvisioned {
			ov.Address = o.Address.Hex()
		}

		if o.Err != nil {
			ov.Error = o.Err.Error()
		}

		v.Outcomes = append(v.Outcomes, ov)
	}

	return v
}

// FeedStatus is the registry-side view of one feed
type FeedStatus struct {
	Feed         Feed
	Registration domain.FeedRegistration
	Latest       *domain.PriceQuote // nil unless confirmed and readable
	Err          error
}

// Status reads registration and latest answer of every feed without writing
func (s *Synchronizer) Status(ctx context.Context) []FeedStatus {
	out := make([]FeedStatus, 0, len(s.feeds))

	for _, feed := range s.feeds {
		st := FeedStatus{Feed: feed}

		reg, err := s.registry.Registration(ctx, feed.Pair)
		if err != nil {
			st.Err = err
			out = append(out, st)

			continue
		}

		st.Registration = reg

		if reg.State == domain.Confirmed {
			q, err := s.registry.LatestPrice(ctx, feed.Pair)
			if err != nil && !errors.Is(err, domain.ErrFeedNotFound) {
				st.Err = err
			} else if err == nil {
				st.Latest = &q
			}
		}

		out = append(out, st)
	}

	return out
}
