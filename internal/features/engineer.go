package features

import (
	"time"

	"github.com/miradorstack/habit-ml/internal/models"
	"github.com/miradorstack/habit-ml/internal/utils"
)

// Engineer derives a fixed-width feature vector from a habit's raw history.
// It holds no state between calls.
type Engineer struct {
	includeCorrelations bool
}

// NewEngineer constructs an Engineer that computes mood/sleep correlations when user
// context is supplied.
func NewEngineer() *Engineer {
	return &Engineer{includeCorrelations: true}
}

// WithoutCorrelations returns an Engineer that always emits neutral correlation features.
func (e *Engineer) WithoutCorrelations() *Engineer {
	return &Engineer{includeCorrelations: false}
}

// history is a HabitRecord with every timestamp parsed once.
type history struct {
	record        models.HabitRecord
	createdAt     time.Time
	checkIns      []time.Time
	partnerEvents []time.Time
	reminders     []parsedReminder
}

type parsedReminder struct {
	at        time.Time
	responded bool
}

type datedScore struct {
	at    time.Time
	score float64
}

// Compute builds the feature vector for record. reference stands in for "now" in every
// relative computation; callers pass a fixed value for reproducible output. A malformed
// timestamp anywhere in the record or user context fails the whole computation.
func (e *Engineer) Compute(record models.HabitRecord, userCtx *models.UserContext, reference time.Time) (Vector, error) {
	h, err := parseHistory(record)
	if err != nil {
		return nil, err
	}

	var mood, sleep []datedScore
	if userCtx != nil && e.includeCorrelations {
		if mood, err = parseScores(record.ID, "mood_logs", userCtx.MoodLogs); err != nil {
			return nil, err
		}
		if sleep, err = parseScores(record.ID, "sleep_logs", userCtx.SleepLogs); err != nil {
			return nil, err
		}
	}

	vector := make(Vector, 40)
	vector.merge(temporalFeatures(h, reference))
	vector.merge(patternFeatures(h))
	vector.merge(consistencyFeatures(h))
	vector.merge(momentumFeatures(h, reference))
	vector.merge(socialFeatures(h, reference))
	vector.merge(correlationFeatures(h, reference, mood, sleep))
	vector.merge(derivedFeatures(h, vector))
	return vector, nil
}

func parseHistory(record models.HabitRecord) (history, error) {
	const op = "features.Compute"
	h := history{record: record}

	created, err := utils.ParseTimestamp(record.CreatedAt)
	if err != nil {
		return history{}, utils.InputError(op, "habit %s: created_at: %v", record.ID, err)
	}
	h.createdAt = created

	if h.checkIns, err = parseEvents(record.ID, "check_ins", record.CheckIns); err != nil {
		return history{}, err
	}
	partnerCheckIns, err := parseEvents(record.ID, "partner_check_ins", record.PartnerCheckIns)
	if err != nil {
		return history{}, err
	}
	partnerMessages, err := parseEvents(record.ID, "partner_messages", record.PartnerMessages)
	if err != nil {
		return history{}, err
	}
	h.partnerEvents = append(partnerCheckIns, partnerMessages...)

	h.reminders = make([]parsedReminder, 0, len(record.Reminders))
	for i, r := range record.Reminders {
		at, err := utils.ParseTimestamp(r.Timestamp)
		if err != nil {
			return history{}, utils.InputError(op, "habit %s: reminder_sent[%d]: %v", record.ID, i, err)
		}
		h.reminders = append(h.reminders, parsedReminder{at: at, responded: r.Responded})
	}
	return h, nil
}

func parseEvents(habitID, field string, events []models.Event) ([]time.Time, error) {
	out := make([]time.Time, 0, len(events))
	for i, ev := range events {
		at, err := utils.ParseTimestamp(ev.Timestamp)
		if err != nil {
			return nil, utils.InputError("features.Compute", "habit %s: %s[%d]: %v", habitID, field, i, err)
		}
		out = append(out, at)
	}
	return out, nil
}

func parseScores(habitID, field string, logs []models.ScoreLog) ([]datedScore, error) {
	out := make([]datedScore, 0, len(logs))
	for i, l := range logs {
		at, err := utils.ParseTimestamp(l.Timestamp)
		if err != nil {
			return nil, utils.InputError("features.Compute", "habit %s: %s[%d]: %v", habitID, field, i, err)
		}
		out = append(out, datedScore{at: at, score: l.Score})
	}
	return out, nil
}

// targetFrequency returns the expected number of days between check-ins.
func (h history) targetFrequency() float64 {
	if h.record.TargetFrequencyDays <= 0 {
		return 1
	}
	return h.record.TargetFrequencyDays
}
