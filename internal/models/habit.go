package models

// HabitRecord is one tracked habit together with its raw event history, as supplied by the
// training data source or a caller. Timestamps are ISO-8601 strings; they are parsed and
// validated by the feature engineer.
type HabitRecord struct {
	ID                      string     `json:"id"`
	UserID                  string     `json:"user_id"`
	CreatedAt               string     `json:"created_at"`
	CurrentStreak           int        `json:"current_streak"`
	TargetFrequencyDays     float64    `json:"target_frequency"`
	CheckIns                []Event    `json:"check_ins"`
	AccountabilityPartnerID *string    `json:"accountability_partner_id,omitempty"`
	PartnerCheckIns         []Event    `json:"partner_check_ins,omitempty"`
	PartnerMessages         []Event    `json:"partner_messages,omitempty"`
	Reminders               []Reminder `json:"reminder_sent,omitempty"`
	IsActive                bool       `json:"is_active"`
	Completed               bool       `json:"completed"`

	// Optional encodings supplied by the caller; nil means "use the default".
	CategoryCode     *float64 `json:"habit_category_encoded,omitempty"`
	TimeOfDayCode    *float64 `json:"time_of_day_encoded,omitempty"`
	DifficultyRating *float64 `json:"habit_difficulty_rating,omitempty"`
}

// Event is a timestamped occurrence (check-in, partner check-in, partner message).
type Event struct {
	Timestamp string `json:"timestamp"`
}

// Reminder records a reminder notification and whether the user acted on it.
type Reminder struct {
	Timestamp string `json:"timestamp"`
	Responded bool   `json:"responded"`
}

// Maintained reports the training label: the habit is still active or was completed.
func (h HabitRecord) Maintained() bool {
	return h.IsActive || h.Completed
}

// HasPartner reports whether an accountability partner is attached.
func (h HabitRecord) HasPartner() bool {
	return h.AccountabilityPartnerID != nil
}

// UserContext carries optional per-user wellbeing logs.
type UserContext struct {
	UserID    string     `json:"user_id"`
	MoodLogs  []ScoreLog `json:"mood_logs,omitempty"`
	SleepLogs []ScoreLog `json:"sleep_logs,omitempty"`
}

// ScoreLog is a dated numeric score such as a mood rating or sleep quality.
type ScoreLog struct {
	Timestamp string  `json:"timestamp"`
	Score     float64 `json:"score"`
}
