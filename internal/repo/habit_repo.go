package repo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/miradorstack/habit-ml/internal/models"
)

// Querier is the subset of *pgxpool.Pool the repository needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// HabitRepository loads raw habit history for training and scoring.
type HabitRepository struct {
	db           Querier
	logger       *slog.Logger
	queryTimeout time.Duration
}

// NewHabitRepository wraps db. A zero queryTimeout leaves queries bounded only by the
// caller's context.
func NewHabitRepository(db Querier, logger *slog.Logger, queryTimeout time.Duration) *HabitRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &HabitRepository{db: db, logger: logger, queryTimeout: queryTimeout}
}

const (
	habitsSince = `
        SELECT id, user_id, created_at, current_streak, target_frequency_days,
               accountability_partner_id, is_active, completed,
               category_code, time_of_day_code, difficulty_rating
        FROM habits
        WHERE created_at >= $1
        ORDER BY created_at, id
    `
	habitsByUser = `
        SELECT id, user_id, created_at, current_streak, target_frequency_days,
               accountability_partner_id, is_active, completed,
               category_code, time_of_day_code, difficulty_rating
        FROM habits
        WHERE user_id = $1 AND is_active = TRUE
        ORDER BY created_at, id
    `
	checkInsByHabit = `
        SELECT habit_id, checked_in_at FROM habit_check_ins
        WHERE habit_id = ANY($1) ORDER BY habit_id, checked_in_at
    `
	partnerCheckInsByHabit = `
        SELECT habit_id, occurred_at FROM partner_check_ins
        WHERE habit_id = ANY($1) ORDER BY habit_id, occurred_at
    `
	partnerMessagesByHabit = `
        SELECT habit_id, sent_at FROM partner_messages
        WHERE habit_id = ANY($1) ORDER BY habit_id, sent_at
    `
	remindersByHabit = `
        SELECT habit_id, sent_at, responded FROM habit_reminders
        WHERE habit_id = ANY($1) ORDER BY habit_id, sent_at
    `
	moodByUser = `
        SELECT user_id, logged_at, score FROM mood_logs
        WHERE user_id = ANY($1) AND logged_at >= $2 ORDER BY user_id, logged_at
    `
	sleepByUser = `
        SELECT user_id, logged_at, quality FROM sleep_logs
        WHERE user_id = ANY($1) AND logged_at >= $2 ORDER BY user_id, logged_at
    `
)

// habitRow is one row of the habits table.
type habitRow struct {
	ID               string
	UserID           string
	CreatedAt        time.Time
	CurrentStreak    int
	TargetFrequency  float64
	PartnerID        *string
	IsActive         bool
	Completed        bool
	CategoryCode     *float64
	TimeOfDayCode    *float64
	DifficultyRating *float64
}

func (h habitRow) record() models.HabitRecord {
	return models.HabitRecord{
		ID:                      h.ID,
		UserID:                  h.UserID,
		CreatedAt:               formatTime(h.CreatedAt),
		CurrentStreak:           h.CurrentStreak,
		TargetFrequencyDays:     h.TargetFrequency,
		AccountabilityPartnerID: h.PartnerID,
		IsActive:                h.IsActive,
		Completed:               h.Completed,
		CategoryCode:            h.CategoryCode,
		TimeOfDayCode:           h.TimeOfDayCode,
		DifficultyRating:        h.DifficultyRating,
	}
}

// LoadTrainingData returns every habit created at or after since with its full history, and
// the mood and sleep logs of the owning users keyed by user id.
func (r *HabitRepository) LoadTrainingData(ctx context.Context, since time.Time) ([]models.HabitRecord, map[string]models.UserContext, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	r.logger.Debug("loading training habits", "since", since)
	records, err := r.loadHabits(ctx, habitsSince, since)
	if err != nil {
		return nil, nil, err
	}
	contexts, err := r.loadContexts(ctx, records, since)
	if err != nil {
		return nil, nil, err
	}
	r.logger.Info("training data loaded", "habits", len(records), "users", len(contexts))
	return records, contexts, nil
}

// ActiveHabitsForUser returns a user's active habits with history and their user context.
func (r *HabitRepository) ActiveHabitsForUser(ctx context.Context, userID string, since time.Time) ([]models.HabitRecord, *models.UserContext, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	records, err := r.loadHabits(ctx, habitsByUser, userID)
	if err != nil {
		return nil, nil, err
	}
	contexts, err := r.loadContexts(ctx, records, since)
	if err != nil {
		return nil, nil, err
	}
	if uc, ok := contexts[userID]; ok {
		return records, &uc, nil
	}
	return records, nil, nil
}

func (r *HabitRepository) loadHabits(ctx context.Context, query string, arg any) ([]models.HabitRecord, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		r.logger.Error("failed to query habits", "error", err)
		return nil, fmt.Errorf("query habits: %w", err)
	}
	defer rows.Close()

	var records []models.HabitRecord
	for rows.Next() {
		var h habitRow
		if err := rows.Scan(
			&h.ID,
			&h.UserID,
			&h.CreatedAt,
			&h.CurrentStreak,
			&h.TargetFrequency,
			&h.PartnerID,
			&h.IsActive,
			&h.Completed,
			&h.CategoryCode,
			&h.TimeOfDayCode,
			&h.DifficultyRating,
		); err != nil {
			return nil, fmt.Errorf("scan habit: %w", err)
		}
		records = append(records, h.record())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate habits: %w", err)
	}
	if len(records) == 0 {
		return records, nil
	}

	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	checkIns, err := r.events(ctx, checkInsByHabit, ids)
	if err != nil {
		return nil, err
	}
	partnerCheckIns, err := r.events(ctx, partnerCheckInsByHabit, ids)
	if err != nil {
		return nil, err
	}
	partnerMessages, err := r.events(ctx, partnerMessagesByHabit, ids)
	if err != nil {
		return nil, err
	}
	reminders, err := r.reminders(ctx, ids)
	if err != nil {
		return nil, err
	}
	attachHistory(records, checkIns, partnerCheckIns, partnerMessages, reminders)
	return records, nil
}

func (r *HabitRepository) events(ctx context.Context, query string, ids []string) (map[string][]models.Event, error) {
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("query habit events: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]models.Event)
	for rows.Next() {
		var habitID string
		var at time.Time
		if err := rows.Scan(&habitID, &at); err != nil {
			return nil, fmt.Errorf("scan habit event: %w", err)
		}
		out[habitID] = append(out[habitID], models.Event{Timestamp: formatTime(at)})
	}
	return out, rows.Err()
}

func (r *HabitRepository) reminders(ctx context.Context, ids []string) (map[string][]models.Reminder, error) {
	rows, err := r.db.Query(ctx, remindersByHabit, ids)
	if err != nil {
		return nil, fmt.Errorf("query reminders: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]models.Reminder)
	for rows.Next() {
		var habitID string
		var at time.Time
		var responded bool
		if err := rows.Scan(&habitID, &at, &responded); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		out[habitID] = append(out[habitID], models.Reminder{Timestamp: formatTime(at), Responded: responded})
	}
	return out, rows.Err()
}

func (r *HabitRepository) loadContexts(ctx context.Context, records []models.HabitRecord, since time.Time) (map[string]models.UserContext, error) {
	users := userIDs(records)
	if len(users) == 0 {
		return map[string]models.UserContext{}, nil
	}
	mood, err := r.scores(ctx, moodByUser, users, since)
	if err != nil {
		return nil, err
	}
	sleep, err := r.scores(ctx, sleepByUser, users, since)
	if err != nil {
		return nil, err
	}
	return buildContexts(users, mood, sleep), nil
}

func (r *HabitRepository) scores(ctx context.Context, query string, users []string, since time.Time) (map[string][]models.ScoreLog, error) {
	rows, err := r.db.Query(ctx, query, users, since)
	if err != nil {
		return nil, fmt.Errorf("query score logs: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]models.ScoreLog)
	for rows.Next() {
		var userID string
		var at time.Time
		var score float64
		if err := rows.Scan(&userID, &at, &score); err != nil {
			return nil, fmt.Errorf("scan score log: %w", err)
		}
		out[userID] = append(out[userID], models.ScoreLog{Timestamp: formatTime(at), Score: score})
	}
	return out, rows.Err()
}

func (r *HabitRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.queryTimeout)
}

func attachHistory(records []models.HabitRecord, checkIns, partnerCheckIns, partnerMessages map[string][]models.Event, reminders map[string][]models.Reminder) {
	for i := range records {
		id := records[i].ID
		records[i].CheckIns = checkIns[id]
		records[i].PartnerCheckIns = partnerCheckIns[id]
		records[i].PartnerMessages = partnerMessages[id]
		records[i].Reminders = reminders[id]
	}
}

func userIDs(records []models.HabitRecord) []string {
	seen := make(map[string]struct{}, len(records))
	var out []string
	for _, rec := range records {
		if _, ok := seen[rec.UserID]; ok {
			continue
		}
		seen[rec.UserID] = struct{}{}
		out = append(out, rec.UserID)
	}
	return out
}

// buildContexts returns a context for every user with at least one mood or sleep log.
func buildContexts(users []string, mood, sleep map[string][]models.ScoreLog) map[string]models.UserContext {
	out := make(map[string]models.UserContext, len(users))
	for _, u := range users {
		if len(mood[u]) == 0 && len(sleep[u]) == 0 {
			continue
		}
		out[u] = models.UserContext{UserID: u, MoodLogs: mood[u], SleepLogs: sleep[u]}
	}
	return out
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
