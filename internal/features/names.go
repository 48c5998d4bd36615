package features

// Canonical feature names. Each name is produced by exactly one group; derived features read
// other groups' outputs only through these constants.
const (
	StreakLength     = "streak_length"
	DaysSinceCreated = "days_since_creation"
	TotalCheckIns    = "total_check_ins"
	HabitAgeWeeks    = "habit_age_weeks"
	CheckInsPerWeek  = "check_ins_per_week"

	WeekdayCompletionRate = "weekday_completion_rate"
	WeekendCompletionRate = "weekend_completion_rate"
	MorningCheckInRate    = "morning_check_in_rate"
	EveningCheckInRate    = "evening_check_in_rate"
	MostCommonHour        = "most_common_hour"
	HourEntropy           = "hour_entropy"

	ConsistencyScore     = "check_in_consistency_score"
	AvgCheckInHour       = "avg_check_in_hour"
	CheckInTimeVariance  = "check_in_time_variance"
	InterCheckInMeanDays = "inter_checkin_mean_days"
	InterCheckInStdDays  = "inter_checkin_std_days"
	RegularityScore      = "regularity_score"

	CheckInsLast7d    = "check_ins_last_7d"
	CheckInsLast14d   = "check_ins_last_14d"
	CheckInsLast30d   = "check_ins_last_30d"
	CompletionRate7d  = "completion_rate_7d"
	CompletionRate30d = "completion_rate_30d"
	MomentumScore     = "momentum_score"
	Acceleration      = "acceleration"
	RecentMissCount   = "recent_miss_count"
	TrendSlope        = "trend_slope"

	HasAccountabilityPartner = "has_accountability_partner"
	PartnerEngagementScore   = "partner_engagement_score"
	ReminderResponseRate     = "reminder_response_rate"
	SocialSupportScore       = "social_support_score"

	MoodCorrelation         = "mood_correlation"
	SleepQualityCorrelation = "sleep_quality_correlation"

	HabitMaturity          = "habit_maturity"
	OverallEngagementScore = "overall_engagement_score"
	RiskFlagCount          = "risk_flag_count"
	HabitCategoryEncoded   = "habit_category_encoded"
	TimeOfDayEncoded       = "time_of_day_encoded"
	HabitDifficultyRating  = "habit_difficulty_rating"
)

// Group identifies one of the feature computation stages.
type Group string

const (
	GroupTemporal    Group = "temporal"
	GroupPattern     Group = "pattern"
	GroupConsistency Group = "consistency"
	GroupMomentum    Group = "momentum"
	GroupSocial      Group = "social"
	GroupCorrelation Group = "correlation"
	GroupDerived     Group = "derived"
)

// GroupOrder is the order in which groups are computed and merged.
var GroupOrder = []Group{
	GroupTemporal,
	GroupPattern,
	GroupConsistency,
	GroupMomentum,
	GroupSocial,
	GroupCorrelation,
	GroupDerived,
}

// GroupNames lists the keys each group emits.
var GroupNames = map[Group][]string{
	GroupTemporal:    {StreakLength, DaysSinceCreated, TotalCheckIns, HabitAgeWeeks, CheckInsPerWeek},
	GroupPattern:     {WeekdayCompletionRate, WeekendCompletionRate, MorningCheckInRate, EveningCheckInRate, MostCommonHour, HourEntropy},
	GroupConsistency: {ConsistencyScore, AvgCheckInHour, CheckInTimeVariance, InterCheckInMeanDays, InterCheckInStdDays, RegularityScore},
	GroupMomentum:    {CheckInsLast7d, CheckInsLast14d, CheckInsLast30d, CompletionRate7d, CompletionRate30d, MomentumScore, Acceleration, RecentMissCount, TrendSlope},
	GroupSocial:      {HasAccountabilityPartner, PartnerEngagementScore, ReminderResponseRate, SocialSupportScore},
	GroupCorrelation: {MoodCorrelation, SleepQualityCorrelation},
	GroupDerived:     {HabitMaturity, OverallEngagementScore, RiskFlagCount, HabitCategoryEncoded, TimeOfDayEncoded, HabitDifficultyRating},
}

// AllNames returns every feature the engineer produces, in group order.
func AllNames() []string {
	names := make([]string, 0, 40)
	for _, group := range GroupOrder {
		names = append(names, GroupNames[group]...)
	}
	return names
}

// ModelFeatureNames is the default ordered feature contract of the habit success model.
func ModelFeatureNames() []string {
	return []string{
		StreakLength,
		ConsistencyScore,
		WeekdayCompletionRate,
		WeekendCompletionRate,
		ReminderResponseRate,
		AvgCheckInHour,
		CheckInTimeVariance,
		DaysSinceCreated,
		TotalCheckIns,
		CompletionRate7d,
		CompletionRate30d,
		MoodCorrelation,
		SleepQualityCorrelation,
		HasAccountabilityPartner,
		PartnerEngagementScore,
		HabitDifficultyRating,
		HabitCategoryEncoded,
		TimeOfDayEncoded,
		MomentumScore,
		RecentMissCount,
	}
}
