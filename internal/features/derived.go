package features

const (
	maturityDays          = 90.0
	highTimeVarianceHours = 4.0
	lowRecentRate         = 0.5
	defaultDifficulty     = 0.5
)

// derivedFeatures combines earlier groups. It reads base only through canonical names.
func derivedFeatures(h history, base Vector) Vector {
	maturity := 0.0
	if days := base[DaysSinceCreated]; days > 0 {
		maturity = clamp(days/maturityDays, 0, 1)
	}

	engagement := base[CompletionRate30d]*0.4 +
		base[ConsistencyScore]*0.3 +
		base[SocialSupportScore]*0.3

	flags := 0
	if base[CheckInTimeVariance] > highTimeVarianceHours {
		flags++
	}
	if base[MomentumScore] < 0 {
		flags++
	}
	if base[CompletionRate7d] < lowRecentRate {
		flags++
	}

	return Vector{
		HabitMaturity:          maturity,
		OverallEngagementScore: engagement,
		RiskFlagCount:          float64(flags),
		HabitCategoryEncoded:   valueOr(h.record.CategoryCode, 0),
		TimeOfDayEncoded:       valueOr(h.record.TimeOfDayCode, 0),
		HabitDifficultyRating:  valueOr(h.record.DifficultyRating, defaultDifficulty),
	}
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
