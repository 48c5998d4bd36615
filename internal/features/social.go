package features

import (
	"time"

	"github.com/miradorstack/habit-ml/internal/utils"
)

const (
	partnerWindowDays       = 7
	neutralReminderResponse = 0.5
)

func socialFeatures(h history, reference time.Time) Vector {
	hasPartner := 0.0
	if h.record.HasPartner() {
		hasPartner = 1
	}

	engagement := 0.0
	if hasPartner == 1 && len(h.partnerEvents) > 0 {
		recent := 0
		for _, t := range h.partnerEvents {
			if utils.WholeDaysBetween(t, reference) <= partnerWindowDays {
				recent++
			}
		}
		engagement = clamp(float64(recent)/partnerWindowDays, 0, 1)
	}

	responseRate := neutralReminderResponse
	if len(h.reminders) > 0 {
		responded := 0
		for _, r := range h.reminders {
			if r.responded {
				responded++
			}
		}
		responseRate = float64(responded) / float64(len(h.reminders))
	}

	return Vector{
		HasAccountabilityPartner: hasPartner,
		PartnerEngagementScore:   engagement,
		ReminderResponseRate:     responseRate,
		SocialSupportScore:       (hasPartner + engagement + responseRate) / 3,
	}
}
