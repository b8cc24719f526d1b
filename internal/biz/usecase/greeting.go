package usecase

import (
	"context"
	"time"
)

// GreetingUsecase renders greeting replies. Throttling lives with the
// router; this usecase only knows which text belongs to which tier.
type GreetingUsecase struct {
	weatherUC *WeatherUsecase
	now       func() time.Time
}

// NewGreetingUsecase creates a new greeting usecase
func NewGreetingUsecase(weatherUC *WeatherUsecase) *GreetingUsecase {
	return &GreetingUsecase{
		weatherUC: weatherUC,
		now:       time.Now,
	}
}

// Hello returns the reply for the given limiter tier. Tier 1 is the full
// time-of-day greeting with a current-conditions emoji; tiers 2 and 3
// escalate; anything later returns "" and the caller stays silent.
func (uc *GreetingUsecase) Hello(ctx context.Context, tier int) string {
	switch tier {
	case 1:
		return uc.timeOfDayGreeting(ctx)
	case 2:
		return "Hey, I already said hi 😑."
	case 3:
		return "Hey, I'm not saying hi to you again 😡."
	default:
		return ""
	}
}

func (uc *GreetingUsecase) timeOfDayGreeting(ctx context.Context) string {
	emoji := uc.weatherUC.CurrentEmoji(ctx)

	hour := uc.now().Hour()
	switch {
	case hour < 12:
		return "Hey, good morning " + emoji
	case hour < 18:
		return "Hey, good afternoon " + emoji
	default:
		return "Hey, good evening " + emoji
	}
}
