package biz

import (
	"yasbot/internal/biz/usecase"
)

// Usecases contains all usecases
type Usecases struct {
	Weather    *usecase.WeatherUsecase
	Greeting   *usecase.GreetingUsecase
	Summary    *usecase.SummaryUsecase
	Admin      *usecase.AdminUsecase
	Guests     *usecase.GuestUsecase
	MessageLog *usecase.MessageLogUsecase
}
