package storage

const (
	DefaultRateOneTwoPlayers    = 7000
	DefaultRateThreeFourPlayers = 10000
)

// DefaultRates returns the hourly rates used on first run.
func DefaultRates() RateSettings {
	return RateSettings{
		RateOneTwoPlayers:    DefaultRateOneTwoPlayers,
		RateThreeFourPlayers: DefaultRateThreeFourPlayers,
	}
}

// DefaultSettings returns the settings written on first run and after a clear.
func DefaultSettings() Settings {
	return Settings{
		Rates: DefaultRates(),
		Products: []Product{
			{ID: "1", Name: "متة", Price: 3000},
			{ID: "2", Name: "قهوة", Price: 3000},
			{ID: "3", Name: "أندومي", Price: 6000},
		},
		Devices: []string{"PS5-1", "PS5-2", "PS4-1", "PS4-2", "PS4-3"},
	}
}
