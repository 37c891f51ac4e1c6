package weather

import (
	"math"
	"time"
)

// Payload is the reshaped weather result served to clients and cached.
type Payload struct {
	Location    Location    `json:"location"`
	Weather     Conditions  `json:"weather"`
	Temperature Temperature `json:"temperature"`
	Humidity    int         `json:"humidity"`
	WindSpeed   float64     `json:"windSpeed"`
	// Visibility is in kilometres.
	Visibility float64   `json:"visibility"`
	Timestamp  time.Time `json:"timestamp"`
	FromCache  bool      `json:"fromCache"`
}

type Location struct {
	Name    string `json:"name"`
	Country string `json:"country"`
	ZipCode string `json:"zipCode"`
}

type Conditions struct {
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// Temperature values are whole degrees Fahrenheit.
type Temperature struct {
	Current   int `json:"current"`
	FeelsLike int `json:"feelsLike"`
	Min       int `json:"min"`
	Max       int `json:"max"`
}

// CurrentConditions mirrors the provider's current-weather document.
type CurrentConditions struct {
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
		Humidity  float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	// Visibility is in metres.
	Visibility float64 `json:"visibility"`
}

// Reshape converts a provider document into a Payload stamped at now.
func Reshape(raw *CurrentConditions, zipCode string, now time.Time) Payload {
	p := Payload{
		Location: Location{
			Name:    raw.Name,
			Country: raw.Sys.Country,
			ZipCode: zipCode,
		},
		Temperature: Temperature{
			Current:   roundHalfUp(raw.Main.Temp),
			FeelsLike: roundHalfUp(raw.Main.FeelsLike),
			Min:       roundHalfUp(raw.Main.TempMin),
			Max:       roundHalfUp(raw.Main.TempMax),
		},
		Humidity:   roundHalfUp(raw.Main.Humidity),
		WindSpeed:  raw.Wind.Speed,
		Visibility: raw.Visibility / 1000,
		Timestamp:  now.UTC(),
	}
	if len(raw.Weather) > 0 {
		w := raw.Weather[0]
		p.Weather = Conditions{Main: w.Main, Description: w.Description, Icon: w.Icon}
	}
	return p
}

// roundHalfUp rounds .5 towards positive infinity, so -2.5 becomes -2.
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
