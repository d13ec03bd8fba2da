package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// TemperatureUnit tags the unit a temperature value was recorded in.
type TemperatureUnit string

const (
	TemperatureCelsius    TemperatureUnit = "celsius"
	TemperatureFahrenheit TemperatureUnit = "fahrenheit"
)

// AltitudeUnit tags the unit an altitude value was recorded in.
type AltitudeUnit string

const (
	AltitudeMeters AltitudeUnit = "meters"
	AltitudeFeet   AltitudeUnit = "feet"
)

// NetworkPower is the 1-5 network quality scale attached to each observation.
type NetworkPower int

// networkPowerLabels maps the 1-5 scale to display labels.
var networkPowerLabels = map[NetworkPower]string{
	1: "Very Poor",
	2: "Poor",
	3: "Fair",
	4: "Good",
	5: "Excellent",
}

// Valid reports whether p is within the 1-5 scale.
func (p NetworkPower) Valid() bool {
	return p >= 1 && p <= 5
}

// Label returns the display label for p, or "Unknown" outside the scale.
func (p NetworkPower) Label() string {
	if label, ok := networkPowerLabels[p]; ok {
		return label
	}
	return "Unknown"
}

var (
	ErrCityRequired        = errors.New("city is required")
	ErrTemperatureInvalid  = errors.New("temperature must be a finite number")
	ErrAltitudeInvalid     = errors.New("altitude must be a finite number")
	ErrNetworkPowerInvalid = errors.New("networkPower must be between 1 and 5")
)

// WeatherRecord is one weather/network observation tied to a city.
// ID is assigned by the remote store on create, or synthesized as
// local_<timestamp>_<random> when authored offline; Local marks the origin.
type WeatherRecord struct {
	ID              string          `json:"id,omitempty"`
	City            string          `json:"city"`
	Temperature     float64         `json:"temperature"`
	TemperatureUnit TemperatureUnit `json:"temperatureUnit"`
	IsRaining       bool            `json:"isRaining"`
	Date            time.Time       `json:"date"`
	NetworkPower    NetworkPower    `json:"networkPower"`
	Altitude        float64         `json:"altitude"`
	AltitudeUnit    AltitudeUnit    `json:"altitudeUnit"`
	CreatedAt       time.Time       `json:"createdAt,omitzero"`
	UpdatedAt       time.Time       `json:"updatedAt,omitzero"`
	Local           bool            `json:"_isLocal,omitempty"`
}

// Validate checks the record invariants: non-empty city, finite temperature
// and altitude, network power within the 1-5 scale.
func (r WeatherRecord) Validate() error {
	if strings.TrimSpace(r.City) == "" {
		return ErrCityRequired
	}
	if math.IsNaN(r.Temperature) || math.IsInf(r.Temperature, 0) {
		return ErrTemperatureInvalid
	}
	if math.IsNaN(r.Altitude) || math.IsInf(r.Altitude, 0) {
		return ErrAltitudeInvalid
	}
	if !r.NetworkPower.Valid() {
		return fmt.Errorf("%w: got %d", ErrNetworkPowerInvalid, r.NetworkPower)
	}
	return nil
}
