// Package aggregate holds the pure, stateless transformations that turn a
// flat record list into dashboard and per-city summaries. No I/O, no
// failure semantics; callers pass in already-fetched data.
package aggregate

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/yanisfaquir/weatherboard/internal/models"
)

// CityStatus grades a city by its network quality and rain ratio.
type CityStatus string

const (
	StatusGood     CityStatus = "good"
	StatusWarning  CityStatus = "warning"
	StatusCritical CityStatus = "critical"
)

// CityOverview summarizes one city's records for the dashboard list.
type CityOverview struct {
	CityName            string              `json:"cityName"`
	TotalRecords        int                 `json:"totalRecords"`
	AverageTemperature  float64             `json:"averageTemperature"`
	AverageNetworkPower float64             `json:"averageNetworkPower"`
	AverageAltitude     float64             `json:"averageAltitude"`
	RainyDaysCount      int                 `json:"rainyDaysCount"`
	RainyDaysPercentage float64             `json:"rainyDaysPercentage"`
	LastUpdate          time.Time           `json:"lastUpdate"`
	WorstNetworkPower   models.NetworkPower `json:"worstNetworkPower"`
	Status              CityStatus          `json:"status"`
}

// DashboardSummary is the whole-dashboard aggregate.
type DashboardSummary struct {
	TotalCities           int            `json:"totalCities"`
	TotalRecords          int            `json:"totalRecords"`
	AverageTemperature    float64        `json:"averageTemperature"`
	AverageNetworkPower   float64        `json:"averageNetworkPower"`
	CitiesWithPoorNetwork int            `json:"citiesWithPoorNetwork"`
	LastUpdate            time.Time      `json:"lastUpdate"`
	Cities                []CityOverview `json:"cities"`
}

// Summary aggregates all records into the dashboard view. Cities are sorted
// by record count, most data first.
func Summary(records []models.WeatherRecord) DashboardSummary {
	if len(records) == 0 {
		return DashboardSummary{LastUpdate: time.Now(), Cities: []CityOverview{}}
	}

	byCity := groupByCity(records)
	overviews := make([]CityOverview, 0, len(byCity))
	poorNetwork := 0
	for city, cityRecords := range byCity {
		ov := Overview(city, cityRecords)
		if ov.AverageNetworkPower <= 2 {
			poorNetwork++
		}
		overviews = append(overviews, ov)
	}
	sort.Slice(overviews, func(i, j int) bool {
		if overviews[i].TotalRecords != overviews[j].TotalRecords {
			return overviews[i].TotalRecords > overviews[j].TotalRecords
		}
		return overviews[i].CityName < overviews[j].CityName
	})

	temps := make([]float64, len(records))
	powers := make([]float64, len(records))
	for i, r := range records {
		temps[i] = r.Temperature
		powers[i] = float64(r.NetworkPower)
	}

	return DashboardSummary{
		TotalCities:           len(overviews),
		TotalRecords:          len(records),
		AverageTemperature:    round2(average(temps)),
		AverageNetworkPower:   round2(average(powers)),
		CitiesWithPoorNetwork: poorNetwork,
		LastUpdate:            time.Now(),
		Cities:                overviews,
	}
}

// Overview summarizes the records of a single city. Status rules: critical
// when average network power <= 2; warning when it is <= 3 or more than 60%
// of days were rainy.
func Overview(cityName string, records []models.WeatherRecord) CityOverview {
	temps := make([]float64, len(records))
	powers := make([]float64, len(records))
	alts := make([]float64, len(records))
	rainy := 0
	worst := models.NetworkPower(5)
	var last time.Time
	for i, r := range records {
		temps[i] = r.Temperature
		powers[i] = float64(r.NetworkPower)
		alts[i] = r.Altitude
		if r.IsRaining {
			rainy++
		}
		if r.NetworkPower < worst {
			worst = r.NetworkPower
		}
		updated := r.CreatedAt
		if updated.IsZero() {
			updated = r.Date
		}
		if updated.After(last) {
			last = updated
		}
	}

	avgPower := average(powers)
	rainRatio := 0.0
	if len(records) > 0 {
		rainRatio = float64(rainy) / float64(len(records))
	}
	status := StatusGood
	switch {
	case avgPower <= 2:
		status = StatusCritical
	case avgPower <= 3 || rainRatio > 0.6:
		status = StatusWarning
	}

	return CityOverview{
		CityName:            cityName,
		TotalRecords:        len(records),
		AverageTemperature:  round2(average(temps)),
		AverageNetworkPower: round2(avgPower),
		AverageAltitude:     round2(average(alts)),
		RainyDaysCount:      rainy,
		RainyDaysPercentage: round2(rainRatio * 100),
		LastUpdate:          last,
		WorstNetworkPower:   worst,
		Status:              status,
	}
}

// FilterCity returns the records belonging to a city, matching
// case-insensitively on the trimmed name.
func FilterCity(records []models.WeatherRecord, cityName string) []models.WeatherRecord {
	want := normalizeCity(cityName)
	var out []models.WeatherRecord
	for _, r := range records {
		if normalizeCity(r.City) == want {
			out = append(out, r)
		}
	}
	return out
}

func groupByCity(records []models.WeatherRecord) map[string][]models.WeatherRecord {
	byCity := make(map[string][]models.WeatherRecord)
	for _, r := range records {
		key := normalizeCity(r.City)
		byCity[key] = append(byCity[key], r)
	}
	return byCity
}

func normalizeCity(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
