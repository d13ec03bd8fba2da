package aggregate

import (
	"testing"
	"time"

	"github.com/yanisfaquir/weatherboard/internal/models"
)

func rec(city string, temp float64, power int, raining bool, date time.Time) models.WeatherRecord {
	return models.WeatherRecord{
		City:            city,
		Temperature:     temp,
		TemperatureUnit: models.TemperatureCelsius,
		IsRaining:       raining,
		Date:            date,
		NetworkPower:    models.NetworkPower(power),
		Altitude:        100,
		AltitudeUnit:    models.AltitudeMeters,
	}
}

func TestSummary_Empty(t *testing.T) {
	s := Summary(nil)
	if s.TotalCities != 0 || s.TotalRecords != 0 {
		t.Errorf("empty summary = %+v, want zeroes", s)
	}
	if s.Cities == nil {
		t.Error("Cities should be an empty slice, not nil")
	}
}

func TestSummary_GroupsAndSorts(t *testing.T) {
	now := time.Now()
	records := []models.WeatherRecord{
		rec("Porto", 18, 4, false, now),
		rec("porto", 20, 4, false, now),
		rec("Lisboa", 22, 3, true, now),
	}
	s := Summary(records)

	if s.TotalCities != 2 {
		t.Fatalf("TotalCities = %d, want 2 (case-insensitive grouping)", s.TotalCities)
	}
	if s.TotalRecords != 3 {
		t.Errorf("TotalRecords = %d, want 3", s.TotalRecords)
	}
	if s.Cities[0].CityName != "porto" {
		t.Errorf("first city = %q, want porto (most records first)", s.Cities[0].CityName)
	}
	if s.Cities[0].TotalRecords != 2 {
		t.Errorf("porto TotalRecords = %d, want 2", s.Cities[0].TotalRecords)
	}
	if s.AverageTemperature != 20 {
		t.Errorf("AverageTemperature = %v, want 20", s.AverageTemperature)
	}
}

func TestSummary_CountsPoorNetworkCities(t *testing.T) {
	now := time.Now()
	records := []models.WeatherRecord{
		rec("Porto", 18, 1, false, now),
		rec("Porto", 18, 2, false, now),
		rec("Lisboa", 22, 5, false, now),
	}
	s := Summary(records)
	if s.CitiesWithPoorNetwork != 1 {
		t.Errorf("CitiesWithPoorNetwork = %d, want 1", s.CitiesWithPoorNetwork)
	}
}

func TestOverview_StatusRules(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		records []models.WeatherRecord
		want    CityStatus
	}{
		{
			name: "critical on poor network",
			records: []models.WeatherRecord{
				rec("X", 20, 1, false, now),
				rec("X", 20, 2, false, now),
			},
			want: StatusCritical,
		},
		{
			name: "warning on middling network",
			records: []models.WeatherRecord{
				rec("X", 20, 3, false, now),
				rec("X", 20, 3, false, now),
			},
			want: StatusWarning,
		},
		{
			name: "warning on mostly rainy",
			records: []models.WeatherRecord{
				rec("X", 20, 5, true, now),
				rec("X", 20, 5, true, now),
				rec("X", 20, 5, false, now),
			},
			want: StatusWarning,
		},
		{
			name: "good otherwise",
			records: []models.WeatherRecord{
				rec("X", 20, 5, false, now),
				rec("X", 20, 4, true, now),
			},
			want: StatusGood,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ov := Overview("X", tc.records)
			if ov.Status != tc.want {
				t.Errorf("Status = %q, want %q", ov.Status, tc.want)
			}
		})
	}
}

func TestOverview_Averages(t *testing.T) {
	now := time.Now()
	records := []models.WeatherRecord{
		rec("Porto", 18.5, 4, true, now.Add(-time.Hour)),
		rec("Porto", 21.5, 2, false, now),
	}
	ov := Overview("Porto", records)

	if ov.AverageTemperature != 20 {
		t.Errorf("AverageTemperature = %v, want 20", ov.AverageTemperature)
	}
	if ov.AverageNetworkPower != 3 {
		t.Errorf("AverageNetworkPower = %v, want 3", ov.AverageNetworkPower)
	}
	if ov.RainyDaysCount != 1 {
		t.Errorf("RainyDaysCount = %d, want 1", ov.RainyDaysCount)
	}
	if ov.RainyDaysPercentage != 50 {
		t.Errorf("RainyDaysPercentage = %v, want 50", ov.RainyDaysPercentage)
	}
	if ov.WorstNetworkPower != 2 {
		t.Errorf("WorstNetworkPower = %v, want 2", ov.WorstNetworkPower)
	}
}

func TestOverview_LastUpdatePrefersCreatedAt(t *testing.T) {
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	r1 := rec("Porto", 18, 4, false, old)
	r1.CreatedAt = newer
	r2 := rec("Porto", 19, 4, false, old)

	ov := Overview("Porto", []models.WeatherRecord{r1, r2})
	if !ov.LastUpdate.Equal(newer) {
		t.Errorf("LastUpdate = %v, want %v", ov.LastUpdate, newer)
	}
}

func TestFilterCity(t *testing.T) {
	now := time.Now()
	records := []models.WeatherRecord{
		rec("Porto", 18, 4, false, now),
		rec(" porto ", 19, 4, false, now),
		rec("Lisboa", 22, 3, false, now),
	}
	got := FilterCity(records, "PORTO")
	if len(got) != 2 {
		t.Errorf("FilterCity returned %d records, want 2", len(got))
	}
	if len(FilterCity(records, "Faro")) != 0 {
		t.Error("FilterCity for unknown city should return nothing")
	}
}
