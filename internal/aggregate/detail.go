package aggregate

import (
	"sort"

	"github.com/yanisfaquir/weatherboard/internal/models"
)

// TemperatureTrend states whether a city's recent temperatures are rising.
type TemperatureTrend string

const (
	TrendUp     TemperatureTrend = "up"
	TrendDown   TemperatureTrend = "down"
	TrendStable TemperatureTrend = "stable"
)

// MonthlyData is one month's slice of a city's history.
type MonthlyData struct {
	Month          string  `json:"month"` // YYYY-MM
	AverageTemp    float64 `json:"averageTemp"`
	AverageNetwork float64 `json:"averageNetwork"`
	RecordCount    int     `json:"recordCount"`
	RainyDays      int     `json:"rainyDays"`
}

// NetworkDistribution counts records at one network power level.
type NetworkDistribution struct {
	Power      models.NetworkPower `json:"power"`
	Count      int                 `json:"count"`
	Percentage float64             `json:"percentage"`
}

// CityDetail is the drill-down view for one city.
type CityDetail struct {
	CityName                 string                `json:"cityName"`
	TotalRecords             int                   `json:"totalRecords"`
	AverageTemperature       float64               `json:"averageTemperature"`
	AverageNetworkPower      float64               `json:"averageNetworkPower"`
	AverageAltitude          float64               `json:"averageAltitude"`
	TemperatureMin           float64               `json:"temperatureMin"`
	TemperatureMax           float64               `json:"temperatureMax"`
	WorstRecords             []models.WeatherRecord `json:"worstRecords"`
	RecentRecords            []models.WeatherRecord `json:"recentRecords"`
	MonthlyData              []MonthlyData         `json:"monthlyData"`
	NetworkPowerDistribution []NetworkDistribution `json:"networkPowerDistribution"`
	TemperatureTrend         TemperatureTrend      `json:"temperatureTrend"`
}

const detailRecordLimit = 5

// Detail builds the drill-down for one city from its records. Returns the
// zero value and false when records is empty.
func Detail(cityName string, records []models.WeatherRecord) (CityDetail, bool) {
	if len(records) == 0 {
		return CityDetail{}, false
	}

	ov := Overview(cityName, records)

	minTemp, maxTemp := records[0].Temperature, records[0].Temperature
	for _, r := range records[1:] {
		if r.Temperature < minTemp {
			minTemp = r.Temperature
		}
		if r.Temperature > maxTemp {
			maxTemp = r.Temperature
		}
	}

	return CityDetail{
		CityName:                 cityName,
		TotalRecords:             len(records),
		AverageTemperature:       ov.AverageTemperature,
		AverageNetworkPower:      ov.AverageNetworkPower,
		AverageAltitude:          ov.AverageAltitude,
		TemperatureMin:           minTemp,
		TemperatureMax:           maxTemp,
		WorstRecords:             worstRecords(records, detailRecordLimit),
		RecentRecords:            recentRecords(records, detailRecordLimit),
		MonthlyData:              monthlyBreakdown(records),
		NetworkPowerDistribution: networkDistribution(records),
		TemperatureTrend:         temperatureTrend(records),
	}, true
}

// worstRecords returns up to limit records with the lowest network power.
func worstRecords(records []models.WeatherRecord, limit int) []models.WeatherRecord {
	sorted := make([]models.WeatherRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].NetworkPower < sorted[j].NetworkPower
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

// recentRecords returns up to limit records, newest observation date first.
func recentRecords(records []models.WeatherRecord, limit int) []models.WeatherRecord {
	sorted := make([]models.WeatherRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date)
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

func monthlyBreakdown(records []models.WeatherRecord) []MonthlyData {
	type bucket struct {
		temps  []float64
		powers []float64
		rainy  int
	}
	buckets := make(map[string]*bucket)
	for _, r := range records {
		month := r.Date.Format("2006-01")
		b, ok := buckets[month]
		if !ok {
			b = &bucket{}
			buckets[month] = b
		}
		b.temps = append(b.temps, r.Temperature)
		b.powers = append(b.powers, float64(r.NetworkPower))
		if r.IsRaining {
			b.rainy++
		}
	}

	months := make([]string, 0, len(buckets))
	for m := range buckets {
		months = append(months, m)
	}
	sort.Strings(months)

	out := make([]MonthlyData, 0, len(months))
	for _, m := range months {
		b := buckets[m]
		out = append(out, MonthlyData{
			Month:          m,
			AverageTemp:    round2(average(b.temps)),
			AverageNetwork: round2(average(b.powers)),
			RecordCount:    len(b.temps),
			RainyDays:      b.rainy,
		})
	}
	return out
}

func networkDistribution(records []models.WeatherRecord) []NetworkDistribution {
	counts := make(map[models.NetworkPower]int)
	for _, r := range records {
		counts[r.NetworkPower]++
	}
	out := make([]NetworkDistribution, 0, 5)
	for power := models.NetworkPower(1); power <= 5; power++ {
		count := counts[power]
		if count == 0 {
			continue
		}
		out = append(out, NetworkDistribution{
			Power:      power,
			Count:      count,
			Percentage: round2(float64(count) * 100 / float64(len(records))),
		})
	}
	return out
}

// temperatureTrend compares the averages of the older and newer halves of the
// history, ordered by observation date. Differences under half a degree read
// as stable.
func temperatureTrend(records []models.WeatherRecord) TemperatureTrend {
	if len(records) < 2 {
		return TrendStable
	}
	sorted := make([]models.WeatherRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	mid := len(sorted) / 2
	older := make([]float64, 0, mid)
	newer := make([]float64, 0, len(sorted)-mid)
	for i, r := range sorted {
		if i < mid {
			older = append(older, r.Temperature)
		} else {
			newer = append(newer, r.Temperature)
		}
	}
	diff := average(newer) - average(older)
	switch {
	case diff > 0.5:
		return TrendUp
	case diff < -0.5:
		return TrendDown
	default:
		return TrendStable
	}
}
