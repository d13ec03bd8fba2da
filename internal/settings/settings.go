// Package settings persists and validates user preferences through the
// key-value store, falling back to defaults whenever the stored copy is
// missing or malformed.
package settings

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/yanisfaquir/weatherboard/internal/kvstore"
	"github.com/yanisfaquir/weatherboard/internal/models"
)

const settingsKey = "user_settings"

var (
	ErrInvalidTheme           = errors.New("theme must be light, dark or auto")
	ErrInvalidLanguage        = errors.New("language must be pt or en")
	ErrInvalidTimezone        = errors.New("timezone is not a valid IANA zone")
	ErrInvalidDateFormat      = errors.New("dateFormat is not a supported pattern")
	ErrInvalidTemperatureUnit = errors.New("temperatureUnit must be celsius or fahrenheit")
	ErrInvalidRetention       = errors.New("dataRetentionDays must be between 1 and 3650")
	ErrStorageUnavailable     = errors.New("settings storage is unavailable")
)

// dateLayouts maps the display patterns to Go time layouts.
var dateLayouts = map[models.DateFormat]string{
	models.DateDMY: "02/01/2006",
	models.DateMDY: "01/02/2006",
	models.DateYMD: "2006-01-02",
}

// Service loads and saves AppSettings. Reads never fail: an absent or
// invalid stored value yields the defaults.
type Service struct {
	kv     kvstore.Store
	logger *zap.Logger
}

func NewService(kv kvstore.Store, logger *zap.Logger) *Service {
	return &Service{kv: kv, logger: logger}
}

// Load returns the persisted settings, or the defaults when nothing
// valid is stored.
func (s *Service) Load() models.AppSettings {
	var stored models.AppSettings
	if !s.kv.Get(settingsKey, &stored) {
		return models.DefaultSettings()
	}
	if err := Validate(stored); err != nil {
		s.logger.Warn("stored settings failed validation, using defaults",
			zap.Error(err))
		return models.DefaultSettings()
	}
	return stored
}

// Save validates and persists a full settings object.
func (s *Service) Save(settings models.AppSettings) error {
	if err := Validate(settings); err != nil {
		return err
	}
	if !s.kv.Available() {
		return ErrStorageUnavailable
	}
	s.kv.Set(settingsKey, settings)
	s.logger.Info("settings saved",
		zap.String("theme", string(settings.Theme)),
		zap.String("language", string(settings.Language)),
		zap.String("timezone", settings.Timezone))
	return nil
}

// Reset restores the defaults and persists them.
func (s *Service) Reset() models.AppSettings {
	defaults := models.DefaultSettings()
	if s.kv.Available() {
		s.kv.Set(settingsKey, defaults)
	}
	return defaults
}

// Validate checks every field against its allowed values. The timezone
// must resolve against the host tzdata.
func Validate(settings models.AppSettings) error {
	switch settings.Theme {
	case models.ThemeLight, models.ThemeDark, models.ThemeAuto:
	default:
		return ErrInvalidTheme
	}
	switch settings.Language {
	case models.LanguagePT, models.LanguageEN:
	default:
		return ErrInvalidLanguage
	}
	if settings.Timezone == "" {
		return ErrInvalidTimezone
	}
	if _, err := time.LoadLocation(settings.Timezone); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimezone, settings.Timezone)
	}
	if _, ok := dateLayouts[settings.DateFormat]; !ok {
		return ErrInvalidDateFormat
	}
	switch settings.TemperatureUnit {
	case models.TemperatureCelsius, models.TemperatureFahrenheit:
	default:
		return ErrInvalidTemperatureUnit
	}
	if settings.DataRetentionDays < 1 || settings.DataRetentionDays > 3650 {
		return ErrInvalidRetention
	}
	return nil
}

// FormatDate renders a timestamp in the user's date pattern and timezone.
func FormatDate(t time.Time, settings models.AppSettings) string {
	layout, ok := dateLayouts[settings.DateFormat]
	if !ok {
		layout = dateLayouts[models.DateDMY]
	}
	loc, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return t.In(loc).Format(layout)
}

// ConvertTemperature converts a value between recording units. Same-unit
// conversions return the value unchanged.
func ConvertTemperature(value float64, from, to models.TemperatureUnit) float64 {
	switch {
	case from == to:
		return value
	case from == models.TemperatureCelsius && to == models.TemperatureFahrenheit:
		return value*9/5 + 32
	case from == models.TemperatureFahrenheit && to == models.TemperatureCelsius:
		return (value - 32) * 5 / 9
	default:
		return value
	}
}

// FormatTemperature converts into the user's display unit and renders with
// one decimal place.
func FormatTemperature(value float64, sourceUnit models.TemperatureUnit, settings models.AppSettings) string {
	converted := ConvertTemperature(value, sourceUnit, settings.TemperatureUnit)
	rounded := math.Round(converted*10) / 10
	symbol := "°C"
	if settings.TemperatureUnit == models.TemperatureFahrenheit {
		symbol = "°F"
	}
	return fmt.Sprintf("%g%s", rounded, symbol)
}
