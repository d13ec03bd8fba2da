package models

// ThemeMode selects the dashboard color scheme.
type ThemeMode string

const (
	ThemeLight ThemeMode = "light"
	ThemeDark  ThemeMode = "dark"
	ThemeAuto  ThemeMode = "auto"
)

// Language selects the UI locale.
type Language string

const (
	LanguagePT Language = "pt"
	LanguageEN Language = "en"
)

// DateFormat is the date rendering pattern preference.
type DateFormat string

const (
	DateDMY DateFormat = "DD/MM/YYYY"
	DateMDY DateFormat = "MM/DD/YYYY"
	DateYMD DateFormat = "YYYY-MM-DD"
)

// NotificationSettings toggles the alert categories a user receives.
type NotificationSettings struct {
	WeatherAlerts bool `json:"weatherAlerts"`
	NetworkAlerts bool `json:"networkAlerts"`
	DataUpdates   bool `json:"dataUpdates"`
	SystemUpdates bool `json:"systemUpdates"`
}

// AppSettings holds the user-configurable preferences. Read by the UI and
// aggregation layers; the sync layer never mutates it.
type AppSettings struct {
	Theme             ThemeMode            `json:"theme"`
	Language          Language             `json:"language"`
	Timezone          string               `json:"timezone"`
	DateFormat        DateFormat           `json:"dateFormat"`
	TemperatureUnit   TemperatureUnit      `json:"temperatureUnit"`
	Notifications     NotificationSettings `json:"notifications"`
	AutoSave          bool                 `json:"autoSave"`
	DataRetentionDays int                  `json:"dataRetentionDays"`
}

// DefaultSettings returns the settings applied on first run or when the
// persisted settings fail validation.
func DefaultSettings() AppSettings {
	return AppSettings{
		Theme:           ThemeAuto,
		Language:        LanguageEN,
		Timezone:        "Europe/Lisbon",
		DateFormat:      DateDMY,
		TemperatureUnit: TemperatureCelsius,
		Notifications: NotificationSettings{
			WeatherAlerts: true,
			NetworkAlerts: true,
			DataUpdates:   false,
			SystemUpdates: true,
		},
		AutoSave:          true,
		DataRetentionDays: 365,
	}
}
