package model

// Theme values accepted by the settings document.
const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"
)

// Settings is the per-user application settings document.
type Settings struct {
	UserID         string   `json:"userId,omitempty" validate:"omitempty,uuid"`
	SelectedRelays []string `json:"selectedRelays"   validate:"dive,url"`
	Theme          string   `json:"theme"            validate:"oneof=light dark system"`
	Language       string   `json:"language"`
	Autostart      bool     `json:"autostart"`
	Notifications  bool     `json:"notifications"`
}

// DefaultSettings returns the settings used before a user has saved any.
func DefaultSettings() *Settings {
	return &Settings{
		SelectedRelays: []string{},
		Theme:          ThemeSystem,
		Language:       "ja",
		Autostart:      false,
		Notifications:  true,
	}
}
