package model

import "maps"

// Field names accepted by partial updates. Only keys present in an update
// are applied; everything else keeps its current value.
const (
	FieldDisplayName    = "displayName"
	FieldBio            = "bio"
	FieldAvatar         = "avatar"
	FieldSelectedRelays = "selectedRelays"
	FieldTheme          = "theme"
	FieldLanguage       = "language"
	FieldAutostart      = "autostart"
	FieldNotifications  = "notifications"
)

// ProfileUpdate collects a subset of profile fields to change.
// A zero update dispatches nothing.
type ProfileUpdate struct {
	fields map[string]any
}

// NewProfileUpdate creates an empty profile update.
func NewProfileUpdate() *ProfileUpdate {
	return &ProfileUpdate{fields: make(map[string]any)}
}

// DisplayName sets the display name field.
func (u *ProfileUpdate) DisplayName(name string) *ProfileUpdate {
	u.fields[FieldDisplayName] = name
	return u
}

// Bio sets the bio field.
func (u *ProfileUpdate) Bio(bio string) *ProfileUpdate {
	u.fields[FieldBio] = bio
	return u
}

// Avatar sets the avatar reference field.
func (u *ProfileUpdate) Avatar(ref string) *ProfileUpdate {
	u.fields[FieldAvatar] = ref
	return u
}

// Empty reports whether no fields have been set.
func (u *ProfileUpdate) Empty() bool {
	return len(u.fields) == 0
}

// Fields returns a copy of the present field map.
func (u *ProfileUpdate) Fields() map[string]any {
	return maps.Clone(u.fields)
}

// Validate checks the bounds of every present field.
func (u *ProfileUpdate) Validate() error {
	var fieldErrs []FieldError

	if v, ok := u.fields[FieldDisplayName]; ok {
		if name, _ := v.(string); len(name) < 1 || len(name) > 50 {
			fieldErrs = append(fieldErrs, FieldError{
				Field:   FieldDisplayName,
				Message: "must be between 1 and 50 characters",
			})
		}
	}

	if v, ok := u.fields[FieldBio]; ok {
		if bio, _ := v.(string); len(bio) > 160 {
			fieldErrs = append(fieldErrs, FieldError{
				Field:   FieldBio,
				Message: "must be at most 160 characters",
			})
		}
	}

	if len(fieldErrs) > 0 {
		return &ValidationError{Fields: fieldErrs}
	}

	return nil
}

// SettingsUpdate collects a subset of settings fields to change.
type SettingsUpdate struct {
	fields map[string]any
}

// NewSettingsUpdate creates an empty settings update.
func NewSettingsUpdate() *SettingsUpdate {
	return &SettingsUpdate{fields: make(map[string]any)}
}

// SelectedRelays sets the relay list field.
func (u *SettingsUpdate) SelectedRelays(relays []string) *SettingsUpdate {
	u.fields[FieldSelectedRelays] = relays
	return u
}

// Theme sets the theme field.
func (u *SettingsUpdate) Theme(theme string) *SettingsUpdate {
	u.fields[FieldTheme] = theme
	return u
}

// Language sets the language field.
func (u *SettingsUpdate) Language(lang string) *SettingsUpdate {
	u.fields[FieldLanguage] = lang
	return u
}

// Autostart sets the autostart flag.
func (u *SettingsUpdate) Autostart(on bool) *SettingsUpdate {
	u.fields[FieldAutostart] = on
	return u
}

// Notifications sets the notifications flag.
func (u *SettingsUpdate) Notifications(on bool) *SettingsUpdate {
	u.fields[FieldNotifications] = on
	return u
}

// Empty reports whether no fields have been set.
func (u *SettingsUpdate) Empty() bool {
	return len(u.fields) == 0
}

// Fields returns a copy of the present field map.
func (u *SettingsUpdate) Fields() map[string]any {
	return maps.Clone(u.fields)
}

// Validate checks the bounds of every present field.
func (u *SettingsUpdate) Validate() error {
	var fieldErrs []FieldError

	if v, ok := u.fields[FieldTheme]; ok {
		theme, _ := v.(string)
		if theme != ThemeLight && theme != ThemeDark && theme != ThemeSystem {
			fieldErrs = append(fieldErrs, FieldError{
				Field:   FieldTheme,
				Message: "must be one of light, dark, system",
			})
		}
	}

	if v, ok := u.fields[FieldSelectedRelays]; ok {
		relays, _ := v.([]string)
		for _, relay := range relays {
			if err := validate.Var(relay, "url"); err != nil {
				fieldErrs = append(fieldErrs, FieldError{
					Field:   FieldSelectedRelays,
					Message: "must contain only valid URLs",
				})

				break
			}
		}
	}

	if len(fieldErrs) > 0 {
		return &ValidationError{Fields: fieldErrs}
	}

	return nil
}

// Apply writes the present fields onto a settings value.
func (u *SettingsUpdate) Apply(s *Settings) {
	if v, ok := u.fields[FieldSelectedRelays]; ok {
		if relays, ok := v.([]string); ok {
			s.SelectedRelays = relays
		}
	}

	if v, ok := u.fields[FieldTheme]; ok {
		if theme, ok := v.(string); ok {
			s.Theme = theme
		}
	}

	if v, ok := u.fields[FieldLanguage]; ok {
		if lang, ok := v.(string); ok {
			s.Language = lang
		}
	}

	if v, ok := u.fields[FieldAutostart]; ok {
		if on, ok := v.(bool); ok {
			s.Autostart = on
		}
	}

	if v, ok := u.fields[FieldNotifications]; ok {
		if on, ok := v.(bool); ok {
			s.Notifications = on
		}
	}
}
