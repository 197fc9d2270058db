package models

import "time"

// Preferences holds per-owner settings. A nil field means the owner never set
// it and the process-wide default applies.
type Preferences struct {
	OwnerID         int64
	SendDescription *bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SendDescriptionOr returns the owner's choice, or def when unset.
func (p *Preferences) SendDescriptionOr(def bool) bool {
	if p == nil || p.SendDescription == nil {
		return def
	}
	return *p.SendDescription
}
