package models

import "time"

// DefaultScannerInfo is recorded on punches when the scanner sends no description.
const DefaultScannerInfo = "Android Scanner"

// Punch is one accepted attendance scan. Punches are never updated; the
// reconciler may delete redundant ones.
type Punch struct {
	ID               string    `json:"id"`
	OwnerMobile      string    `json:"owner_mobile"`
	OwnerName        string    `json:"owner_name"`
	ScanTime         time.Time `json:"scan_time"`
	CredentialID     string    `json:"credential_id"`
	ScanningDeviceID string    `json:"scanning_device_id"`
	Location         string    `json:"location,omitempty"`
	ScannerInfo      string    `json:"scanner_info"`
}

func (p *Punch) Clone() *Punch {
	if p == nil {
		return nil
	}
	out := *p
	return &out
}

// DailyUsage aggregates one owner's accepted scans on one calendar day.
type DailyUsage struct {
	Date          string   `json:"date"`
	OwnerMobile   string   `json:"owner_mobile"`
	CredentialIDs []string `json:"credential_ids"`
	Count         int      `json:"count"`
	LastDeviceID  string   `json:"last_device_id,omitempty"`
}

// UsageStat is the punch count for one calendar day.
type UsageStat struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// DateLayout keys daily aggregates and usage stats.
const DateLayout = "2006-01-02"

// DayKey formats t's calendar day in t's location.
func DayKey(t time.Time) string {
	return t.Format(DateLayout)
}

// DayBounds returns [start, end) of day's calendar day in day's location.
func DayBounds(day time.Time) (time.Time, time.Time) {
	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	return start, start.AddDate(0, 0, 1)
}
