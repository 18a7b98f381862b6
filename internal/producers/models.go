package producers

import (
	"time"
)

// EnergySource tags the renewable source powering a production plant.
type EnergySource string

const (
	SourceSolar      EnergySource = "solar"
	SourceWind       EnergySource = "wind"
	SourceHydro      EnergySource = "hydro"
	SourceGeothermal EnergySource = "geothermal"
	SourceBiomass    EnergySource = "biomass"
	SourceOther      EnergySource = "other"
)

// ValidSource reports whether s is a known renewable source tag.
func ValidSource(s EnergySource) bool {
	switch s {
	case SourceSolar, SourceWind, SourceHydro, SourceGeothermal, SourceBiomass, SourceOther:
		return true
	}
	return false
}

// Producer is a registered green-hydrogen producer. Records are never
// deleted, only deactivated.
type Producer struct {
	Address                string       `json:"address" db:"address"`
	PlantID                string       `json:"plant_id" db:"plant_id"`
	Location               string       `json:"location" db:"location"`
	EnergySource           EnergySource `json:"energy_source" db:"energy_source"`
	MonthlyLimit           int64        `json:"monthly_limit" db:"monthly_limit"`
	TotalProduced          int64        `json:"total_produced" db:"total_produced"`
	CurrentMonthProduction int64        `json:"current_month_production" db:"current_month_production"`
	LastCountedMonth       int64        `json:"last_counted_month" db:"last_counted_month"`
	Active                 bool         `json:"active" db:"active"`
	Verified               bool         `json:"verified" db:"verified"`
	RegisteredAt           time.Time    `json:"registered_at" db:"registered_at"`
}

const thirtyDayWindow = 30 * 24 * 60 * 60

// MonthBucket computes the production-cap bucket for a point in time. The
// default is the historical floor(unix / 30 days) window, kept for
// compatibility with the original contracts; calendarMonths switches to real
// calendar months.
func MonthBucket(t time.Time, calendarMonths bool) int64 {
	if calendarMonths {
		return int64(t.UTC().Year())*12 + int64(t.UTC().Month()) - 1
	}
	return t.Unix() / thirtyDayWindow
}

// ApplyCap runs the monthly-cap check against p for an issuance of amount at
// time now, rolling the counter over when the bucket has advanced. It
// mutates p's counters on success and must run inside the same transaction
// that persists them; rollover and check are one atomic step.
func (p *Producer) ApplyCap(amount int64, now time.Time, calendarMonths bool) bool {
	bucket := MonthBucket(now, calendarMonths)
	current := p.CurrentMonthProduction
	if p.LastCountedMonth != bucket {
		current = 0
	}
	// Compared by subtraction: current never exceeds the limit, so the
	// headroom is non-negative and the check cannot wrap on a huge amount.
	if amount > p.MonthlyLimit-current {
		return false
	}
	p.CurrentMonthProduction = current + amount
	p.LastCountedMonth = bucket
	p.TotalProduced += amount
	return true
}
