package dto

// CycleBootstrapResult summarises one utility cycle bootstrap run.
type CycleBootstrapResult struct {
	CycleID  string `json:"cycle_id"`
	Month    int    `json:"month"`
	Year     int    `json:"year"`
	Created  bool   `json:"created"`
	Invoices int    `json:"invoices"`
}

// RecordReadingsRequest carries the meter values entered for one detail row.
type RecordReadingsRequest struct {
	ElectricityNew int64 `json:"electricity_new" validate:"min=0"`
	WaterNew       int64 `json:"water_new" validate:"min=0"`
}

// PublishCycleResult summarises a cycle publish run.
type PublishCycleResult struct {
	CycleID   string `json:"cycle_id"`
	Published int    `json:"published"`
	Skipped   int    `json:"skipped"`
}
