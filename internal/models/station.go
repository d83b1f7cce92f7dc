package models

type Station struct {
	StationID string `json:"station_id"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	Operator  string `json:"operator,omitempty"`
}
