package models

type Tramite struct {
	TramiteID string `json:"tramite_id"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
}
