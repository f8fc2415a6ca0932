package types

import "strings"

// Address is stored as a jsonb snapshot on orders and deliveries.
type Address struct {
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	Region     string  `json:"region"`
	PostalCode *string `json:"postal_code,omitempty"`
	Country    string  `json:"country"`
	Lat        float64 `json:"lat,omitempty"`
	Lng        float64 `json:"lng,omitempty"`
}

// Validate reports the first missing required field, if any.
func (a Address) Validate() string {
	if strings.TrimSpace(a.Line1) == "" {
		return "line1 is required"
	}
	if strings.TrimSpace(a.City) == "" {
		return "city is required"
	}
	if strings.TrimSpace(a.Country) == "" {
		return "country is required"
	}
	return ""
}
