package custody

import "github.com/xraph/settle/types"

// RentSchedule prices storage. A record of n bytes must hold
// (Overhead + n) * PerByteYear * ExemptionYears to be kept indefinitely.
type RentSchedule struct {
	Overhead       int    `json:"overhead" mapstructure:"overhead" yaml:"overhead"`
	PerByteYear    uint64 `json:"per_byte_year" mapstructure:"per_byte_year" yaml:"per_byte_year"`
	ExemptionYears uint64 `json:"exemption_years" mapstructure:"exemption_years" yaml:"exemption_years"`
}

// DefaultRent returns the schedule used when none is configured.
func DefaultRent() RentSchedule {
	return RentSchedule{
		Overhead:       128,
		PerByteYear:    3480,
		ExemptionYears: 2,
	}
}

// Reserve returns the reserve for a record of size bytes.
func (r RentSchedule) Reserve(size int) types.Amount {
	if size < 0 {
		size = 0
	}
	return types.Amount(uint64(r.Overhead+size) * r.PerByteYear * r.ExemptionYears)
}
