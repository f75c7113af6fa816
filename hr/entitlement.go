package hr

import (
	"github.com/warp/hospital-ledger/generic"
)

// Entitlement days per year.
const (
	AnnualMedical = 30
	AnnualSenior  = 25
	AnnualDefault = 21
	SickDays      = 14
	EmergencyDays = 3
	MaternityDays = 90
	PaternityDays = 3
)

// AnnualDays applies the annual-leave rule: medical staff first, then
// senior grade, then everyone else.
func AnnualDays(e Employee) int {
	switch {
	case e.Category == CategoryMedical:
		return AnnualMedical
	case e.Grade == GradeSenior:
		return AnnualSenior
	default:
		return AnnualDefault
	}
}

// NewLeaveBalance builds the yearly entitlement of an employee with
// nothing used yet.
func NewLeaveBalance(e Employee, year int) LeaveBalance {
	b := LeaveBalance{
		ID:         generic.NewID("lb"),
		EmployeeID: e.ID,
		Year:       year,
		Annual:     AnnualDays(e),
		Sick:       SickDays,
		Emergency:  EmergencyDays,
		Used:       map[LeaveType]int{},
	}
	if e.Gender == GenderFemale {
		b.Maternity = MaternityDays
	}
	if e.Gender == GenderMale {
		b.Paternity = PaternityDays
	}
	return b
}
