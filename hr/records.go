package hr

import (
	"strconv"

	"github.com/warp/hospital-ledger/generic"
)

// =============================================================================
// RECORDS - The decoded HR snapshot
// =============================================================================

type Records struct {
	Employees  []Employee `json:"employees"`
	Leaves     Leaves     `json:"leaves"`
	Attendance Attendance `json:"attendance"`

	Extra generic.Extra `json:"-"`
}

type Leaves struct {
	Requests []LeaveRequest    `json:"leave_requests"`
	Balances []LeaveBalance    `json:"leave_balances"`
	Holidays []generic.Holiday `json:"holidays"`

	Extra generic.Extra `json:"-"`
}

type Attendance struct {
	Summaries []AttendanceSummary `json:"processed_summaries"`

	Extra generic.Extra `json:"-"`
}

type (
	records    Records
	leaves     Leaves
	attendance Attendance
)

func (r *Records) UnmarshalJSON(data []byte) (err error) {
	r.Extra, err = generic.DecodePreserving(data, (*records)(r))
	return err
}

func (r Records) MarshalJSON() ([]byte, error) {
	return generic.EncodePreserving(records(r), r.Extra)
}

func (l *Leaves) UnmarshalJSON(data []byte) (err error) {
	l.Extra, err = generic.DecodePreserving(data, (*leaves)(l))
	return err
}

func (l Leaves) MarshalJSON() ([]byte, error) {
	return generic.EncodePreserving(leaves(l), l.Extra)
}

func (a *Attendance) UnmarshalJSON(data []byte) (err error) {
	a.Extra, err = generic.DecodePreserving(data, (*attendance)(a))
	return err
}

func (a Attendance) MarshalJSON() ([]byte, error) {
	return generic.EncodePreserving(attendance(a), a.Extra)
}

// LoadRecords returns the HR snapshot of a unit of work.
func LoadRecords(tx *generic.Tx) (*Records, error) {
	return generic.Load[Records](tx, generic.KeyHR)
}

// =============================================================================
// LOOKUPS
// =============================================================================

func (r *Records) Employee(id string) (Employee, bool) {
	for _, e := range r.Employees {
		if e.ID == id {
			return e, true
		}
	}
	return Employee{}, false
}

func (r *Records) LeaveRequest(id string) (LeaveRequest, bool) {
	for _, l := range r.Leaves.Requests {
		if l.ID == id {
			return l, true
		}
	}
	return LeaveRequest{}, false
}

func (r *Records) HasBalance(employeeID string, year int) bool {
	for _, b := range r.Leaves.Balances {
		if b.EmployeeID == employeeID && b.Year == year {
			return true
		}
	}
	return false
}

func (r *Records) HasSummary(employeeID string, date generic.Date) bool {
	for _, s := range r.Attendance.Summaries {
		if s.EmployeeID == employeeID && s.Date.Equal(date) {
			return true
		}
	}
	return false
}

// SummariesFor returns the attendance rows of one employee.
func (r *Records) SummariesFor(employeeID string) []AttendanceSummary {
	var out []AttendanceSummary
	for _, s := range r.Attendance.Summaries {
		if s.EmployeeID == employeeID {
			out = append(out, s)
		}
	}
	return out
}

// BalancesFor returns the leave balances of one employee.
func (r *Records) BalancesFor(employeeID string) []LeaveBalance {
	var out []LeaveBalance
	for _, b := range r.Leaves.Balances {
		if b.EmployeeID == employeeID {
			out = append(out, b)
		}
	}
	return out
}

// =============================================================================
// CREATION - Unique by natural key
// =============================================================================

// AddBalance stores b unless the employee already has a balance for b.Year.
func (r *Records) AddBalance(b LeaveBalance) error {
	if r.HasBalance(b.EmployeeID, b.Year) {
		return &generic.DuplicateKeyError{Kind: "leave balance", Key: b.EmployeeID + "/" + strconv.Itoa(b.Year)}
	}
	r.Leaves.Balances = append(r.Leaves.Balances, b)
	return nil
}

// AddSummary stores s unless the employee already has a row for s.Date.
func (r *Records) AddSummary(s AttendanceSummary) error {
	if r.HasSummary(s.EmployeeID, s.Date) {
		return &generic.DuplicateKeyError{Kind: "attendance summary", Key: s.EmployeeID + "/" + s.Date.String()}
	}
	r.Attendance.Summaries = append(r.Attendance.Summaries, s)
	return nil
}
