/*
Package hr holds the HR snapshot as the integration layer sees it.

PURPOSE:
  Employees, leave requests and holidays are written by the HR pages.
  Leave balances and attendance summaries are created by the integration
  manager and afterwards maintained by HR's own workflows. This package
  only models the members the integration layer reads or creates; every
  other member of the blob (departments, payroll, leave types) is kept
  verbatim.

BLOB LAYOUT (key "hr", snake_case like the HR pages write it):
  {
    "employees": [...],
    "departments": [...],                 // preserved
    "leaves": {
      "leave_requests": [...],
      "leave_balances": [...],
      "leave_types": [...],               // preserved
      "holidays": [...]
    },
    "payroll": [...],                     // preserved
    "attendance": {"processed_summaries": [...]}
  }
*/
package hr

import (
	"github.com/warp/hospital-ledger/generic"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

type Category string

const (
	CategoryMedical        Category = "MEDICAL"
	CategoryNursing        Category = "NURSING"
	CategoryAdministrative Category = "ADMINISTRATIVE"
	CategorySupport        Category = "SUPPORT"
)

type Grade string

const (
	GradeJunior Grade = "JUNIOR"
	GradeMid    Grade = "MID"
	GradeSenior Grade = "SENIOR"
)

type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
	GenderOther  Gender = "OTHER"
)

// Employee is consumed, never written, by the integration layer.
type Employee struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Category         Category `json:"category"`
	Grade            Grade    `json:"grade"`
	Gender           Gender   `json:"gender"`
	EmploymentStatus string   `json:"employment_status"`
	DepartmentID     string   `json:"department_id,omitempty"`
}

// =============================================================================
// LEAVE
// =============================================================================

type LeaveType string

const (
	LeaveAnnual    LeaveType = "ANNUAL"
	LeaveSick      LeaveType = "SICK"
	LeaveEmergency LeaveType = "EMERGENCY"
	LeaveMaternity LeaveType = "MATERNITY"
	LeavePaternity LeaveType = "PATERNITY"
)

type RequestStatus string

const (
	RequestPending   RequestStatus = "PENDING"
	RequestApproved  RequestStatus = "APPROVED"
	RequestRejected  RequestStatus = "REJECTED"
	RequestCancelled RequestStatus = "CANCELLED"
)

type LeaveRequest struct {
	ID         string        `json:"id"`
	EmployeeID string        `json:"employee_id"`
	LeaveType  LeaveType     `json:"leave_type"`
	StartDate  generic.Date  `json:"start_date"`
	EndDate    generic.Date  `json:"end_date"`
	Status     RequestStatus `json:"status"`
	Reason     string        `json:"reason,omitempty"`
}

// Range returns the inclusive date range of the request.
func (r LeaveRequest) Range() generic.DateRange {
	return generic.DateRange{Start: r.StartDate, End: r.EndDate}
}

// LeaveBalance holds one employee's entitlement for one year, in days.
type LeaveBalance struct {
	ID         string            `json:"id"`
	EmployeeID string            `json:"employee_id"`
	Year       int               `json:"year"`
	Annual     int               `json:"annual"`
	Sick       int               `json:"sick"`
	Emergency  int               `json:"emergency"`
	Maternity  int               `json:"maternity"`
	Paternity  int               `json:"paternity"`
	Used       map[LeaveType]int `json:"used"`
}

// =============================================================================
// ATTENDANCE
// =============================================================================

type AttendanceStatus string

const (
	Present AttendanceStatus = "PRESENT"
	Absent  AttendanceStatus = "ABSENT"
	OnLeave AttendanceStatus = "LEAVE"
	Holiday AttendanceStatus = "HOLIDAY"
)

type AttendanceSummary struct {
	ID             string           `json:"id"`
	EmployeeID     string           `json:"employee_id"`
	Date           generic.Date     `json:"date"`
	Status         AttendanceStatus `json:"status"`
	LeaveRequestID string           `json:"leave_request_id,omitempty"`
	Source         string           `json:"source,omitempty"`
}
