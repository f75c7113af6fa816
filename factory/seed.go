package factory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/warp/hospital-ledger/finance"
	"github.com/warp/hospital-ledger/generic"
	"github.com/warp/hospital-ledger/hr"
)

// =============================================================================
// DEMO SEED - Chart of accounts plus a small staff roster
// =============================================================================

// StaffJSON is demo HR data merged into the hr snapshot by Seed.
type StaffJSON struct {
	Employees []hr.Employee     `json:"employees"`
	Holidays  []generic.Holiday `json:"holidays,omitempty"`
}

// SeedReport counts what Seed created.
type SeedReport struct {
	Chart            ApplyReport `json:"chart"`
	EmployeesCreated int         `json:"employees_created"`
	HolidaysCreated  int         `json:"holidays_created"`
}

// Seed applies the default chart and the demo staff roster in one unit of
// work. Records that already exist are left alone, so Seed can run on every
// start.
func Seed(ctx context.Context, uow *generic.UnitOfWork) (SeedReport, error) {
	setup, err := ParseSetup(DefaultHospitalSetupJSON)
	if err != nil {
		return SeedReport{}, err
	}
	var staff StaffJSON
	if err := json.Unmarshal([]byte(DemoStaffJSON), &staff); err != nil {
		return SeedReport{}, fmt.Errorf("failed to parse staff JSON: %w", err)
	}

	var rep SeedReport
	err = uow.Update(ctx, func(tx *generic.Tx) error {
		rep = SeedReport{}
		book, err := finance.LoadBook(tx)
		if err != nil {
			return err
		}
		if rep.Chart, err = setup.Apply(book); err != nil {
			return err
		}
		records, err := hr.LoadRecords(tx)
		if err != nil {
			return err
		}
		rep.EmployeesCreated, rep.HolidaysCreated = staff.merge(records)
		return nil
	})
	if err != nil {
		return SeedReport{}, err
	}
	return rep, nil
}

func (s StaffJSON) merge(r *hr.Records) (employees, holidays int) {
	for _, e := range s.Employees {
		if _, ok := r.Employee(e.ID); ok {
			continue
		}
		r.Employees = append(r.Employees, e)
		employees++
	}
	known := make(map[string]bool, len(r.Leaves.Holidays))
	for _, h := range r.Leaves.Holidays {
		known[h.ID] = true
	}
	for _, h := range s.Holidays {
		if known[h.ID] {
			continue
		}
		r.Leaves.Holidays = append(r.Leaves.Holidays, h)
		holidays++
	}
	return employees, holidays
}

// DemoStaffJSON covers each leave entitlement rule once.
const DemoStaffJSON = `{
  "employees": [
    {"id": "emp-001", "name": "Dr. Amina Yusuf", "category": "MEDICAL", "grade": "MID", "gender": "FEMALE", "employment_status": "ACTIVE", "department_id": "dept-surgery"},
    {"id": "emp-002", "name": "Daniel Okafor", "category": "ADMINISTRATIVE", "grade": "SENIOR", "gender": "MALE", "employment_status": "ACTIVE", "department_id": "dept-admin"},
    {"id": "emp-003", "name": "Grace Mensah", "category": "NURSING", "grade": "JUNIOR", "gender": "FEMALE", "employment_status": "ACTIVE", "department_id": "dept-ward"},
    {"id": "emp-004", "name": "Sam Reyes", "category": "SUPPORT", "grade": "JUNIOR", "gender": "OTHER", "employment_status": "ACTIVE", "department_id": "dept-facilities"}
  ],
  "holidays": [
    {"id": "hol-new-year", "date": "2025-01-01", "name": "New Year's Day", "recurring": true},
    {"id": "hol-labour", "date": "2025-05-01", "name": "Labour Day", "recurring": true},
    {"id": "hol-christmas", "date": "2025-12-25", "name": "Christmas Day", "recurring": true}
  ]
}`
