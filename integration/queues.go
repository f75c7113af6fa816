package integration

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/hospital-ledger/generic"
)

// =============================================================================
// PENDING ACTIONS
// =============================================================================

type Kind string

const (
	KindPayrollUpdate    Kind = "PAYROLL_UPDATE"
	KindPayrollToFinance Kind = "PAYROLL_TO_FINANCE"
	KindInventoryExpense Kind = "INVENTORY_EXPENSE"
	KindReceivedPurchase Kind = "RECEIVED_PURCHASE"
)

// PendingAction is a queued side effect waiting for a downstream module.
// Key is the natural key used for deduplication where the kind has one.
type PendingAction struct {
	ID       string          `json:"id"`
	Kind     Kind            `json:"kind"`
	Key      string          `json:"key"`
	Payload  json.RawMessage `json:"payload"`
	QueuedAt time.Time       `json:"queuedAt"`
}

// Decode unmarshals the payload into v.
func (a PendingAction) Decode(v any) error {
	return json.Unmarshal(a.Payload, v)
}

type PayrollUpdate struct {
	Date        generic.Date `json:"date"`
	EmployeeIDs []string     `json:"employeeIds"`
}

type PayrollRun struct {
	Period        string          `json:"period"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	EmployeeCount int             `json:"employeeCount"`
}

type PurchaseReceipt struct {
	PurchaseOrderID string          `json:"purchaseOrderId"`
	SupplierID      string          `json:"supplierId"`
	Amount          decimal.Decimal `json:"amount"`
	Date            generic.Date    `json:"date"`
}

func newAction(kind Kind, key string, payload any, at time.Time) (PendingAction, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return PendingAction{}, err
	}
	return PendingAction{
		ID:       generic.NewID("act"),
		Kind:     kind,
		Key:      key,
		Payload:  raw,
		QueuedAt: at.UTC(),
	}, nil
}

// =============================================================================
// QUEUES - The integration metadata snapshot
// =============================================================================

// Queues is the decoded "integrations" blob. Pending invoices are queued
// by the billing pages in their own shape and are only counted and cleared
// here.
type Queues struct {
	PayrollUpdates    []PendingAction   `json:"pendingPayrollUpdates"`
	PayrollToFinance  []PendingAction   `json:"payrollToFinance"`
	InventoryExpenses []PendingAction   `json:"inventoryExpenses"`
	ReceivedPurchases []PendingAction   `json:"receivedPurchases"`
	PendingInvoices   []json.RawMessage `json:"pendingInvoices"`

	Extra generic.Extra `json:"-"`
}

type queues Queues

func (q *Queues) UnmarshalJSON(data []byte) (err error) {
	q.Extra, err = generic.DecodePreserving(data, (*queues)(q))
	return err
}

func (q Queues) MarshalJSON() ([]byte, error) {
	return generic.EncodePreserving(queues(q), q.Extra)
}

// LoadQueues returns the integration snapshot of a unit of work.
func LoadQueues(tx *generic.Tx) (*Queues, error) {
	return generic.Load[Queues](tx, generic.KeyIntegrations)
}

// Count is the number of queued actions across every queue.
func (q *Queues) Count() int {
	return len(q.PayrollUpdates) + len(q.PayrollToFinance) + len(q.InventoryExpenses) +
		len(q.ReceivedPurchases) + len(q.PendingInvoices)
}

// Clear empties every queue. There is no partial clear.
func (q *Queues) Clear() {
	q.PayrollUpdates = []PendingAction{}
	q.PayrollToFinance = []PendingAction{}
	q.InventoryExpenses = []PendingAction{}
	q.ReceivedPurchases = []PendingAction{}
	q.PendingInvoices = []json.RawMessage{}
}

func hasKey(list []PendingAction, key string) bool {
	for _, a := range list {
		if a.Key == key {
			return true
		}
	}
	return false
}
