package inventory

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the stock level label derived from quantity and reorder level.
type Status string

const (
	// StatusInStock means quantity is above the reorder level.
	StatusInStock Status = "In Stock"
	// StatusLowStock means quantity is positive but at or below the reorder level.
	StatusLowStock Status = "Low Stock"
	// StatusOutOfStock means nothing is on hand.
	StatusOutOfStock Status = "Out of Stock"
)

// MovementType enumerates ledger directions.
type MovementType string

const (
	// MovementAdd increases stock.
	MovementAdd MovementType = "add"
	// MovementSubtract decreases stock.
	MovementSubtract MovementType = "subtract"
)

const (
	// NeutralColor is assigned to categories and folders created on demand.
	NeutralColor = "#9CA3AF"
	// DefaultCategory is used when a row names none.
	DefaultCategory = "Uncategorized"
	// DefaultFolder is used when a row names neither folder.
	DefaultFolder = "Unassigned"
)

// DeriveStatus applies the stock status rule.
func DeriveStatus(quantity, reorderLevel int) Status {
	switch {
	case quantity <= 0:
		return StatusOutOfStock
	case quantity <= reorderLevel:
		return StatusLowStock
	default:
		return StatusInStock
	}
}

// Key maps a SKU or reference name to its identity form. It lowercases rune by rune, the
// same rule as the lower() unique indexes, so "STRASSE" and "straße" stay distinct.
func Key(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Item is a persisted inventory row scoped to one organization.
type Item struct {
	ID                        string
	OrganizationID            string
	UserID                    string
	SKU                       string
	Name                      string
	Description               string
	CategoryID                string
	FolderID                  string
	PickingFolderID           string
	PickingQuantity           int
	OverstockQuantity         int
	Quantity                  int
	ReorderLevel              int
	PickingReorderLevel       int
	UnitCost                  decimal.Decimal
	RetailPrice               decimal.Decimal
	Status                    Status
	ImageURL                  string
	VendorID                  string
	Barcode                   string
	Tags                      string
	Notes                     string
	AutoReorderEnabled        bool
	PickingAutoReorderEnabled bool
	LastUpdated               time.Time
}

// Recompute refreshes the derived quantity and status.
func (i *Item) Recompute() {
	i.Quantity = i.PickingQuantity + i.OverstockQuantity
	i.Status = DeriveStatus(i.Quantity, i.ReorderLevel)
}

// Category groups items. Names are unique per organization ignoring case.
type Category struct {
	ID             string
	OrganizationID string
	Name           string
	Color          string
	CreatedAt      time.Time
}

// Folder is a storage location. Names are unique per organization ignoring case.
type Folder struct {
	ID             string
	OrganizationID string
	Name           string
	Color          string
	ParentID       string
	CreatedAt      time.Time
}

// StockMovement is an append-only ledger entry for a quantity change.
type StockMovement struct {
	ID             string
	ItemID         string
	ItemName       string
	Type           MovementType
	Amount         int
	OldQuantity    int
	NewQuantity    int
	Reason         string
	FolderID       string
	OrganizationID string
	UserID         string
	CreatedAt      time.Time
}

// Validate checks the ledger arithmetic.
func (m StockMovement) Validate() error {
	if m.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidMovement)
	}
	switch m.Type {
	case MovementAdd:
		if m.NewQuantity != m.OldQuantity+m.Amount {
			return fmt.Errorf("%w: %d + %d != %d", ErrInvalidMovement, m.OldQuantity, m.Amount, m.NewQuantity)
		}
	case MovementSubtract:
		if m.NewQuantity != m.OldQuantity-m.Amount {
			return fmt.Errorf("%w: %d - %d != %d", ErrInvalidMovement, m.OldQuantity, m.Amount, m.NewQuantity)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidMovement, m.Type)
	}
	return nil
}

// Snapshot is the read-once view of a tenant catalog used by one import run.
// Maps are keyed by Key(name) or Key(sku).
type Snapshot struct {
	OrganizationID string
	Categories     map[string]Category
	Folders        map[string]Folder
	Items          map[string]Item
}

// NewSnapshot returns an empty snapshot for the organization.
func NewSnapshot(organizationID string) Snapshot {
	return Snapshot{
		OrganizationID: organizationID,
		Categories:     make(map[string]Category),
		Folders:        make(map[string]Folder),
		Items:          make(map[string]Item),
	}
}

// ItemBySKU looks up an item ignoring case.
func (s Snapshot) ItemBySKU(sku string) (Item, bool) {
	item, ok := s.Items[Key(sku)]
	return item, ok
}

// IndexEntry is the per-SKU data a client pre-scan needs.
type IndexEntry struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// Index is the lightweight catalog listing served to clients.
type Index struct {
	SKUs    []IndexEntry `json:"skus"`
	Folders []string     `json:"folders"`
}

// StockAddition describes an additive quantity merge for an existing item.
type StockAddition struct {
	OrganizationID string
	UserID         string
	ItemID         string
	Picking        int
	Overstock      int
	Reason         string
}

var (
	// ErrItemNotFound indicates a missing item.
	ErrItemNotFound = errors.New("inventory: item not found")
	// ErrCategoryNotFound indicates a missing category.
	ErrCategoryNotFound = errors.New("inventory: category not found")
	// ErrFolderNotFound indicates a missing folder.
	ErrFolderNotFound = errors.New("inventory: folder not found")
	// ErrInvalidMovement indicates a ledger entry whose arithmetic does not hold.
	ErrInvalidMovement = errors.New("inventory: invalid stock movement")
	// ErrInvalidQuantity indicates a negative quantity.
	ErrInvalidQuantity = errors.New("inventory: quantity must be >= 0")
	// ErrNameRequired indicates an empty category or folder name.
	ErrNameRequired = errors.New("inventory: name required")
)
