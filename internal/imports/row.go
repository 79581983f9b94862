package imports

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockbook/internal/inventory"
)

// Candidate is a normalized spreadsheet row ready for resolution.
type Candidate struct {
	Row                       int             `json:"row"`
	SKU                       string          `json:"sku" validate:"required,max=100"`
	Name                      string          `json:"name" validate:"required,max=255"`
	Category                  string          `json:"category" validate:"max=120"`
	FolderName                string          `json:"folderName" validate:"max=120"`
	PickingFolderName         string          `json:"pickingBinFolderName" validate:"max=120"`
	PickingQuantity           int             `json:"pickingBinQuantity" validate:"gte=0"`
	OverstockQuantity         int             `json:"overstockQuantity" validate:"gte=0"`
	UnitCost                  decimal.Decimal `json:"unitCost"`
	RetailPrice               decimal.Decimal `json:"retailPrice"`
	ReorderLevel              int             `json:"reorderLevel" validate:"gte=0"`
	PickingReorderLevel       int             `json:"pickingBinReorderLevel" validate:"gte=0"`
	Description               string          `json:"description,omitempty"`
	ImageURL                  string          `json:"imageUrl,omitempty"`
	VendorID                  string          `json:"vendorId,omitempty"`
	Barcode                   string          `json:"barcode,omitempty"`
	Tags                      string          `json:"tags,omitempty"`
	Notes                     string          `json:"notes,omitempty"`
	AutoReorderEnabled        bool            `json:"autoReorderEnabled"`
	PickingAutoReorderEnabled bool            `json:"pickingBinAutoReorder"`
}

// Quantity is the total the row contributes.
func (c Candidate) Quantity() int {
	return c.PickingQuantity + c.OverstockQuantity
}

// FolderNames lists the distinct folders the row references, primary first.
func (c Candidate) FolderNames() []string {
	if inventory.Key(c.FolderName) == inventory.Key(c.PickingFolderName) {
		return []string{c.FolderName}
	}
	return []string{c.FolderName, c.PickingFolderName}
}

// Refs holds the resolved reference ids for a candidate.
type Refs struct {
	CategoryID      string
	FolderID        string
	PickingFolderID string
}

// Item builds the inventory item the candidate describes.
func (c Candidate) Item(orgID, userID string, refs Refs) inventory.Item {
	it := inventory.Item{
		OrganizationID:            orgID,
		UserID:                    userID,
		SKU:                       c.SKU,
		Name:                      c.Name,
		Description:               c.Description,
		CategoryID:                refs.CategoryID,
		FolderID:                  refs.FolderID,
		PickingFolderID:           refs.PickingFolderID,
		PickingQuantity:           c.PickingQuantity,
		OverstockQuantity:         c.OverstockQuantity,
		ReorderLevel:              c.ReorderLevel,
		PickingReorderLevel:       c.PickingReorderLevel,
		UnitCost:                  c.UnitCost,
		RetailPrice:               c.RetailPrice,
		ImageURL:                  c.ImageURL,
		VendorID:                  c.VendorID,
		Barcode:                   c.Barcode,
		Tags:                      c.Tags,
		Notes:                     c.Notes,
		AutoReorderEnabled:        c.AutoReorderEnabled,
		PickingAutoReorderEnabled: c.PickingAutoReorderEnabled,
	}
	it.Recompute()
	return it
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Normalize turns a raw row into a Candidate. Only a missing or oversized sku/name (or other
// text field) is an error; malformed numbers fall back to their defaults.
func Normalize(raw RawRow) (Candidate, *RowError) {
	c := Candidate{
		Row:                       raw.Row,
		SKU:                       raw.Get(HeaderSKU),
		Name:                      raw.Get(HeaderName),
		Category:                  raw.Get(HeaderCategory),
		FolderName:                raw.Get(HeaderFolder),
		PickingFolderName:         raw.Get(HeaderPickingFolder),
		PickingQuantity:           parseCount(raw.Get(HeaderPickingQuantity)),
		OverstockQuantity:         parseCount(raw.Get(HeaderOverstockQuantity)),
		UnitCost:                  parseMoney(raw.Get(HeaderUnitCost)),
		RetailPrice:               parseMoney(raw.Get(HeaderRetailPrice)),
		ReorderLevel:              parseCount(raw.Get(HeaderReorderLevel)),
		PickingReorderLevel:       parseCount(raw.Get(HeaderPickingReorderLevel)),
		Description:               raw.Get(HeaderDescription),
		ImageURL:                  raw.Get(HeaderImageURL),
		VendorID:                  raw.Get(HeaderVendorID),
		Barcode:                   raw.Get(HeaderBarcode),
		Tags:                      raw.Get(HeaderTags),
		Notes:                     raw.Get(HeaderNotes),
		AutoReorderEnabled:        parseFlag(raw.Get(HeaderAutoReorder)),
		PickingAutoReorderEnabled: parseFlag(raw.Get(HeaderPickingAutoReorder)),
	}
	if c.Category == "" {
		c.Category = inventory.DefaultCategory
	}
	switch {
	case c.FolderName == "" && c.PickingFolderName == "":
		c.FolderName = inventory.DefaultFolder
		c.PickingFolderName = inventory.DefaultFolder
	case c.FolderName == "":
		c.FolderName = c.PickingFolderName
	case c.PickingFolderName == "":
		c.PickingFolderName = c.FolderName
	}

	if err := validate.Struct(c); err != nil {
		return Candidate{}, rowErrorFrom(raw.Row, c.SKU, err)
	}
	return c, nil
}

func rowErrorFrom(row int, sku string, err error) *RowError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &RowError{Row: row, SKU: sku, Message: err.Error()}
	}
	fe := verrs[0]
	msg := fmt.Sprintf("%s is invalid", fe.Field())
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", fe.Field())
	case "max":
		msg = fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	}
	return &RowError{Row: row, SKU: sku, Field: fe.Field(), Message: msg}
}

// parseCount accepts base-10 integers >= 0, including integral decimals such as "12.0"
// that spreadsheets emit. Anything else, or anything beyond int32, is 0.
func parseCount(s string) int {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > math.MaxInt32 {
			return 0
		}
		return n
	}
	if strings.ContainsAny(s, "eE") {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() || !d.Equal(d.Truncate(0)) || d.GreaterThan(maxCount) {
		return 0
	}
	return int(d.IntPart())
}

var maxCount = decimal.NewFromInt(math.MaxInt32)

// parseMoney accepts non-negative decimals with an optional leading "$" and thousands
// separators. Anything else is 0.
func parseMoney(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func parseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}
