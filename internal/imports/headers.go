package imports

import (
	"strings"

	"golang.org/x/text/cases"
)

// Canonical header names.
const (
	HeaderSKU                 = "sku"
	HeaderName                = "name"
	HeaderCategory            = "category"
	HeaderFolder              = "folderName"
	HeaderPickingFolder       = "pickingBinFolderName"
	HeaderPickingQuantity     = "pickingBinQuantity"
	HeaderOverstockQuantity   = "overstockQuantity"
	HeaderUnitCost            = "unitCost"
	HeaderRetailPrice         = "retailPrice"
	HeaderReorderLevel        = "reorderLevel"
	HeaderPickingReorderLevel = "pickingBinReorderLevel"
	HeaderDescription         = "description"
	HeaderImageURL            = "imageUrl"
	HeaderVendorID            = "vendorId"
	HeaderBarcode             = "barcode"
	HeaderTags                = "tags"
	HeaderNotes               = "notes"
	HeaderAutoReorder         = "autoReorderEnabled"
	HeaderPickingAutoReorder  = "pickingBinAutoReorder"
)

var headerAliases = map[string]string{
	"primaryfoldername":         HeaderFolder,
	"folder":                    HeaderFolder,
	"pickingfoldername":         HeaderPickingFolder,
	"pickingquantity":           HeaderPickingQuantity,
	"quantity":                  HeaderPickingQuantity,
	"price":                     HeaderRetailPrice,
	"pickingreorderlevel":       HeaderPickingReorderLevel,
	"pickingautoreorderenabled": HeaderPickingAutoReorder,
}

var canonicalHeaders = func() map[string]string {
	all := []string{
		HeaderSKU, HeaderName, HeaderCategory, HeaderFolder, HeaderPickingFolder, HeaderPickingQuantity,
		HeaderOverstockQuantity, HeaderUnitCost, HeaderRetailPrice, HeaderReorderLevel, HeaderPickingReorderLevel,
		HeaderDescription, HeaderImageURL, HeaderVendorID, HeaderBarcode, HeaderTags, HeaderNotes,
		HeaderAutoReorder, HeaderPickingAutoReorder,
	}
	out := make(map[string]string, len(all)+len(headerAliases))
	for _, h := range all {
		out[foldHeader(h)] = h
	}
	for alias, h := range headerAliases {
		out[alias] = h
	}
	return out
}()

// CanonicalHeader maps a spreadsheet header to its canonical name. Matching ignores case,
// surrounding spaces and a trailing required marker (" *"). Unknown headers return "".
func CanonicalHeader(h string) string {
	h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	h = strings.TrimSpace(strings.TrimSuffix(h, "*"))
	return canonicalHeaders[foldHeader(h)]
}

func foldHeader(h string) string {
	return cases.Fold().String(h)
}
