package imports

import "github.com/odyssey-erp/stockbook/internal/inventory"

// Duplicate is a file row whose SKU already exists in the catalog.
type Duplicate struct {
	Row              int    `json:"row"`
	SKU              string `json:"sku"`
	Name             string `json:"name"`
	CSVQuantity      int    `json:"csvQuantity"`
	ExistingQuantity int    `json:"existingQuantity"`
}

// Scan is the read-only pre-scan of a file against a catalog index.
type Scan struct {
	Rows       int         `json:"rows"`
	New        int         `json:"new"`
	Duplicates []Duplicate `json:"duplicates"`
	NewFolders []string    `json:"newFolders"`
	Invalid    []RowError  `json:"invalid"`
}

// Prescan normalizes every row and classifies the valid ones.
func Prescan(rows []RawRow, idx inventory.Index) Scan {
	candidates := make([]Candidate, 0, len(rows))
	var invalid []RowError
	for _, r := range rows {
		c, rowErr := Normalize(r)
		if rowErr != nil {
			invalid = append(invalid, *rowErr)
			continue
		}
		candidates = append(candidates, c)
	}
	scan := Classify(candidates, idx)
	scan.Rows = len(rows)
	scan.Invalid = invalid
	return scan
}

// Classify partitions candidates into new and duplicate SKUs and lists referenced folders
// missing from the catalog. Duplicates keep the first occurrence of each SKU; folder names keep
// the first spelling seen. It performs no writes.
func Classify(candidates []Candidate, idx inventory.Index) Scan {
	existing := make(map[string]int, len(idx.SKUs))
	for _, e := range idx.SKUs {
		existing[inventory.Key(e.SKU)] = e.Quantity
	}
	folders := make(map[string]struct{}, len(idx.Folders))
	for _, name := range idx.Folders {
		folders[inventory.Key(name)] = struct{}{}
	}

	scan := Scan{Rows: len(candidates), Duplicates: []Duplicate{}, NewFolders: []string{}}
	seenDup := make(map[string]struct{})
	seenNew := make(map[string]struct{})
	for _, c := range candidates {
		key := inventory.Key(c.SKU)
		if qty, ok := existing[key]; ok {
			if _, dup := seenDup[key]; !dup {
				seenDup[key] = struct{}{}
				scan.Duplicates = append(scan.Duplicates, Duplicate{
					Row:              c.Row,
					SKU:              c.SKU,
					Name:             c.Name,
					CSVQuantity:      c.Quantity(),
					ExistingQuantity: qty,
				})
			}
		} else if _, seen := seenNew[key]; !seen {
			seenNew[key] = struct{}{}
			scan.New++
		}
		for _, name := range c.FolderNames() {
			fk := inventory.Key(name)
			if _, ok := folders[fk]; ok {
				continue
			}
			folders[fk] = struct{}{}
			scan.NewFolders = append(scan.NewFolders, name)
		}
	}
	return scan
}
