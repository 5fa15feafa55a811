package pos

// Normalize applies the schema-default table to a loaded document: every
// top-level collection exists, at least one user exists, and optional fields
// introduced after older backups were written are backfilled with their
// documented defaults. Migrations are additive and idempotent; running
// Normalize twice produces no further change.
//
// The returned flag reports whether anything was modified, so callers can
// decide whether the normalized document needs persisting.
func Normalize(d *Document) bool {
	changed := false

	if d.Users == nil {
		d.Users = []User{}
		changed = true
	}
	if d.Products == nil {
		d.Products = []Product{}
		changed = true
	}
	if d.Sales == nil {
		d.Sales = []Sale{}
		changed = true
	}
	if d.StockIns == nil {
		d.StockIns = []StockIn{}
		changed = true
	}
	if d.StockOuts == nil {
		d.StockOuts = []StockOut{}
		changed = true
	}
	if d.Stores == nil {
		d.Stores = []Store{}
		changed = true
	}

	if len(d.Users) == 0 {
		d.Users = append(d.Users, DefaultAdmin())
		changed = true
	}

	for i := range d.Sales {
		sale := &d.Sales[i]
		for j := range sale.Items {
			item := &sale.Items[j]
			// Sales recorded before special pricing existed carry the
			// charged price as the original price. With non-pointer
			// floats an unset original price is indistinguishable from a
			// genuine zero, so items charged at zero keep a zero original
			// price.
			if !item.IsSpecialPrice && item.OriginalPrice == 0 && item.Price != 0 {
				item.OriginalPrice = item.Price
				changed = true
			}
		}
	}

	for i := range d.Users {
		u := &d.Users[i]
		if u.Role != RoleSeller {
			continue
		}
		if u.AssignedProductIDs == nil {
			u.AssignedProductIDs = []int64{}
			changed = true
		}
	}

	return changed
}
