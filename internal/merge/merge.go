// Package merge reconciles an imported document into the current one.
// Every collection merges by record id: unknown ids are appended, known ids
// are updated. Nothing is ever deleted by a merge, so importing an old
// backup cannot drop records created since.
package merge

import (
	"errors"

	"github.com/juckphai/salejuck/internal/pos"
)

// ErrMalformedDocument rejects imports that do not look like a document at
// all. The users collection is the one collection every valid export has.
var ErrMalformedDocument = errors.New("merge: malformed document")

// Stats counts what a merge did, for logging and the import summary.
type Stats struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

func (s *Stats) add(other Stats) {
	s.Added += other.Added
	s.Updated += other.Updated
	s.Skipped += other.Skipped
}

// Merge folds incoming into current in place. Product stock is never
// copied from the incoming document; stock is derived and the caller is
// expected to recompute it after merging. Admin records are matched by
// username, not id: ids are minted per device, so the same admin carries a
// different id in every backup. The current admin only adopts the incoming
// password, and no admin record ever enters the id-keyed upsert, so an
// import cannot demote, rename, or duplicate the admin.
func Merge(current, incoming *pos.Document) (Stats, error) {
	if incoming == nil || incoming.Users == nil {
		return Stats{}, ErrMalformedDocument
	}

	var stats Stats
	stats.add(mergeUsers(current, incoming.Users))
	stats.add(mergeProducts(current, incoming.Products))
	stats.add(mergeByID(&current.Sales, incoming.Sales, func(s pos.Sale) int64 { return s.ID }))
	stats.add(mergeByID(&current.StockIns, incoming.StockIns, func(s pos.StockIn) int64 { return s.ID }))
	stats.add(mergeByID(&current.StockOuts, incoming.StockOuts, func(s pos.StockOut) int64 { return s.ID }))
	stats.add(mergeByID(&current.Stores, incoming.Stores, func(s pos.Store) int64 { return s.ID }))
	return stats, nil
}

// mergeByID is the plain collection rule: replace on id match, append
// otherwise, skip records without an id.
func mergeByID[T any](current *[]T, incoming []T, id func(T) int64) Stats {
	var stats Stats
	index := make(map[int64]int, len(*current))
	for i, record := range *current {
		if key := id(record); key != 0 {
			index[key] = i
		}
	}
	for _, record := range incoming {
		key := id(record)
		if key == 0 {
			stats.Skipped++
			continue
		}
		if i, ok := index[key]; ok {
			(*current)[i] = record
			stats.Updated++
			continue
		}
		index[key] = len(*current)
		*current = append(*current, record)
		stats.Added++
	}
	return stats
}

func mergeUsers(current *pos.Document, incoming []pos.User) Stats {
	var stats Stats
	for _, user := range incoming {
		if user.Role == pos.RoleAdmin {
			admin := current.UserByUsername(pos.DefaultAdminUsername)
			if user.Username == pos.DefaultAdminUsername && admin != nil {
				admin.Password = user.Password
				stats.Updated++
			} else {
				stats.Skipped++
			}
			continue
		}
		if user.ID == 0 {
			stats.Skipped++
			continue
		}
		existing := current.UserByID(user.ID)
		switch {
		case existing == nil:
			current.Users = append(current.Users, user)
			stats.Added++
		case existing.Role == pos.RoleAdmin:
			// A seller record colliding with the admin's id must not
			// overwrite the admin.
			stats.Skipped++
		default:
			*existing = user
			stats.Updated++
		}
	}
	return stats
}

// mergeProducts copies descriptive fields only. Stock stays whatever the
// current document says until the post-merge recomputation rewrites it
// from the merged movement history.
func mergeProducts(current *pos.Document, incoming []pos.Product) Stats {
	var stats Stats
	for _, product := range incoming {
		if product.ID == 0 {
			stats.Skipped++
			continue
		}
		existing := current.ProductByID(product.ID)
		if existing == nil {
			current.Products = append(current.Products, product)
			stats.Added++
			continue
		}
		existing.Name = product.Name
		existing.Unit = product.Unit
		existing.CostPrice = product.CostPrice
		existing.SellingPrice = product.SellingPrice
		stats.Updated++
	}
	return stats
}
