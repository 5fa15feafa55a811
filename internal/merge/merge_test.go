package merge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/juckphai/salejuck/internal/pos"
)

func baseDocument() *pos.Document {
	doc := pos.NewDocument()
	doc.Products = append(doc.Products, pos.Product{
		ID: 10, Name: "Widget", Unit: "pcs", Stock: 7, CostPrice: 5, SellingPrice: 8,
	})
	doc.Stores = append(doc.Stores, pos.Store{ID: 20, Name: "Main"})
	doc.Sales = append(doc.Sales, pos.Sale{ID: 30, Total: 24})
	return doc
}

func TestMergeRejectsMalformed(t *testing.T) {
	doc := baseDocument()

	_, err := Merge(doc, nil)
	require.ErrorIs(t, err, ErrMalformedDocument)

	_, err = Merge(doc, &pos.Document{})
	require.ErrorIs(t, err, ErrMalformedDocument)
}

func TestMergeAppendsUnknownRecords(t *testing.T) {
	doc := baseDocument()
	incoming := &pos.Document{
		Users:    []pos.User{},
		Products: []pos.Product{{ID: 11, Name: "Gadget", Stock: 99}},
		Stores:   []pos.Store{{ID: 21, Name: "Branch"}},
		Sales:    []pos.Sale{{ID: 31, Total: 10}},
	}

	stats, err := Merge(doc, incoming)
	require.NoError(t, err)
	require.Equal(t, 3, stats.Added)

	require.Len(t, doc.Products, 2)
	require.Len(t, doc.Stores, 2)
	require.Len(t, doc.Sales, 2)
}

func TestMergeUpdatesKnownRecords(t *testing.T) {
	doc := baseDocument()
	incoming := &pos.Document{
		Users:  []pos.User{},
		Stores: []pos.Store{{ID: 20, Name: "Renamed"}},
		Sales:  []pos.Sale{{ID: 30, Total: 42}},
	}

	stats, err := Merge(doc, incoming)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Updated)
	require.Equal(t, "Renamed", doc.Stores[0].Name)
	require.Equal(t, 42.0, doc.Sales[0].Total)
}

func TestMergeNeverCopiesProductStock(t *testing.T) {
	doc := baseDocument()
	incoming := &pos.Document{
		Users: []pos.User{},
		Products: []pos.Product{
			{ID: 10, Name: "Widget v2", Unit: "box", Stock: 9999, CostPrice: 6, SellingPrice: 9},
		},
	}

	_, err := Merge(doc, incoming)
	require.NoError(t, err)

	got := doc.ProductByID(10)
	require.Equal(t, "Widget v2", got.Name)
	require.Equal(t, "box", got.Unit)
	require.Equal(t, 6.0, got.CostPrice)
	require.Equal(t, 9.0, got.SellingPrice)
	require.Equal(t, 7.0, got.Stock)
}

func TestMergeAdminKeepsIdentity(t *testing.T) {
	doc := baseDocument()
	admin := doc.UserByUsername(pos.DefaultAdminUsername)
	require.NotNil(t, admin)

	// Admin ids are minted per device, so another device's backup carries
	// the admin under a different id. Only the password may cross over.
	incoming := &pos.Document{
		Users: []pos.User{{
			ID:       admin.ID + 999,
			Username: pos.DefaultAdminUsername,
			Password: "newpass",
			Role:     pos.RoleAdmin,
		}},
	}

	_, err := Merge(doc, incoming)
	require.NoError(t, err)

	admins := 0
	for _, u := range doc.Users {
		if u.Role == pos.RoleAdmin {
			admins++
		}
	}
	require.Equal(t, 1, admins)

	got := doc.UserByID(admin.ID)
	require.NotNil(t, got)
	require.Equal(t, pos.DefaultAdminUsername, got.Username)
	require.Equal(t, pos.RoleAdmin, got.Role)
	require.Equal(t, "newpass", got.Password)
}

func TestMergeSellerCannotOverwriteAdmin(t *testing.T) {
	doc := baseDocument()
	admin := doc.UserByUsername(pos.DefaultAdminUsername)
	require.NotNil(t, admin)
	wantPassword := admin.Password

	incoming := &pos.Document{
		Users: []pos.User{{
			ID:       admin.ID,
			Username: "intruder",
			Password: "stolen",
			Role:     pos.RoleSeller,
		}},
	}

	stats, err := Merge(doc, incoming)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Skipped)

	got := doc.UserByID(admin.ID)
	require.Equal(t, pos.DefaultAdminUsername, got.Username)
	require.Equal(t, pos.RoleAdmin, got.Role)
	require.Equal(t, wantPassword, got.Password)
}

func TestMergeSkipsRecordsWithoutID(t *testing.T) {
	doc := baseDocument()
	incoming := &pos.Document{
		Users:  []pos.User{},
		Sales:  []pos.Sale{{Total: 5}},
		Stores: []pos.Store{{Name: "Ghost"}},
	}

	stats, err := Merge(doc, incoming)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Skipped)
	require.Len(t, doc.Sales, 1)
	require.Len(t, doc.Stores, 1)
}

func TestMergeIdempotent(t *testing.T) {
	doc := baseDocument()
	incoming := &pos.Document{
		Users:    []pos.User{},
		Products: []pos.Product{{ID: 11, Name: "Gadget"}},
		Sales:    []pos.Sale{{ID: 31, Total: 10}},
	}

	_, err := Merge(doc, incoming)
	require.NoError(t, err)
	first, err := doc.Encode()
	require.NoError(t, err)

	_, err = Merge(doc, incoming)
	require.NoError(t, err)
	second, err := doc.Encode()
	require.NoError(t, err)

	require.Equal(t, string(first), string(second))
}
