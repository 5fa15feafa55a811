package pos

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeBackfillsCollections(t *testing.T) {
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(`{"products":[{"id":1,"name":"Widget","unit":"pcs"}]}`), &doc))

	changed := Normalize(&doc)
	require.True(t, changed)

	require.NotNil(t, doc.Users)
	require.NotNil(t, doc.Sales)
	require.NotNil(t, doc.StockIns)
	require.NotNil(t, doc.StockOuts)
	require.NotNil(t, doc.Stores)
	require.Len(t, doc.Products, 1)
}

func TestNormalizeInjectsDefaultAdmin(t *testing.T) {
	doc := &Document{}
	Normalize(doc)

	require.Len(t, doc.Users, 1)
	require.Equal(t, DefaultAdminUsername, doc.Users[0].Username)
	require.Equal(t, DefaultAdminPassword, doc.Users[0].Password)
	require.Equal(t, RoleAdmin, doc.Users[0].Role)
}

func TestNormalizeBackfillsSaleItems(t *testing.T) {
	doc := &Document{
		Sales: []Sale{{
			ID:    1,
			Items: []SaleItem{{ProductID: 2, Quantity: 1, Price: 50}},
		}},
	}
	Normalize(doc)

	item := doc.Sales[0].Items[0]
	require.False(t, item.IsSpecialPrice)
	require.Equal(t, 50.0, item.OriginalPrice)
}

func TestNormalizeBackfillsSellerFields(t *testing.T) {
	doc := &Document{
		Users: []User{
			{ID: 1, Username: "admin", Role: RoleAdmin},
			{ID: 2, Username: "mai", Role: RoleSeller},
		},
	}
	Normalize(doc)

	require.Nil(t, doc.Users[0].AssignedProductIDs)
	require.NotNil(t, doc.Users[1].AssignedProductIDs)
	require.Empty(t, doc.Users[1].AssignedProductIDs)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	doc := &Document{
		Users: []User{{ID: 1, Username: "mai", Role: RoleSeller}},
		Sales: []Sale{{ID: 2, Items: []SaleItem{{ProductID: 3, Price: 10}}}},
	}
	require.True(t, Normalize(doc))

	first, err := doc.Encode()
	require.NoError(t, err)

	require.False(t, Normalize(doc))
	second, err := doc.Encode()
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestNewIDMonotonic(t *testing.T) {
	prev := NewID()
	for i := 0; i < 100; i++ {
		next := NewID()
		require.Greater(t, next, prev)
		prev = next
	}
}
