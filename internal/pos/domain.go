// Package pos defines the shared business document: the single root
// aggregate holding users, products, sales, stock movements and stores.
// The document is the unit of persistence and replication; it is always
// read and written as a whole.
package pos

import (
	"encoding/json"
	"sync"
	"time"
)

// User roles.
const (
	RoleAdmin  = "admin"
	RoleSeller = "seller"
)

// Payment methods accepted at the point of sale.
const (
	PaymentCash     = "cash"
	PaymentTransfer = "transfer"
	PaymentCredit   = "credit"
)

// DefaultAdminUsername and DefaultAdminPassword are the well-known first-run
// credentials injected when a document has no users. They are a bootstrap
// convenience, not a security boundary, and are expected to be changed
// immediately.
const (
	DefaultAdminUsername = "admin"
	DefaultAdminPassword = "123"
)

// Document is the root aggregate. Collections are id-unique; ordering is
// irrelevant for correctness.
type Document struct {
	Users          []User     `json:"users"`
	Products       []Product  `json:"products"`
	Sales          []Sale     `json:"sales"`
	StockIns       []StockIn  `json:"stockIns"`
	StockOuts      []StockOut `json:"stockOuts"`
	Stores         []Store    `json:"stores"`
	BackupPassword *string    `json:"backupPassword"`
}

// Product describes a sellable item. Stock is a cached derived value:
// it must equal stock-in minus sold minus stock-out over the full history.
// Temporary divergence is tolerated and surfaced by the consistency checker.
type Product struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Unit         string  `json:"unit"`
	Stock        float64 `json:"stock"`
	CostPrice    float64 `json:"costPrice"`
	SellingPrice float64 `json:"sellingPrice"`
}

// SaleItem captures price and cost at the time of sale.
type SaleItem struct {
	ProductID      int64   `json:"productId"`
	Name           string  `json:"name"`
	Quantity       float64 `json:"quantity"`
	Price          float64 `json:"price"`
	Cost           float64 `json:"cost"`
	IsSpecialPrice bool    `json:"isSpecialPrice"`
	OriginalPrice  float64 `json:"originalPrice"`
}

// Sale is an immutable transaction record. Editing is modeled as
// delete-then-recreate; profit is fixed at sale time from historical cost.
type Sale struct {
	ID             int64      `json:"id"`
	Date           string     `json:"date"`
	Items          []SaleItem `json:"items"`
	Total          float64    `json:"total"`
	Profit         float64    `json:"profit"`
	PaymentMethod  string     `json:"paymentMethod"`
	SellerID       int64      `json:"sellerId"`
	SellerName     string     `json:"sellerName"`
	StoreID        *int64     `json:"storeId"`
	StoreName      *string    `json:"storeName"`
	BuyerName      *string    `json:"buyerName"`
	CreditDueDate  *string    `json:"creditDueDate"`
	TransferorName *string    `json:"transferorName"`
}

// StockIn records inventory entering outside of a sale. Inserting or editing
// one also overwrites the product's current cost and selling price.
type StockIn struct {
	ID          int64   `json:"id"`
	Date        string  `json:"date"`
	ProductID   int64   `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    float64 `json:"quantity"`
	CostPerUnit float64 `json:"costPerUnit"`
}

// StockOut records inventory leaving outside of a sale.
type StockOut struct {
	ID          int64   `json:"id"`
	Date        string  `json:"date"`
	ProductID   int64   `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    float64 `json:"quantity"`
	Reason      string  `json:"reason"`
}

// User is an account in the flat admin/seller hierarchy. Seller-only fields
// stay zero-valued on admin records.
type User struct {
	ID                   int64   `json:"id"`
	Username             string  `json:"username"`
	Password             string  `json:"password"`
	Role                 string  `json:"role"`
	StoreID              *int64  `json:"storeId"`
	AssignedProductIDs   []int64 `json:"assignedProductIds,omitempty"`
	SalesStartDate       *string `json:"salesStartDate,omitempty"`
	SalesEndDate         *string `json:"salesEndDate,omitempty"`
	CommissionRate       float64 `json:"commissionRate,omitempty"`
	CommissionOnCash     bool    `json:"commissionOnCash,omitempty"`
	CommissionOnTransfer bool    `json:"commissionOnTransfer,omitempty"`
	CommissionOnCredit   bool    `json:"commissionOnCredit,omitempty"`
	VisibleSalesDays     *int    `json:"visibleSalesDays,omitempty"`
}

// Store is a named selling location.
type Store struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// NewDocument returns an empty document seeded with the default admin.
func NewDocument() *Document {
	return &Document{
		Users:     []User{DefaultAdmin()},
		Products:  []Product{},
		Sales:     []Sale{},
		StockIns:  []StockIn{},
		StockOuts: []StockOut{},
		Stores:    []Store{},
	}
}

// DefaultAdmin returns the bootstrap admin account.
func DefaultAdmin() User {
	return User{
		ID:       NewID(),
		Username: DefaultAdminUsername,
		Password: DefaultAdminPassword,
		Role:     RoleAdmin,
	}
}

var (
	idMu   sync.Mutex
	lastID int64
)

// NewID returns a unique, monotonically increasing entity id derived from
// the current time in milliseconds. Ids minted in the same millisecond are
// bumped so they never collide within a process.
func NewID() int64 {
	idMu.Lock()
	defer idMu.Unlock()
	id := time.Now().UnixMilli()
	if id <= lastID {
		id = lastID + 1
	}
	lastID = id
	return id
}

// Encode serializes the document to its canonical JSON form. Two documents
// with equal content encode to identical bytes, which is what the sync
// engine compares to suppress remote echoes.
func (d *Document) Encode() ([]byte, error) {
	return json.Marshal(d)
}

// Clone returns a deep copy via a JSON round trip. The document is plain
// data on the wire, so the round trip is lossless.
func (d *Document) Clone() (*Document, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var out Document
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ProductByID returns a pointer into the products slice, or nil.
func (d *Document) ProductByID(id int64) *Product {
	for i := range d.Products {
		if d.Products[i].ID == id {
			return &d.Products[i]
		}
	}
	return nil
}

// UserByID returns a pointer into the users slice, or nil.
func (d *Document) UserByID(id int64) *User {
	for i := range d.Users {
		if d.Users[i].ID == id {
			return &d.Users[i]
		}
	}
	return nil
}

// UserByUsername returns a pointer into the users slice, or nil.
func (d *Document) UserByUsername(username string) *User {
	for i := range d.Users {
		if d.Users[i].Username == username {
			return &d.Users[i]
		}
	}
	return nil
}

// StoreByID returns a pointer into the stores slice, or nil.
func (d *Document) StoreByID(id int64) *Store {
	for i := range d.Stores {
		if d.Stores[i].ID == id {
			return &d.Stores[i]
		}
	}
	return nil
}

// ParseDate parses a document date string (RFC3339). The zero time and
// false are returned for values that do not parse.
func ParseDate(s string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, s)
	}
	return t, err == nil
}

// FormatDate renders a time in the document date format.
func FormatDate(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
