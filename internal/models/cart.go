package models

// Cart is the client-side cart aggregate. It is persisted as JSON under the
// "cart" storage key after every mutation.
type Cart struct {
	// Items are the cart lines, unique by ID, in insertion order.
	Items []CartItem `json:"cartItems"`

	// ItemsSubtotal is the sum of unit price × quantity, rounded to cents.
	ItemsSubtotal float64 `json:"itemsPrice"`

	// ShippingCost is 0 above the free-shipping threshold, else the flat rate.
	ShippingCost float64 `json:"shippingPrice"`

	// TaxAmount is the tax on ItemsSubtotal, rounded to cents on its own.
	TaxAmount float64 `json:"taxPrice"`

	// GrandTotal is the rounded sum of the three rounded components above.
	GrandTotal float64 `json:"totalPrice"`

	// ShippingAddress is the destination chosen in the shipping step.
	// A zero value means no address has been entered.
	ShippingAddress ShippingAddress `json:"shippingAddress"`

	// PaymentMethod is the method chosen in the payment step (e.g. "PayPal").
	// Empty means not chosen.
	PaymentMethod string `json:"paymentMethod,omitempty"`
}

// CartItem represents one product line in the cart.
// Quantity must be at least 1; it is capped by CountInStock only in the UI.
type CartItem struct {
	ID           string  `json:"_id"`
	Name         string  `json:"name"`
	Image        string  `json:"image"`
	Price        float64 `json:"price"`
	CountInStock int     `json:"countInStock"`
	Qty          int     `json:"qty"`
}

// ShippingAddress is the delivery address captured during checkout.
type ShippingAddress struct {
	Address    string `json:"address,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

// IsSet reports whether a street address has been entered.
func (a ShippingAddress) IsSet() bool {
	return a.Address != ""
}

// Find returns the item with the given ID and whether it exists.
func (c Cart) Find(id string) (CartItem, bool) {
	for _, item := range c.Items {
		if item.ID == id {
			return item, true
		}
	}
	return CartItem{}, false
}

// ItemCount returns the total number of units across all lines.
func (c Cart) ItemCount() int {
	n := 0
	for _, item := range c.Items {
		n += item.Qty
	}
	return n
}

// Clone returns a copy whose Items slice does not alias c.Items.
func (c Cart) Clone() Cart {
	out := c
	if c.Items != nil {
		out.Items = make([]CartItem, len(c.Items))
		copy(out.Items, c.Items)
	}
	return out
}
