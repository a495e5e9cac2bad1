package models

// Order represents an order created on the remote order service.
type Order struct {
	// ID is the identifier assigned by the order service.
	ID string `json:"_id"`

	// User is the ID of the user who placed the order.
	User string `json:"user,omitempty"`

	// OrderItems are the cart lines at submission time.
	OrderItems []CartItem `json:"orderItems"`

	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`

	// Price fields are copied from the cart; the server recomputes them.
	ItemsPrice    float64 `json:"itemsPrice"`
	ShippingPrice float64 `json:"shippingPrice"`
	TaxPrice      float64 `json:"taxPrice"`
	TotalPrice    float64 `json:"totalPrice"`

	IsPaid      bool   `json:"isPaid"`
	PaidAt      string `json:"paidAt,omitempty"`
	IsDelivered bool   `json:"isDelivered"`
	DeliveredAt string `json:"deliveredAt,omitempty"`
}

// NewOrder builds the order-creation body from a cart snapshot.
func NewOrder(c Cart) Order {
	return Order{
		OrderItems:      c.Clone().Items,
		ShippingAddress: c.ShippingAddress,
		PaymentMethod:   c.PaymentMethod,
		ItemsPrice:      c.ItemsSubtotal,
		ShippingPrice:   c.ShippingCost,
		TaxPrice:        c.TaxAmount,
		TotalPrice:      c.GrandTotal,
	}
}

// PaymentCapture is the payment provider's capture result, forwarded to the
// order service when marking an order paid.
type PaymentCapture struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	UpdateTime string `json:"update_time"`
	Payer      Payer  `json:"payer"`
}

// Payer identifies who paid in a PaymentCapture.
type Payer struct {
	EmailAddress string `json:"email_address"`
}
