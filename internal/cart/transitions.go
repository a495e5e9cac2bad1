// Package cart holds the client-side cart: pure state transitions plus a
// Store that persists the aggregate after every successful transition.
package cart

import (
	"github.com/mmynk/storefront/internal/calculator"
	"github.com/mmynk/storefront/internal/models"
)

// Empty returns a cart with no items and derived pricing filled in.
func Empty() models.Cart {
	return reprice(models.Cart{})
}

// ApplyAddItem sets item's quantity to qty and puts it in the cart. An item
// with the same ID is replaced wholesale in place (quantities are not
// summed); otherwise the item is appended.
func ApplyAddItem(c models.Cart, item models.CartItem, qty int) models.Cart {
	item.Qty = qty

	replaced := false
	items := make([]models.CartItem, 0, len(c.Items)+1)
	for _, existing := range c.Items {
		if existing.ID == item.ID {
			items = append(items, item)
			replaced = true
			continue
		}
		items = append(items, existing)
	}
	if !replaced {
		items = append(items, item)
	}

	c.Items = items
	return reprice(c)
}

// ApplyRemoveItem drops the item with the given ID, if present.
func ApplyRemoveItem(c models.Cart, id string) models.Cart {
	items := make([]models.CartItem, 0, len(c.Items))
	for _, existing := range c.Items {
		if existing.ID != id {
			items = append(items, existing)
		}
	}
	c.Items = items
	return reprice(c)
}

// ApplyShippingAddress overwrites the shipping address.
func ApplyShippingAddress(c models.Cart, addr models.ShippingAddress) models.Cart {
	c.ShippingAddress = addr
	return reprice(c)
}

// ApplyPaymentMethod overwrites the payment method.
func ApplyPaymentMethod(c models.Cart, method string) models.Cart {
	c.PaymentMethod = method
	return reprice(c)
}

// ApplyClear empties the items. Address and payment method are kept.
func ApplyClear(c models.Cart) models.Cart {
	c.Items = []models.CartItem{}
	return reprice(c)
}

// reprice recomputes every derived pricing field from the items.
func reprice(c models.Cart) models.Cart {
	if c.Items == nil {
		c.Items = []models.CartItem{}
	}
	totals := calculator.CalculateTotals(c.Items)
	c.ItemsSubtotal = totals.ItemsSubtotal
	c.ShippingCost = totals.ShippingCost
	c.TaxAmount = totals.TaxAmount
	c.GrandTotal = totals.GrandTotal
	return c
}
