// Package cart implements the shopping cart and its bounded-latency write
// pipeline.
package cart

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Keksclan/rawrcart/race"
)

var (
	// ErrNotFound is returned when a cart has never been written (or was
	// cleared).
	ErrNotFound = errors.New("cart: not found")
	// ErrItemNotFound is returned when a cart has no line for the product.
	ErrItemNotFound = errors.New("cart: item not found")
	// ErrTimedOut is returned by AddItem when processing outlasts the
	// deadline. The write is still applied in the background.
	ErrTimedOut = fmt.Errorf("cart: operation exceeded the time limit: %w", race.ErrTimedOut)
)

// Item is one line of a cart.
type Item struct {
	ProductID int       `json:"productId"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"addedAt"`
}

// Cart is a cart and its lines in insertion order. TotalQuantity is the sum
// of all line quantities and is recomputed by every mutation.
type Cart struct {
	ID            string `json:"id"`
	Items         []Item `json:"items"`
	TotalQuantity int    `json:"totalQuantity"`
}

// New returns an empty cart.
func New(id string) Cart {
	return Cart{ID: id, Items: []Item{}}
}

// Clone returns a deep copy of c.
func (c Cart) Clone() Cart {
	c.Items = slices.Clone(c.Items)
	if c.Items == nil {
		c.Items = []Item{}
	}
	return c
}

// Quantity returns the quantity held for productID, or 0.
func (c Cart) Quantity(productID int) int {
	if i := c.indexOf(productID); i >= 0 {
		return c.Items[i].Quantity
	}
	return 0
}

func (c Cart) indexOf(productID int) int {
	return slices.IndexFunc(c.Items, func(it Item) bool { return it.ProductID == productID })
}

// addOrMerge increments an existing line for productID or appends a new one
// stamped with now. quantity is applied as given, including values <= 0.
func (c Cart) addOrMerge(productID, quantity int, now time.Time) Cart {
	if i := c.indexOf(productID); i >= 0 {
		c.Items[i].Quantity += quantity
	} else {
		c.Items = append(c.Items, Item{ProductID: productID, Quantity: quantity, AddedAt: now})
	}
	return c.recount()
}

// setQuantity overwrites a line's quantity; quantity <= 0 removes the line.
func (c Cart) setQuantity(productID, quantity int) (Cart, error) {
	i := c.indexOf(productID)
	if i < 0 {
		return c, ErrItemNotFound
	}
	if quantity <= 0 {
		c.Items = slices.Delete(c.Items, i, i+1)
	} else {
		c.Items[i].Quantity = quantity
	}
	return c.recount(), nil
}

func (c Cart) recount() Cart {
	total := 0
	for _, it := range c.Items {
		total += it.Quantity
	}
	c.TotalQuantity = total
	return c
}
