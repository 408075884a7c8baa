package model

import "time"

// Image count bounds of a product.
const (
	MinProductImages = 1
	MaxProductImages = 3
)

// Product mirrors a row of the `products` table together with its images
// in stored order.
type Product struct {
	ID          uint64         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Price       float64        `json:"price"`
	CreatedAt   time.Time      `json:"created_at"`
	Images      []ProductImage `json:"-"`
}

// ProductImage is a row of `product_images`.  ImageURL is the stored
// object reference (public base form), never a URL handed to clients.
type ProductImage struct {
	ID        uint64
	ProductID uint64
	ImageURL  string
}

// ProductFields are the scalar columns a create or update writes.
type ProductFields struct {
	Name        string
	Description string
	Price       float64
}

// SignedProduct is a product as returned by the read path: images are
// time-limited signed URLs in stored row order.
type SignedProduct struct {
	ID          uint64    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	CreatedAt   time.Time `json:"createdAt"`
	Images      []string  `json:"images"`
}

// Page is the paginated listing envelope.
type Page struct {
	Data       []SignedProduct `json:"data"`
	Total      int64           `json:"total"`
	TotalPages int             `json:"totalPages"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
}
