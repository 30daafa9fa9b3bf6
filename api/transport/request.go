package transport

import "github.com/shopspring/decimal"

type OrderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type CreateOrderRequest struct {
	Email           string             `json:"email"`
	ShippingName    string             `json:"shipping_name"`
	ShippingAddress string             `json:"shipping_address"`
	ShippingCity    string             `json:"shipping_city"`
	ShippingState   string             `json:"shipping_state"`
	ShippingZip     string             `json:"shipping_zip"`
	Items           []OrderItemRequest `json:"items"`
}

// CreateProductRequest accepts the price as a JSON string or number.
type CreateProductRequest struct {
	Slug        string           `json:"slug"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	ImageURL    string           `json:"image_url"`
	InStock     *bool            `json:"in_stock"`
}
