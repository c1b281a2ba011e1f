package commerce

// Types mirror the WooCommerce REST API v3 order schema, limited to the
// fields this service reads or writes.

// Order is a WooCommerce order as returned by the API.
type Order struct {
	ID       int64      `json:"id,omitempty"`
	Number   string     `json:"number,omitempty"`
	Status   string     `json:"status,omitempty"`
	Total    string     `json:"total,omitempty"`
	Currency string     `json:"currency,omitempty"`
	Billing  *Contact   `json:"billing,omitempty"`
	Shipping *Contact   `json:"shipping,omitempty"`
	MetaData []MetaData `json:"meta_data,omitempty"`
}

// CreateOrderRequest is the POST /orders payload.
type CreateOrderRequest struct {
	Status        string         `json:"status,omitempty"`
	Currency      string         `json:"currency,omitempty"`
	SetPaid       bool           `json:"set_paid"`
	Billing       *Contact       `json:"billing,omitempty"`
	Shipping      *Contact       `json:"shipping,omitempty"`
	LineItems     []LineItem     `json:"line_items"`
	ShippingLines []ShippingLine `json:"shipping_lines,omitempty"`
	MetaData      []MetaData     `json:"meta_data,omitempty"`
}

// UpdateOrderRequest is the PUT /orders/{id} payload. Updates never touch
// payment state, so there is no set_paid here.
type UpdateOrderRequest struct {
	Status    string     `json:"status,omitempty"`
	LineItems []LineItem `json:"line_items,omitempty"`
	MetaData  []MetaData `json:"meta_data,omitempty"`
}

// Contact is a WooCommerce billing or shipping block.
type Contact struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Address1  string `json:"address_1,omitempty"`
	Address2  string `json:"address_2,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Postcode  string `json:"postcode,omitempty"`
	Country   string `json:"country,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// LineItem is a single order line.
type LineItem struct {
	ProductID int64  `json:"product_id"`
	Quantity  int32  `json:"quantity"`
	Total     string `json:"total,omitempty"`
}

// ShippingLine carries the flat-rate shipping charge on an order.
type ShippingLine struct {
	MethodID    string `json:"method_id"`
	MethodTitle string `json:"method_title"`
	Total       string `json:"total"`
}

// MetaData is a WooCommerce order meta entry.
type MetaData struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
