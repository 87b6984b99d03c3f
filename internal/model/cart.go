package model

// CartItem はカートの明細行を表す。IDで一意に識別される。
type CartItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	ImageURL string  `json:"image_url,omitempty"`
}

// Cart はカートのスナップショット。Totalは常にItemsから再計算された値。
type Cart struct {
	Items []CartItem `json:"items"`
	Total float64    `json:"total"`
}
