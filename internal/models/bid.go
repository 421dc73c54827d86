package models

// Bid is a dice-game claim: at least Quantity dice show Face.
type Bid struct {
	BidderID string `json:"bidderId"`
	Quantity int    `json:"quantity"`
	Face     int    `json:"face"`
}

// Less orders bids by (quantity, face) ascending.
func (b Bid) Less(o Bid) bool {
	if b.Quantity != o.Quantity {
		return b.Quantity < o.Quantity
	}
	return b.Face < o.Face
}
