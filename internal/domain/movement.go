package domain

// Movement is one elementary stock movement as reported by the ERP for a
// document reference. It is the authoritative record of how the ERP
// actually allocated stock, possibly across different lots than the ones
// declared locally.
type Movement struct {
	LineNum  int
	ItemCode string
	Quantity int
	Lot      string
	DocEntry int
}
