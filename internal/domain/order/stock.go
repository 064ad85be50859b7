package order

// Adjustment is a signed change to the stock of one product. Positive
// values return stock to the shelf, negative values take it.
type Adjustment struct {
	ProductID string
	Delta     int
}

// StockDelta returns the stock adjustments implied by moving an order with
// the given items from status from to status to. Only transitions crossing
// the cancelled boundary move stock; every other transition, including
// setting the current status again, yields nil.
//
// Items referencing the same product are merged into one adjustment, in
// the order the product first appears.
func StockDelta(from, to Status, items []Item) []Adjustment {
	var sign int
	switch {
	case from.HoldsStock() && !to.HoldsStock():
		sign = 1
	case !from.HoldsStock() && to.HoldsStock():
		sign = -1
	default:
		return nil
	}

	index := make(map[string]int, len(items))
	adjustments := make([]Adjustment, 0, len(items))
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok {
			adjustments[i].Delta += sign * item.Quantity
			continue
		}
		index[item.ProductID] = len(adjustments)
		adjustments = append(adjustments, Adjustment{
			ProductID: item.ProductID,
			Delta:     sign * item.Quantity,
		})
	}
	return adjustments
}
