package domain

// Direction represents the price movement direction against the previously
// observed price for the same asset.
type Direction int

const (
	DirectionSame Direction = 0
	DirectionUp   Direction = +1
	DirectionDown Direction = -1
)

// DirectionOf compares a new price against the previous one.
func DirectionOf(prev, next float64) Direction {
	switch {
	case next > prev:
		return DirectionUp
	case next < prev:
		return DirectionDown
	default:
		return DirectionSame
	}
}
