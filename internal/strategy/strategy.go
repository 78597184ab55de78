package strategy

type Signal string

const (
	Hold Signal = "HOLD"
	Buy  Signal = "BUY"
	Sell Signal = "SELL"
)

// Strategy consumes one price sample per bar and emits a trading signal.
// Implementations keep their own state and are not safe for concurrent use.
type Strategy interface {
	Update(price float64) Signal
}
