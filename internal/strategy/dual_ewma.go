package strategy

// ewma is a single recursive exponential moving average track. The value is
// unset until the first sample seeds it; a zero price is a legal sample, so
// the seeded flag is the only source of truth, never a zero sentinel.
type ewma struct {
	alpha  float64
	value  float64
	seeded bool
}

func newEWMA(span int) ewma {
	if span < 1 {
		span = 1
	}
	return ewma{alpha: 2.0 / float64(span+1)}
}

func (e *ewma) update(price float64) {
	if !e.seeded {
		e.value = price
		e.seeded = true
		return
	}
	e.value = e.alpha*price + (1-e.alpha)*e.value
}

// DualEWMA derives a crossover signal from two EWMA tracks over the same
// price stream. The short-span track reacts faster to price changes; the
// signal is BUY while it sits above the long-span track and SELL while it
// sits below. Both tracks seed from the first sample, so the first update
// always reports HOLD.
type DualEWMA struct {
	short ewma
	long  ewma
}

func NewDualEWMA(shortSpan, longSpan int) *DualEWMA {
	return &DualEWMA{
		short: newEWMA(shortSpan),
		long:  newEWMA(longSpan),
	}
}

func (d *DualEWMA) Update(price float64) Signal {
	d.short.update(price)
	d.long.update(price)

	switch {
	case d.short.value > d.long.value:
		return Buy
	case d.short.value < d.long.value:
		return Sell
	default:
		return Hold
	}
}

// ShortValue returns the short-span track, valid after the first update.
func (d *DualEWMA) ShortValue() float64 {
	return d.short.value
}

// LongValue returns the long-span track, valid after the first update.
func (d *DualEWMA) LongValue() float64 {
	return d.long.value
}
