package analyze

import (
	"github.com/shopspring/decimal"

	"github.com/Alias1177/Calibrator/models"
)

// roundToInstrument snaps prices to the tick grid and floors the quantity to the step grid.
// The entry amount follows the rounded quantity.
func roundToInstrument(p *models.TradeParameters, inst models.Instrument) {
	if inst.TickSize > 0 {
		tick := decimal.NewFromFloat(inst.TickSize)
		p.EntryPrice = roundTo(p.EntryPrice, tick)
		p.SLPrice = roundTo(p.SLPrice, tick)
		p.TP1Price = roundTo(p.TP1Price, tick)
		p.TP2Price = roundTo(p.TP2Price, tick)
	}
	if inst.StepSize > 0 && p.EntryPrice > 0 {
		step := decimal.NewFromFloat(inst.StepSize)
		qty := decimal.NewFromFloat(p.Quantity).Div(step).Floor().Mul(step)
		p.Quantity = qty.InexactFloat64()
		p.EntryAmount = qty.Mul(decimal.NewFromFloat(p.EntryPrice)).InexactFloat64()
	}
}

func roundTo(v float64, tick decimal.Decimal) float64 {
	return decimal.NewFromFloat(v).Div(tick).Round(0).Mul(tick).InexactFloat64()
}
