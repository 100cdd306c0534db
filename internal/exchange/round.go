package exchange

import "github.com/shopspring/decimal"

// Rounding helpers for venue tick/step constraints. Sizing math on the hot
// path stays float64; decimal is used only here, at the boundary where a
// quantity or price is fitted to a venue grid, so repeated float division
// never accumulates into an off-by-one step.

// RoundDownToStep fits v onto the step grid, rounding toward zero. A zero or
// negative step returns v unchanged.
func RoundDownToStep(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	dv := decimal.NewFromFloat(v)
	ds := decimal.NewFromFloat(step)
	f, _ := dv.Div(ds).Floor().Mul(ds).Float64()
	return f
}

// RoundUpToStep fits v onto the step grid, rounding away from zero.
func RoundUpToStep(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	dv := decimal.NewFromFloat(v)
	ds := decimal.NewFromFloat(step)
	f, _ := dv.Div(ds).Ceil().Mul(ds).Float64()
	return f
}

// RoundToTick fits a price onto the venue tick grid, rounding to nearest.
func RoundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	dp := decimal.NewFromFloat(price)
	dt := decimal.NewFromFloat(tick)
	f, _ := dp.Div(dt).Round(0).Mul(dt).Float64()
	return f
}

// FormatQty renders a quantity with the venue's base precision, trimming
// trailing zeros the way venue APIs expect.
func FormatQty(v float64, precision int) string {
	return decimal.NewFromFloat(v).Round(int32(precision)).String()
}
