package service

import (
	"fmt"
	"regexp"
	"strings"
)

// Installation fee tiers (IDR), keyed off the product name
const (
	InstallationFeeCorporate   = 1000000.0
	InstallationFeeResidential = 250000.0
	InstallationFeeDefault     = 500000.0
)

var bandwidthPattern = regexp.MustCompile(`\d+\s?(Mbps|Gbps)`)

// SellingPrice derives the list price from cost and margin.
// hpp must be non-negative and marginPct within [0,100].
func SellingPrice(hpp, marginPct float64) (float64, error) {
	if hpp < 0 {
		return 0, fmt.Errorf("%w: hpp must be non-negative", ErrInvalidInput)
	}
	if marginPct < 0 || marginPct > 100 {
		return 0, fmt.Errorf("%w: margin percent must be between 0 and 100", ErrInvalidInput)
	}
	return hpp + hpp*marginPct/100, nil
}

// DiscountPercentage computes the discount implied by a negotiated price
// against the list price. Returns 0 when listPrice is not positive or the
// negotiated price is at or above list (no negative discounts).
func DiscountPercentage(listPrice, negotiatedPrice float64) float64 {
	if listPrice <= 0 {
		return 0
	}
	pct := (listPrice - negotiatedPrice) / listPrice * 100
	if pct < 0 {
		return 0
	}
	return pct
}

// RequiresApproval reports whether a single line was negotiated below list
func RequiresApproval(negotiatedPrice, listPrice float64) bool {
	return negotiatedPrice < listPrice
}

// ItemSubtotal computes the line subtotal
func ItemSubtotal(quantity int, negotiatedPrice float64) float64 {
	return float64(quantity) * negotiatedPrice
}

// DealTotals holds the recomputed money columns of a deal
type DealTotals struct {
	TotalAmount    float64
	DiscountAmount float64
	FinalAmount    float64
}

// PricedLine is the minimal item view the recompute needs
type PricedLine struct {
	Quantity        int
	NegotiatedPrice float64
}

// ComputeDealTotals recomputes a deal's money columns from its lines.
// TotalAmount is the sum of the line subtotals, discountAmount is the
// deal-level deduction clamped to [0, TotalAmount], and FinalAmount is
// what remains after the deduction.
func ComputeDealTotals(lines []PricedLine, discountAmount float64) DealTotals {
	var totals DealTotals
	for _, line := range lines {
		totals.TotalAmount += ItemSubtotal(line.Quantity, line.NegotiatedPrice)
	}
	totals.DiscountAmount = discountAmount
	if totals.DiscountAmount < 0 {
		totals.DiscountAmount = 0
	}
	if totals.DiscountAmount > totals.TotalAmount {
		totals.DiscountAmount = totals.TotalAmount
	}
	totals.FinalAmount = totals.TotalAmount - totals.DiscountAmount
	return totals
}

// InstallationFee returns the one-time installation fee tier for a product.
// Corporate and enterprise packages carry the high tier, residential and home
// packages the low tier, everything else the default.
func InstallationFee(productName string) float64 {
	name := strings.ToLower(productName)
	switch {
	case strings.Contains(name, "corporate") || strings.Contains(name, "enterprise"):
		return InstallationFeeCorporate
	case strings.Contains(name, "residential") || strings.Contains(name, "home"):
		return InstallationFeeResidential
	default:
		return InstallationFeeDefault
	}
}

// ExtractBandwidth pulls the bandwidth designation out of a product name
// (e.g. "Home Fiber 100Mbps" -> "100Mbps"). Returns "Standard" when the name
// carries no recognizable bandwidth.
func ExtractBandwidth(productName string) string {
	match := bandwidthPattern.FindString(productName)
	if match == "" {
		return "Standard"
	}
	return strings.ReplaceAll(match, " ", "")
}
