package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nusalink-net/crm-api/internal/service"
)

func TestSellingPrice(t *testing.T) {
	tests := []struct {
		name      string
		hpp       float64
		marginPct float64
		want      float64
		wantErr   bool
	}{
		{"standard margin", 400000, 25, 500000, false},
		{"zero margin", 300000, 0, 300000, false},
		{"full margin", 200000, 100, 400000, false},
		{"zero cost", 0, 30, 0, false},
		{"negative cost", -100, 25, 0, true},
		{"negative margin", 400000, -5, 0, true},
		{"margin above 100", 400000, 150, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := service.SellingPrice(tt.hpp, tt.marginPct)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, service.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestDiscountPercentage(t *testing.T) {
	tests := []struct {
		name       string
		listPrice  float64
		negotiated float64
		want       float64
	}{
		{"ten percent off", 500000, 450000, 10},
		{"no discount", 500000, 500000, 0},
		{"half off", 1000000, 500000, 50},
		{"above list clamps to zero", 500000, 600000, 0},
		{"zero list price", 0, 450000, 0},
		{"negative list price", -100, 50, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, service.DiscountPercentage(tt.listPrice, tt.negotiated), 0.001)
		})
	}
}

func TestRequiresApproval(t *testing.T) {
	assert.True(t, service.RequiresApproval(450000, 500000))
	assert.False(t, service.RequiresApproval(500000, 500000))
	assert.False(t, service.RequiresApproval(550000, 500000))
}

func TestComputeDealTotals(t *testing.T) {
	t.Run("total sums negotiated subtotals", func(t *testing.T) {
		totals := service.ComputeDealTotals([]service.PricedLine{
			{Quantity: 1, NegotiatedPrice: 450000},
		}, 0)
		assert.InDelta(t, 450000, totals.TotalAmount, 0.001)
		assert.Zero(t, totals.DiscountAmount)
		assert.InDelta(t, 450000, totals.FinalAmount, 0.001)
	})

	t.Run("multiple lines with quantities", func(t *testing.T) {
		totals := service.ComputeDealTotals([]service.PricedLine{
			{Quantity: 2, NegotiatedPrice: 450000},
			{Quantity: 1, NegotiatedPrice: 250000},
		}, 0)
		assert.InDelta(t, 1150000, totals.TotalAmount, 0.001)
		assert.InDelta(t, 1150000, totals.FinalAmount, 0.001)
	})

	t.Run("deal-level discount reduces the final amount", func(t *testing.T) {
		totals := service.ComputeDealTotals([]service.PricedLine{
			{Quantity: 1, NegotiatedPrice: 500000},
		}, 50000)
		assert.InDelta(t, 500000, totals.TotalAmount, 0.001)
		assert.InDelta(t, 50000, totals.DiscountAmount, 0.001)
		assert.InDelta(t, 450000, totals.FinalAmount, 0.001)
	})

	t.Run("discount clamps to the total", func(t *testing.T) {
		totals := service.ComputeDealTotals([]service.PricedLine{
			{Quantity: 1, NegotiatedPrice: 100000},
		}, 150000)
		assert.InDelta(t, 100000, totals.DiscountAmount, 0.001)
		assert.Zero(t, totals.FinalAmount)
	})

	t.Run("negative discount clamps to zero", func(t *testing.T) {
		totals := service.ComputeDealTotals([]service.PricedLine{
			{Quantity: 1, NegotiatedPrice: 100000},
		}, -5000)
		assert.Zero(t, totals.DiscountAmount)
		assert.InDelta(t, 100000, totals.FinalAmount, 0.001)
	})

	t.Run("empty ledger", func(t *testing.T) {
		totals := service.ComputeDealTotals(nil, 0)
		assert.Zero(t, totals.TotalAmount)
		assert.Zero(t, totals.DiscountAmount)
		assert.Zero(t, totals.FinalAmount)
	})
}

func TestInstallationFee(t *testing.T) {
	tests := []struct {
		productName string
		want        float64
	}{
		{"Corporate Fiber 500Mbps", service.InstallationFeeCorporate},
		{"Enterprise Dedicated 1Gbps", service.InstallationFeeCorporate},
		{"Residential Fiber 50Mbps", service.InstallationFeeResidential},
		{"Home Internet 20Mbps", service.InstallationFeeResidential},
		{"Fiber 100Mbps", service.InstallationFeeDefault},
		{"", service.InstallationFeeDefault},
	}

	for _, tt := range tests {
		t.Run(tt.productName, func(t *testing.T) {
			assert.InDelta(t, tt.want, service.InstallationFee(tt.productName), 0.001)
		})
	}
}

func TestExtractBandwidth(t *testing.T) {
	tests := []struct {
		productName string
		want        string
	}{
		{"Home Fiber 100Mbps", "100Mbps"},
		{"Corporate Dedicated 1Gbps", "1Gbps"},
		{"Enterprise 500 Mbps Link", "500Mbps"},
		{"Static IP Address", "Standard"},
		{"", "Standard"},
	}

	for _, tt := range tests {
		t.Run(tt.productName, func(t *testing.T) {
			assert.Equal(t, tt.want, service.ExtractBandwidth(tt.productName))
		})
	}
}
