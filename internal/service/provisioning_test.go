package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nusalink-net/crm-api/internal/service"
)

func TestStaticProvisioner(t *testing.T) {
	p := &service.StaticProvisioner{
		RouterModel: "MikroTik CCR2004",
		ModemModel:  "Nokia G-240W-C",
		Technician:  "Budi Santoso",
	}

	installDate := time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC)
	info := p.Provision("Corporate Fiber 500Mbps", installDate)

	assert.Equal(t, "MikroTik CCR2004", info.RouterModel)
	assert.Equal(t, "Nokia G-240W-C", info.ModemModel)
	assert.Equal(t, "Budi Santoso", info.Technician)
	assert.Equal(t, "2025-09-15", info.InstallDate)
	assert.Equal(t, "500Mbps", info.Bandwidth)
}

func TestRandomProvisioner(t *testing.T) {
	p := service.NewProvisioner()
	installDate := time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC)

	corporateRouters := []string{"MikroTik CCR2004", "Cisco ISR 1100", "Juniper SRX320"}
	residentialRouters := []string{"TP-Link Archer C6", "Huawei HG8245H", "ZTE F609"}

	t.Run("corporate products draw from the corporate pool", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			info := p.Provision("Enterprise Dedicated 1Gbps", installDate)
			assert.Contains(t, corporateRouters, info.RouterModel)
			assert.Equal(t, "Nokia G-240W-C", info.ModemModel)
			assert.Equal(t, "1Gbps", info.Bandwidth)
			assert.NotEmpty(t, info.Technician)
		}
	})

	t.Run("other products draw from the residential pool", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			info := p.Provision("Home Fiber 100Mbps", installDate)
			assert.Contains(t, residentialRouters, info.RouterModel)
			assert.Equal(t, "100Mbps", info.Bandwidth)
		}
	})

	t.Run("unmatched bandwidth falls back to Standard", func(t *testing.T) {
		info := p.Provision("Static IP Address", installDate)
		assert.Equal(t, "Standard", info.Bandwidth)
	})
}
