package service

import (
	"math/rand"
	"strings"
	"time"

	"github.com/nusalink-net/crm-api/internal/domain"
)

// Provisioner assigns installation equipment to a newly created service.
// The default implementation picks from fixed hardware pools; tests swap in
// a deterministic one.
type Provisioner interface {
	Provision(productName string, installDate time.Time) domain.EquipmentInfo
}

var (
	corporateRouters   = []string{"MikroTik CCR2004", "Cisco ISR 1100", "Juniper SRX320"}
	residentialRouters = []string{"TP-Link Archer C6", "Huawei HG8245H", "ZTE F609"}
	technicians        = []string{"Budi Santoso", "Agus Wijaya", "Dewi Lestari", "Rizky Pratama"}
)

type randomProvisioner struct {
	rng *rand.Rand
}

// NewProvisioner returns the default equipment provisioner
func NewProvisioner() Provisioner {
	return &randomProvisioner{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (p *randomProvisioner) Provision(productName string, installDate time.Time) domain.EquipmentInfo {
	name := strings.ToLower(productName)
	routers := residentialRouters
	if strings.Contains(name, "corporate") || strings.Contains(name, "enterprise") {
		routers = corporateRouters
	}
	return domain.EquipmentInfo{
		RouterModel: routers[p.rng.Intn(len(routers))],
		ModemModel:  "Nokia G-240W-C",
		InstallDate: installDate.Format("2006-01-02"),
		Technician:  technicians[p.rng.Intn(len(technicians))],
		Bandwidth:   ExtractBandwidth(productName),
	}
}

// StaticProvisioner always returns the same hardware, useful for tests
type StaticProvisioner struct {
	RouterModel string
	ModemModel  string
	Technician  string
}

func (p *StaticProvisioner) Provision(productName string, installDate time.Time) domain.EquipmentInfo {
	return domain.EquipmentInfo{
		RouterModel: p.RouterModel,
		ModemModel:  p.ModemModel,
		InstallDate: installDate.Format("2006-01-02"),
		Technician:  p.Technician,
		Bandwidth:   ExtractBandwidth(productName),
	}
}
