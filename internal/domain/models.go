package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// LeadStatus represents the status of a sales lead
type LeadStatus string

const (
	LeadStatusNew         LeadStatus = "new"
	LeadStatusContacted   LeadStatus = "contacted"
	LeadStatusQualified   LeadStatus = "qualified"
	LeadStatusProposal    LeadStatus = "proposal"
	LeadStatusNegotiation LeadStatus = "negotiation"
	LeadStatusClosedWon   LeadStatus = "closed_won"
	LeadStatusClosedLost  LeadStatus = "closed_lost"
)

// IsValid checks if the LeadStatus is a valid enum value
func (ls LeadStatus) IsValid() bool {
	switch ls {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQualified, LeadStatusProposal,
		LeadStatusNegotiation, LeadStatusClosedWon, LeadStatusClosedLost:
		return true
	}
	return false
}

// IsTerminal reports whether the lead lifecycle is finished
func (ls LeadStatus) IsTerminal() bool {
	return ls == LeadStatusClosedWon || ls == LeadStatusClosedLost
}

// Lead represents an unconverted sales prospect
type Lead struct {
	BaseModel
	Name        string     `gorm:"type:varchar(200);not null;index"`
	Email       string     `gorm:"type:varchar(255)"`
	Phone       string     `gorm:"type:varchar(50)"`
	CompanyName string     `gorm:"type:varchar(200);column:company_name"`
	Address     string     `gorm:"type:varchar(500)"`
	Needs       string     `gorm:"type:text"`
	Source      string     `gorm:"type:varchar(100)"`
	Status      LeadStatus `gorm:"type:varchar(50);not null;default:'new';index"`
	SalesID     string     `gorm:"type:varchar(100);not null;index;column:sales_id"`
	SalesName   string     `gorm:"type:varchar(200);column:sales_name"`
	Notes       string     `gorm:"type:text"`
	Deals       []Deal     `gorm:"foreignKey:LeadID"`
}

// Product represents a catalog entry (internet packages, hardware, add-ons)
type Product struct {
	BaseModel
	Name        string  `gorm:"type:varchar(200);not null;index"`
	Code        string  `gorm:"type:varchar(50);unique;index"`
	Category    string  `gorm:"type:varchar(100);index"`
	Description string  `gorm:"type:text"`
	HPP         float64 `gorm:"type:decimal(15,2);not null;default:0;column:hpp"`
	MarginPct   float64 `gorm:"type:decimal(5,2);not null;default:0;column:margin_pct"`
	IsActive    bool    `gorm:"not null;default:true;column:is_active"`
}

// SellingPrice returns the derived list price (hpp + margin). It is never
// stored authoritatively; callers snapshot it onto deal items at add-time.
func (p *Product) SellingPrice() float64 {
	return p.HPP + p.HPP*p.MarginPct/100
}

// DealStatus represents the status of a deal in the approval workflow
type DealStatus string

const (
	DealStatusDraft           DealStatus = "draft"
	DealStatusWaitingApproval DealStatus = "waiting_approval"
	DealStatusApproved        DealStatus = "approved"
	DealStatusRejected        DealStatus = "rejected"
	DealStatusClosedWon       DealStatus = "closed_won"
	DealStatusClosedLost      DealStatus = "closed_lost"
)

// IsValid checks if the DealStatus is a valid enum value
func (ds DealStatus) IsValid() bool {
	switch ds {
	case DealStatusDraft, DealStatusWaitingApproval, DealStatusApproved,
		DealStatusRejected, DealStatusClosedWon, DealStatusClosedLost:
		return true
	}
	return false
}

// IsMutable reports whether deal fields and items may still be edited
func (ds DealStatus) IsMutable() bool {
	return ds == DealStatusDraft || ds == DealStatusWaitingApproval
}

// IsClosed reports whether the deal reached a closing status
func (ds DealStatus) IsClosed() bool {
	return ds == DealStatusClosedWon || ds == DealStatusClosedLost
}

// Deal represents a priced negotiation tied to one Lead
type Deal struct {
	BaseModel
	Title          string     `gorm:"type:varchar(200);not null"`
	Description    string     `gorm:"type:text"`
	LeadID         uuid.UUID  `gorm:"type:uuid;not null;index;column:lead_id"`
	Lead           *Lead      `gorm:"foreignKey:LeadID"`
	Status         DealStatus `gorm:"type:varchar(50);not null;default:'draft';index"`
	TotalAmount    float64    `gorm:"type:decimal(15,2);not null;default:0;column:total_amount"`
	DiscountAmount float64    `gorm:"type:decimal(15,2);not null;default:0;column:discount_amount"`
	FinalAmount    float64    `gorm:"type:decimal(15,2);not null;default:0;column:final_amount"`
	NeedsApproval  bool       `gorm:"not null;default:false;column:needs_approval"`
	ApprovedByID   string     `gorm:"type:varchar(100);column:approved_by_id"`
	ApprovedByName string     `gorm:"type:varchar(200);column:approved_by_name"`
	ApprovedAt     *time.Time `gorm:"column:approved_at"`
	ClosedAt       *time.Time `gorm:"column:closed_at"`
	RejectReason   string     `gorm:"type:varchar(500);column:reject_reason"`
	SalesID        string     `gorm:"type:varchar(100);not null;index;column:sales_id"`
	SalesName      string     `gorm:"type:varchar(200);column:sales_name"`
	Notes          string     `gorm:"type:text"`
	Items          []DealItem `gorm:"foreignKey:DealID;constraint:OnDelete:CASCADE"`
	Files          []File     `gorm:"foreignKey:DealID"`
}

// DealItem represents one product line within a Deal with negotiated pricing
type DealItem struct {
	BaseModel
	DealID             uuid.UUID `gorm:"type:uuid;not null;index;column:deal_id"`
	Deal               *Deal     `gorm:"foreignKey:DealID"`
	ProductID          uuid.UUID `gorm:"type:uuid;not null;index;column:product_id"`
	Product            *Product  `gorm:"foreignKey:ProductID"`
	ProductName        string    `gorm:"type:varchar(200);column:product_name"`
	Quantity           int       `gorm:"not null;default:1"`
	UnitPrice          float64   `gorm:"type:decimal(15,2);not null;column:unit_price"`
	NegotiatedPrice    float64   `gorm:"type:decimal(15,2);not null;column:negotiated_price"`
	DiscountPercentage float64   `gorm:"type:decimal(5,2);not null;default:0;column:discount_percentage"`
	Subtotal           float64   `gorm:"type:decimal(15,2);not null;column:subtotal"`
	Notes              string    `gorm:"type:text"`
}

// DealStatusHistory tracks status changes for audit purposes
type DealStatusHistory struct {
	ID            uuid.UUID   `gorm:"type:uuid;primary_key"`
	DealID        uuid.UUID   `gorm:"type:uuid;not null;index;column:deal_id"`
	Deal          *Deal       `gorm:"foreignKey:DealID"`
	FromStatus    *DealStatus `gorm:"type:varchar(50);column:from_status"`
	ToStatus      DealStatus  `gorm:"type:varchar(50);not null;column:to_status"`
	ChangedByID   string      `gorm:"type:varchar(100);not null;column:changed_by_id"`
	ChangedByName string      `gorm:"type:varchar(200);column:changed_by_name"`
	Notes         string      `gorm:"type:text"`
	ChangedAt     time.Time   `gorm:"not null;default:CURRENT_TIMESTAMP;column:changed_at"`
}

// TableName overrides the default table name to match the migration
func (DealStatusHistory) TableName() string {
	return "deal_status_history"
}

// CustomerType represents the classification of a customer account
type CustomerType string

const (
	CustomerTypeIndividual CustomerType = "individual"
	CustomerTypeCorporate  CustomerType = "corporate"
)

// CustomerStatus represents the status of a customer account
type CustomerStatus string

const (
	CustomerStatusActive    CustomerStatus = "active"
	CustomerStatusInactive  CustomerStatus = "inactive"
	CustomerStatusSuspended CustomerStatus = "suspended"
)

// Customer represents a fulfilled, billable account
type Customer struct {
	BaseModel
	CustomerNumber      string            `gorm:"type:varchar(50);unique;not null;index;column:customer_number"`
	Name                string            `gorm:"type:varchar(200);not null;index"`
	Email               string            `gorm:"type:varchar(255)"`
	Phone               string            `gorm:"type:varchar(50)"`
	Address             string            `gorm:"type:varchar(500)"`
	BillingAddress      string            `gorm:"type:varchar(500);column:billing_address"`
	InstallationAddress string            `gorm:"type:varchar(500);column:installation_address"`
	CustomerType        CustomerType      `gorm:"type:varchar(50);not null;default:'individual';column:customer_type"`
	Status              CustomerStatus    `gorm:"type:varchar(50);not null;default:'active';index"`
	LeadID              *uuid.UUID        `gorm:"type:uuid;index;column:lead_id"`
	Lead                *Lead             `gorm:"foreignKey:LeadID"`
	SalesID             string            `gorm:"type:varchar(100);not null;index;column:sales_id"`
	SalesName           string            `gorm:"type:varchar(200);column:sales_name"`
	ActivationDate      *time.Time        `gorm:"type:date;column:activation_date"`
	Notes               string            `gorm:"type:text"`
	Services            []CustomerService `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE"`
}

// ServiceStatus represents the status of a provisioned service
type ServiceStatus string

const (
	ServiceStatusActive     ServiceStatus = "active"
	ServiceStatusInactive   ServiceStatus = "inactive"
	ServiceStatusSuspended  ServiceStatus = "suspended"
	ServiceStatusTerminated ServiceStatus = "terminated"
)

// BillingCycle represents how often a service is invoiced
type BillingCycle string

const (
	BillingCycleMonthly   BillingCycle = "monthly"
	BillingCycleQuarterly BillingCycle = "quarterly"
	BillingCycleYearly    BillingCycle = "yearly"
)

// IsValid checks if the BillingCycle is a valid enum value
func (bc BillingCycle) IsValid() bool {
	switch bc {
	case BillingCycleMonthly, BillingCycleQuarterly, BillingCycleYearly:
		return true
	}
	return false
}

// EquipmentInfo holds the provisioning metadata stored on a service.
// Persisted as a jsonb column.
type EquipmentInfo struct {
	RouterModel string `json:"routerModel"`
	ModemModel  string `json:"modemModel"`
	InstallDate string `json:"installDate"`
	Technician  string `json:"technician"`
	Bandwidth   string `json:"bandwidth"`
}

// CustomerService represents one provisioned product subscription under a Customer
type CustomerService struct {
	BaseModel
	ServiceNumber       string        `gorm:"type:varchar(50);unique;not null;index;column:service_number"`
	CustomerID          uuid.UUID     `gorm:"type:uuid;not null;index;column:customer_id"`
	Customer            *Customer     `gorm:"foreignKey:CustomerID"`
	ProductID           uuid.UUID     `gorm:"type:uuid;not null;index;column:product_id"`
	Product             *Product      `gorm:"foreignKey:ProductID"`
	ProductName         string        `gorm:"type:varchar(200);column:product_name"`
	DealID              *uuid.UUID    `gorm:"type:uuid;index;column:deal_id"`
	MonthlyFee          float64       `gorm:"type:decimal(15,2);not null;column:monthly_fee"`
	InstallationFee     float64       `gorm:"type:decimal(15,2);not null;default:0;column:installation_fee"`
	StartDate           time.Time     `gorm:"type:date;not null;column:start_date"`
	EndDate             *time.Time    `gorm:"type:date;column:end_date"`
	BillingCycle        BillingCycle  `gorm:"type:varchar(50);not null;default:'monthly';column:billing_cycle"`
	Status              ServiceStatus `gorm:"type:varchar(50);not null;default:'active';index"`
	InstallationAddress string        `gorm:"type:varchar(500);column:installation_address"`
	EquipmentInfo       string        `gorm:"type:jsonb;column:equipment_info"`
}

// UserRole represents a role a user can have
type UserRole string

const (
	RoleSales   UserRole = "sales"
	RoleManager UserRole = "manager"
	RoleAdmin   UserRole = "admin"
)

// IsValid checks if the UserRole is a valid enum value
func (r UserRole) IsValid() bool {
	switch r {
	case RoleSales, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// User represents a user in the system
type User struct {
	ID           string         `gorm:"type:varchar(100);primaryKey" json:"id"`
	Email        string         `gorm:"type:varchar(255);not null;unique" json:"email"`
	Name         string         `gorm:"type:varchar(200);not null" json:"name"`
	PasswordHash string         `gorm:"type:varchar(255);not null;column:password_hash" json:"-"`
	Roles        pq.StringArray `gorm:"type:text[];not null" json:"roles"`
	IsActive     bool           `gorm:"not null;default:true;column:is_active" json:"isActive"`
	LastLoginAt  *time.Time     `gorm:"column:last_login_at" json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt    time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// HasRole checks if the user carries a specific role
func (u *User) HasRole(role UserRole) bool {
	for _, r := range u.Roles {
		if r == string(role) {
			return true
		}
	}
	return false
}

// ActivityTargetType represents the type of entity an activity is associated with
type ActivityTargetType string

const (
	ActivityTargetLead     ActivityTargetType = "Lead"
	ActivityTargetDeal     ActivityTargetType = "Deal"
	ActivityTargetCustomer ActivityTargetType = "Customer"
)

// IsValid checks if the ActivityTargetType is a valid enum value
func (tt ActivityTargetType) IsValid() bool {
	switch tt {
	case ActivityTargetLead, ActivityTargetDeal, ActivityTargetCustomer:
		return true
	}
	return false
}

// Activity represents an event log entry for any entity
type Activity struct {
	BaseModel
	TargetType  ActivityTargetType `gorm:"type:varchar(50);not null;index;column:target_type"`
	TargetID    uuid.UUID          `gorm:"type:uuid;not null;index;column:target_id"`
	Title       string             `gorm:"type:varchar(200);not null"`
	Body        string             `gorm:"type:varchar(2000)"`
	OccurredAt  time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP;index;column:occurred_at"`
	CreatorID   string             `gorm:"type:varchar(100);column:creator_id"`
	CreatorName string             `gorm:"type:varchar(200);column:creator_name"`
}

// NotificationType represents the type of notification
type NotificationType string

const (
	NotificationTypeApprovalRequested NotificationType = "deal_approval_requested"
	NotificationTypeDealApproved      NotificationType = "deal_approved"
	NotificationTypeDealRejected      NotificationType = "deal_rejected"
	NotificationTypeDealClosedWon     NotificationType = "deal_closed_won"
	NotificationTypeServiceExpiring   NotificationType = "service_expiring"
)

// Notification represents a user notification
type Notification struct {
	BaseModel
	UserID     string `gorm:"type:varchar(100);not null;index;column:user_id"`
	Type       string `gorm:"type:varchar(50);not null"`
	Title      string `gorm:"type:varchar(200);not null"`
	Message    string `gorm:"type:varchar(500);not null"`
	Read       bool   `gorm:"column:read;not null;default:false;index"`
	ReadAt     *time.Time
	EntityID   *uuid.UUID `gorm:"type:uuid"`
	EntityType string     `gorm:"type:varchar(50)"`
}

// AuditAction represents the type of audit action
type AuditAction string

const (
	AuditActionCreate  AuditAction = "create"
	AuditActionUpdate  AuditAction = "update"
	AuditActionDelete  AuditAction = "delete"
	AuditActionApprove AuditAction = "approve"
	AuditActionReject  AuditAction = "reject"
	AuditActionClose   AuditAction = "close"
	AuditActionConvert AuditAction = "convert"
	AuditActionLogin   AuditAction = "login"
)

// AuditLog represents an audit trail entry
type AuditLog struct {
	ID          uuid.UUID   `gorm:"type:uuid;primary_key"`
	UserID      string      `gorm:"type:varchar(100);column:user_id"`
	UserEmail   string      `gorm:"type:varchar(255);column:user_email"`
	UserName    string      `gorm:"type:varchar(200);column:user_name"`
	Action      AuditAction `gorm:"type:varchar(50);not null"`
	EntityType  string      `gorm:"type:varchar(50);not null;column:entity_type"`
	EntityID    *uuid.UUID  `gorm:"type:uuid;column:entity_id"`
	EntityName  string      `gorm:"type:varchar(200);column:entity_name"`
	Metadata    string      `gorm:"type:jsonb"`
	IPAddress   string      `gorm:"type:varchar(64);column:ip_address"`
	RequestID   string      `gorm:"type:varchar(100);column:request_id"`
	PerformedAt time.Time   `gorm:"not null;default:CURRENT_TIMESTAMP;column:performed_at"`
	CreatedAt   time.Time   `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// File represents an uploaded deal attachment (contracts, survey forms)
type File struct {
	BaseModel
	Filename    string     `gorm:"type:varchar(255);not null"`
	ContentType string     `gorm:"type:varchar(100);not null"`
	Size        int64      `gorm:"not null"`
	StoragePath string     `gorm:"type:varchar(500);not null;unique"`
	DealID      *uuid.UUID `gorm:"type:uuid;index;column:deal_id"`
	Deal        *Deal      `gorm:"foreignKey:DealID"`
	UploadedBy  string     `gorm:"type:varchar(100);column:uploaded_by"`
}

// SequenceEntity identifies which generated-number family a sequence belongs to
type SequenceEntity string

const (
	SequenceEntityCustomer SequenceEntity = "customer"
	SequenceEntityService  SequenceEntity = "service"
)

// NumberSequence stores the per-entity, per-day counter behind generated
// customer and service numbers.
type NumberSequence struct {
	ID           uuid.UUID      `gorm:"type:uuid;primary_key"`
	EntityType   SequenceEntity `gorm:"type:varchar(50);not null;uniqueIndex:idx_seq_entity_date;column:entity_type"`
	SequenceDate string         `gorm:"type:varchar(8);not null;uniqueIndex:idx_seq_entity_date;column:sequence_date"`
	LastSequence int            `gorm:"not null;default:0;column:last_sequence"`
	CreatedAt    time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}
