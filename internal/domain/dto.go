package domain

import (
	"github.com/google/uuid"
)

// DTOs for API responses

type LeadDTO struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	CompanyName string     `json:"companyName,omitempty"`
	Address     string     `json:"address,omitempty"`
	Needs       string     `json:"needs,omitempty"`
	Source      string     `json:"source,omitempty"`
	Status      LeadStatus `json:"status"`
	SalesID     string     `json:"salesId"`
	SalesName   string     `json:"salesName,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	CreatedAt   string     `json:"createdAt"` // ISO 8601
	UpdatedAt   string     `json:"updatedAt"` // ISO 8601
}

type ProductDTO struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Code         string    `json:"code,omitempty"`
	Category     string    `json:"category,omitempty"`
	Description  string    `json:"description,omitempty"`
	HPP          float64   `json:"hpp"`
	MarginPct    float64   `json:"marginPct"`
	SellingPrice float64   `json:"sellingPrice"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    string    `json:"createdAt"`
	UpdatedAt    string    `json:"updatedAt"`
}

type DealDTO struct {
	ID             uuid.UUID     `json:"id"`
	Title          string        `json:"title"`
	Description    string        `json:"description,omitempty"`
	LeadID         uuid.UUID     `json:"leadId"`
	LeadName       string        `json:"leadName,omitempty"`
	Status         DealStatus    `json:"status"`
	TotalAmount    float64       `json:"totalAmount"`
	DiscountAmount float64       `json:"discountAmount"`
	FinalAmount    float64       `json:"finalAmount"`
	NeedsApproval  bool          `json:"needsApproval"`
	ApprovedByID   string        `json:"approvedById,omitempty"`
	ApprovedByName string        `json:"approvedByName,omitempty"`
	ApprovedAt     *string       `json:"approvedAt,omitempty"` // ISO 8601
	ClosedAt       *string       `json:"closedAt,omitempty"`   // ISO 8601
	RejectReason   string        `json:"rejectReason,omitempty"`
	SalesID        string        `json:"salesId"`
	SalesName      string        `json:"salesName,omitempty"`
	Notes          string        `json:"notes,omitempty"`
	Items          []DealItemDTO `json:"items"`
	CreatedAt      string        `json:"createdAt"`
	UpdatedAt      string        `json:"updatedAt"`
}

type DealItemDTO struct {
	ID                 uuid.UUID `json:"id"`
	DealID             uuid.UUID `json:"dealId"`
	ProductID          uuid.UUID `json:"productId"`
	ProductName        string    `json:"productName,omitempty"`
	Quantity           int       `json:"quantity"`
	UnitPrice          float64   `json:"unitPrice"`
	NegotiatedPrice    float64   `json:"negotiatedPrice"`
	DiscountPercentage float64   `json:"discountPercentage"`
	Subtotal           float64   `json:"subtotal"`
	Notes              string    `json:"notes,omitempty"`
	CreatedAt          string    `json:"createdAt"`
}

type DealStatusHistoryDTO struct {
	ID            uuid.UUID   `json:"id"`
	DealID        uuid.UUID   `json:"dealId"`
	FromStatus    *DealStatus `json:"fromStatus,omitempty"`
	ToStatus      DealStatus  `json:"toStatus"`
	ChangedByID   string      `json:"changedById"`
	ChangedByName string      `json:"changedByName,omitempty"`
	Notes         string      `json:"notes,omitempty"`
	ChangedAt     string      `json:"changedAt"`
}

type CustomerDTO struct {
	ID                  uuid.UUID      `json:"id"`
	CustomerNumber      string         `json:"customerNumber"`
	Name                string         `json:"name"`
	Email               string         `json:"email,omitempty"`
	Phone               string         `json:"phone,omitempty"`
	Address             string         `json:"address,omitempty"`
	BillingAddress      string         `json:"billingAddress,omitempty"`
	InstallationAddress string         `json:"installationAddress,omitempty"`
	CustomerType        CustomerType   `json:"customerType"`
	Status              CustomerStatus `json:"status"`
	LeadID              *uuid.UUID     `json:"leadId,omitempty"`
	SalesID             string         `json:"salesId"`
	SalesName           string         `json:"salesName,omitempty"`
	ActivationDate      *string        `json:"activationDate,omitempty"` // ISO 8601 date
	Notes               string         `json:"notes,omitempty"`
	CreatedAt           string         `json:"createdAt"`
	UpdatedAt           string         `json:"updatedAt"`
}

// CustomerWithServicesDTO includes customer data with its provisioned services
type CustomerWithServicesDTO struct {
	CustomerDTO
	Services []CustomerServiceDTO `json:"services"`
}

type CustomerServiceDTO struct {
	ID                  uuid.UUID      `json:"id"`
	ServiceNumber       string         `json:"serviceNumber"`
	CustomerID          uuid.UUID      `json:"customerId"`
	ProductID           uuid.UUID      `json:"productId"`
	ProductName         string         `json:"productName,omitempty"`
	DealID              *uuid.UUID     `json:"dealId,omitempty"`
	MonthlyFee          float64        `json:"monthlyFee"`
	InstallationFee     float64        `json:"installationFee"`
	StartDate           string         `json:"startDate"`         // ISO 8601 date
	EndDate             *string        `json:"endDate,omitempty"` // ISO 8601 date
	BillingCycle        BillingCycle   `json:"billingCycle"`
	Status              ServiceStatus  `json:"status"`
	InstallationAddress string         `json:"installationAddress,omitempty"`
	EquipmentInfo       *EquipmentInfo `json:"equipmentInfo,omitempty"`
	CreatedAt           string         `json:"createdAt"`
	UpdatedAt           string         `json:"updatedAt"`
}

// ConversionResultDTO is returned by the close operation. Customer is only
// set when the deal closed won and the fan-out created an account.
type ConversionResultDTO struct {
	Deal     DealDTO                  `json:"deal"`
	Customer *CustomerWithServicesDTO `json:"customer,omitempty"`
}

type ActivityDTO struct {
	ID          uuid.UUID          `json:"id"`
	TargetType  ActivityTargetType `json:"targetType"`
	TargetID    uuid.UUID          `json:"targetId"`
	Title       string             `json:"title"`
	Body        string             `json:"body,omitempty"`
	OccurredAt  string             `json:"occurredAt"`
	CreatorID   string             `json:"creatorId,omitempty"`
	CreatorName string             `json:"creatorName,omitempty"`
	CreatedAt   string             `json:"createdAt"`
}

type NotificationDTO struct {
	ID         uuid.UUID  `json:"id"`
	UserID     string     `json:"userId"`
	Type       string     `json:"type"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Read       bool       `json:"read"`
	ReadAt     *string    `json:"readAt,omitempty"`
	EntityID   *uuid.UUID `json:"entityId,omitempty"`
	EntityType string     `json:"entityType,omitempty"`
	CreatedAt  string     `json:"createdAt"`
}

type AuditLogDTO struct {
	ID          uuid.UUID   `json:"id"`
	UserID      string      `json:"userId,omitempty"`
	UserEmail   string      `json:"userEmail,omitempty"`
	UserName    string      `json:"userName,omitempty"`
	Action      AuditAction `json:"action"`
	EntityType  string      `json:"entityType"`
	EntityID    *uuid.UUID  `json:"entityId,omitempty"`
	EntityName  string      `json:"entityName,omitempty"`
	Metadata    string      `json:"metadata,omitempty"`
	IPAddress   string      `json:"ipAddress,omitempty"`
	RequestID   string      `json:"requestId,omitempty"`
	PerformedAt string      `json:"performedAt"`
}

type FileDTO struct {
	ID          uuid.UUID  `json:"id"`
	Filename    string     `json:"filename"`
	ContentType string     `json:"contentType"`
	Size        int64      `json:"size"`
	DealID      *uuid.UUID `json:"dealId,omitempty"`
	UploadedBy  string     `json:"uploadedBy,omitempty"`
	CreatedAt   string     `json:"createdAt"`
}

type UserDTO struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Roles       []string `json:"roles"`
	IsActive    bool     `json:"isActive"`
	LastLoginAt *string  `json:"lastLoginAt,omitempty"`
	CreatedAt   string   `json:"createdAt"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// Pagination response wrapper
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

// Request DTOs

type CreateLeadRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Email       string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Phone       string `json:"phone,omitempty" validate:"max=50"`
	CompanyName string `json:"companyName,omitempty" validate:"max=200"`
	Address     string `json:"address,omitempty" validate:"max=500"`
	Needs       string `json:"needs,omitempty" validate:"max=2000"`
	Source      string `json:"source,omitempty" validate:"max=100"`
	Notes       string `json:"notes,omitempty" validate:"max=2000"`
}

type UpdateLeadRequest struct {
	Name        string      `json:"name" validate:"required,max=200"`
	Email       string      `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Phone       string      `json:"phone,omitempty" validate:"max=50"`
	CompanyName string      `json:"companyName,omitempty" validate:"max=200"`
	Address     string      `json:"address,omitempty" validate:"max=500"`
	Needs       string      `json:"needs,omitempty" validate:"max=2000"`
	Source      string      `json:"source,omitempty" validate:"max=100"`
	Status      *LeadStatus `json:"status,omitempty"`
	Notes       string      `json:"notes,omitempty" validate:"max=2000"`
}

type CreateProductRequest struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Code        string  `json:"code,omitempty" validate:"max=50"`
	Category    string  `json:"category,omitempty" validate:"max=100"`
	Description string  `json:"description,omitempty" validate:"max=2000"`
	HPP         float64 `json:"hpp" validate:"gte=0"`
	MarginPct   float64 `json:"marginPct" validate:"gte=0,lte=100"`
	IsActive    *bool   `json:"isActive,omitempty"`
}

type UpdateProductRequest struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Code        string  `json:"code,omitempty" validate:"max=50"`
	Category    string  `json:"category,omitempty" validate:"max=100"`
	Description string  `json:"description,omitempty" validate:"max=2000"`
	HPP         float64 `json:"hpp" validate:"gte=0"`
	MarginPct   float64 `json:"marginPct" validate:"gte=0,lte=100"`
	IsActive    *bool   `json:"isActive,omitempty"`
}

type CreateDealRequest struct {
	Title       string                  `json:"title" validate:"required,max=200"`
	Description string                  `json:"description,omitempty" validate:"max=2000"`
	LeadID      uuid.UUID               `json:"leadId" validate:"required"`
	Notes       string                  `json:"notes,omitempty" validate:"max=2000"`
	Items       []CreateDealItemRequest `json:"items,omitempty" validate:"dive"`
}

type UpdateDealRequest struct {
	Title          string   `json:"title" validate:"required,max=200"`
	Description    string   `json:"description,omitempty" validate:"max=2000"`
	DiscountAmount *float64 `json:"discountAmount,omitempty" validate:"omitempty,gte=0"`
	Notes          string   `json:"notes,omitempty" validate:"max=2000"`
}

type CreateDealItemRequest struct {
	ProductID       uuid.UUID `json:"productId" validate:"required"`
	Quantity        int       `json:"quantity" validate:"required,gt=0"`
	NegotiatedPrice *float64  `json:"negotiatedPrice,omitempty" validate:"omitempty,gte=0"`
	DiscountPct     *float64  `json:"discountPct,omitempty" validate:"omitempty,gte=0,lte=100"`
	Notes           string    `json:"notes,omitempty" validate:"max=2000"`
}

type UpdateDealItemRequest struct {
	Quantity        int      `json:"quantity" validate:"required,gt=0"`
	NegotiatedPrice *float64 `json:"negotiatedPrice,omitempty" validate:"omitempty,gte=0"`
	Notes           string   `json:"notes,omitempty" validate:"max=2000"`
}

type RejectDealRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type CloseDealRequest struct {
	Won                 bool          `json:"won"`
	LostReason          string        `json:"lostReason,omitempty" validate:"max=500"`
	CustomerType        *CustomerType `json:"customerType,omitempty"`
	BillingCycle        *BillingCycle `json:"billingCycle,omitempty"`
	BillingAddress      string        `json:"billingAddress,omitempty" validate:"max=500"`
	InstallationAddress string        `json:"installationAddress,omitempty" validate:"max=500"`
}

type CreateCustomerRequest struct {
	Name                string        `json:"name" validate:"required,max=200"`
	Email               string        `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Phone               string        `json:"phone,omitempty" validate:"max=50"`
	Address             string        `json:"address,omitempty" validate:"max=500"`
	BillingAddress      string        `json:"billingAddress,omitempty" validate:"max=500"`
	InstallationAddress string        `json:"installationAddress,omitempty" validate:"max=500"`
	CustomerType        *CustomerType `json:"customerType,omitempty"`
	Notes               string        `json:"notes,omitempty" validate:"max=2000"`
}

type UpdateCustomerRequest struct {
	Name                string          `json:"name" validate:"required,max=200"`
	Email               string          `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Phone               string          `json:"phone,omitempty" validate:"max=50"`
	Address             string          `json:"address,omitempty" validate:"max=500"`
	BillingAddress      string          `json:"billingAddress,omitempty" validate:"max=500"`
	InstallationAddress string          `json:"installationAddress,omitempty" validate:"max=500"`
	CustomerType        *CustomerType   `json:"customerType,omitempty"`
	Status              *CustomerStatus `json:"status,omitempty"`
	Notes               string          `json:"notes,omitempty" validate:"max=2000"`
}

type UpdateCustomerServiceRequest struct {
	MonthlyFee          *float64       `json:"monthlyFee,omitempty" validate:"omitempty,gte=0"`
	EndDate             *string        `json:"endDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	BillingCycle        *BillingCycle  `json:"billingCycle,omitempty"`
	Status              *ServiceStatus `json:"status,omitempty"`
	InstallationAddress string         `json:"installationAddress,omitempty" validate:"max=500"`
}

type CreateActivityRequest struct {
	TargetType ActivityTargetType `json:"targetType" validate:"required"`
	TargetID   uuid.UUID          `json:"targetId" validate:"required"`
	Title      string             `json:"title" validate:"required,max=200"`
	Body       string             `json:"body,omitempty" validate:"max=2000"`
	OccurredAt *string            `json:"occurredAt,omitempty"` // ISO 8601, defaults to now
}

type CreateNotificationRequest struct {
	UserID     string     `json:"userId" validate:"required"`
	Type       string     `json:"type" validate:"required,max=50"`
	Title      string     `json:"title" validate:"required,max=200"`
	Message    string     `json:"message" validate:"required,max=500"`
	EntityID   *uuid.UUID `json:"entityId,omitempty"`
	EntityType string     `json:"entityType,omitempty" validate:"max=50"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type LoginResponse struct {
	Token     string  `json:"token"`
	ExpiresAt string  `json:"expiresAt"` // ISO 8601
	User      UserDTO `json:"user"`
}

type SetUserActiveRequest struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

type CreateUserRequest struct {
	Email    string   `json:"email" validate:"required,email,max=255"`
	Name     string   `json:"name" validate:"required,max=200"`
	Password string   `json:"password" validate:"required,min=8,max=72"`
	Roles    []string `json:"roles" validate:"required,min=1,dive,oneof=sales manager admin"`
}

// Report DTOs

type SalesFunnelDTO struct {
	LeadsByStatus  map[LeadStatus]int64 `json:"leadsByStatus"`
	DealsByStatus  map[DealStatus]int64 `json:"dealsByStatus"`
	TotalLeads     int64                `json:"totalLeads"`
	TotalDeals     int64                `json:"totalDeals"`
	ConversionRate float64              `json:"conversionRate"` // won leads / total leads, percent
}

type RevenueSummaryDTO struct {
	WonDeals            int64   `json:"wonDeals"`
	WonAmount           float64 `json:"wonAmount"`
	TotalRevenue        float64 `json:"totalRevenue"` // approved + closed_won final amounts
	TotalDiscountGiven  float64 `json:"totalDiscountGiven"`
	ActiveServices      int64   `json:"activeServices"`
	MonthlyRecurringFee float64 `json:"monthlyRecurringFee"`
	InstallationRevenue float64 `json:"installationRevenue"`
	GrowthRate          float64 `json:"growthRate"`
	RetentionRate       float64 `json:"retentionRate"`
}

type SalesPerformanceDTO struct {
	SalesID     string  `json:"salesId"`
	SalesName   string  `json:"salesName,omitempty"`
	TotalDeals  int64   `json:"totalDeals"`
	WonDeals    int64   `json:"wonDeals"`
	LostDeals   int64   `json:"lostDeals"`
	WonAmount   float64 `json:"wonAmount"`
	WinRate     float64 `json:"winRate"`
}

type DashboardDTO struct {
	Funnel           SalesFunnelDTO        `json:"funnel"`
	Revenue          RevenueSummaryDTO     `json:"revenue"`
	PendingApprovals int64                 `json:"pendingApprovals"`
	RecentDeals      []DealDTO             `json:"recentDeals"`
	TopSales         []SalesPerformanceDTO `json:"topSales"`
}
