package mapper

import (
	"encoding/json"
	"time"

	"github.com/nusalink-net/crm-api/internal/domain"
)

const timestampFormat = "2006-01-02T15:04:05Z"
const dateFormat = "2006-01-02"

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(timestampFormat)
	return &s
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateFormat)
	return &s
}

// ToLeadDTO converts Lead to LeadDTO
func ToLeadDTO(lead *domain.Lead) domain.LeadDTO {
	return domain.LeadDTO{
		ID:          lead.ID,
		Name:        lead.Name,
		Email:       lead.Email,
		Phone:       lead.Phone,
		CompanyName: lead.CompanyName,
		Address:     lead.Address,
		Needs:       lead.Needs,
		Source:      lead.Source,
		Status:      lead.Status,
		SalesID:     lead.SalesID,
		SalesName:   lead.SalesName,
		Notes:       lead.Notes,
		CreatedAt:   lead.CreatedAt.Format(timestampFormat),
		UpdatedAt:   lead.UpdatedAt.Format(timestampFormat),
	}
}

// ToProductDTO converts Product to ProductDTO. The selling price is derived,
// not stored, so it is computed here.
func ToProductDTO(product *domain.Product) domain.ProductDTO {
	return domain.ProductDTO{
		ID:           product.ID,
		Name:         product.Name,
		Code:         product.Code,
		Category:     product.Category,
		Description:  product.Description,
		HPP:          product.HPP,
		MarginPct:    product.MarginPct,
		SellingPrice: product.SellingPrice(),
		IsActive:     product.IsActive,
		CreatedAt:    product.CreatedAt.Format(timestampFormat),
		UpdatedAt:    product.UpdatedAt.Format(timestampFormat),
	}
}

// ToDealDTO converts Deal to DealDTO including its items
func ToDealDTO(deal *domain.Deal) domain.DealDTO {
	items := make([]domain.DealItemDTO, 0, len(deal.Items))
	for i := range deal.Items {
		items = append(items, ToDealItemDTO(&deal.Items[i]))
	}

	leadName := ""
	if deal.Lead != nil {
		leadName = deal.Lead.Name
	}

	return domain.DealDTO{
		ID:             deal.ID,
		Title:          deal.Title,
		Description:    deal.Description,
		LeadID:         deal.LeadID,
		LeadName:       leadName,
		Status:         deal.Status,
		TotalAmount:    deal.TotalAmount,
		DiscountAmount: deal.DiscountAmount,
		FinalAmount:    deal.FinalAmount,
		NeedsApproval:  deal.NeedsApproval,
		ApprovedByID:   deal.ApprovedByID,
		ApprovedByName: deal.ApprovedByName,
		ApprovedAt:     formatTimePtr(deal.ApprovedAt),
		ClosedAt:       formatTimePtr(deal.ClosedAt),
		RejectReason:   deal.RejectReason,
		SalesID:        deal.SalesID,
		SalesName:      deal.SalesName,
		Notes:          deal.Notes,
		Items:          items,
		CreatedAt:      deal.CreatedAt.Format(timestampFormat),
		UpdatedAt:      deal.UpdatedAt.Format(timestampFormat),
	}
}

// ToDealItemDTO converts DealItem to DealItemDTO
func ToDealItemDTO(item *domain.DealItem) domain.DealItemDTO {
	name := item.ProductName
	if name == "" && item.Product != nil {
		name = item.Product.Name
	}
	return domain.DealItemDTO{
		ID:                 item.ID,
		DealID:             item.DealID,
		ProductID:          item.ProductID,
		ProductName:        name,
		Quantity:           item.Quantity,
		UnitPrice:          item.UnitPrice,
		NegotiatedPrice:    item.NegotiatedPrice,
		DiscountPercentage: item.DiscountPercentage,
		Subtotal:           item.Subtotal,
		Notes:              item.Notes,
		CreatedAt:          item.CreatedAt.Format(timestampFormat),
	}
}

// ToDealStatusHistoryDTO converts DealStatusHistory to its DTO
func ToDealStatusHistoryDTO(entry *domain.DealStatusHistory) domain.DealStatusHistoryDTO {
	return domain.DealStatusHistoryDTO{
		ID:            entry.ID,
		DealID:        entry.DealID,
		FromStatus:    entry.FromStatus,
		ToStatus:      entry.ToStatus,
		ChangedByID:   entry.ChangedByID,
		ChangedByName: entry.ChangedByName,
		Notes:         entry.Notes,
		ChangedAt:     entry.ChangedAt.Format(timestampFormat),
	}
}

// ToCustomerDTO converts Customer to CustomerDTO
func ToCustomerDTO(customer *domain.Customer) domain.CustomerDTO {
	return domain.CustomerDTO{
		ID:                  customer.ID,
		CustomerNumber:      customer.CustomerNumber,
		Name:                customer.Name,
		Email:               customer.Email,
		Phone:               customer.Phone,
		Address:             customer.Address,
		BillingAddress:      customer.BillingAddress,
		InstallationAddress: customer.InstallationAddress,
		CustomerType:        customer.CustomerType,
		Status:              customer.Status,
		LeadID:              customer.LeadID,
		SalesID:             customer.SalesID,
		SalesName:           customer.SalesName,
		ActivationDate:      formatDatePtr(customer.ActivationDate),
		Notes:               customer.Notes,
		CreatedAt:           customer.CreatedAt.Format(timestampFormat),
		UpdatedAt:           customer.UpdatedAt.Format(timestampFormat),
	}
}

// ToCustomerWithServicesDTO converts Customer and its services to the combined DTO
func ToCustomerWithServicesDTO(customer *domain.Customer) domain.CustomerWithServicesDTO {
	services := make([]domain.CustomerServiceDTO, 0, len(customer.Services))
	for i := range customer.Services {
		services = append(services, ToCustomerServiceDTO(&customer.Services[i]))
	}
	return domain.CustomerWithServicesDTO{
		CustomerDTO: ToCustomerDTO(customer),
		Services:    services,
	}
}

// ToCustomerServiceDTO converts CustomerService to CustomerServiceDTO.
// The stored equipment_info jsonb is unmarshalled; malformed payloads are
// surfaced as a nil equipmentInfo rather than an error.
func ToCustomerServiceDTO(svc *domain.CustomerService) domain.CustomerServiceDTO {
	name := svc.ProductName
	if name == "" && svc.Product != nil {
		name = svc.Product.Name
	}

	var equipment *domain.EquipmentInfo
	if svc.EquipmentInfo != "" {
		var info domain.EquipmentInfo
		if err := json.Unmarshal([]byte(svc.EquipmentInfo), &info); err == nil {
			equipment = &info
		}
	}

	return domain.CustomerServiceDTO{
		ID:                  svc.ID,
		ServiceNumber:       svc.ServiceNumber,
		CustomerID:          svc.CustomerID,
		ProductID:           svc.ProductID,
		ProductName:         name,
		DealID:              svc.DealID,
		MonthlyFee:          svc.MonthlyFee,
		InstallationFee:     svc.InstallationFee,
		StartDate:           svc.StartDate.Format(dateFormat),
		EndDate:             formatDatePtr(svc.EndDate),
		BillingCycle:        svc.BillingCycle,
		Status:              svc.Status,
		InstallationAddress: svc.InstallationAddress,
		EquipmentInfo:       equipment,
		CreatedAt:           svc.CreatedAt.Format(timestampFormat),
		UpdatedAt:           svc.UpdatedAt.Format(timestampFormat),
	}
}

// ToActivityDTO converts Activity to ActivityDTO
func ToActivityDTO(activity *domain.Activity) domain.ActivityDTO {
	return domain.ActivityDTO{
		ID:          activity.ID,
		TargetType:  activity.TargetType,
		TargetID:    activity.TargetID,
		Title:       activity.Title,
		Body:        activity.Body,
		OccurredAt:  activity.OccurredAt.Format(timestampFormat),
		CreatorID:   activity.CreatorID,
		CreatorName: activity.CreatorName,
		CreatedAt:   activity.CreatedAt.Format(timestampFormat),
	}
}

// ToNotificationDTO converts Notification to NotificationDTO
func ToNotificationDTO(notification *domain.Notification) domain.NotificationDTO {
	return domain.NotificationDTO{
		ID:         notification.ID,
		UserID:     notification.UserID,
		Type:       notification.Type,
		Title:      notification.Title,
		Message:    notification.Message,
		Read:       notification.Read,
		ReadAt:     formatTimePtr(notification.ReadAt),
		EntityID:   notification.EntityID,
		EntityType: notification.EntityType,
		CreatedAt:  notification.CreatedAt.Format(timestampFormat),
	}
}

// ToAuditLogDTO converts AuditLog to AuditLogDTO
func ToAuditLogDTO(log *domain.AuditLog) domain.AuditLogDTO {
	return domain.AuditLogDTO{
		ID:          log.ID,
		UserID:      log.UserID,
		UserEmail:   log.UserEmail,
		UserName:    log.UserName,
		Action:      log.Action,
		EntityType:  log.EntityType,
		EntityID:    log.EntityID,
		EntityName:  log.EntityName,
		Metadata:    log.Metadata,
		IPAddress:   log.IPAddress,
		RequestID:   log.RequestID,
		PerformedAt: log.PerformedAt.Format(timestampFormat),
	}
}

// ToFileDTO converts File to FileDTO
func ToFileDTO(file *domain.File) domain.FileDTO {
	return domain.FileDTO{
		ID:          file.ID,
		Filename:    file.Filename,
		ContentType: file.ContentType,
		Size:        file.Size,
		DealID:      file.DealID,
		UploadedBy:  file.UploadedBy,
		CreatedAt:   file.CreatedAt.Format(timestampFormat),
	}
}

// ToUserDTO converts User to UserDTO
func ToUserDTO(user *domain.User) domain.UserDTO {
	return domain.UserDTO{
		ID:          user.ID,
		Email:       user.Email,
		Name:        user.Name,
		Roles:       []string(user.Roles),
		IsActive:    user.IsActive,
		LastLoginAt: formatTimePtr(user.LastLoginAt),
		CreatedAt:   user.CreatedAt.Format(timestampFormat),
	}
}
