package dto

import (
	"time"

	"restopos/internal/core/id"
	"restopos/internal/core/types"
	"restopos/internal/domain/catalogs/supplier"
)

// CreateSupplierRequest is the request body for creating a supplier.
type CreateSupplierRequest struct {
	Code         string  `json:"code" binding:"required"`
	Name         string  `json:"name" binding:"required"`
	ContactName  *string `json:"contactName"`
	Phone        *string `json:"phone"`
	Email        *string `json:"email"`
	PaymentTerms *string `json:"paymentTerms"`
}

func (r *CreateSupplierRequest) ToCommand() supplier.CreateCommand {
	return supplier.CreateCommand{
		Code:         r.Code,
		Name:         r.Name,
		ContactName:  r.ContactName,
		Phone:        r.Phone,
		Email:        r.Email,
		PaymentTerms: r.PaymentTerms,
	}
}

// UpdateSupplierRequest changes contact fields that are present.
type UpdateSupplierRequest struct {
	Version      int     `json:"version" binding:"required,min=1"`
	Name         *string `json:"name"`
	ContactName  *string `json:"contactName"`
	Phone        *string `json:"phone"`
	Email        *string `json:"email"`
	PaymentTerms *string `json:"paymentTerms"`
}

func (r *UpdateSupplierRequest) ToCommand() supplier.UpdateCommand {
	return supplier.UpdateCommand{
		Version:      r.Version,
		Name:         r.Name,
		ContactName:  r.ContactName,
		Phone:        r.Phone,
		Email:        r.Email,
		PaymentTerms: r.PaymentTerms,
	}
}

// PurchaseRequest records goods received from a supplier.
type PurchaseRequest struct {
	ItemID         id.ID          `json:"itemId" binding:"required"`
	WarehouseID    *id.ID         `json:"warehouseId"`
	Quantity       types.Quantity `json:"quantity"`
	UnitCost       types.Money    `json:"unitCost"`
	InvoiceNumber  string         `json:"invoiceNumber"`
	InvoiceDueDate *time.Time     `json:"invoiceDueDate"`
	Reference      string         `json:"reference"`
	Note           string         `json:"note"`
}

func (r *PurchaseRequest) ToCommand(supplierID id.ID) supplier.PurchaseCommand {
	return supplier.PurchaseCommand{
		SupplierID:     supplierID,
		ItemID:         r.ItemID,
		WarehouseID:    r.WarehouseID,
		Quantity:       r.Quantity,
		UnitCost:       r.UnitCost,
		InvoiceNumber:  r.InvoiceNumber,
		InvoiceDueDate: r.InvoiceDueDate,
		Reference:      r.Reference,
		Note:           r.Note,
	}
}

// ReturnRequest sends goods back to a supplier.
type ReturnRequest struct {
	ItemID      id.ID          `json:"itemId" binding:"required"`
	WarehouseID *id.ID         `json:"warehouseId"`
	Quantity    types.Quantity `json:"quantity"`
	UnitCost    *types.Money   `json:"unitCost"`
	Reason      string         `json:"reason"`
	Reference   string         `json:"reference"`
}

func (r *ReturnRequest) ToCommand(supplierID id.ID) supplier.ReturnCommand {
	return supplier.ReturnCommand{
		SupplierID:  supplierID,
		ItemID:      r.ItemID,
		WarehouseID: r.WarehouseID,
		Quantity:    r.Quantity,
		UnitCost:    r.UnitCost,
		Reason:      r.Reason,
		Reference:   r.Reference,
	}
}

// PaymentRequest records a payment to a supplier.
type PaymentRequest struct {
	Amount    types.Money            `json:"amount"`
	Method    supplier.PaymentMethod `json:"method"`
	Reference *string                `json:"reference"`
	Note      *string                `json:"note"`
	PaidAt    *time.Time             `json:"paidAt"`
	InvoiceID *id.ID                 `json:"invoiceId"`
}

func (r *PaymentRequest) ToCommand(supplierID id.ID) supplier.PaymentCommand {
	return supplier.PaymentCommand{
		SupplierID: supplierID,
		Amount:     r.Amount,
		Method:     r.Method,
		Reference:  r.Reference,
		Note:       r.Note,
		PaidAt:     r.PaidAt,
		InvoiceID:  r.InvoiceID,
	}
}

// ReturnResponse adds the stock outcome to a supplier return.
type ReturnResponse struct {
	*supplier.ReturnResult
	Stock *AppliedResponse `json:"stock"`
}

// PurchaseResponse adds the stock outcome to a purchase.
type PurchaseResponse struct {
	*supplier.PurchaseResult
	Stock *AppliedResponse `json:"stock"`
}
