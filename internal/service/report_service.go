package service

import (
	"context"

	"sales-service/internal/models"
	"sales-service/internal/util"
)

// ReportStore is the read-only side of completed sales
type ReportStore interface {
	GetSaleByID(ctx context.Context, id int64) (*models.Sale, error)
	GetSaleItemsBySaleID(ctx context.Context, saleID int64) ([]models.SaleLineItem, error)
	SalesBySellerMonth(ctx context.Context) ([]models.SellerMonthReport, error)
}

// ReportService projects completed sales
type ReportService struct {
	store ReportStore
}

// NewReportService creates a new report service
func NewReportService(store ReportStore) *ReportService {
	return &ReportService{store: store}
}

// GetSale retrieves a sale with its line items
func (rs *ReportService) GetSale(ctx context.Context, saleID int64) (*models.Sale, []models.SaleLineItem, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.GetSale")
	defer span.End()

	sale, err := rs.store.GetSaleByID(ctx, saleID)
	if err != nil {
		return nil, nil, err
	}

	items, err := rs.store.GetSaleItemsBySaleID(ctx, saleID)
	if err != nil {
		return nil, nil, err
	}

	return sale, items, nil
}

// SalesBySellerMonth returns per-seller monthly totals, newest month first
func (rs *ReportService) SalesBySellerMonth(ctx context.Context) ([]models.SellerMonthReport, error) {
	return rs.store.SalesBySellerMonth(ctx)
}
