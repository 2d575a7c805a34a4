package checkout

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
)

// resolveLines prices the submission from the catalog. Cart lines must belong to the buyer.
func (s *service) resolveLines(ctx context.Context, input Input) ([]Line, error) {
	type wanted struct {
		productID  uuid.UUID
		cartItemID *uuid.UUID
		quantity   int
	}
	var items []wanted

	if len(input.CartItemIDs) > 0 {
		rows, err := s.deps.Catalog.FindCartItems(ctx, input.BuyerID, input.CartItemIDs)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart lines")
		}
		found := make(map[uuid.UUID]models.CartItem, len(rows))
		for _, row := range rows {
			found[row.ID] = row
		}
		var missing []uuid.UUID
		for _, raw := range Fingerprint(input.CartItemIDs) {
			id := uuid.MustParse(raw)
			row, ok := found[id]
			if !ok {
				missing = append(missing, id)
				continue
			}
			cartItemID := row.ID
			items = append(items, wanted{productID: row.ProductID, cartItemID: &cartItemID, quantity: row.Quantity})
		}
		if len(missing) > 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart lines not found").
				WithDetails(map[string]any{"cart_item_ids": missing})
		}
	} else {
		for _, item := range input.Items {
			items = append(items, wanted{productID: item.ProductID, quantity: item.Quantity})
		}
	}

	productIDs := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		productIDs = append(productIDs, item.productID)
	}
	products, err := s.deps.Catalog.FindProducts(ctx, productIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, product := range products {
		byID[product.ID] = product
	}

	lines := make([]Line, 0, len(items))
	for _, item := range items {
		product, ok := byID[item.productID]
		if !ok || !product.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available").
				WithDetails(map[string]any{"product_id": item.productID})
		}
		if item.quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{"product_id": item.productID})
		}
		if !product.Unlimited() && product.Stock < int64(item.quantity) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "not enough stock").
				WithDetails(map[string]any{"product_id": product.ID, "available": product.Stock, "requested": item.quantity})
		}
		lines = append(lines, Line{
			ShopID:     product.ShopID,
			ProductID:  product.ID,
			CartItemID: item.cartItemID,
			Name:       product.Name,
			UnitPrice:  product.Price,
			Quantity:   item.quantity,
		})
	}
	return lines, nil
}
