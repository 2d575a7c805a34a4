package notifications

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
	"github.com/angelmondragon/digimart-backend/pkg/outbox/payloads"
)

// Build renders the notifications an event produces. Unhandled event types yield none.
func Build(eventType enums.OutboxEventType, data []byte) ([]models.Notification, error) {
	switch eventType {
	case enums.EventPaymentCompleted, enums.EventPaymentFailed:
		var event payloads.PaymentStatusEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("decode %s: %w", eventType, err)
		}
		return paymentNotifications(eventType, event), nil
	case enums.EventOrderDelivered:
		var event payloads.OrderDeliveredEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("decode %s: %w", eventType, err)
		}
		message := "A seller delivered part of your order."
		if event.AllDelivered {
			message = "Your order has been delivered. Confirm receipt once you have checked it."
		}
		return []models.Notification{
			buyerNote(event.BuyerID, enums.NotificationTypeOrder, "Order delivered", message, orderLink(event.OrderID)),
		}, nil
	case enums.EventOrderConfirmed:
		var event payloads.OrderConfirmedEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("decode %s: %w", eventType, err)
		}
		out := make([]models.Notification, 0, len(event.Shops))
		for _, shop := range event.Shops {
			out = append(out, shopNote(shop.ShopID, enums.NotificationTypePayout, "Earnings released",
				fmt.Sprintf("The buyer confirmed order %s. %s is now available for payout.", short(event.OrderID), money(shop.SellerNetAmount, event.Currency)),
				shopOrderLink(shop.ShopID, event.OrderID)))
		}
		return out, nil
	case enums.EventOrderCancelled:
		var event payloads.OrderCancelledEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("decode %s: %w", eventType, err)
		}
		out := []models.Notification{
			buyerNote(event.BuyerID, enums.NotificationTypeOrder, "Order cancelled",
				fmt.Sprintf("Order %s was cancelled.", short(event.OrderID)), orderLink(event.OrderID)),
		}
		for _, shop := range event.Shops {
			out = append(out, shopNote(shop.ShopID, enums.NotificationTypeOrder, "Order cancelled",
				fmt.Sprintf("Order %s was cancelled.", short(event.OrderID)), shopOrderLink(shop.ShopID, event.OrderID)))
		}
		return out, nil
	case enums.EventRefundRecorded:
		var event payloads.RefundRecordedEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("decode %s: %w", eventType, err)
		}
		title, message := "Refund processing", "Your refund is being processed."
		switch event.Status {
		case enums.RefundStatusSucceeded:
			title, message = "Refund issued", "Your payment has been refunded."
		case enums.RefundStatusFailed:
			title, message = "Refund needs attention", "We could not refund your payment automatically. Support will follow up."
		}
		return []models.Notification{
			buyerNote(event.BuyerID, enums.NotificationTypeRefund, title, message, orderLink(event.OrderID)),
		}, nil
	case enums.EventPayoutCompleted, enums.EventPayoutFailed:
		var event payloads.PayoutEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("decode %s: %w", eventType, err)
		}
		title := "Payout sent"
		message := fmt.Sprintf("%s is on its way to your account.", money(event.Amount, event.Currency))
		if eventType == enums.EventPayoutFailed {
			title = "Payout failed"
			message = fmt.Sprintf("Your payout of %s failed. The funds remain available.", money(event.Amount, event.Currency))
		}
		return []models.Notification{
			shopNote(event.ShopID, enums.NotificationTypePayout, title, message,
				fmt.Sprintf("/shops/%s/payouts/%s", event.ShopID, event.PayoutID)),
		}, nil
	default:
		return nil, nil
	}
}

func paymentNotifications(eventType enums.OutboxEventType, event payloads.PaymentStatusEvent) []models.Notification {
	if eventType == enums.EventPaymentFailed {
		message := "Your payment did not go through."
		if event.OrderStatus == enums.OrderStatusCancelled {
			message = "Your payment expired and the order was cancelled."
		}
		return []models.Notification{
			buyerNote(event.BuyerID, enums.NotificationTypePayment, "Payment failed", message, orderLink(event.OrderID)),
		}
	}
	out := []models.Notification{
		buyerNote(event.BuyerID, enums.NotificationTypePayment, "Payment received",
			fmt.Sprintf("We received %s for order %s.", money(event.GrossTotal, event.Currency), short(event.OrderID)), orderLink(event.OrderID)),
	}
	for _, shop := range event.Shops {
		out = append(out, shopNote(shop.ShopID, enums.NotificationTypeOrder, "New paid order",
			fmt.Sprintf("Order %s is paid and ready to deliver.", short(event.OrderID)), shopOrderLink(shop.ShopID, event.OrderID)))
	}
	return out
}

func buyerNote(buyerID uuid.UUID, kind enums.NotificationType, title, message, link string) models.Notification {
	return models.Notification{
		RecipientType: enums.NotificationRecipientBuyer,
		RecipientID:   buyerID,
		Type:          kind,
		Title:         title,
		Message:       message,
		Link:          &link,
	}
}

func shopNote(shopID uuid.UUID, kind enums.NotificationType, title, message, link string) models.Notification {
	return models.Notification{
		RecipientType: enums.NotificationRecipientShop,
		RecipientID:   shopID,
		Type:          kind,
		Title:         title,
		Message:       message,
		Link:          &link,
	}
}

func orderLink(orderID uuid.UUID) string {
	return "/orders/" + orderID.String()
}

func shopOrderLink(shopID, orderID uuid.UUID) string {
	return fmt.Sprintf("/shops/%s/orders/%s", shopID, orderID)
}

func short(id uuid.UUID) string {
	return id.String()[:8]
}

func money(amount int64, currency enums.Currency) string {
	return fmt.Sprintf("%d.%02d %s", amount/100, amount%100, currency)
}
