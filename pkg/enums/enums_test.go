package enums

import "testing"

func TestParseRoundTripsKnownValues(t *testing.T) {
	for _, status := range validPaymentStatuses {
		got, err := ParsePaymentStatus(status.String())
		if err != nil || got != status {
			t.Fatalf("ParsePaymentStatus(%q) = %q, %v", status, got, err)
		}
	}
	for _, status := range validOrderStatuses {
		if _, err := ParseOrderStatus(string(status)); err != nil {
			t.Fatalf("ParseOrderStatus(%q): %v", status, err)
		}
	}
	if _, err := ParseChargeStatus("refunded"); err == nil {
		t.Fatal("expected unknown charge status to fail")
	}
	if _, err := ParseOutboxEventType("payout_completed"); err != nil {
		t.Fatalf("ParseOutboxEventType: %v", err)
	}
	if _, err := ParseOutboxDLQErrorReason("bogus"); err == nil {
		t.Fatal("expected unknown dlq reason to fail")
	}
}

func TestPayoutStatusAdvancesForwardOnly(t *testing.T) {
	cases := []struct {
		from, to PayoutStatus
		want     bool
	}{
		{PayoutStatusNone, PayoutStatusReady, true},
		{PayoutStatusReady, PayoutStatusPartial, true},
		{PayoutStatusReady, PayoutStatusPaid, true},
		{PayoutStatusPartial, PayoutStatusPartial, true},
		{PayoutStatusPartial, PayoutStatusPaid, true},
		{PayoutStatusPaid, PayoutStatusReady, false},
		{PayoutStatusPaid, PayoutStatusPaid, false},
		{PayoutStatusReady, PayoutStatusNone, false},
		{PayoutStatusReady, PayoutStatus("bogus"), false},
	}
	for _, tc := range cases {
		if got := tc.from.CanAdvanceTo(tc.to); got != tc.want {
			t.Fatalf("%s -> %s: got %v want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestPayoutStatusWithdrawable(t *testing.T) {
	if !PayoutStatusReady.Withdrawable() || !PayoutStatusPartial.Withdrawable() {
		t.Fatal("ready and partial orders must feed payouts")
	}
	if PayoutStatusPaid.Withdrawable() {
		t.Fatal("paid orders must not feed payouts")
	}
}

func TestOrderStatusCancellable(t *testing.T) {
	if OrderStatusCompleted.Cancellable() {
		t.Fatal("completed orders cannot be cancelled")
	}
	if OrderStatusCancelled.Cancellable() {
		t.Fatal("cancelled orders cannot be cancelled again")
	}
	if !OrderStatusPending.Cancellable() || !OrderStatusProcessing.Cancellable() {
		t.Fatal("pending and processing orders are cancellable")
	}
	if !OrderStatusCancelled.IsTerminal() {
		t.Fatal("cancelled is terminal")
	}
}

func TestChargeStatusTerminal(t *testing.T) {
	if ChargeStatusPending.IsTerminal() {
		t.Fatal("pending is not terminal")
	}
	for _, s := range []ChargeStatus{ChargeStatusSuccessful, ChargeStatusFailed, ChargeStatusExpired} {
		if !s.IsTerminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
}

func TestParseTrimsAndRejects(t *testing.T) {
	got, err := ParseCurrency(" USD ")
	if err != nil || got != CurrencyUSD {
		t.Fatalf("ParseCurrency(\" USD \") = %q, %v", got, err)
	}
	if _, err := ParseRefundStatus("REFUNDED?"); err == nil || err.Error() != `invalid refund status "REFUNDED?"` {
		t.Fatalf("unexpected error %v", err)
	}
}
