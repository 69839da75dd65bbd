package sendpipeline

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/airbitz-style/walletcore/internal/applog"
	"github.com/airbitz-style/walletcore/internal/paymentproto"
	"github.com/airbitz-style/walletcore/internal/walleterr"
)

// merchantClient submits a BIP-70 Payment and waits for a PaymentACK
// (spec.md §4.6 step 4, §6 "BIP-70").
type merchantClient struct {
	http *http.Client
	log  *applog.Logger
}

func newMerchantClient() *merchantClient {
	return &merchantClient{http: &http.Client{Timeout: 30 * time.Second}, log: applog.Component("Merchant")}
}

// submitPayment POSTs a Payment message to paymentURL and decodes the
// PaymentACK response. A transport or decode failure here is returned to
// the caller, who treats it as logged-but-non-fatal (spec.md §4.6 step 4:
// "A merchant failure after broadcast is logged but NOT treated as fatal").
func (m *merchantClient) submitPayment(ctx context.Context, paymentURL string, payment paymentproto.Payment) (paymentproto.PaymentACK, error) {
	body := payment.Marshal()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, paymentURL, bytes.NewReader(body))
	if err != nil {
		return paymentproto.PaymentACK{}, walleterr.Wrap(walleterr.KindNetwork, "build BIP-70 payment request", err)
	}
	req.Header.Set("Content-Type", "application/bitcoin-payment")
	req.Header.Set("Accept", "application/bitcoin-paymentack")

	resp, err := m.http.Do(req)
	if err != nil {
		return paymentproto.PaymentACK{}, walleterr.Wrap(walleterr.KindNetwork, "submit BIP-70 payment", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return paymentproto.PaymentACK{}, walleterr.New(walleterr.KindServer, "merchant server rejected payment")
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return paymentproto.PaymentACK{}, walleterr.Wrap(walleterr.KindNetwork, "read BIP-70 ack body", err)
	}

	ack, err := paymentproto.UnmarshalPaymentACK(buf.Bytes())
	if err != nil {
		return paymentproto.PaymentACK{}, err
	}
	return ack, nil
}

// appendMemo joins an ack memo onto existing notes with a newline
// separator, leaving notes untouched when the memo is empty (spec.md
// §4.6 step 4, scenario S6).
func appendMemo(notes, memo string) string {
	if memo == "" {
		return notes
	}
	if notes == "" {
		return memo
	}
	return strings.Join([]string{notes, memo}, "\n")
}
