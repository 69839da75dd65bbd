// Package generalinfo is the HTTPS JSON client for the general-info
// server, returning the BitcoinFeeInfo/AirbitzFeeInfo pair consumed by
// internal/feeinfo (spec.md §6).
package generalinfo

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/airbitz-style/walletcore/internal/walleterr"
	"github.com/airbitz-style/walletcore/pkg/coretypes"
)

// Client fetches the general-info document from a single base URL.
type Client struct {
	url  string
	http *http.Client
}

func New(url string) *Client {
	return &Client{url: url, http: &http.Client{Timeout: 30 * time.Second}}
}

// wireDoc mirrors the general-info server's exact field names (spec.md
// §6): "confirmFees[7]", "lowFeeBlock", "standardFeeBlockLow",
// "standardFeeBlockHigh", "highFeeBlock", "targetFeePercentage".
type wireDoc struct {
	BitcoinInfo struct {
		ConfirmFees                [7]int64 `json:"confirmFees"`
		LowFeeBlock                int      `json:"lowFeeBlock"`
		StandardFeeBlockLow        int      `json:"standardFeeBlockLow"`
		StandardFeeBlockHigh       int      `json:"standardFeeBlockHigh"`
		HighFeeBlock               int      `json:"highFeeBlock"`
		TargetFeePercentage        float64  `json:"targetFeePercentage"`
		StandardFeeAmountThreshold int64    `json:"standardFeeAmountThreshold"`
	} `json:"bitcoinInfo"`
	AirbitzInfo struct {
		Addresses      []string `json:"addresses"`
		IncomingRate   float64  `json:"incomingRate"`
		OutgoingRate   float64  `json:"outgoingRate"`
		MinSatoshi     int64    `json:"minSatoshi"`
		MaxSatoshi     int64    `json:"maxSatoshi"`
		SendThreshold  int64    `json:"sendThreshold"`
		SendPeriodSecs int64    `json:"sendPeriodSecs"`
	} `json:"airbitzInfo"`
}

// Fetch implements internal/feeinfo.Fetcher.
func (c *Client) Fetch(ctx context.Context) (coretypes.FeeInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return coretypes.FeeInfo{}, walleterr.Wrap(walleterr.KindNetwork, "build general-info request", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return coretypes.FeeInfo{}, walleterr.Wrap(walleterr.KindNetwork, "call general-info server", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return coretypes.FeeInfo{}, walleterr.New(walleterr.KindServer, "general-info server returned a non-2xx status")
	}

	var doc wireDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return coretypes.FeeInfo{}, walleterr.Wrap(walleterr.KindJSON, "decode general-info response", err)
	}

	return coretypes.FeeInfo{
		Bitcoin: coretypes.BitcoinFeeInfo{
			ConfirmFees:                doc.BitcoinInfo.ConfirmFees,
			LowFeeBlock:                doc.BitcoinInfo.LowFeeBlock,
			StandardFeeBlockLow:        doc.BitcoinInfo.StandardFeeBlockLow,
			StandardFeeBlockHigh:       doc.BitcoinInfo.StandardFeeBlockHigh,
			HighFeeBlock:               doc.BitcoinInfo.HighFeeBlock,
			TargetFeePercentage:        doc.BitcoinInfo.TargetFeePercentage,
			StandardFeeAmountThreshold: doc.BitcoinInfo.StandardFeeAmountThreshold,
		},
		Airbitz: coretypes.AirbitzFeeInfo{
			Addresses:      doc.AirbitzInfo.Addresses,
			IncomingRate:   doc.AirbitzInfo.IncomingRate,
			OutgoingRate:   doc.AirbitzInfo.OutgoingRate,
			MinSatoshi:     doc.AirbitzInfo.MinSatoshi,
			MaxSatoshi:     doc.AirbitzInfo.MaxSatoshi,
			SendThreshold:  doc.AirbitzInfo.SendThreshold,
			SendPeriodSecs: doc.AirbitzInfo.SendPeriodSecs,
		},
		FetchedAt: time.Now(),
	}, nil
}
