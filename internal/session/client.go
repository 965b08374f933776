package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Client is an HTTP Quoter speaking the x402 negotiation protocol. Verdicts
// are always carried on status 402; the X-402-* headers tell the deal.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for a clearinghouse at baseURL
// (e.g. "http://localhost:8080").
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type negotiateRequest struct {
	Bid          decimal.Decimal `json:"bid"`
	AssetID      string          `json:"asset_id"`
	AgentAddress string          `json:"agent_address"`
	Volume       int64           `json:"volume"`
	SessionID    string          `json:"session_id,omitempty"`
}

// SettleReceipt is the settlement confirmation returned by the seller.
type SettleReceipt struct {
	Status  string          `json:"status"`
	TxRef   string          `json:"tx_ref"`
	AssetID string          `json:"asset_id"`
	Volume  int64           `json:"volume"`
	Price   decimal.Decimal `json:"price"`
}

// Negotiate submits one bid and decodes the 402 verdict headers.
func (c *Client) Negotiate(ctx context.Context, bid Bid) (Verdict, error) {
	body, err := json.Marshal(negotiateRequest{
		Bid:          bid.Amount,
		AssetID:      bid.AssetID,
		AgentAddress: bid.AgentAddress,
		Volume:       bid.Volume,
		SessionID:    bid.SessionID,
	})
	if err != nil {
		return Verdict{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/trade/negotiate", bytes.NewReader(body))
	if err != nil {
		return Verdict{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Verdict{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPaymentRequired {
		return Verdict{}, fmt.Errorf("%w: status %d", ErrProtocol, resp.StatusCode)
	}

	price, err := decimal.NewFromString(resp.Header.Get("X-402-Price"))
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: bad X-402-Price: %v", ErrProtocol, err)
	}

	v := Verdict{
		Status:    resp.Header.Get("X-402-Status"),
		Price:     price,
		Message:   resp.Header.Get("X-402-Message"),
		SessionID: resp.Header.Get("X-402-Session"),
	}
	if exp := resp.Header.Get("X-402-Expires"); exp != "" {
		v.ExpiresAt, _ = strconv.ParseInt(exp, 10, 64)
	}
	return v, nil
}

// Settle redeems an accepted session, consummating the trade.
func (c *Client) Settle(ctx context.Context, sessionID, assetID, agentAddress string) (SettleReceipt, error) {
	body, err := json.Marshal(map[string]string{
		"session_id":    sessionID,
		"asset_id":      assetID,
		"agent_address": agentAddress,
	})
	if err != nil {
		return SettleReceipt{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/trade/settle", bytes.NewReader(body))
	if err != nil {
		return SettleReceipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return SettleReceipt{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return SettleReceipt{}, fmt.Errorf("settle failed: status %d", resp.StatusCode)
	}

	var receipt SettleReceipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return SettleReceipt{}, err
	}
	return receipt, nil
}
