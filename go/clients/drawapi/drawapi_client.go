package drawapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mcdev12/cashier/go/clients"
	"github.com/mcdev12/cashier/go/internal/metrics"
)

// ErrMalformedResponse is returned alongside a synthetic failure response
// when the server's body is not valid JSON.
var ErrMalformedResponse = errors.New("malformed server response")

type DrawAPIClient struct {
	*clients.BaseClient
	now func() time.Time
}

func NewDrawAPIClient(baseURL string, timeout time.Duration) *DrawAPIClient {
	client := &DrawAPIClient{
		BaseClient: clients.NewBaseClient(baseURL),
		now:        time.Now,
	}

	client.SetHeader("Accept", "application/json")
	client.SetHeader("X-Requested-With", "XMLHttpRequest")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	return client
}

func observe(endpoint string, err error) {
	outcome := "ok"
	switch {
	case errors.Is(err, ErrMalformedResponse):
		outcome = "malformed"
	case err != nil:
		outcome = "error"
	}
	metrics.RemoteRequests.WithLabelValues(endpoint, outcome).Inc()
}

// NextDrawNumber fetches the authoritative current and next draw numbers.
func (c *DrawAPIClient) NextDrawNumber(ctx context.Context) (resp *NextDrawNumberResponse, err error) {
	defer func() { observe(NextDrawNumberEndpoint, err) }()

	q := url.Values{"t": []string{strconv.FormatInt(c.now().UnixMilli(), 10)}}
	body, err := c.Get(ctx, NextDrawNumberEndpoint, q)
	if err != nil {
		return nil, fmt.Errorf("failed to get next draw number: %w", err)
	}

	resp = &NextDrawNumberResponse{}
	if err := decode(NextDrawNumberEndpoint, body, resp); err != nil {
		return resp, err
	}
	return resp, nil
}

// DrawSync fetches the persisted draw state.
func (c *DrawAPIClient) DrawSync(ctx context.Context) (resp *DrawSyncResponse, err error) {
	defer func() { observe(DrawSyncEndpoint, err) }()

	body, err := c.Get(ctx, DrawSyncEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to sync draw state: %w", err)
	}

	resp = &DrawSyncResponse{}
	if err := decode(DrawSyncEndpoint, body, resp); err != nil {
		return resp, err
	}
	return resp, nil
}

// UpdateDraw reports a locally completed draw.
func (c *DrawAPIClient) UpdateDraw(ctx context.Context, current, next int) (resp *UpdateDrawResponse, err error) {
	defer func() { observe(UpdateDrawEndpoint, err) }()

	form := url.Values{
		"currentDraw": []string{strconv.Itoa(current)},
		"nextDraw":    []string{strconv.Itoa(next)},
	}
	body, err := c.PostForm(ctx, UpdateDrawEndpoint, form)
	if err != nil {
		return nil, fmt.Errorf("failed to update draw: %w", err)
	}

	resp = &UpdateDrawResponse{}
	if err := decode(UpdateDrawEndpoint, body, resp); err != nil {
		return resp, err
	}
	return resp, nil
}

// DrawBetCounts returns the number of bets recorded for each draw.
func (c *DrawAPIClient) DrawBetCounts(ctx context.Context, draws []int) (counts map[int]int, err error) {
	defer func() { observe(DrawBetCountsEndpoint, err) }()

	parts := make([]string, len(draws))
	for i, d := range draws {
		parts[i] = strconv.Itoa(d)
	}
	q := url.Values{"draw_numbers": []string{strings.Join(parts, ",")}}

	body, err := c.Get(ctx, DrawBetCountsEndpoint, q)
	if err != nil {
		return nil, fmt.Errorf("failed to get bet counts: %w", err)
	}

	var resp BetCountsResponse
	if err := decode(DrawBetCountsEndpoint, body, &resp); err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("bet counts rejected: %s", resp.Message)
	}

	counts = make(map[int]int, len(resp.Counts))
	for k, v := range resp.Counts {
		n, convErr := strconv.Atoi(k)
		if convErr != nil {
			continue
		}
		counts[n] = int(v)
	}
	return counts, nil
}

// SaveBettingSlip records a single-draw slip.
func (c *DrawAPIClient) SaveBettingSlip(ctx context.Context, req SaveBettingSlipRequest) (resp *SaveBettingSlipResponse, err error) {
	defer func() { observe(SaveBettingSlipEndpoint, err) }()

	body, err := c.PostJSON(ctx, SaveBettingSlipEndpoint, req)
	if err != nil {
		return nil, fmt.Errorf("failed to save betting slip: %w", err)
	}

	resp = &SaveBettingSlipResponse{}
	if err := decode(SaveBettingSlipEndpoint, body, resp); err != nil {
		return resp, err
	}
	return resp, nil
}

// SaveSlip records one draw of a multi-draw slip through slip_api.php.
func (c *DrawAPIClient) SaveSlip(ctx context.Context, req SaveSlipRequest) (resp *SaveSlipResponse, err error) {
	defer func() { observe(SlipAPIEndpoint, err) }()

	bets, err := json.Marshal(req.Bets)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bets: %w", err)
	}
	form := url.Values{
		"action":           []string{ActionSaveSlip},
		"barcode":          []string{req.Barcode},
		"bets":             []string{string(bets)},
		"total_stakes":     []string{req.TotalStakes.StringFixed(2)},
		"potential_return": []string{req.PotentialReturn.StringFixed(2)},
		"date":             []string{req.Date},
		"draw_number":      []string{strconv.Itoa(req.DrawNumber)},
	}

	body, err := c.PostForm(ctx, SlipAPIEndpoint, form)
	if err != nil {
		return nil, fmt.Errorf("failed to save slip: %w", err)
	}

	resp = &SaveSlipResponse{}
	if err := decode(SlipAPIEndpoint, body, resp); err != nil {
		return resp, err
	}
	return resp, nil
}

// GetSlipInfo looks up a slip and its bets by slip number.
func (c *DrawAPIClient) GetSlipInfo(ctx context.Context, slipNumber string) (resp *SlipInfoResponse, err error) {
	defer func() { observe(ReprintSlipEndpoint, err) }()

	form := url.Values{
		"action":      []string{ActionGetSlipInfo},
		"slip_number": []string{slipNumber},
	}
	body, err := c.PostForm(ctx, ReprintSlipEndpoint, form)
	if err != nil {
		return nil, fmt.Errorf("failed to get slip info: %w", err)
	}

	resp = &SlipInfoResponse{}
	if err := decode(ReprintSlipEndpoint, body, resp); err != nil {
		return resp, err
	}
	return resp, nil
}

// ReprintSlip asks the server to issue a reprint of slipID for drawNumber.
func (c *DrawAPIClient) ReprintSlip(ctx context.Context, slipID, drawNumber int) (resp *ReprintResponse, err error) {
	defer func() { observe(ReprintSlipEndpoint, err) }()

	form := url.Values{
		"action":      []string{ActionReprintSlip},
		"slip_id":     []string{strconv.Itoa(slipID)},
		"draw_number": []string{strconv.Itoa(drawNumber)},
	}
	body, err := c.PostForm(ctx, ReprintSlipEndpoint, form)
	if err != nil {
		return nil, fmt.Errorf("failed to reprint slip: %w", err)
	}

	resp = &ReprintResponse{}
	if err := decode(ReprintSlipEndpoint, body, resp); err != nil {
		return resp, err
	}
	return resp, nil
}

// CheckSlipExists confirms a slip exists before a print dialog is opened.
func (c *DrawAPIClient) CheckSlipExists(ctx context.Context, slipID int) (exists bool, err error) {
	defer func() { observe(CheckSlipExistsEndpoint, err) }()

	q := url.Values{"slip_id": []string{strconv.Itoa(slipID)}}
	body, err := c.Get(ctx, CheckSlipExistsEndpoint, q)
	if err != nil {
		return false, fmt.Errorf("failed to check slip: %w", err)
	}

	var resp CheckSlipResponse
	if err := decode(CheckSlipExistsEndpoint, body, &resp); err != nil {
		return false, err
	}
	return bool(resp.Exists), nil
}
