package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/bobmcallan/marketdesk/internal/models"
)

type screenerResponse struct {
	Finance struct {
		Result []struct {
			ID          string        `json:"id"`
			Title       string        `json:"title"`
			Description string        `json:"description"`
			Total       int           `json:"total"`
			Quotes      []quoteResult `json:"quotes"`
		} `json:"result"`
		Error *upstreamError `json:"error"`
	} `json:"finance"`
}

// GetScreener runs a predefined upstream screener such as day_gainers
func (c *Client) GetScreener(ctx context.Context, screenerID string, count int) (*models.ScreenerResult, error) {
	if screenerID == "" {
		return nil, fmt.Errorf("%w: screener id is required", models.ErrValidation)
	}

	params := url.Values{}
	params.Set("scrIds", screenerID)
	params.Set("count", strconv.Itoa(count))

	var resp screenerResponse
	if err := c.get(ctx, "screener", "/v1/finance/screener/predefined/saved", params, &resp); err != nil {
		return nil, fmt.Errorf("get screener %s: %w", screenerID, err)
	}

	if len(resp.Finance.Result) == 0 {
		if e := resp.Finance.Error; e != nil {
			return nil, fmt.Errorf("%w: %s: %s", models.ErrDataNotFound, e.Code, e.Description)
		}
		return nil, fmt.Errorf("%w: screener %s returned no result", models.ErrDataNotFound, screenerID)
	}

	r := resp.Finance.Result[0]
	result := &models.ScreenerResult{
		ID:          screenerID,
		Title:       r.Title,
		Description: r.Description,
		Total:       r.Total,
		Quotes:      make([]*models.Quote, 0, len(r.Quotes)),
	}
	for _, q := range r.Quotes {
		result.Quotes = append(result.Quotes, q.toModel())
	}
	if result.Total == 0 {
		result.Total = len(result.Quotes)
	}

	return result, nil
}
