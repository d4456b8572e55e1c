// Package subgraph enumerates the protocol's borrower universe through a
// GraphQL index. It is used only to seed the watchlist when the store has
// no accounts yet.
package subgraph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/meridian-research/aave-liquidator/internal/pkg/httpclient"
	"github.com/meridian-research/aave-liquidator/internal/ports/outbound"
)

// Compile-time check that Client implements the enumerator port.
var _ outbound.AccountEnumerator = (*Client)(nil)

// PageSize is the number of accounts fetched per GraphQL page.
const PageSize = 1000

const accountsQuery = `query GetAccounts($first: Int, $lastID: ID) {
  users(first: $first, orderBy: id, orderDirection: asc, where: { borrowedReservesCount_gt: 0, id_gt: $lastID }) {
    id
  }
}`

// Client pages through the subgraph's borrower index.
type Client struct {
	url    string
	http   *httpclient.Client
	logger *slog.Logger
}

// NewClient creates a subgraph client against the given GraphQL endpoint.
func NewClient(url string, http *httpclient.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:    url,
		http:   http,
		logger: logger.With("component", "subgraph"),
	}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type accountsResponse struct {
	Data struct {
		Users []struct {
			ID string `json:"id"`
		} `json:"users"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// ListBorrowers pages through every account with at least one borrowed
// reserve, by ascending id.
func (c *Client) ListBorrowers(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	lastID := ""

	for {
		req := graphQLRequest{
			Query: accountsQuery,
			Variables: map[string]any{
				"first":  PageSize,
				"lastID": lastID,
			},
		}

		var resp accountsResponse
		if err := c.http.PostJSON(ctx, c.url, req, &resp); err != nil {
			return nil, fmt.Errorf("querying subgraph: %w", err)
		}
		if len(resp.Errors) > 0 {
			return nil, fmt.Errorf("subgraph error: %s", resp.Errors[0].Message)
		}
		if len(resp.Data.Users) == 0 {
			break
		}

		for _, user := range resp.Data.Users {
			if !common.IsHexAddress(user.ID) {
				c.logger.Warn("skipping malformed account id", "id", user.ID)
				continue
			}
			accounts = append(accounts, common.HexToAddress(user.ID))
		}
		lastID = resp.Data.Users[len(resp.Data.Users)-1].ID

		c.logger.Debug("fetched accounts page", "pageSize", len(resp.Data.Users), "total", len(accounts))

		if len(resp.Data.Users) < PageSize {
			break
		}
	}

	c.logger.Info("borrower enumeration complete", "accounts", len(accounts))
	return accounts, nil
}
