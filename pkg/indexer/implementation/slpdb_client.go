package implementation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jt828/token-ledger/pkg/apperror"
	"github.com/jt828/token-ledger/pkg/circuitbreaker"
	"github.com/jt828/token-ledger/pkg/indexer"
	"github.com/jt828/token-ledger/pkg/retry"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type slpdbClient struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	cb         circuitbreaker.CircuitBreaker
	retry      retry.Retry
}

// NewSLPDBClient queries an SLPDB-compatible indexer: the query document is
// JSON, base64 encoded into the path of a GET request.
func NewSLPDBClient(cfg Config, cb circuitbreaker.CircuitBreaker, retry retry.Retry) indexer.Indexer {
	return &slpdbClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cb:    cb,
		retry: retry,
	}
}

type slpdbQuery struct {
	V int        `json:"v"`
	Q slpdbInner `json:"q"`
}

type slpdbInner struct {
	Find  map[string]any `json:"find"`
	Sort  map[string]int `json:"sort"`
	Skip  int            `json:"skip,omitempty"`
	Limit int            `json:"limit"`
}

type slpdbResponse struct {
	Confirmed   []slpdbTransaction `json:"c"`
	Unconfirmed []slpdbTransaction `json:"u"`
}

type slpdbTransaction struct {
	Tx struct {
		H string `json:"h"`
	} `json:"tx"`
	Slp struct {
		Valid  bool `json:"valid"`
		Detail struct {
			TokenIdHex string `json:"tokenIdHex"`
			Outputs    []struct {
				Address string          `json:"address"`
				Amount  decimal.Decimal `json:"amount"`
			} `json:"outputs"`
		} `json:"detail"`
	} `json:"slp"`
}

// StatusError is returned for non-2xx indexer responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("indexer returned %d: %s", e.Code, e.Body)
}

// IsRetryable retries transport failures and 5xx/429 responses.
func IsRetryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= 500 || statusErr.Code == http.StatusTooManyRequests
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}

func (c *slpdbClient) Query(ctx context.Context, query indexer.Query) ([]indexer.Transaction, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	url, err := c.queryURL(query)
	if err != nil {
		return nil, err
	}

	result, err := c.cb.Execute(func() (any, error) {
		var txs []indexer.Transaction
		err := c.retry.Execute(ctx, func() error {
			var err error
			txs, err = c.fetch(ctx, url)
			return err
		})
		if err != nil {
			return nil, err
		}
		return txs, nil
	})
	if err != nil {
		return nil, fmt.Errorf("indexer query for %s: %w: %w", query.Address, apperror.ErrExternalService, err)
	}
	return result.([]indexer.Transaction), nil
}

func (c *slpdbClient) queryURL(query indexer.Query) (string, error) {
	exclude := query.ExcludeTxids
	if exclude == nil {
		exclude = []string{}
	}
	doc := slpdbQuery{
		V: 3,
		Q: slpdbInner{
			Find: map[string]any{
				"slp.detail.outputs.address": query.Address,
				"slp.valid":                  true,
				"tx.h":                       map[string]any{"$nin": exclude},
			},
			Sort:  map[string]int{"blk.i": -1},
			Skip:  query.Skip,
			Limit: query.Limit,
		},
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return c.baseURL + "/q/" + base64.StdEncoding.EncodeToString(raw), nil
}

func (c *slpdbClient) fetch(ctx context.Context, url string) ([]indexer.Transaction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var decoded slpdbResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode indexer response: %w", err)
	}

	out := make([]indexer.Transaction, 0, len(decoded.Confirmed)+len(decoded.Unconfirmed))
	for _, group := range [][]slpdbTransaction{decoded.Confirmed, decoded.Unconfirmed} {
		for _, tx := range group {
			out = append(out, tx.toDomain())
		}
	}
	return out, nil
}

func (t slpdbTransaction) toDomain() indexer.Transaction {
	outputs := make([]indexer.Output, len(t.Slp.Detail.Outputs))
	for i, o := range t.Slp.Detail.Outputs {
		outputs[i] = indexer.Output{Address: o.Address, Amount: o.Amount}
	}
	return indexer.Transaction{
		Txid:    t.Tx.H,
		TokenId: t.Slp.Detail.TokenIdHex,
		Outputs: outputs,
		Valid:   t.Slp.Valid,
	}
}
