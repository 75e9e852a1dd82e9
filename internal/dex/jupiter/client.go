// internal/dex/jupiter/client.go
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-flywheel/internal/blockchain"
	"github.com/rovshanmuradov/solana-flywheel/internal/types"
	"github.com/rovshanmuradov/solana-flywheel/internal/wallet"
)

// Client - клиент агрегатора Jupiter v6: котировка, сборка, подпись и отправка свапа
type Client struct {
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	chain   blockchain.Client
	wallet  *wallet.Wallet
	config  Config
	logger  *zap.Logger
}

// NewClient создает новый экземпляр клиента площадки
func NewClient(cfg Config, chain blockchain.Client, w *wallet.Wallet, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRequestTimeout
	}
	if cfg.OutputMint.IsZero() {
		return nil, fmt.Errorf("%w: output mint is not set", types.ErrConfig)
	}
	if err := cfg.SlippageBps.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrConfig, err)
	}

	logger = logger.Named("jupiter")
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "jupiter",
		MaxRequests: 1,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Client{
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		breaker: breaker,
		chain:   chain,
		wallet:  w,
		config:  cfg,
		logger:  logger,
	}, nil
}

// GetQuote запрашивает маршрут wSOL -> целевой токен на сумму lamports
func (c *Client) GetQuote(ctx context.Context, lamports uint64) (*Quote, error) {
	q := url.Values{}
	q.Set("inputMint", WrappedSOLMint.String())
	q.Set("outputMint", c.config.OutputMint.String())
	q.Set("amount", strconv.FormatUint(lamports, 10))
	q.Set("slippageBps", strconv.Itoa(int(c.config.SlippageBps)))

	res, err := c.do(ctx, http.MethodGet, c.config.BaseURL+"/v6/quote?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrQuoteUnavailable, err)
	}
	if res.status != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", types.ErrQuoteUnavailable, res.status, truncate(res.body))
	}

	quote, err := parseQuote(res.body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrQuoteUnavailable, err)
	}

	c.logger.Debug("Quote received",
		zap.Uint64("in_amount", quote.InAmount),
		zap.Uint64("out_amount", quote.OutAmount),
		zap.Int("hops", quote.Hops),
		zap.String("price_impact_pct", quote.PriceImpactPct))
	return quote, nil
}

// parseQuote проверяет, что ответ содержит жизнеспособный маршрут
func parseQuote(body []byte) (*Quote, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("quote response is not valid JSON")
	}
	doc := gjson.ParseBytes(body)

	route := doc.Get("routePlan")
	if !route.IsArray() || len(route.Array()) == 0 {
		return nil, errors.New("quote has no routePlan")
	}
	outAmount, err := strconv.ParseUint(doc.Get("outAmount").String(), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid outAmount: %w", err)
	}
	inAmount, err := strconv.ParseUint(doc.Get("inAmount").String(), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid inAmount: %w", err)
	}

	return &Quote{
		Raw:            json.RawMessage(body),
		InputMint:      doc.Get("inputMint").String(),
		OutputMint:     doc.Get("outputMint").String(),
		InAmount:       inAmount,
		OutAmount:      outAmount,
		SlippageBps:    uint16(doc.Get("slippageBps").Uint()),
		PriceImpactPct: doc.Get("priceImpactPct").String(),
		Hops:           len(route.Array()),
	}, nil
}

// buildSwap просит площадку собрать транзакцию под котировку
func (c *Client) buildSwap(ctx context.Context, quote *Quote) (*swapResponse, error) {
	payload, err := json.Marshal(swapRequest{
		QuoteResponse:             quote.Raw,
		UserPublicKey:             c.wallet.PublicKey.String(),
		WrapAndUnwrapSol:          true,
		DynamicComputeUnitLimit:   true,
		PrioritizationFeeLamports: c.config.PriorityFeeLamports,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", types.ErrSwapBuildFailed, err)
	}

	res, err := c.do(ctx, http.MethodPost, c.config.BaseURL+"/v6/swap", payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSwapBuildFailed, err)
	}
	if res.status != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", types.ErrSwapBuildFailed, res.status, truncate(res.body))
	}

	var resp swapResponse
	if err := json.Unmarshal(res.body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", types.ErrSwapBuildFailed, err)
	}
	if resp.SwapTransaction == "" {
		return nil, fmt.Errorf("%w: no swapTransaction in response", types.ErrSwapBuildFailed)
	}
	return &resp, nil
}

// do выполняет запрос через circuit breaker. Транспортные ошибки и 5xx
// считаются отказом площадки, остальные статусы разбирает вызывающий.
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) (*httpResult, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		start := time.Now()
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("execute request: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		c.logger.Debug("api request completed",
			zap.String("method", method),
			zap.Duration("duration", time.Since(start)),
			zap.Int("status", resp.StatusCode))

		res := &httpResult{status: resp.StatusCode, body: data}
		if resp.StatusCode >= http.StatusInternalServerError {
			return res, fmt.Errorf("venue error: status %d", resp.StatusCode)
		}
		return res, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("venue circuit open: %w", err)
		}
		return nil, err
	}
	return out.(*httpResult), nil
}

func truncate(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
