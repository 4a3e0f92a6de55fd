package sources

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stronghold-labs/epochwatch/internal/watch"
)

// Wallet is one tracked operational wallet.
type Wallet struct {
	Address string
	Label   string
}

// WalletFeed reads the treasury balance export, a CSV of address,balance
// rows. Labels and listing order come from configuration, not the feed.
type WalletFeed struct {
	client  *http.Client
	baseURL string
	wallets []Wallet
	logger  *slog.Logger
}

func NewWalletFeed(baseURL string, wallets []Wallet, logger *slog.Logger) *WalletFeed {
	return &WalletFeed{
		client:  &http.Client{Timeout: 20 * time.Second},
		baseURL: baseURL,
		wallets: wallets,
		logger:  logger.With("source", "walletfeed"),
	}
}

func (f *WalletFeed) Name() string { return "walletfeed" }

// Fetch downloads the export and returns one raw balance per configured
// wallet, in configured order. A wallet the export does not carry gets an
// empty raw value, which resolves to Unknown downstream.
func (f *WalletFeed) Fetch(ctx context.Context) watch.SourceResult {
	res := watch.SourceResult{Source: f.Name()}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/balances.csv", nil)
	if err != nil {
		res.Err = watch.Unreachable(fmt.Errorf("create request: %w", err))
		return res
	}

	resp, err := f.client.Do(req)
	if err != nil {
		res.Err = watch.ClassifyTransport(err)
		return res
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		res.Err = watch.HTTPFailure(resp.StatusCode)
		return res
	}

	byAddress, err := f.parseBalances(resp.Body)
	if err != nil {
		res.Err = watch.ParseFailure(err)
		return res
	}

	res.Balances = make([]watch.RawBalance, 0, len(f.wallets))
	for _, w := range f.wallets {
		res.Balances = append(res.Balances, watch.RawBalance{
			Address: w.Address,
			Label:   w.Label,
			Raw:     byAddress[w.Address],
		})
	}
	return res
}

// parseBalances reads address,balance rows. A malformed row is skipped so
// one bad line cannot sink the whole export; an unreadable body still fails.
func (f *WalletFeed) parseBalances(r io.Reader) (map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	byAddress := make(map[string]string)
	first := true
	rows := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				f.logger.Warn("skipping malformed balance row", "line", pe.Line, "error", err)
				continue
			}
			return nil, fmt.Errorf("read balance export: %w", err)
		}
		rows++
		if first {
			first = false
			if len(row) > 0 && strings.EqualFold(row[0], "address") {
				continue
			}
		}
		if len(row) != 2 || row[0] == "" {
			f.logger.Warn("skipping malformed balance row", "columns", len(row))
			continue
		}
		byAddress[row[0]] = strings.TrimSpace(row[1])
	}
	if rows == 0 {
		return nil, errors.New("balance export is empty")
	}
	return byAddress, nil
}
