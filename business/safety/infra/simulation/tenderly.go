package simulation

import (
	"context"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/fd1az/arbguard/business/safety/app"
	"github.com/fd1az/arbguard/business/safety/domain"
	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/httpclient"
)

var _ app.Simulator = (*TenderlySimulator)(nil)

// TenderlyConfig locates a Tenderly-style simulate endpoint, e.g.
// https://api.tenderly.co/api/v1/account/<acct>/project/<proj>/simulate.
type TenderlyConfig struct {
	URL       string
	AccessKey string
	ChainID   uint64
	Timeout   time.Duration
}

// TenderlySimulator dry-runs transactions on a hosted simulation API.
type TenderlySimulator struct {
	cfg    TenderlyConfig
	client httpclient.Client
}

func NewTenderlySimulator(cfg TenderlyConfig) (*TenderlySimulator, error) {
	if cfg.URL == "" {
		return nil, apperror.Validation(apperror.CodeConfigurationError, "simulation.url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	headers := map[string]string{"Accept": "application/json"}
	if cfg.AccessKey != "" {
		headers["X-Access-Key"] = cfg.AccessKey
	}
	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("tenderly"),
		httpclient.WithRequestTimeout(cfg.Timeout),
		httpclient.WithHeaders(headers),
		httpclient.WithCircuitBreaker(),
	)
	if err != nil {
		return nil, err
	}
	return &TenderlySimulator{cfg: cfg, client: client}, nil
}

type simulateRequest struct {
	NetworkID      string `json:"network_id"`
	From           string `json:"from"`
	To             string `json:"to"`
	Input          string `json:"input"`
	Gas            uint64 `json:"gas"`
	GasPrice       string `json:"gas_price"`
	Value          string `json:"value"`
	Save           bool   `json:"save"`
	SimulationType string `json:"simulation_type"`
}

type simulateResponse struct {
	Transaction struct {
		Status       bool   `json:"status"`
		ErrorMessage string `json:"error_message"`
		GasUsed      uint64 `json:"gas_used"`
	} `json:"transaction"`
}

func (s *TenderlySimulator) Simulate(ctx context.Context, call ethereum.CallMsg) (*domain.SimulationResult, error) {
	if call.To == nil {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "simulation needs a recipient")
	}
	req := simulateRequest{
		NetworkID:      strconv.FormatUint(s.cfg.ChainID, 10),
		From:           call.From.Hex(),
		To:             call.To.Hex(),
		Input:          hexutil.Encode(call.Data),
		Gas:            call.Gas,
		GasPrice:       "0",
		Value:          "0",
		SimulationType: "quick",
	}
	if call.GasPrice != nil {
		req.GasPrice = call.GasPrice.String()
	}
	if call.Value != nil {
		req.Value = call.Value.String()
	}

	var res simulateResponse
	_, err := s.client.NewRequest(
		httpclient.WithLabels(httpclient.NewLabel("endpoint", "simulate")),
	).
		SetBody(req).
		SetResult(&res).
		Post(ctx, s.cfg.URL)
	if err != nil {
		return nil, err
	}

	if !res.Transaction.Status {
		return &domain.SimulationResult{RevertReason: res.Transaction.ErrorMessage, GasUsed: res.Transaction.GasUsed}, nil
	}
	return &domain.SimulationResult{Success: true, GasUsed: res.Transaction.GasUsed}, nil
}
