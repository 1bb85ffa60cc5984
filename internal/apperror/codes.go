package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Chain access
const (
	CodeEthereumConnectionFailed Code = "ETHEREUM_CONNECTION_FAILED"
	CodeEthereumRPCError         Code = "ETHEREUM_RPC_ERROR"
	CodeGasEstimationFailed      Code = "GAS_ESTIMATION_FAILED"
	CodeGasPriceTooHigh          Code = "GAS_PRICE_TOO_HIGH"
	CodeContractCallFailed       Code = "CONTRACT_CALL_FAILED"

	CodeWebSocketConnectionError Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketClosed          Code = "WEBSOCKET_CLOSED"
)

// Quotes and reference prices
const (
	CodeQuoteUnavailable      Code = "QUOTE_UNAVAILABLE"
	CodeInvalidQuote          Code = "INVALID_QUOTE"
	CodeReferencePriceMissing Code = "REFERENCE_PRICE_MISSING"
	CodeUnknownToken          Code = "UNKNOWN_TOKEN"
	CodeUnknownVenue          Code = "UNKNOWN_VENUE"
	CodePriceAnomaly          Code = "PRICE_ANOMALY"
)

// Discovery and evaluation
const (
	CodeInvalidUniverse       Code = "INVALID_UNIVERSE"
	CodeUnprofitableRoute     Code = "UNPROFITABLE_ROUTE"
	CodeInsufficientLiquidity Code = "INSUFFICIENT_LIQUIDITY"
	CodeRiskScoreTooHigh      Code = "RISK_SCORE_TOO_HIGH"
)

// Safety gateway
const (
	CodeSpreadExceeded      Code = "SPREAD_EXCEEDED"
	CodePriceImpactExceeded Code = "PRICE_IMPACT_EXCEEDED"
	CodeSlippageExceeded    Code = "SLIPPAGE_EXCEEDED"
	CodeInvalidDeadline     Code = "INVALID_DEADLINE"
	CodeSimulationReverted  Code = "SIMULATION_REVERTED"
	CodeVerdictStale        Code = "VERDICT_STALE"
	CodeVerdictUnsafe       Code = "VERDICT_UNSAFE"
	CodeAllowanceTooLow     Code = "ALLOWANCE_TOO_LOW"
)

// Risk ledger
const (
	CodeTradingPaused        Code = "TRADING_PAUSED"
	CodePositionTooLarge     Code = "POSITION_TOO_LARGE"
	CodeDailyTradeCapReached Code = "DAILY_TRADE_CAP_REACHED"
	CodeEventNotFound        Code = "EVENT_NOT_FOUND"
	CodeEventAlreadyResolved Code = "EVENT_ALREADY_RESOLVED"
	CodeStoreFailure         Code = "STORE_FAILURE"
)

// Execution and settlement
const (
	CodeSignerUnavailable Code = "SIGNER_UNAVAILABLE"
	CodeSigningFailed     Code = "SIGNING_FAILED"
	CodeNonceConflict     Code = "NONCE_CONFLICT"
	CodeUnderpriced       Code = "TX_UNDERPRICED"
	CodeTxReverted        Code = "TX_REVERTED"
	CodeSubmissionFailed  Code = "SUBMISSION_FAILED"
	CodeReceiptTimeout    Code = "RECEIPT_TIMEOUT"
	CodeDemoOpportunity   Code = "DEMO_OPPORTUNITY"
	CodeSettlementSkipped Code = "SETTLEMENT_SKIPPED"
	CodeSettlementFailed  Code = "SETTLEMENT_FAILED"
	CodeGasNotAffordable  Code = "GAS_NOT_AFFORDABLE"
	CodeUnsupportedRoute  Code = "UNSUPPORTED_ROUTE"
)

// Sessions
const (
	CodeSessionNotFound      Code = "SESSION_NOT_FOUND"
	CodeSessionRunning       Code = "SESSION_RUNNING"
	CodeOpportunityNotFound  Code = "OPPORTUNITY_NOT_FOUND"
	CodeOpportunityExpired   Code = "OPPORTUNITY_EXPIRED"
	CodeInvalidExecutionMode Code = "INVALID_EXECUTION_MODE"
)

// Resilience
const (
	CodeCircuitOpen Code = "CIRCUIT_OPEN"
)
