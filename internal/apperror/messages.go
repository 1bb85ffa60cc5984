package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	CodeConfigurationError: "Configuration error",

	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	CodeInternalError: "Internal error",
	CodeUnknownError:  "An unknown error occurred",

	CodeEthereumConnectionFailed: "Failed to connect to Ethereum node",
	CodeEthereumRPCError:         "Ethereum RPC call failed",
	CodeGasEstimationFailed:      "Gas estimation failed",
	CodeGasPriceTooHigh:          "Gas price exceeds configured maximum",
	CodeContractCallFailed:       "Smart contract call failed",

	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketClosed:          "WebSocket connection closed",

	CodeQuoteUnavailable:      "Quote unavailable",
	CodeInvalidQuote:          "Invalid quote data",
	CodeReferencePriceMissing: "Reference price unavailable",
	CodeUnknownToken:          "Token is not registered",
	CodeUnknownVenue:          "Venue is not configured",
	CodePriceAnomaly:          "Price rejected by anomaly detector",

	CodeInvalidUniverse:       "Route universe exceeds search bounds",
	CodeUnprofitableRoute:     "Route is not profitable after gas",
	CodeInsufficientLiquidity: "Insufficient pool liquidity",
	CodeRiskScoreTooHigh:      "Route risk score too high",

	CodeSpreadExceeded:      "Execution price deviates from spot beyond spread bound",
	CodePriceImpactExceeded: "Price impact beyond configured bound",
	CodeSlippageExceeded:    "Slippage beyond configured maximum",
	CodeInvalidDeadline:     "Deadline outside allowed window",
	CodeSimulationReverted:  "Pre-flight simulation reverted",
	CodeVerdictStale:        "Safety verdict expired",
	CodeVerdictUnsafe:       "Safety verdict is not safe",
	CodeAllowanceTooLow:     "Router allowance below trade amount",

	CodeTradingPaused:        "Trading is paused by the circuit breaker",
	CodePositionTooLarge:     "Position exceeds maximum size",
	CodeDailyTradeCapReached: "Daily trade count limit reached",
	CodeEventNotFound:        "Circuit breaker event not found",
	CodeEventAlreadyResolved: "Circuit breaker event already resolved",
	CodeStoreFailure:         "Risk store failure",

	CodeSignerUnavailable: "Signer unavailable",
	CodeSigningFailed:     "Transaction signing failed",
	CodeNonceConflict:     "Nonce conflict",
	CodeUnderpriced:       "Transaction underpriced",
	CodeUnsupportedRoute:  "Route cannot be executed on-chain",
	CodeTxReverted:        "Transaction reverted on chain",
	CodeSubmissionFailed:  "Transaction submission failed",
	CodeReceiptTimeout:    "Timed out waiting for receipt",
	CodeDemoOpportunity:   "Demo opportunities cannot be executed for real",
	CodeSettlementSkipped: "Settlement transfer skipped",
	CodeSettlementFailed:  "Settlement transfer failed",
	CodeGasNotAffordable:  "Gas cost not affordable for transfer",

	CodeSessionNotFound:      "Session not found",
	CodeSessionRunning:       "Session scan loop already running",
	CodeOpportunityNotFound:  "Opportunity not found",
	CodeOpportunityExpired:   "Opportunity expired",
	CodeInvalidExecutionMode: "Invalid execution mode",

	CodeCircuitOpen: "Circuit breaker is open",
}
