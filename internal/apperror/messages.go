package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	CodeConfigurationError: "Configuration error",

	CodeServiceTimeout:    "Service request timeout",
	CodeRateLimitExceeded: "Rate limit exceeded",

	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	CodeConnectionFailed: "Failed to connect to chain node",
	CodeNotConnected:     "Not connected to a chain node",

	CodeBlockNotFound:        "Block not found",
	CodeTransportError:       "Chain node transport failure",
	CodeNodeRPCError:         "Chain node rejected the request",
	CodeMetadataDecodeFailed: "Failed to decode runtime metadata",
	CodeInvalidAddress:       "Invalid account address",
	CodeInvalidBlockSelector: "Invalid block height or hash",

	CodeSubscriptionFailed:   "Failed to subscribe to new heads",
	CodeSubscriptionOverflow: "Subscription consumer fell too far behind",

	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketClosed:          "WebSocket connection closed",
	CodeWebSocketSendError:       "Failed to send WebSocket message",

	CodeCircuitOpen:     "Circuit breaker is open",
	CodeCircuitHalfOpen: "Circuit breaker is half-open",
}
