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

	CodeServiceTimeout    Code = "SERVICE_TIMEOUT"
	CodeRateLimitExceeded Code = "RATE_LIMIT_EXCEEDED"

	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Chain client error codes
const (
	// Connection lifecycle
	CodeConnectionFailed Code = "CONNECTION_FAILED"
	CodeNotConnected     Code = "NOT_CONNECTED"

	// Node queries
	CodeBlockNotFound        Code = "BLOCK_NOT_FOUND"
	CodeTransportError       Code = "TRANSPORT_ERROR"
	CodeNodeRPCError         Code = "NODE_RPC_ERROR"
	CodeMetadataDecodeFailed Code = "METADATA_DECODE_FAILED"
	CodeInvalidAddress       Code = "INVALID_ADDRESS"
	CodeInvalidBlockSelector Code = "INVALID_BLOCK_SELECTOR"

	// Subscriptions
	CodeSubscriptionFailed   Code = "SUBSCRIPTION_FAILED"
	CodeSubscriptionOverflow Code = "SUBSCRIPTION_OVERFLOW"

	// WebSocket transport
	CodeWebSocketConnectionError Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketClosed          Code = "WEBSOCKET_CLOSED"
	CodeWebSocketSendError       Code = "WEBSOCKET_SEND_ERROR"

	// Circuit breaker
	CodeCircuitOpen     Code = "CIRCUIT_OPEN"
	CodeCircuitHalfOpen Code = "CIRCUIT_HALF_OPEN"
)
