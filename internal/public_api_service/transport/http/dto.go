package http

// LoginRequest defines the structure for user login.
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50,username"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// LoginResponse defines the structure for a successful login.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// PoolStatusResponse is returned by GET /pool/status.
type PoolStatusResponse struct {
	TotalProxies     int    `json:"total_proxies"`
	AvailableProxies int    `json:"available_proxies"`
	UsagePercent     string `json:"usage_percent"` // e.g. "12.5%"
}

// MaskCallRequest defines the structure for POST /mask/call.
// Number format is checked by the orchestrator.
type MaskCallRequest struct {
	CallerReal string `json:"caller_real" validate:"required,max=20"`
	CalleeReal string `json:"callee_real" validate:"required,max=20"`
}

// MaskCallResponse never carries the real numbers.
type MaskCallResponse struct {
	Success     bool   `json:"success"`
	CallID      string `json:"call_id"`
	ProxyNumber string `json:"proxy_number"`
	ExpiresAt   string `json:"expires_at"` // RFC 3339, UTC
	Message     string `json:"message,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// GenericErrorResponse for API errors
type GenericErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
