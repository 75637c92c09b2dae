package models

// RequestState tracks a request through the admission state machine.
type RequestState string

const (
	StateReceived        RequestState = "RECEIVED"
	StateCacheChecked    RequestState = "CACHE_CHECKED"
	StateCapacityChecked RequestState = "CAPACITY_CHECKED"
	StateQuotaChecked    RequestState = "QUOTA_CHECKED"
	StateAdmitted        RequestState = "ADMITTED"
	StateCompleted       RequestState = "COMPLETED"
	StateBilled          RequestState = "BILLED"
	StateRejected        RequestState = "REJECTED"
)

// AdmissionRequest is one inbound request to the admission controller.
// Input text arrives already normalized and redacted; moderation and
// PII stripping happen upstream.
type AdmissionRequest struct {
	Input string `json:"input"`
	// AgentTypes lists the downstream advisory calls the request fans
	// out to; it drives the cost pre-estimate.
	AgentTypes []string `json:"agent_types"`
	// PatternTag is the optional coarse classification used by the
	// partial cache level.
	PatternTag string            `json:"pattern_tag,omitempty"`
	Context    map[string]string `json:"context,omitempty"`
	Workload   string            `json:"workload,omitempty"`
	// Origin, IP, UserAgent and AcceptLanguage feed origin checks and
	// the derived client identity; the transport layer fills them in.
	Origin         string `json:"-"`
	IP             string `json:"-"`
	UserAgent      string `json:"-"`
	AcceptLanguage string `json:"-"`
	RequestID      string `json:"-"`
	// EstimatedOutputChars overrides the default output-size guess used
	// by the cost estimator.
	EstimatedOutputChars int `json:"estimated_output_chars,omitempty"`
}

// Decision is the admission controller's answer for one request.
type Decision struct {
	Allowed bool `json:"allowed"`
	// Cached is set when the answer was served from the cache
	// hierarchy; Value then carries the stored payload.
	Cached     bool       `json:"cached,omitzero"`
	Value      []byte     `json:"value,omitempty"`
	CacheLevel CacheLevel `json:"cache_level,omitzero"`
	Similarity float32    `json:"similarity,omitzero"`

	Reason            ErrorType `json:"reason,omitzero"`
	ReasonDetail      string    `json:"reason_detail,omitzero"`
	RetryAfterSeconds int       `json:"retry_after_seconds,omitzero"`

	ClientID      string       `json:"client_id"`
	EstimatedCost float64      `json:"estimated_cost"`
	State         RequestState `json:"state"`

	// Headers carries machine-readable quota state for the transport
	// layer (limit/remaining/reset of the tightest family plus the
	// cost pre-estimate).
	Headers map[string]string `json:"headers,omitempty"`
}
