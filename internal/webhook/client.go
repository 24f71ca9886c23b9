package webhook

import (
	"net"
	"net/http"
	"time"
)

// Delivery request headers.
const (
	HeaderSignature  = "X-Linkpulse-Signature"
	HeaderTimestamp  = "X-Linkpulse-Timestamp"
	HeaderDeliveryID = "X-Linkpulse-Delivery-Id"
)

const (
	clientTimeout         = 30 * time.Second
	dialTimeout           = 10 * time.Second
	tlsHandshakeTimeout   = 10 * time.Second
	responseHeaderTimeout = 15 * time.Second
)

// NewHTTPClient builds the client used for deliveries. Every phase of
// the request carries its own timeout so one slow receiver cannot hold
// a worker slot for long. Redirects are not followed: a redirect could
// point the validated target back at internal address space.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: clientTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   dialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   tlsHandshakeTimeout,
			ResponseHeaderTimeout: responseHeaderTimeout,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// HTTPHeaders carries the per-delivery header values.
type HTTPHeaders struct {
	Signature  string
	Timestamp  string
	DeliveryID string
}

// SetWebhookHeaders applies the delivery headers to a request.
func SetWebhookHeaders(req *http.Request, headers HTTPHeaders) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, headers.Signature)
	req.Header.Set(HeaderTimestamp, headers.Timestamp)
	req.Header.Set(HeaderDeliveryID, headers.DeliveryID)
	req.Header.Set("User-Agent", "Linkpulse-Webhook/1.0")
}
