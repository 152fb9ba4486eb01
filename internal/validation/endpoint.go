// Package validation checks the external endpoints the service is configured to reach.
package validation

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// EndpointError describes why a configured endpoint was rejected.
type EndpointError struct {
	Field   string
	Message string
	Value   string
}

func (e EndpointError) Error() string {
	return fmt.Sprintf("%s: %s (value: %s)", e.Field, e.Message, e.Value)
}

// ValidateServiceURL checks an http(s) base URL such as the identity provider's.
// A path prefix is allowed (older Keycloak installs live under /auth); query
// strings and fragments are not. requireHTTPS rejects plain http.
func ValidateServiceURL(raw, field string, requireHTTPS bool) error {
	if raw == "" {
		return nil
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return EndpointError{Field: field, Message: "invalid URL format", Value: raw}
	}
	if parsed.Scheme == "" {
		return EndpointError{Field: field, Message: "URL must include a scheme (http:// or https://)", Value: raw}
	}
	// "keycloak:8080" parses with scheme "keycloak" and no host.
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return EndpointError{Field: field, Message: "URL scheme must be http or https", Value: raw}
	}
	if parsed.Host == "" {
		return EndpointError{Field: field, Message: "URL must include a host", Value: raw}
	}
	if requireHTTPS && scheme != "https" {
		return EndpointError{Field: field, Message: "URL must use HTTPS in production", Value: raw}
	}
	if parsed.RawQuery != "" {
		return EndpointError{Field: field, Message: "URL must not contain query parameters", Value: raw}
	}
	if parsed.Fragment != "" {
		return EndpointError{Field: field, Message: "URL must not contain a fragment", Value: raw}
	}
	return nil
}

// ValidateBrokerAddress checks a Kafka bootstrap address of the form host:port.
func ValidateBrokerAddress(addr, field string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return EndpointError{Field: field, Message: "broker address must be host:port", Value: addr}
	}
	if host == "" {
		return EndpointError{Field: field, Message: "broker address must include a host", Value: addr}
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return EndpointError{Field: field, Message: "broker port must be between 1 and 65535", Value: addr}
	}
	return nil
}
