// Package audit provides security audit logging for SIEM consumption.
// It screens user-submitted text for injection patterns and logs
// security-relevant events in structured JSON format for easy parsing
// and integration with security information and event management systems.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/auth"
	"github.com/plumelab/plume-engine/pkg/logging"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventInjectionPattern is logged when libinjection detects SQLi or XSS
	// patterns in user-submitted text (chat messages, uploaded documents).
	EventInjectionPattern SecurityEventType = "injection_pattern_detected"
	// EventAuthFailure is logged when credential validation fails.
	EventAuthFailure SecurityEventType = "auth_failure"
	// EventUploadRejected is logged when a document upload is refused.
	EventUploadRejected SecurityEventType = "upload_rejected"
	// EventRateLimited is logged when a request is dropped by the rate limiter.
	EventRateLimited SecurityEventType = "rate_limited"
)

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp     time.Time         `json:"timestamp"`
	EventType     SecurityEventType `json:"event_type"`
	UserID        int64             `json:"user_id,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	ClientIP      string            `json:"client_ip,omitempty"`
	Details       any               `json:"details"`
	Severity      string            `json:"severity"` // info, warning, critical
}

// SecurityAuditor logs security events for SIEM consumption.
// Events are logged in structured JSON format with appropriate severity levels.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger namespace.
// The logger is automatically configured with "security_audit" namespace for easy
// filtering in SIEM systems.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	securityLogger := logger.Named("security_audit")
	return &SecurityAuditor{logger: securityLogger}
}

// ScreenUserText checks user-submitted text for injection patterns and logs
// a security event per finding. Findings are observational: queries are
// parameterized and transcripts are escaped, so the caller proceeds
// regardless. Returns the findings so callers can attach them to their own
// telemetry if needed.
//
// Example usage:
//
//	auditor.ScreenUserText(ctx, "message", req.Content, r.RemoteAddr)
func (a *SecurityAuditor) ScreenUserText(ctx context.Context, field, text, clientIP string) []ScreenFinding {
	findings := ScreenText(field, text)
	for _, finding := range findings {
		a.logFinding(ctx, finding, clientIP)
	}
	return findings
}

func (a *SecurityAuditor) logFinding(ctx context.Context, finding ScreenFinding, clientIP string) {
	userID := auth.GetUserID(ctx)
	correlationID := logging.CorrelationID(ctx)

	event := SecurityEvent{
		Timestamp:     time.Now().UTC(),
		EventType:     EventInjectionPattern,
		UserID:        userID,
		CorrelationID: correlationID,
		ClientIP:      clientIP,
		Details:       finding,
		Severity:      "warning",
	}

	// Ignoring error as marshaling known types should never fail
	eventJSON, _ := json.Marshal(event)

	a.logger.Warn("Injection pattern detected in user input",
		zap.String("event_json", string(eventJSON)),
		zap.String("kind", finding.Kind),
		zap.String("field", finding.Field),
		zap.String("fingerprint", finding.Fingerprint),
		zap.String("client_ip", clientIP),
		zap.Int64("user_id", userID),
		zap.String("severity", "warning"),
	)
}

// LogAuthFailure records a failed authentication attempt.
// This is logged at WARN level since repeated failures indicate probing.
func (a *SecurityAuditor) LogAuthFailure(ctx context.Context, reason, clientIP string) {
	correlationID := logging.CorrelationID(ctx)

	event := SecurityEvent{
		Timestamp:     time.Now().UTC(),
		EventType:     EventAuthFailure,
		CorrelationID: correlationID,
		ClientIP:      clientIP,
		Details: map[string]string{
			"reason": reason,
		},
		Severity: "warning",
	}

	eventJSON, _ := json.Marshal(event)

	a.logger.Warn("Authentication failed",
		zap.String("event_json", string(eventJSON)),
		zap.String("reason", reason),
		zap.String("client_ip", clientIP),
		zap.String("severity", "warning"),
	)
}

// LogUploadRejected records a refused document upload for audit trail.
// This is logged at INFO level as rejections are typically user errors.
func (a *SecurityAuditor) LogUploadRejected(ctx context.Context, filename, reason, clientIP string) {
	userID := auth.GetUserID(ctx)
	correlationID := logging.CorrelationID(ctx)

	event := SecurityEvent{
		Timestamp:     time.Now().UTC(),
		EventType:     EventUploadRejected,
		UserID:        userID,
		CorrelationID: correlationID,
		ClientIP:      clientIP,
		Details: map[string]string{
			"filename": filename,
			"reason":   reason,
		},
		Severity: "info",
	}

	eventJSON, _ := json.Marshal(event)

	a.logger.Info("Upload rejected",
		zap.String("event_json", string(eventJSON)),
		zap.String("filename", filename),
		zap.String("reason", reason),
		zap.String("client_ip", clientIP),
		zap.Int64("user_id", userID),
		zap.String("severity", "info"),
	)
}

// LogRateLimited records a request dropped by the rate limiter.
// Note: this can generate high log volume under sustained abuse.
func (a *SecurityAuditor) LogRateLimited(ctx context.Context, route, clientIP string) {
	userID := auth.GetUserID(ctx)
	correlationID := logging.CorrelationID(ctx)

	event := SecurityEvent{
		Timestamp:     time.Now().UTC(),
		EventType:     EventRateLimited,
		UserID:        userID,
		CorrelationID: correlationID,
		ClientIP:      clientIP,
		Details: map[string]string{
			"route": route,
		},
		Severity: "info",
	}

	eventJSON, _ := json.Marshal(event)

	a.logger.Info("Request rate limited",
		zap.String("event_json", string(eventJSON)),
		zap.String("route", route),
		zap.String("client_ip", clientIP),
		zap.Int64("user_id", userID),
		zap.String("severity", "info"),
	)
}
