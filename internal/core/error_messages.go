// Package core provides the delivery logic of contact-form-connect.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support
// reference. API clients receive the code with every error response.
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key: A record with this ID already exists
//	        Patterns: "duplicate key"
//
//	DB002 - Unique constraint: This value must be unique but already exists
//	        Patterns: "unique constraint", "violates unique"
//
//	DB003 - Foreign key: Referenced connector or form does not exist
//	        Patterns: "foreign key constraint", "violates foreign key"
//
//	DB004 - Connection refused: Unable to connect to database
//	DB005 - Connection reset: Database connection was interrupted
//	DB006 - Deadlock: Database was busy with conflicting operations
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Empty submission: The submission contained no fields
//	VAL002 - Missing setting: A required connector setting is empty
//	VAL003 - Invalid submission: The request body could not be parsed
//	VAL004 - Invalid status: Unknown delivery status filter
//	VAL005 - Body too large: The request exceeded the configured size
//	VAL006 - Invalid fields: Required fields are empty or values malformed
//
// # Connector Errors (CON001-CON099)
//
//	CON001 - Unknown service: No connector is registered for the service
//	CON002 - Credentials rejected: HTTP 401/403 from the external service
//	CON003 - Remote not found: HTTP 404 from the external service
//	CON004 - Remote error: HTTP 5xx from the external service
//
// # Delivery Errors (DLV001-DLV099)
//
//	DLV001 - System busy: Too many deliveries in progress
//	DLV002 - Not retryable: Only failed deliveries can be retried
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Not found: The requested record does not exist
//	REQ002 - Request cancelled: "context canceled"
//	REQ003 - Request timeout: "context deadline exceeded", "timeout"
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Rate limited: "rate limit", HTTP 429
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches. Check the application logs for
// the original technical error.
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns are defined
// before general ones.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user
// messages. The first matching pattern wins.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Database Errors (DB001-DB006)
	// =========================================================================
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this ID already exists",
			Action:  "Use a different ID or update the existing record",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Choose a different value",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A duplicate value was found",
			Action:  "Choose a different value",
			Code:    "DB002",
		},
	},
	{
		pattern: "foreign key constraint",
		msg: UserMessage{
			Message: "Referenced connector or form does not exist",
			Action:  "Create the connector and the form before binding them",
			Code:    "DB003",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "Referenced connector or form does not exist",
			Action:  "Create the connector and the form before binding them",
			Code:    "DB003",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB006",
		},
	},

	// =========================================================================
	// Validation Errors (VAL001-VAL006)
	// =========================================================================
	{
		pattern: "empty submission",
		msg: UserMessage{
			Message: "The submission contained no fields",
			Action:  "Send at least one form field",
			Code:    "VAL001",
		},
	},
	{
		pattern: "missing required setting",
		msg: UserMessage{
			Message: "A required connector setting is empty",
			Action:  "Fill in every required setting of the connector",
			Code:    "VAL002",
		},
	},
	{
		pattern: "invalid submission",
		msg: UserMessage{
			Message: "The request body could not be parsed",
			Action:  "Send a JSON or YAML object",
			Code:    "VAL003",
		},
	},
	{
		pattern: "invalid status",
		msg: UserMessage{
			Message: "Unknown delivery status",
			Action:  "Use pending, running, delivered or failed",
			Code:    "VAL004",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "The request body is too large",
			Action:  "Send fewer or shorter fields",
			Code:    "VAL005",
		},
	},
	{
		pattern: "invalid fields",
		msg: UserMessage{
			Message: "Some fields are missing or invalid",
			Action:  "Correct the listed fields and submit again",
			Code:    "VAL006",
		},
	},

	// =========================================================================
	// Connector Errors (CON001-CON004)
	// =========================================================================
	{
		pattern: "unknown service",
		msg: UserMessage{
			Message: "This connector service is not available",
			Action:  "Choose one of the services listed by /api/services",
			Code:    "CON001",
		},
	},
	{
		pattern: "http 401",
		msg: UserMessage{
			Message: "The external service rejected the credentials",
			Action:  "Update the connector's username, password or token",
			Code:    "CON002",
		},
	},
	{
		pattern: "http 403",
		msg: UserMessage{
			Message: "The external service rejected the credentials",
			Action:  "Update the connector's username, password or token",
			Code:    "CON002",
		},
	},
	{
		pattern: "http 404",
		msg: UserMessage{
			Message: "The external document or project was not found",
			Action:  "Check the document, sheet or project settings",
			Code:    "CON003",
		},
	},
	{
		pattern: "http 429",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
	{
		pattern: "http 50",
		msg: UserMessage{
			Message: "The external service failed",
			Action:  "The delivery will be retried automatically",
			Code:    "CON004",
		},
	},

	// =========================================================================
	// Delivery Errors (DLV001-DLV002)
	// =========================================================================
	{
		pattern: "too many deliveries",
		msg: UserMessage{
			Message: "System is busy processing other deliveries",
			Action:  "Please wait a moment and try again",
			Code:    "DLV001",
		},
	},
	{
		pattern: "cannot be retried",
		msg: UserMessage{
			Message: "Only failed deliveries can be retried",
			Action:  "Wait for the delivery to fail or finish",
			Code:    "DLV002",
		},
	},

	// =========================================================================
	// Request Errors (REQ001-REQ003)
	// =========================================================================
	{
		pattern: "not found",
		msg: UserMessage{
			Message: "The requested record does not exist",
			Action:  "Check the ID and try again",
			Code:    "REQ001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Please try again later",
			Code:    "REQ003",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Please try again later",
			Code:    "REQ003",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
// This is the fallback for unexpected errors. Support staff should check
// application logs for the original technical error when users report ERR000.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, a generic fallback message with
// code ERR000 is returned.
//
// Example:
//
//	msg := MapError(connector.ErrUnknownService)
//	// msg.Code == "CON001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
//
// Example output: "The submission contained no fields (Code: VAL001). Send at least one form field"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	msg := MapError(err)
	return msg.Code != defaultMessage.Code
}

// UserError wraps a technical error with a user-friendly message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
