package errors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory classifies an error by how the import pipeline reacts to it.
type ErrorCategory string

const (
	// CategoryUserInput covers missing or undecodable files and missing
	// capabilities. The batch is left unmodified.
	CategoryUserInput ErrorCategory = "user_input"
	// CategoryFormat covers missing headers, unmapped columns and files
	// that produce zero records. The batch state is not advanced.
	CategoryFormat ErrorCategory = "format"
	// CategoryRow covers a single line or row that failed extraction.
	// Row errors are counted and logged, never returned from a batch call.
	CategoryRow ErrorCategory = "row"
	// CategoryMatch covers failures while persisting match records.
	CategoryMatch         ErrorCategory = "match"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// User input errors
	CodeNoFile             ErrorCode = "no_file"
	CodeUndecodable        ErrorCode = "undecodable"
	CodeBackendUnavailable ErrorCode = "backend_unavailable"
	CodeUnknownBank        ErrorCode = "unknown_bank"
	CodeInvalidState       ErrorCode = "invalid_state"
	CodeNoTransactions     ErrorCode = "no_transactions"
	CodeImportNotFound     ErrorCode = "import_not_found"
	CodeInvalidRequest     ErrorCode = "invalid_request"

	// Format errors
	CodeHeaderNotFound     ErrorCode = "header_not_found"
	CodeColumnsNotMapped   ErrorCode = "columns_not_mapped"
	CodeNoRecords          ErrorCode = "no_records"
	CodeWorkbookUnreadable ErrorCode = "workbook_unreadable"

	// Row errors
	CodeInvalidDate   ErrorCode = "invalid_date"
	CodeInvalidAmount ErrorCode = "invalid_amount"
	CodeMalformedLine ErrorCode = "malformed_line"

	// Match errors
	CodeMissingLinkage ErrorCode = "missing_linkage"
	CodeDuplicateMatch ErrorCode = "duplicate_match"
	CodePaymentSource  ErrorCode = "payment_source"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// ImportError is the base error type for all application errors
type ImportError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *ImportError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *ImportError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *ImportError) GetExitCode() int {
	switch e.Category {
	case CategoryUserInput:
		return 2
	case CategoryFormat, CategoryRow:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryMatch, CategoryInternal:
		return 5
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *ImportError) WithContext(key string, value interface{}) *ImportError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *ImportError) WithSuggestion(suggestion string) *ImportError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ImportError
func New(category ErrorCategory, code ErrorCode, message string) *ImportError {
	return &ImportError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with ImportError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *ImportError {
	if err == nil {
		return nil
	}

	return &ImportError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func build(category ErrorCategory, code ErrorCode, message string, err error) *ImportError {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// UserInputError reports a problem with what the caller supplied: no file,
// content that cannot be decoded, an unknown bank or a missing spreadsheet
// backend.
func UserInputError(code ErrorCode, detail string, err error) *ImportError {
	var message, suggestion string

	switch code {
	case CodeNoFile:
		message = "no file provided"
		suggestion = "attach the bank statement export before processing"
	case CodeUndecodable:
		message = fmt.Sprintf("file content cannot be decoded: %s", detail)
		suggestion = "export the statement again as UTF-8 text"
	case CodeBackendUnavailable:
		message = fmt.Sprintf("no spreadsheet reader available: %s", detail)
		suggestion = "enable at least one of the excelize, xls or xlsreader backends"
	case CodeUnknownBank:
		message = fmt.Sprintf("unknown bank: %s", detail)
		suggestion = "use one of the registered bank identifiers (see 'bankimport banks')"
	case CodeInvalidState:
		message = fmt.Sprintf("operation not allowed: %s", detail)
		suggestion = "process the file before matching it"
	case CodeImportNotFound:
		message = fmt.Sprintf("import not found: %s", detail)
		suggestion = "create the import before processing or matching it"
	case CodeNoTransactions:
		message = fmt.Sprintf("no transactions to match in import %s", detail)
		suggestion = "process the file first"
	default:
		message = fmt.Sprintf("invalid input: %s", detail)
		suggestion = "check the file and the selected bank"
	}

	return build(CategoryUserInput, code, message, err).
		WithSuggestion(suggestion).
		WithContext("detail", detail)
}

// FormatError reports a file whose layout does not fit the selected bank.
func FormatError(code ErrorCode, file string, detail string, err error) *ImportError {
	var message, suggestion string

	switch code {
	case CodeHeaderNotFound:
		message = fmt.Sprintf("header row not found in %s: %s", file, detail)
		suggestion = "the header row must contain a 'Fecha' column within the first rows"
	case CodeColumnsNotMapped:
		message = fmt.Sprintf("required columns not found in %s: %s", file, detail)
		suggestion = "expected columns such as Fecha, Descripción, Cargo, Abono and Nro. Operación"
	case CodeNoRecords:
		message = fmt.Sprintf("no transactions could be extracted from %s", file)
		suggestion = "check that the file is a statement export of the selected bank"
	case CodeWorkbookUnreadable:
		message = fmt.Sprintf("spreadsheet %s could not be opened: %s", file, detail)
		suggestion = "save the file as .xlsx or .xls and try again"
	default:
		message = fmt.Sprintf("unexpected layout in %s: %s", file, detail)
		suggestion = "check the file format"
	}

	return build(CategoryFormat, code, message, err).
		WithSuggestion(suggestion).
		WithContext("file", file)
}

// RowError describes a single line or row dropped during extraction.
func RowError(code ErrorCode, line int, value string, err error) *ImportError {
	var message string

	switch code {
	case CodeInvalidDate:
		message = fmt.Sprintf("invalid date at row %d: '%s'", line, value)
	case CodeInvalidAmount:
		message = fmt.Sprintf("invalid amount at row %d: '%s'", line, value)
	case CodeMalformedLine:
		message = fmt.Sprintf("malformed line %d: '%s'", line, value)
	default:
		message = fmt.Sprintf("row %d skipped: '%s'", line, value)
	}

	return build(CategoryRow, code, message, err).
		WithContext("line", line).
		WithContext("value", value)
}

// MatchError reports a failure while recording a match. It aborts the batch.
func MatchError(code ErrorCode, transactionID, paymentID string, err error) *ImportError {
	var message, suggestion string

	switch code {
	case CodeMissingLinkage:
		message = fmt.Sprintf("match for transaction %q and payment %q is missing a required link", transactionID, paymentID)
		suggestion = "reprocess the import and match again"
	case CodeDuplicateMatch:
		message = fmt.Sprintf("transaction %q is already matched with payment %q", transactionID, paymentID)
		suggestion = "this is likely a bug - please report it with the import file"
	case CodePaymentSource:
		message = fmt.Sprintf("payment lookup failed for transaction %q", transactionID)
		suggestion = "check that the payment source is reachable and try again"
	default:
		message = fmt.Sprintf("matching failed for transaction %q", transactionID)
		suggestion = "review the payment data and try again"
	}

	return build(CategoryMatch, code, message, err).
		WithSuggestion(suggestion).
		WithContext("transaction_id", transactionID).
		WithContext("payment_id", paymentID)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *ImportError {
	message := fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
	suggestion := "check the configuration documentation for valid values"
	if code != CodeInvalidConfig {
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	return build(CategoryConfiguration, code, message, err).
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// InternalError creates an internal error
func InternalError(code ErrorCode, operation string, err error) *ImportError {
	message := fmt.Sprintf("internal error during %s", operation)
	suggestion := "try again or contact support if the problem persists"
	if code == CodeUnexpectedError {
		message = fmt.Sprintf("unexpected error during %s", operation)
		suggestion = "this is likely a bug - please report it with the error details"
	}

	return build(CategoryInternal, code, message, err).
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// ErrorSummary provides a summary of multiple errors
type ErrorSummary struct {
	Total        int                   `json:"total"`
	ByCategory   map[ErrorCategory]int `json:"by_category"`
	ByCode       map[ErrorCode]int     `json:"by_code"`
	Errors       []*ImportError        `json:"errors"`
	SampleErrors []*ImportError        `json:"sample_errors,omitempty"`
}

// NewErrorSummary creates a new error summary
func NewErrorSummary(errs []*ImportError) *ErrorSummary {
	summary := &ErrorSummary{
		Total:      len(errs),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errs,
	}
	if len(errs) == 0 {
		summary.Errors = []*ImportError{}
		return summary
	}

	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}

	maxSamples := 5
	if len(errs) > maxSamples {
		summary.SampleErrors = errs[:maxSamples]
	} else {
		summary.SampleErrors = errs
	}

	return summary
}

// Error returns a formatted error message for the summary
func (es *ErrorSummary) Error() string {
	if es.Total == 0 {
		return "no errors"
	}

	if es.Total == 1 {
		return es.Errors[0].Error()
	}

	var codes []string
	for code, count := range es.ByCode {
		codes = append(codes, fmt.Sprintf("%s: %d", code, count))
	}
	sort.Strings(codes)

	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(codes, ", "))
}

// HasCategory checks if the summary contains errors of the given category
func (es *ErrorSummary) HasCategory(category ErrorCategory) bool {
	return es.ByCategory[category] > 0
}

// HasCode checks if the summary contains errors with the given code
func (es *ErrorSummary) HasCode(code ErrorCode) bool {
	return es.ByCode[code] > 0
}

// GetExitCode returns the highest priority exit code from all errors
func (es *ErrorSummary) GetExitCode() int {
	if es.Total == 0 {
		return 0
	}

	maxCode := 1
	for _, err := range es.Errors {
		if code := err.GetExitCode(); code > maxCode {
			maxCode = code
		}
	}

	return maxCode
}

// AsImportError extracts an ImportError from an error chain
func AsImportError(err error) (*ImportError, bool) {
	var importErr *ImportError
	if errors.As(err, &importErr) {
		return importErr, true
	}
	return nil, false
}

// IsCategory reports whether err carries an ImportError of the given category.
func IsCategory(err error, category ErrorCategory) bool {
	importErr, ok := AsImportError(err)
	return ok && importErr.Category == category
}

// HasCode reports whether err carries an ImportError with the given code.
func HasCode(err error, code ErrorCode) bool {
	importErr, ok := AsImportError(err)
	return ok && importErr.Code == code
}

// WrapIfNeeded wraps an error if it's not already an ImportError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *ImportError {
	if err == nil {
		return nil
	}

	if importErr, ok := AsImportError(err); ok {
		return importErr
	}

	return Wrap(err, category, code, message)
}
