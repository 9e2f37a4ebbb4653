package audithook

// Action constants for audit events.
const (
	// Invoice actions
	ActionInvoiceIssued     = "invoice.issued"
	ActionInvoicePaidInFull = "invoice.paid_in_full"

	// Payment actions
	ActionPaymentApplied  = "payment.applied"
	ActionPaymentRefunded = "payment.refunded"

	// Settlement actions
	ActionSettlementConfirmed = "settlement.confirmed"
	ActionReserveReleased     = "reserve.released"

	// Rejections
	ActionOperationRejected = "operation.rejected"
)

// Resource constants for audit events.
const (
	ResourceInvoice   = "invoice"
	ResourcePayment   = "payment"
	ResourceOperation = "operation"
)

// Category constants for audit events.
const (
	CategoryBilling    = "billing"
	CategoryPayment    = "payment"
	CategorySettlement = "settlement"
	CategoryAccess     = "access"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
