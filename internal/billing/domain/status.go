package billing

// ReconciliationStatus tracks bank verification of a record.
type ReconciliationStatus string

const (
	ReconciliationPending        ReconciliationStatus = "PENDING"
	ReconciliationVerified       ReconciliationStatus = "VERIFIED"
	ReconciliationAmountMismatch ReconciliationStatus = "AMOUNT_MISMATCH"
)

// ApprovalStatus tracks the administrative sign-off of a payment
// notification, independent of bank verification.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
)
