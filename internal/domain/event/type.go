package event

// Type identifies the type of domain event
type Type string

const (
	TypeWorkLogRefreshed     Type = "worklog.refreshed"
	TypeDraftsGenerated      Type = "worklog.drafts_generated"
	TypeEntrySaved           Type = "entry.saved"
	TypeEntrySaveFailed      Type = "entry.save_failed"
	TypeEntryDeleted         Type = "entry.deleted"
	TypeBatchClassified      Type = "batch.classified"
	TypeDecisionSubmitted    Type = "decision.submitted"
	TypeTransactionCreated   Type = "transaction.created"
	TypeMaintenanceSubmitted Type = "maintenance.submitted"
)

// AllTypes lists every event type in declaration order
var AllTypes = []Type{
	TypeWorkLogRefreshed,
	TypeDraftsGenerated,
	TypeEntrySaved,
	TypeEntrySaveFailed,
	TypeEntryDeleted,
	TypeBatchClassified,
	TypeDecisionSubmitted,
	TypeTransactionCreated,
	TypeMaintenanceSubmitted,
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}
