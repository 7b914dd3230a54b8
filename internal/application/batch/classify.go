package batch

import (
	"fmt"

	"github.com/garyjia/fleet-worklog/internal/domain/entity"
	"github.com/garyjia/fleet-worklog/internal/domain/workflow"
)

// classifyStatus maps a backend status onto the trigger that ends a
// lookup. Every entity.KnownTransactionStatuses value has its own case;
// anything else is OTHER.
func classifyStatus(status entity.TransactionStatus) workflow.Trigger {
	switch status.Normalize() {
	case entity.TransactionAccepted, entity.TransactionRejected:
		return workflow.TriggerFoundHandled
	case entity.TransactionPending:
		return workflow.TriggerFoundPending
	default:
		return workflow.TriggerFoundOther
	}
}

// classify maps a lookup response onto its trigger
func classify(tx *entity.BatchTransaction, err error) workflow.Trigger {
	switch {
	case err != nil:
		return workflow.TriggerFail
	case tx == nil:
		return workflow.TriggerAbsent
	default:
		return classifyStatus(tx.Status)
	}
}

// describe returns the user-facing message for a verification state
func describe(state workflow.State, batchNumber int64, tx *entity.BatchTransaction, err error) string {
	switch state {
	case workflow.StateUnchecked:
		return ""
	case workflow.StateChecking:
		return fmt.Sprintf("Checking batch %d...", batchNumber)
	case workflow.StateNotFound:
		return fmt.Sprintf("Batch %d has no transaction yet; a new transaction can be created under this number", batchNumber)
	case workflow.StateAlreadyHandled:
		return fmt.Sprintf("Batch %d has already been %s and cannot be linked", batchNumber, tx.Status.Normalize())
	case workflow.StatePendingValidation:
		return fmt.Sprintf("Batch %d is PENDING; confirm the received quantities to link it", batchNumber)
	case workflow.StateOtherStatus:
		return fmt.Sprintf("Batch %d has status %s and cannot be linked", batchNumber, tx.Status)
	case workflow.StateError:
		return fmt.Sprintf("Could not check batch %d: %v. Try again", batchNumber, err)
	default:
		return ""
	}
}
