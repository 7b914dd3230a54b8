package service

import (
	"context"

	"github.com/garyjia/fleet-worklog/internal/application/batch"
	"github.com/garyjia/fleet-worklog/internal/application/dispatcher"
	"github.com/garyjia/fleet-worklog/internal/application/worklog"
	"github.com/garyjia/fleet-worklog/internal/domain/entity"
	"github.com/garyjia/fleet-worklog/internal/domain/event"
)

// MaintenanceRequest submits a maintenance record. SessionID names the
// verification session whose decision links a batch; EquipmentID names
// the work log to save. Either may be empty.
type MaintenanceRequest struct {
	EquipmentID int64  `json:"equipment_id"`
	SessionID   string `json:"session_id"`
}

// MaintenanceResult reports both halves of a submission
type MaintenanceResult struct {
	Decision *batch.SubmitResult `json:"decision,omitempty"`
	Save     *worklog.SaveResult `json:"save,omitempty"`
}

// MaintenanceService submits maintenance records
type MaintenanceService interface {
	Submit(ctx context.Context, req MaintenanceRequest) (*MaintenanceResult, error)
}

type maintenanceServiceImpl struct {
	worklogs      WorkLogService
	verifications VerificationService
	dispatcher    dispatcher.Dispatcher
	logger        Logger
}

// NewMaintenanceService creates a new MaintenanceService
func NewMaintenanceService(
	worklogs WorkLogService,
	verifications VerificationService,
	d dispatcher.Dispatcher,
	logger Logger,
) MaintenanceService {
	return &maintenanceServiceImpl{
		worklogs:      worklogs,
		verifications: verifications,
		dispatcher:    d,
		logger:        logger,
	}
}

// Submit runs the decision gate first. When a batch is being linked and
// its decision is invalid or refused by the backend, nothing is saved.
// The work log is then saved with per-entry failure isolation.
func (s *maintenanceServiceImpl) Submit(ctx context.Context, req MaintenanceRequest) (*MaintenanceResult, error) {
	if req.EquipmentID == 0 && req.SessionID == "" {
		return nil, entity.NewValidationError("request", nil, "equipment_id or session_id is required")
	}

	result := &MaintenanceResult{}
	if req.SessionID != "" {
		decision, err := s.verifications.Submit(ctx, req.SessionID)
		result.Decision = decision
		if err != nil {
			s.logger.Error("Maintenance submission blocked by batch decision",
				"session_id", req.SessionID,
				"error", err,
			)
			return result, err
		}
	}

	if req.EquipmentID != 0 {
		saved, err := s.worklogs.SaveAll(ctx, req.EquipmentID)
		if err != nil {
			return result, err
		}
		result.Save = saved
	}

	payload := map[string]interface{}{"linked_batch": result.Decision != nil}
	if result.Save != nil {
		payload["succeeded"] = result.Save.Succeeded
		payload["failed"] = result.Save.Failed
	}
	if s.dispatcher != nil {
		s.dispatcher.Publish(ctx, event.NewWorkLogEvent(event.TypeMaintenanceSubmitted, req.EquipmentID, payload))
	}

	s.logger.Info("Maintenance record submitted",
		"equipment_id", req.EquipmentID,
		"session_id", req.SessionID,
	)
	return result, nil
}
