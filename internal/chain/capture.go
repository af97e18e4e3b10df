package chain

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/lead-qualify/internal/model"
	"github.com/sells-group/lead-qualify/internal/store"
)

// Capture records what an inbound reply confirmed about a lead. Failures
// are reported on the result, not returned.
func (e *Executor) Capture(ctx context.Context, leadID string, data model.CapturedData) *model.ExecutionResult {
	res := newResult(model.StageCapture, leadID)
	res.Processed = 1

	stage := model.StageCapture
	patch := store.LeadPatch{
		Meta: &store.MetaPatch{
			MobileConfirmed:   &data.MobileConfirmed,
			PermissionGranted: &data.PermissionGranted,
			ExecutionStage:    &stage,
		},
	}
	if email := strings.TrimSpace(data.Email); email != "" {
		patch.Email = &email
	}

	if err := e.store.PatchLead(ctx, leadID, patch); err != nil {
		zap.L().Warn("chain: capture failed", zap.String("lead_id", leadID), zap.Error(err))
		res.Failed = 1
		res.NextStage = ""
		res.Errors = append(res.Errors, err.Error())
		return res
	}

	res.Succeeded = 1
	res.Success = true
	res.Data["email"] = data.Email
	res.Data["mobile_confirmed"] = data.MobileConfirmed
	res.Data["permission_granted"] = data.PermissionGranted
	if data.ConfirmationType != "" {
		res.Data["confirmation_type"] = data.ConfirmationType
	}
	if e.crm != nil {
		e.syncCapture(ctx, leadID, res)
	}
	return res
}

// syncCapture pushes the captured lead to the CRM. A CRM failure is a
// warning; the capture itself already succeeded.
func (e *Executor) syncCapture(ctx context.Context, leadID string, res *model.ExecutionResult) {
	warn := func(err error) {
		zap.L().Warn("chain: crm sync failed", zap.String("lead_id", leadID), zap.Error(err))
		res.Data["warnings"] = []string{"crm sync failed: " + err.Error()}
	}

	l, err := e.store.GetLead(ctx, leadID)
	if err != nil {
		warn(err)
		return
	}
	out, err := e.crm.SyncLead(ctx, l)
	if err != nil {
		warn(err)
		return
	}
	res.Data["crm_record_id"] = out.RecordID
	if out.RecordID == l.Meta.CRMRecordID {
		return
	}
	if err := e.store.PatchLead(ctx, leadID, store.LeadPatch{
		Meta: &store.MetaPatch{CRMRecordID: &out.RecordID},
	}); err != nil {
		warn(err)
	}
}
