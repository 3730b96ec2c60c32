package usecase

import (
	"context"
	"testing"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestAuditLog_List_PassesFilter(t *testing.T) {
	auditRepo := new(AuditLogRepoMock)
	uc := NewAuditLogUsecase(auditRepo)

	action := model.AuditActionUpdateCoupon
	f := repo.AuditLogFilter{Action: &action, Limit: 10}
	auditRepo.On("List", mock.Anything, f).
		Return([]model.AuditLog{{ID: 1, Action: action, ResourceType: model.AuditResourceCoupon}}, nil)

	logs, err := uc.List(context.Background(), f)
	assert.NoError(t, err)
	assert.Len(t, logs, 1)

	auditRepo.AssertExpectations(t)
}

func TestAuditLog_List_InvalidRange(t *testing.T) {
	auditRepo := new(AuditLogRepoMock)
	uc := NewAuditLogUsecase(auditRepo)

	from := time.Now()
	to := from.Add(-time.Hour)
	_, err := uc.List(context.Background(), repo.AuditLogFilter{CreatedFrom: &from, CreatedTo: &to})
	assertStatus(t, err, 400)

	auditRepo.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}
