package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/finmsg/sms-gateway/internal/domain"
	"github.com/finmsg/sms-gateway/internal/provider"
	"github.com/finmsg/sms-gateway/internal/repository"
)

type fakeProvider struct {
	sendFn   func(ctx context.Context, bridge domain.SMSBridge, message domain.OutboundMessage) (*provider.SendResponse, error)
	statusFn func(ctx context.Context, bridge domain.SMSBridge, externalID string, orchestrator string) (domain.DeliveryStatus, error)
}

func (f *fakeProvider) Send(ctx context.Context, bridge domain.SMSBridge, message domain.OutboundMessage) (*provider.SendResponse, error) {
	if f.sendFn != nil {
		return f.sendFn(ctx, bridge, message)
	}
	return &provider.SendResponse{ExternalID: "ext-1", Status: domain.StatusWaitingForReport}, nil
}

func (f *fakeProvider) UpdateStatusByMessageID(ctx context.Context, bridge domain.SMSBridge, externalID string, orchestrator string) (domain.DeliveryStatus, error) {
	if f.statusFn != nil {
		return f.statusFn(ctx, bridge, externalID, orchestrator)
	}
	return domain.StatusSent, nil
}

func registryWith(t *testing.T, key string, p provider.Provider) *provider.Registry {
	t.Helper()
	registry := provider.NewRegistry()
	if err := registry.Register(key, p); err != nil {
		t.Fatalf("Register(%s) error = %v", key, err)
	}
	return registry
}

func strPtr(v string) *string { return &v }

func TestReconciliationRefreshesNonTerminalStatus(t *testing.T) {
	t.Parallel()

	const messageID = "11111111-2222-4333-8444-555566667777"

	calls := 0
	messages := &fakeMessageRepo{
		findStatusByTenantFn: func(ctx context.Context, ids []string, tenantID string) ([]repository.DeliveryStatusData, error) {
			calls++
			status := domain.StatusSent
			if calls > 1 {
				status = domain.StatusDelivered
			}
			return []repository.DeliveryStatusData{{
				ID:             messageID,
				TenantID:       tenantID,
				BridgeID:       testBridge().ID,
				ExternalID:     strPtr("ext-42"),
				DeliveryStatus: status,
			}}, nil
		},
		updateDeliveryStatusFn: func(ctx context.Context, id string, status domain.DeliveryStatus) error {
			if id != messageID {
				t.Fatalf("update id = %s, want %s", id, messageID)
			}
			if status != domain.StatusDelivered {
				t.Fatalf("update status = %d, want %d", status.Int(), domain.StatusDelivered.Int())
			}
			return nil
		},
	}
	bridges := &fakeBridgeRepo{
		findByIDAndTenantFn: func(ctx context.Context, bridgeID string, tenantID string) (*domain.SMSBridge, error) {
			return testBridge(), nil
		},
	}

	queried := false
	prov := &fakeProvider{
		statusFn: func(ctx context.Context, bridge domain.SMSBridge, externalID string, orchestrator string) (domain.DeliveryStatus, error) {
			if externalID != "ext-42" {
				t.Fatalf("external id = %s, want ext-42", externalID)
			}
			if orchestrator != "orch-a" {
				t.Fatalf("orchestrator = %s, want orch-a", orchestrator)
			}
			queried = true
			return domain.StatusDelivered, nil
		},
	}

	svc, err := NewReconciliationService(messages, bridges, registryWith(t, "restgateway", prov), time.Second, nil)
	if err != nil {
		t.Fatalf("NewReconciliationService() error = %v", err)
	}

	result, err := svc.GetDeliveryStatus(context.Background(), "acme", "orch-a", []string{messageID})
	if err != nil {
		t.Fatalf("GetDeliveryStatus() error = %v", err)
	}
	if !queried {
		t.Fatal("expected provider status query")
	}
	if len(result) != 1 || result[0].DeliveryStatus != domain.StatusDelivered {
		t.Fatalf("result = %+v, want DELIVERED", result)
	}
	if calls != 2 {
		t.Fatalf("status reads = %d, want 2 (refresh then answer)", calls)
	}
}

func TestReconciliationSkipsTerminalStatus(t *testing.T) {
	t.Parallel()

	messages := &fakeMessageRepo{
		findStatusByTenantFn: func(ctx context.Context, ids []string, tenantID string) ([]repository.DeliveryStatusData, error) {
			return []repository.DeliveryStatusData{{
				ID:             "m-1",
				TenantID:       tenantID,
				BridgeID:       testBridge().ID,
				ExternalID:     strPtr("ext-1"),
				DeliveryStatus: domain.StatusDelivered,
			}}, nil
		},
	}
	prov := &fakeProvider{
		statusFn: func(ctx context.Context, bridge domain.SMSBridge, externalID string, orchestrator string) (domain.DeliveryStatus, error) {
			t.Fatal("delivered message should not be re-queried")
			return 0, nil
		},
	}

	svc, err := NewReconciliationService(messages, &fakeBridgeRepo{}, registryWith(t, "restgateway", prov), time.Second, nil)
	if err != nil {
		t.Fatalf("NewReconciliationService() error = %v", err)
	}

	result, err := svc.GetDeliveryStatus(context.Background(), "acme", "", []string{"m-1"})
	if err != nil {
		t.Fatalf("GetDeliveryStatus() error = %v", err)
	}
	if result[0].DeliveryStatus != domain.StatusDelivered {
		t.Fatalf("status = %d, want DELIVERED", result[0].DeliveryStatus.Int())
	}
}

func TestReconciliationSkipsUnsubmittedMessages(t *testing.T) {
	t.Parallel()

	messages := &fakeMessageRepo{
		findStatusByTenantFn: func(ctx context.Context, ids []string, tenantID string) ([]repository.DeliveryStatusData, error) {
			return []repository.DeliveryStatusData{{
				ID:             "m-1",
				TenantID:       tenantID,
				BridgeID:       testBridge().ID,
				ExternalID:     nil,
				DeliveryStatus: domain.StatusPending,
			}}, nil
		},
	}
	bridges := &fakeBridgeRepo{
		findByIDAndTenantFn: func(ctx context.Context, bridgeID string, tenantID string) (*domain.SMSBridge, error) {
			t.Fatal("bridge lookup should not happen without an external id")
			return nil, nil
		},
	}

	svc, err := NewReconciliationService(messages, bridges, registryWith(t, "restgateway", &fakeProvider{}), time.Second, nil)
	if err != nil {
		t.Fatalf("NewReconciliationService() error = %v", err)
	}

	result, err := svc.GetDeliveryStatus(context.Background(), "acme", "", []string{"m-1"})
	if err != nil {
		t.Fatalf("GetDeliveryStatus() error = %v", err)
	}
	if result[0].DeliveryStatus != domain.StatusPending {
		t.Fatalf("status = %d, want PENDING", result[0].DeliveryStatus.Int())
	}
}

func TestReconciliationProviderErrorKeepsStoredStatus(t *testing.T) {
	t.Parallel()

	updateCalled := false
	messages := &fakeMessageRepo{
		findStatusByTenantFn: func(ctx context.Context, ids []string, tenantID string) ([]repository.DeliveryStatusData, error) {
			return []repository.DeliveryStatusData{
				{ID: "m-1", TenantID: tenantID, BridgeID: testBridge().ID, ExternalID: strPtr("ext-1"), DeliveryStatus: domain.StatusSent},
				{ID: "m-2", TenantID: tenantID, BridgeID: testBridge().ID, ExternalID: strPtr("ext-2"), DeliveryStatus: domain.StatusWaitingForReport},
			}, nil
		},
		updateDeliveryStatusFn: func(ctx context.Context, id string, status domain.DeliveryStatus) error {
			if id != "m-2" {
				t.Fatalf("update id = %s, want m-2", id)
			}
			updateCalled = true
			return nil
		},
	}
	bridges := &fakeBridgeRepo{
		findByIDAndTenantFn: func(ctx context.Context, bridgeID string, tenantID string) (*domain.SMSBridge, error) {
			return testBridge(), nil
		},
	}
	prov := &fakeProvider{
		statusFn: func(ctx context.Context, bridge domain.SMSBridge, externalID string, orchestrator string) (domain.DeliveryStatus, error) {
			if externalID == "ext-1" {
				return 0, errors.New("gateway timeout")
			}
			return domain.StatusSent, nil
		},
	}

	svc, err := NewReconciliationService(messages, bridges, registryWith(t, "restgateway", prov), time.Second, nil)
	if err != nil {
		t.Fatalf("NewReconciliationService() error = %v", err)
	}

	result, err := svc.GetDeliveryStatus(context.Background(), "acme", "", []string{"m-1", "m-2"})
	if err != nil {
		t.Fatalf("GetDeliveryStatus() error = %v, one failed refresh must not fail the batch", err)
	}
	if len(result) != 2 {
		t.Fatalf("result = %d entries, want 2", len(result))
	}
	if !updateCalled {
		t.Fatal("expected the healthy entry to be refreshed")
	}
}

func TestReconciliationNeverRewindsDeliveryStatus(t *testing.T) {
	t.Parallel()

	messages := &fakeMessageRepo{
		findStatusByTenantFn: func(ctx context.Context, ids []string, tenantID string) ([]repository.DeliveryStatusData, error) {
			return []repository.DeliveryStatusData{{
				ID: "m-1", TenantID: tenantID, BridgeID: testBridge().ID, ExternalID: strPtr("ext-1"), DeliveryStatus: domain.StatusSent,
			}}, nil
		},
		updateDeliveryStatusFn: func(ctx context.Context, id string, status domain.DeliveryStatus) error {
			t.Fatalf("UpdateDeliveryStatus(%s, %d) must not be called for an older code", id, status.Int())
			return nil
		},
	}
	bridges := &fakeBridgeRepo{
		findByIDAndTenantFn: func(ctx context.Context, bridgeID string, tenantID string) (*domain.SMSBridge, error) {
			return testBridge(), nil
		},
	}
	prov := &fakeProvider{
		statusFn: func(ctx context.Context, bridge domain.SMSBridge, externalID string, orchestrator string) (domain.DeliveryStatus, error) {
			return domain.StatusPending, nil
		},
	}

	svc, err := NewReconciliationService(messages, bridges, registryWith(t, "restgateway", prov), time.Second, nil)
	if err != nil {
		t.Fatalf("NewReconciliationService() error = %v", err)
	}

	result, err := svc.GetDeliveryStatus(context.Background(), "acme", "", []string{"m-1"})
	if err != nil {
		t.Fatalf("GetDeliveryStatus() error = %v", err)
	}
	if result[0].DeliveryStatus != domain.StatusSent {
		t.Fatalf("status = %d, want stored SENT kept", result[0].DeliveryStatus.Int())
	}
}

func TestReconciliationBridgeNotFoundSingleIDFails(t *testing.T) {
	t.Parallel()

	messages := &fakeMessageRepo{
		findStatusByTenantFn: func(ctx context.Context, ids []string, tenantID string) ([]repository.DeliveryStatusData, error) {
			return []repository.DeliveryStatusData{{
				ID: "m-1", TenantID: tenantID, BridgeID: "gone", ExternalID: strPtr("ext-1"), DeliveryStatus: domain.StatusSent,
			}}, nil
		},
	}

	svc, err := NewReconciliationService(messages, &fakeBridgeRepo{}, registryWith(t, "restgateway", &fakeProvider{}), time.Second, nil)
	if err != nil {
		t.Fatalf("NewReconciliationService() error = %v", err)
	}

	_, err = svc.GetDeliveryStatus(context.Background(), "acme", "", []string{"m-1"})

	var notFound *domain.BridgeNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %v, want BridgeNotFoundError", err)
	}

	// Repeating the same id is still a single-message request.
	_, err = svc.GetDeliveryStatus(context.Background(), "acme", "", []string{"m-1", "m-1"})
	if !errors.As(err, &notFound) {
		t.Fatalf("duplicated-id error = %v, want BridgeNotFoundError", err)
	}
}

func TestReconciliationBridgeNotFoundInBatchDegrades(t *testing.T) {
	t.Parallel()

	messages := &fakeMessageRepo{
		findStatusByTenantFn: func(ctx context.Context, ids []string, tenantID string) ([]repository.DeliveryStatusData, error) {
			return []repository.DeliveryStatusData{
				{ID: "m-1", TenantID: tenantID, BridgeID: "gone", ExternalID: strPtr("ext-1"), DeliveryStatus: domain.StatusSent},
				{ID: "m-2", TenantID: tenantID, BridgeID: "gone", ExternalID: strPtr("ext-2"), DeliveryStatus: domain.StatusSent},
			}, nil
		},
	}

	svc, err := NewReconciliationService(messages, &fakeBridgeRepo{}, registryWith(t, "restgateway", &fakeProvider{}), time.Second, nil)
	if err != nil {
		t.Fatalf("NewReconciliationService() error = %v", err)
	}

	result, err := svc.GetDeliveryStatus(context.Background(), "acme", "", []string{"m-1", "m-2"})
	if err != nil {
		t.Fatalf("GetDeliveryStatus() error = %v, batch must degrade instead of failing", err)
	}
	if len(result) != 2 {
		t.Fatalf("result = %d entries, want 2", len(result))
	}
}

func TestReconciliationUnregisteredProviderKeepsStoredStatus(t *testing.T) {
	t.Parallel()

	bridge := testBridge()
	bridge.ProviderKey = "decommissioned"

	messages := &fakeMessageRepo{
		findStatusByTenantFn: func(ctx context.Context, ids []string, tenantID string) ([]repository.DeliveryStatusData, error) {
			return []repository.DeliveryStatusData{{
				ID: "m-1", TenantID: tenantID, BridgeID: bridge.ID, ExternalID: strPtr("ext-1"), DeliveryStatus: domain.StatusSent,
			}}, nil
		},
	}
	bridges := &fakeBridgeRepo{
		findByIDAndTenantFn: func(ctx context.Context, bridgeID string, tenantID string) (*domain.SMSBridge, error) {
			return bridge, nil
		},
	}

	svc, err := NewReconciliationService(messages, bridges, registryWith(t, "restgateway", &fakeProvider{}), time.Second, nil)
	if err != nil {
		t.Fatalf("NewReconciliationService() error = %v", err)
	}

	result, err := svc.GetDeliveryStatus(context.Background(), "acme", "", []string{"m-1"})
	if err != nil {
		t.Fatalf("GetDeliveryStatus() error = %v, missing provider must not fail the lookup", err)
	}
	if result[0].DeliveryStatus != domain.StatusSent {
		t.Fatalf("status = %d, want stored SENT", result[0].DeliveryStatus.Int())
	}
}

func TestReconciliationOneResultPerRequestedID(t *testing.T) {
	t.Parallel()

	messages := &fakeMessageRepo{
		findStatusByTenantFn: func(ctx context.Context, ids []string, tenantID string) ([]repository.DeliveryStatusData, error) {
			return []repository.DeliveryStatusData{{
				ID: "m-1", TenantID: tenantID, BridgeID: testBridge().ID, DeliveryStatus: domain.StatusDelivered,
			}}, nil
		},
	}

	svc, err := NewReconciliationService(messages, &fakeBridgeRepo{}, registryWith(t, "restgateway", &fakeProvider{}), time.Second, nil)
	if err != nil {
		t.Fatalf("NewReconciliationService() error = %v", err)
	}

	result, err := svc.GetDeliveryStatus(context.Background(), "acme", "", []string{"m-1", "unknown", "m-1"})
	if err != nil {
		t.Fatalf("GetDeliveryStatus() error = %v", err)
	}

	if len(result) != 2 {
		t.Fatalf("result = %d entries, want 2 (duplicate collapsed)", len(result))
	}
	if result[0].ID != "m-1" || result[0].DeliveryStatus != domain.StatusDelivered {
		t.Errorf("result[0] = %+v, want m-1 DELIVERED", result[0])
	}
	if result[1].ID != "unknown" || result[1].DeliveryStatus != domain.StatusInvalid {
		t.Errorf("result[1] = %+v, want unknown INVALID", result[1])
	}
}

func TestReconciliationGetMessageDetails(t *testing.T) {
	t.Parallel()

	stored := &domain.OutboundMessage{
		InternalID:     "m-1",
		TenantID:       "acme",
		BridgeID:       testBridge().ID,
		MobileNumber:   "+905551112233",
		Message:        "hello",
		DeliveryStatus: domain.StatusSent,
	}
	messages := &fakeMessageRepo{
		getByInternalIDAndTenantFn: func(ctx context.Context, id string, tenantID string) (*domain.OutboundMessage, error) {
			if tenantID != "acme" {
				return nil, domain.ErrNotFound
			}
			if id != "m-1" {
				return nil, domain.ErrNotFound
			}
			return stored, nil
		},
	}

	svc, err := NewReconciliationService(messages, &fakeBridgeRepo{}, registryWith(t, "restgateway", &fakeProvider{}), time.Second, nil)
	if err != nil {
		t.Fatalf("NewReconciliationService() error = %v", err)
	}

	got, err := svc.GetMessageDetails(context.Background(), "acme", "m-1")
	if err != nil {
		t.Fatalf("GetMessageDetails() error = %v", err)
	}
	if got.MobileNumber != "+905551112233" {
		t.Errorf("mobile = %s", got.MobileNumber)
	}

	if _, err := svc.GetMessageDetails(context.Background(), "other-tenant", "m-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("cross-tenant lookup error = %v, want ErrNotFound", err)
	}
	if _, err := svc.GetMessageDetails(context.Background(), "", "m-1"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("missing tenant error = %v, want ErrValidation", err)
	}
}
