package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextStatus_HappyPath(t *testing.T) {
	path := []struct {
		from  string
		event string
		to    string
	}{
		{OrderStatusSearchingExecutor, EventFirstResponse, OrderStatusSelectingExecutor},
		{OrderStatusSelectingExecutor, EventSelectExecutor, OrderStatusExecutorSelected},
		{OrderStatusExecutorSelected, EventStartWork, OrderStatusInWork},
		{OrderStatusInWork, EventFinishWork, OrderStatusAwaitingConfirmation},
		{OrderStatusAwaitingConfirmation, EventComplete, OrderStatusCompleted},
	}

	for _, step := range path {
		next, ok := NextStatus(step.from, step.event)
		assert.True(t, ok, "переход %s + %s должен быть разрешён", step.from, step.event)
		assert.Equal(t, step.to, next)
	}
}

func TestNextStatus_MediatorBranch(t *testing.T) {
	next, ok := NextStatus(OrderStatusSearchingExecutor, EventAssignMediator)
	assert.True(t, ok)
	assert.Equal(t, OrderStatusMediatorStep1, next)

	next, ok = NextStatus(OrderStatusMediatorStep1, EventMediatorAdvance)
	assert.True(t, ok)
	assert.Equal(t, OrderStatusMediatorStep2, next)

	next, ok = NextStatus(OrderStatusMediatorStep2, EventMediatorAdvance)
	assert.True(t, ok)
	assert.Equal(t, OrderStatusMediatorStep3, next)

	next, ok = NextStatus(OrderStatusMediatorStep3, EventMediatorArchive)
	assert.True(t, ok)
	assert.Equal(t, OrderStatusMediatorArchived, next)

	// Архивировать можно только с последнего шага.
	_, ok = NextStatus(OrderStatusMediatorStep1, EventMediatorArchive)
	assert.False(t, ok)
}

func TestNextStatus_IllegalTransitions(t *testing.T) {
	// Нельзя перескочить через шаги.
	_, ok := NextStatus(OrderStatusSearchingExecutor, EventStartWork)
	assert.False(t, ok)

	_, ok = NextStatus(OrderStatusSearchingExecutor, EventComplete)
	assert.False(t, ok)

	_, ok = NextStatus(OrderStatusSearchingExecutor, EventSelectExecutor)
	assert.False(t, ok)

	// Неизвестный статус.
	_, ok = NextStatus("nonexistent", EventClose)
	assert.False(t, ok)
}

func TestNextStatus_TerminalStatusesHaveNoExits(t *testing.T) {
	terminals := []string{
		OrderStatusCompleted, OrderStatusCancelled, OrderStatusRejected,
		OrderStatusClosed, OrderStatusDeleted, OrderStatusMediatorArchived,
	}

	events := []string{
		EventFirstResponse, EventSelectExecutor, EventStartWork, EventFinishWork,
		EventComplete, EventCustomerCancel, EventReject, EventClose, EventDelete,
		EventAssignMediator, EventMediatorAdvance, EventMediatorArchive,
	}

	for _, status := range terminals {
		assert.True(t, IsTerminalStatus(status), "%s должен быть терминальным", status)
		for _, event := range events {
			_, ok := NextStatus(status, event)
			assert.False(t, ok, "из %s не должно быть перехода по %s", status, event)
		}
	}
}

func TestTransitions_TargetsAreValidStatuses(t *testing.T) {
	for from, edges := range transitions {
		assert.True(t, IsValidOrderStatus(from))
		for event, to := range edges {
			assert.True(t, IsKnownEvent(event))
			assert.True(t, IsValidOrderStatus(to), "переход %s + %s ведёт в неизвестный статус %s", from, event, to)
		}
	}
}

func TestEventAllowedFor(t *testing.T) {
	assert.True(t, EventAllowedFor(EventCustomerCancel, RoleCustomer))
	assert.True(t, EventAllowedFor(EventCustomerCancel, RoleAdmin))
	assert.False(t, EventAllowedFor(EventCustomerCancel, RoleExecutor))

	assert.True(t, EventAllowedFor(EventStartWork, RoleExecutor))
	assert.False(t, EventAllowedFor(EventStartWork, RoleCustomer))

	// Первый отклик — внутренний переход сервиса откликов, исполнитель
	// инициирует его только подачей отклика.
	assert.True(t, EventAllowedFor(EventFirstResponse, RoleSystem))
	assert.False(t, EventAllowedFor(EventFirstResponse, RoleExecutor))
	assert.False(t, EventAllowedFor(EventFirstResponse, RoleAdmin))

	// Завершение — только системное событие из completion gate.
	assert.True(t, EventAllowedFor(EventComplete, RoleSystem))
	assert.False(t, EventAllowedFor(EventComplete, RoleCustomer))
	assert.False(t, EventAllowedFor(EventComplete, RoleExecutor))
	assert.False(t, EventAllowedFor(EventComplete, RoleAdmin))

	// Удаление — только администратор.
	assert.True(t, EventAllowedFor(EventDelete, RoleAdmin))
	assert.False(t, EventAllowedFor(EventDelete, RoleCustomer))

	assert.True(t, EventAllowedFor(EventMediatorAdvance, RoleMediator))
	assert.False(t, EventAllowedFor(EventMediatorAdvance, RoleExecutor))

	assert.False(t, EventAllowedFor("unknown_event", RoleAdmin))
}

func TestIsEventTarget(t *testing.T) {
	// Заказ уже в статусе, куда ведёт событие: повторная доставка.
	assert.True(t, IsEventTarget(OrderStatusInWork, EventStartWork))
	assert.True(t, IsEventTarget(OrderStatusCompleted, EventComplete))
	assert.True(t, IsEventTarget(OrderStatusCancelled, EventCustomerCancel))

	assert.False(t, IsEventTarget(OrderStatusInWork, EventFinishWork))
	assert.False(t, IsEventTarget(OrderStatusSearchingExecutor, EventStartWork))
}

func TestReleasesQuota(t *testing.T) {
	assert.True(t, ReleasesQuota(OrderStatusCancelled))
	assert.True(t, ReleasesQuota(OrderStatusRejected))

	assert.False(t, ReleasesQuota(OrderStatusCompleted))
	assert.False(t, ReleasesQuota(OrderStatusClosed))
	assert.False(t, ReleasesQuota(OrderStatusDeleted))
	assert.False(t, ReleasesQuota(OrderStatusInWork))
}
