package models

// Статусы заказа
const (
	OrderStatusSearchingExecutor    = "searching_executor"
	OrderStatusSelectingExecutor    = "selecting_executor"
	OrderStatusExecutorSelected     = "executor_selected"
	OrderStatusInWork               = "in_work"
	OrderStatusAwaitingConfirmation = "awaiting_confirmation"
	OrderStatusCompleted            = "completed"
	OrderStatusCancelled            = "cancelled"
	OrderStatusRejected             = "rejected"
	OrderStatusClosed               = "closed"
	OrderStatusDeleted              = "deleted"
	OrderStatusMediatorStep1        = "mediator_step_1"
	OrderStatusMediatorStep2        = "mediator_step_2"
	OrderStatusMediatorStep3        = "mediator_step_3"
	OrderStatusMediatorArchived     = "mediator_archived"
)

// События жизненного цикла заказа
const (
	EventFirstResponse   = "first_response"
	EventSelectExecutor  = "select_executor"
	EventStartWork       = "start_work"
	EventFinishWork      = "finish_work"
	EventComplete        = "complete"
	EventCustomerCancel  = "customer_cancel"
	EventReject          = "reject"
	EventClose           = "close"
	EventDelete          = "delete"
	EventAssignMediator  = "assign_mediator"
	EventMediatorAdvance = "mediator_advance"
	EventMediatorArchive = "mediator_archive"
)

// Роли участников
const (
	RoleCustomer = "customer"
	RoleExecutor = "executor"
	RoleMediator = "mediator"
	RoleAdmin    = "admin"
	RoleSystem   = "system"
)

// ValidOrderStatuses список валидных статусов заказов
var ValidOrderStatuses = map[string]struct{}{
	OrderStatusSearchingExecutor:    {},
	OrderStatusSelectingExecutor:    {},
	OrderStatusExecutorSelected:     {},
	OrderStatusInWork:               {},
	OrderStatusAwaitingConfirmation: {},
	OrderStatusCompleted:            {},
	OrderStatusCancelled:            {},
	OrderStatusRejected:             {},
	OrderStatusClosed:               {},
	OrderStatusDeleted:              {},
	OrderStatusMediatorStep1:        {},
	OrderStatusMediatorStep2:        {},
	OrderStatusMediatorStep3:        {},
	OrderStatusMediatorArchived:     {},
}

// transitions задаёт граф переходов: (текущий статус, событие) -> новый статус.
// Все проверки легальности переходов идут через эту таблицу, разрозненных
// if-проверок по обработчикам быть не должно.
var transitions = map[string]map[string]string{
	OrderStatusSearchingExecutor: {
		EventFirstResponse:  OrderStatusSelectingExecutor,
		EventCustomerCancel: OrderStatusCancelled,
		EventReject:         OrderStatusRejected,
		EventClose:          OrderStatusClosed,
		EventDelete:         OrderStatusDeleted,
		EventAssignMediator: OrderStatusMediatorStep1,
	},
	OrderStatusSelectingExecutor: {
		EventSelectExecutor: OrderStatusExecutorSelected,
		EventReject:         OrderStatusRejected,
		EventClose:          OrderStatusClosed,
		EventDelete:         OrderStatusDeleted,
		EventAssignMediator: OrderStatusMediatorStep1,
	},
	OrderStatusExecutorSelected: {
		EventStartWork: OrderStatusInWork,
		EventReject:    OrderStatusRejected,
		EventClose:     OrderStatusClosed,
		EventDelete:    OrderStatusDeleted,
	},
	OrderStatusInWork: {
		EventFinishWork: OrderStatusAwaitingConfirmation,
		EventReject:     OrderStatusRejected,
		EventClose:      OrderStatusClosed,
		EventDelete:     OrderStatusDeleted,
	},
	OrderStatusAwaitingConfirmation: {
		EventComplete: OrderStatusCompleted,
		EventReject:   OrderStatusRejected,
		EventClose:    OrderStatusClosed,
		EventDelete:   OrderStatusDeleted,
	},
	OrderStatusMediatorStep1: {
		EventMediatorAdvance: OrderStatusMediatorStep2,
		EventClose:           OrderStatusClosed,
		EventDelete:          OrderStatusDeleted,
	},
	OrderStatusMediatorStep2: {
		EventMediatorAdvance: OrderStatusMediatorStep3,
		EventClose:           OrderStatusClosed,
		EventDelete:          OrderStatusDeleted,
	},
	OrderStatusMediatorStep3: {
		EventMediatorArchive: OrderStatusMediatorArchived,
		EventClose:           OrderStatusClosed,
		EventDelete:          OrderStatusDeleted,
	},
	// Терминальные статусы: выходов нет.
	OrderStatusCompleted:        {},
	OrderStatusCancelled:        {},
	OrderStatusRejected:         {},
	OrderStatusClosed:           {},
	OrderStatusDeleted:          {},
	OrderStatusMediatorArchived: {},
}

// eventRoles задаёт, какие роли вправе инициировать событие. Проверка
// принадлежности (владелец заказа, назначенный исполнитель) выполняется
// отдельно на уровне сервиса.
var eventRoles = map[string]map[string]struct{}{
	// Переход первого отклика выполняет сам сервис откликов после квотной
	// проверки, напрямую событие недоступно никому.
	EventFirstResponse:   roleSet(RoleSystem),
	EventSelectExecutor:  roleSet(RoleCustomer, RoleAdmin),
	EventStartWork:       roleSet(RoleExecutor, RoleAdmin),
	EventFinishWork:      roleSet(RoleExecutor, RoleAdmin),
	EventComplete:        roleSet(RoleSystem),
	EventCustomerCancel:  roleSet(RoleCustomer, RoleAdmin),
	EventReject:          roleSet(RoleCustomer, RoleAdmin),
	EventClose:           roleSet(RoleCustomer, RoleAdmin),
	EventDelete:          roleSet(RoleAdmin),
	EventAssignMediator:  roleSet(RoleCustomer, RoleAdmin),
	EventMediatorAdvance: roleSet(RoleMediator, RoleAdmin),
	EventMediatorArchive: roleSet(RoleMediator, RoleAdmin),
}

// eventTargets содержит все статусы, достижимые событием, для проверки
// идемпотентности повторной доставки.
var eventTargets = map[string]map[string]struct{}{}

func init() {
	for _, edges := range transitions {
		for event, target := range edges {
			if eventTargets[event] == nil {
				eventTargets[event] = map[string]struct{}{}
			}
			eventTargets[event][target] = struct{}{}
		}
	}
}

func roleSet(roles ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// IsValidOrderStatus сообщает, входит ли статус в перечисление.
func IsValidOrderStatus(status string) bool {
	_, ok := ValidOrderStatuses[status]
	return ok
}

// IsKnownEvent сообщает, известно ли событие таблице переходов.
func IsKnownEvent(event string) bool {
	_, ok := eventRoles[event]
	return ok
}

// NextStatus возвращает целевой статус для пары (статус, событие).
func NextStatus(current, event string) (string, bool) {
	edges, ok := transitions[current]
	if !ok {
		return "", false
	}
	target, ok := edges[event]
	return target, ok
}

// EventAllowedFor проверяет, вправе ли роль инициировать событие.
func EventAllowedFor(event, role string) bool {
	roles, ok := eventRoles[event]
	if !ok {
		return false
	}
	_, ok = roles[role]
	return ok
}

// IsEventTarget сообщает, является ли статус целью события из какого-либо
// состояния. Используется для обработки повторной доставки: если заказ уже
// в целевом статусе, событие считается применённым.
func IsEventTarget(status, event string) bool {
	targets, ok := eventTargets[event]
	if !ok {
		return false
	}
	_, ok = targets[status]
	return ok
}

// IsTerminalStatus сообщает, терминален ли статус.
func IsTerminalStatus(status string) bool {
	edges, ok := transitions[status]
	return ok && len(edges) == 0
}

// ReleasesQuota сообщает, освобождает ли переход в статус квотную атрибуцию
// откликов по заказу.
func ReleasesQuota(status string) bool {
	return status == OrderStatusCancelled || status == OrderStatusRejected
}
