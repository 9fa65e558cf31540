package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode описывает категорию ошибки.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest   ErrorCode = "BAD_REQUEST"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeResource     ErrorCode = "RESOURCE_EXHAUSTED"
	ErrCodeExternal     ErrorCode = "EXTERNAL_ERROR"
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeDatabase     ErrorCode = "DATABASE_ERROR"
)

// AppError - ошибка приложения со стабильным именем (Kind) и категорией (Code).
type AppError struct {
	Code       ErrorCode
	Kind       string
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	name := string(e.Code)
	if e.Kind != "" {
		name = e.Kind
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", name, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", name, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по Kind, чтобы копии с причиной совпадали с исходной ошибкой.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	if e == t {
		return true
	}
	return e.Kind != "" && e.Kind == t.Kind
}

// PublicCode возвращает код для клиента: имя ошибки, если оно есть.
func (e *AppError) PublicCode() string {
	if e.Kind != "" {
		return e.Kind
	}
	return string(e.Code)
}

// WithCause возвращает копию ошибки с причиной.
func (e *AppError) WithCause(err error) *AppError {
	cp := *e
	cp.Cause = err
	return &cp
}

// WithMessage возвращает копию ошибки с уточнённым сообщением.
func (e *AppError) WithMessage(format string, args ...any) *AppError {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Named создаёт именованную ошибку.
func Named(code ErrorCode, kind, message string) *AppError {
	return &AppError{
		Code:       code,
		Kind:       kind,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// Database оборачивает ошибку хранилища, пропуская уже типизированные ошибки.
func Database(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}
	return Wrap(err, ErrCodeDatabase, message)
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeResource:
		return http.StatusUnprocessableEntity
	case ErrCodeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf возвращает категорию ошибки или INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

func IsValidation(err error) bool {
	return CodeOf(err) == ErrCodeValidation
}

// Ошибки валидации.
var (
	ErrInvalidAmount       = Named(ErrCodeValidation, "InvalidAmount", "сумма должна быть больше нуля")
	ErrAmountOverflow      = Named(ErrCodeValidation, "AmountOverflow", "переполнение суммы")
	ErrInvalidMilestoneSum = Named(ErrCodeValidation, "InvalidMilestoneSum", "сумма этапов не совпадает с бюджетом")
	ErrEmptyMilestones     = Named(ErrCodeValidation, "EmptyMilestones", "проект должен содержать хотя бы один этап")
	ErrInvalidParties      = Named(ErrCodeValidation, "InvalidParties", "клиент и исполнитель должны быть разными и непустыми")
	ErrInvalidDeadline     = Named(ErrCodeValidation, "InvalidDeadline", "дедлайн должен быть в будущем")
	ErrInvalidMilestone    = Named(ErrCodeValidation, "InvalidMilestoneIndex", "этап не существует")
	ErrInvalidCurrency     = Named(ErrCodeValidation, "InvalidCurrency", "некорректная валюта")
	ErrInvalidAddress      = Named(ErrCodeValidation, "InvalidAddress", "адрес не может быть пустым")
	ErrInvalidOutcome      = Named(ErrCodeValidation, "InvalidOutcome", "недопустимый исход спора")
	ErrInvalidParams       = Named(ErrCodeValidation, "InvalidParams", "некорректные параметры платформы")
	ErrInvalidScore        = Named(ErrCodeValidation, "InvalidScore", "оценка должна быть от 1 до 5")
)

// Ошибки авторизации.
var (
	ErrUnauthorized           = Named(ErrCodeUnauthorized, "Unauthorized", "требуется авторизация")
	ErrInvalidCredentials     = Named(ErrCodeUnauthorized, "InvalidCredentials", "неверные учетные данные")
	ErrForbidden              = Named(ErrCodeForbidden, "Forbidden", "недостаточно прав")
	ErrNotOwner               = Named(ErrCodeForbidden, "NotOwner", "операция доступна только владельцу платформы")
	// Отказ межкомпонентного вызова. Kind не совпадает с ErrUnauthorized, иначе errors.Is их склеит.
	ErrNotAuthorizedCaller    = Named(ErrCodeForbidden, "UnauthorizedCaller", "вызывающий компонент не авторизован")
	ErrNotProjectClient       = Named(ErrCodeForbidden, "NotProjectClient", "пополнять эскроу может только клиент проекта")
	ErrNotClient              = Named(ErrCodeForbidden, "NotClient", "операция доступна только клиенту проекта")
	ErrNotFreelancer          = Named(ErrCodeForbidden, "NotFreelancer", "операция доступна только исполнителю проекта")
	ErrNotParticipant         = Named(ErrCodeForbidden, "NotParticipant", "пользователь не участвует в проекте")
	ErrNotArbitratorRole      = Named(ErrCodeForbidden, "NotArbitratorRole", "у пользователя нет роли арбитра")
	ErrAccountInactive        = Named(ErrCodeForbidden, "AccountInactive", "аккаунт неактивен")
	ErrNotPanelMember         = Named(ErrCodeForbidden, "NotPanelMember", "арбитр не входит в панель спора")
	ErrInsufficientReputation = Named(ErrCodeForbidden, "InsufficientReputation", "недостаточная репутация для регистрации арбитром")
)

// Ошибки состояния.
var (
	ErrCurrencyMismatch          = Named(ErrCodeConflict, "CurrencyMismatch", "валюта эскроу уже зафиксирована")
	ErrProjectNotActive          = Named(ErrCodeConflict, "ProjectNotActive", "проект не в статусе Active")
	ErrProjectNotDisputed        = Named(ErrCodeConflict, "ProjectNotDisputed", "проект не в статусе Disputed")
	ErrProjectTerminal           = Named(ErrCodeConflict, "ProjectTerminal", "проект уже завершён или отменён")
	ErrMilestoneAlreadyCompleted = Named(ErrCodeConflict, "MilestoneAlreadyCompleted", "этап уже отмечен выполненным")
	ErrMilestoneNotCompleted     = Named(ErrCodeConflict, "MilestoneNotCompleted", "этап ещё не выполнен")
	ErrAlreadyApproved           = Named(ErrCodeConflict, "AlreadyApproved", "этап уже одобрен")
	ErrMilestoneNotDisputable    = Named(ErrCodeConflict, "MilestoneNotDisputable", "по этому этапу нельзя открыть спор")
	ErrDisputeNotInEvidence      = Named(ErrCodeConflict, "DisputeNotInEvidence", "спор не в стадии сбора доказательств")
	ErrEvidencePeriodClosed      = Named(ErrCodeConflict, "EvidencePeriodClosed", "срок подачи доказательств истёк")
	ErrEvidencePeriodOpen        = Named(ErrCodeConflict, "EvidencePeriodOpen", "срок подачи доказательств ещё не истёк")
	ErrDisputeNotVoting          = Named(ErrCodeConflict, "DisputeNotVoting", "спор не в стадии голосования")
	ErrVotingClosed              = Named(ErrCodeConflict, "VotingClosed", "голосование завершено")
	ErrAlreadyVoted              = Named(ErrCodeConflict, "AlreadyVoted", "арбитр уже проголосовал")
	ErrVotingStillOpen           = Named(ErrCodeConflict, "VotingStillOpen", "голосование ещё идёт")
	ErrArbitratorAlreadyActive   = Named(ErrCodeConflict, "ArbitratorAlreadyActive", "арбитр уже зарегистрирован")
	ErrArbitratorNotActive       = Named(ErrCodeConflict, "ArbitratorNotActive", "арбитр не активен")
	ErrJobNotOpen                = Named(ErrCodeConflict, "JobNotOpen", "задание уже не принимает исполнителей")
	ErrFeedbackExists            = Named(ErrCodeConflict, "FeedbackExists", "отзыв по проекту уже оставлен")
	ErrEmailTaken                = Named(ErrCodeConflict, "EmailTaken", "email уже используется")
)

// Ошибки ресурсов.
var (
	ErrInsufficientEscrowBalance = Named(ErrCodeResource, "InsufficientEscrowBalance", "недостаточно средств в эскроу")
	ErrInsufficientArbitrators   = Named(ErrCodeResource, "InsufficientArbitrators", "недостаточно активных арбитров")
	ErrInsufficientFunds         = Named(ErrCodeResource, "InsufficientFunds", "недостаточно средств на кошельке")
	ErrRateLimited               = &AppError{
		Code:       ErrCodeResource,
		Kind:       "RateLimited",
		Message:    "слишком много запросов, попробуйте позже",
		HTTPStatus: http.StatusTooManyRequests,
	}
)

// Ошибки внешних зависимостей.
var (
	ErrTransferFailed = Named(ErrCodeExternal, "TransferFailed", "перевод средств не выполнен")
	ErrStorageFailed  = Named(ErrCodeExternal, "StorageFailed", "не удалось сохранить файл")
)

// Ошибки поиска.
var (
	ErrProjectNotFound    = Named(ErrCodeNotFound, "ProjectNotFound", "проект не найден")
	ErrDisputeNotFound    = Named(ErrCodeNotFound, "DisputeNotFound", "спор не найден")
	ErrArbitratorNotFound = Named(ErrCodeNotFound, "ArbitratorNotFound", "арбитр не найден")
	ErrJobNotFound        = Named(ErrCodeNotFound, "JobNotFound", "задание не найдено")
	ErrUserNotFound       = Named(ErrCodeNotFound, "UserNotFound", "пользователь не найден")
)
