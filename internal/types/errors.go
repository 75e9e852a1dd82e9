// internal/types/errors.go
package types

import (
	"errors"
)

// Ошибки тика. Каждая ошибка этапа оборачивается через %w вместе с контекстом.
var (
	// ErrConfig - отсутствующие или некорректные ключи/адреса, фатально при старте
	ErrConfig = errors.New("config error")

	// ErrQuoteUnavailable - площадка не вернула жизнеспособный маршрут
	ErrQuoteUnavailable = errors.New("quote unavailable")

	// ErrSwapBuildFailed - площадка не смогла собрать транзакцию свапа
	ErrSwapBuildFailed = errors.New("swap build failed")

	// ErrSubmissionFailed - сеть или узел отклонили отправку транзакции
	ErrSubmissionFailed = errors.New("submission failed")

	// ErrSwapNotConfirmed - транзакция свапа включена в блок, но исполнилась с ошибкой
	ErrSwapNotConfirmed = errors.New("swap not confirmed")

	// ErrBurnFailed - отклонена транзакция сжигания
	ErrBurnFailed = errors.New("burn failed")

	// ErrTransferFailed - отклонена транзакция перевода в sink
	ErrTransferFailed = errors.New("transfer failed")

	// ErrDisposalNotConfirmed - транзакция утилизации исполнилась с ошибкой
	ErrDisposalNotConfirmed = errors.New("disposal not confirmed")

	// ErrCycleInFlight - предыдущий тик ещё выполняется
	ErrCycleInFlight = errors.New("flywheel cycle already in flight")
)

var stages = []struct {
	err   error
	label string
}{
	{ErrConfig, "config"},
	{ErrQuoteUnavailable, "quote"},
	{ErrSwapBuildFailed, "swap_build"},
	{ErrSubmissionFailed, "submission"},
	{ErrSwapNotConfirmed, "swap_confirm"},
	{ErrBurnFailed, "burn"},
	{ErrTransferFailed, "transfer"},
	{ErrDisposalNotConfirmed, "disposal_confirm"},
	{ErrCycleInFlight, "in_flight"},
}

// Stage returns a short label for the failing step, used as a metrics label.
func Stage(err error) string {
	if err == nil {
		return "ok"
	}
	for _, s := range stages {
		if errors.Is(err, s.err) {
			return s.label
		}
	}
	return "other"
}

// IsDisposalError reports whether err happened after the swap had settled.
func IsDisposalError(err error) bool {
	return errors.Is(err, ErrBurnFailed) ||
		errors.Is(err, ErrTransferFailed) ||
		errors.Is(err, ErrDisposalNotConfirmed)
}
