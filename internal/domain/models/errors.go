package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies provider failures for retry decisions.
type ErrorKind string

const (
	// ErrTransient covers rate limits, timeouts and network failures; retry-eligible.
	ErrTransient ErrorKind = "transient"
	// ErrPermanent covers unknown symbols and bad credentials; never retried.
	ErrPermanent ErrorKind = "permanent"
)

// ProviderError is a classified failure from an upstream data provider.
type ProviderError struct {
	Provider string
	Ticker   string
	Kind     ErrorKind
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s %s: %s: %v", e.Provider, e.Ticker, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s %s: %s", e.Provider, e.Ticker, e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Retryable reports whether the failure may succeed on a later attempt.
func (e *ProviderError) Retryable() bool { return e.Kind == ErrTransient }

// NewTransientError creates a retry-eligible provider error.
func NewTransientError(provider, ticker, message string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Ticker: ticker, Kind: ErrTransient, Message: message, Err: err}
}

// NewPermanentError creates a non-retryable provider error.
func NewPermanentError(provider, ticker, message string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Ticker: ticker, Kind: ErrPermanent, Message: message, Err: err}
}

// IsTransient reports whether err is a transient provider error.
func IsTransient(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == ErrTransient
}

// StorageError is an I/O or integrity failure in the ticker store.
// Absence of data is never a StorageError; queries return empty series.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }
