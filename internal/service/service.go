package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	apperrors "EWI/internal/errors"
)

// Status is the observed state of an OS service.
type Status int

const (
	StatusUnknown Status = iota
	StatusRunning
	StatusStopped
	StatusNotInstalled
)

// String renders the status for logs.
func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusStopped:
		return "stopped"
	case StatusNotInstalled:
		return "not installed"
	default:
		return "unknown"
	}
}

// StartType controls whether the service starts with Windows.
type StartType string

const (
	StartAutomatic StartType = "automatic"
	StartManual    StartType = "manual"
	StartDisabled  StartType = "disabled"
)

// Config describes a service registration.
type Config struct {
	Name             string
	DisplayName      string
	Description      string
	Executable       string
	Arguments        []string
	WorkingDirectory string
	UserName         string
	Password         string
	StartType        StartType
	EnvVars          map[string]string
}

// Manager controls OS services.
type Manager interface {
	Exists(name string) (bool, error)
	Install(cfg Config) error
	Uninstall(name string) error
	Start(name string) error
	Stop(name string) error
	Status(name string) (Status, error)
	SetStartType(name string, startType StartType) error
}

// WaitForStatus polls m every interval until the service reaches want. It
// fails with a timeout error once timeout elapses.
func WaitForStatus(ctx context.Context, m Manager, name string, want Status, interval, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var last Status
	operation := func() error {
		status, err := m.Status(name)
		if err != nil {
			return backoff.Permanent(err)
		}
		last = status
		if status != want {
			return errors.Errorf("service %s is %s", name, status)
		}
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(backoff.NewConstantBackOff(interval), waitCtx))
	if err == nil {
		return nil
	}

	if ctx.Err() != nil {
		return apperrors.CancelledError(apperrors.CodeRunCancelled, "stopped waiting for service "+name, ctx.Err()).
			WithModule("service").
			WithOperation("service.WaitForStatus")
	}

	if waitCtx.Err() != nil {
		return apperrors.TimeoutError(apperrors.CodeServiceWait, "service "+name+" did not become "+want.String()+" within "+timeout.String(), err).
			WithModule("service").
			WithOperation("service.WaitForStatus").
			WithFields(apperrors.Metadata{
				"service": name,
				"wanted":  want.String(),
				"last":    last.String(),
				"timeout": timeout.String(),
			})
	}

	return apperrors.ServiceError(apperrors.CodeServiceControl, "failed to query service "+name, err).
		WithModule("service").
		WithOperation("service.WaitForStatus")
}
