package product

import (
	"strings"

	"EWI/internal/argument"
	"EWI/internal/workflow"
)

// Graph property names owned by the service step.
const (
	PropInstallAsService = "InstallAsService"
	PropServiceOptions   = "ServiceOptions"
)

// ServiceStep decides whether and how the product runs as a Windows service.
type ServiceStep struct {
	*workflow.StepBase

	withAccount bool

	InstallAsService       bool
	StartAfterInstall      bool
	StartWhenWindowsStarts bool
	UseLocalSystem         bool
	User                   string
	Password               string
}

// NewServiceStep creates the step. withAccount enables the service account
// arguments.
func NewServiceStep(withAccount bool) *ServiceStep {
	s := &ServiceStep{StepBase: workflow.NewStepBase("Service"), withAccount: withAccount}
	s.OnRefresh(s.defaults)
	s.defaults()

	s.SetValidator(workflow.Rules{
		{Field: "User", Check: func() string {
			if s.needsAccount() && strings.TrimSpace(s.User) == "" {
				return "A user is required when not running as Local System"
			}
			return ""
		}},
		{Field: "Password", Check: func() string {
			if s.needsAccount() && s.Password == "" {
				return "A password is required when not running as Local System"
			}
			return ""
		}},
	})
	return s
}

func (s *ServiceStep) defaults() {
	s.InstallAsService = true
	s.StartAfterInstall = true
	s.StartWhenWindowsStarts = true
	s.UseLocalSystem = true
	s.User = ""
	s.Password = ""
}

func (s *ServiceStep) needsAccount() bool {
	return s.withAccount && s.InstallAsService && !s.UseLocalSystem
}

// ApplyServiceOptions clears the start options of a product that is not
// installed as a service.
func (s *ServiceStep) ApplyServiceOptions() {
	if s.InstallAsService {
		return
	}
	s.StartAfterInstall = false
	s.StartWhenWindowsStarts = false
}

// Register wires the step's derived properties into g.
func (s *ServiceStep) Register(g *workflow.Graph) error {
	return g.Derive(PropServiceOptions, s.ApplyServiceOptions, PropInstallAsService)
}

// Account returns the service account, empty for Local System.
func (s *ServiceStep) Account() (user, password string) {
	if !s.needsAccount() {
		return "", ""
	}
	return s.User, s.Password
}

// StepType satisfies argument.Provider.
func (s *ServiceStep) StepType() string { return "ServiceStep" }

// Arguments satisfies argument.Provider.
func (s *ServiceStep) Arguments() []argument.Descriptor {
	args := []argument.Descriptor{
		argument.BoolArg("InstallAsService", func() bool { return s.InstallAsService }, func(v bool) { s.InstallAsService = v }),
		argument.BoolArg("StartAfterInstall", func() bool { return s.StartAfterInstall }, func(v bool) { s.StartAfterInstall = v }),
		argument.BoolArg("StartWhenWindowsStarts", func() bool { return s.StartWhenWindowsStarts }, func(v bool) { s.StartWhenWindowsStarts = v }),
	}
	if s.withAccount {
		args = append(args,
			argument.BoolArg("UseLocalSystem", func() bool { return s.UseLocalSystem }, func(v bool) { s.UseLocalSystem = v }),
			argument.StringArg("User", func() string { return s.User }, func(v string) { s.User = v }).
				WithStaticDefault(""),
			argument.StringArg("Password", func() string { return s.Password }, func(v string) { s.Password = v }).
				WithStaticDefault(""),
		)
	}
	return args
}
