package product

import (
	"EWI/internal/argument"
	"EWI/internal/logger"
	"EWI/internal/workflow"
)

// Prerequisite fields are failures no step edit can fix.
const (
	FieldExistingVersion = "ExistingVersion"
	FieldPhysicalMemory  = "PhysicalMemory"
)

// ConfigurationStep is the product-specific step placed between the
// service and plugins steps.
type ConfigurationStep interface {
	workflow.Step
	argument.Provider
	Register(g *workflow.Graph) error
}

// Model is a product's workflow with its argument catalog. It is rebuilt
// from arguments before any task sequence runs.
type Model struct {
	Desc    Descriptor
	Session Session

	Locations     *LocationsStep
	Service       *ServiceStep
	Configuration ConfigurationStep
	Plugins       *PluginsStep
	Closing       *workflow.ClosingStep

	workflow *workflow.Workflow
	catalog  *argument.Catalog
}

// ModelOption configures a Model.
type ModelOption func(*modelOptions)

type modelOptions struct {
	log           logger.Logger
	withAccount   bool
	prerequisites []string
}

// WithModelLogger sets the workflow logger.
func WithModelLogger(log logger.Logger) ModelOption {
	return func(o *modelOptions) {
		if log != nil {
			o.log = log
		}
	}
}

// WithServiceAccount enables the service account arguments.
func WithServiceAccount() ModelOption {
	return func(o *modelOptions) {
		o.withAccount = true
	}
}

// WithPrerequisiteFields adds product-specific prerequisite fields.
func WithPrerequisiteFields(fields ...string) ModelOption {
	return func(o *modelOptions) {
		o.prerequisites = append(o.prerequisites, fields...)
	}
}

// NewModel assembles the workflow Locations, Service, configuration,
// Plugins, Closing and builds its catalog. A duplicate argument name or a
// cyclic derivation is returned as an error.
func NewModel(desc Descriptor, session Session, configuration ConfigurationStep, options ...ModelOption) (*Model, error) {
	opts := modelOptions{log: logger.Discard(), prerequisites: []string{FieldExistingVersion}}
	for _, opt := range options {
		if opt != nil {
			opt(&opts)
		}
	}

	m := &Model{
		Desc:          desc,
		Session:       session,
		Locations:     NewLocationsStep(desc, session),
		Service:       NewServiceStep(opts.withAccount),
		Configuration: configuration,
		Plugins:       NewPluginsStep(desc, session),
		Closing:       workflow.NewClosingStep("Closing"),
	}

	g := workflow.NewGraph()
	for _, register := range []func(*workflow.Graph) error{
		m.Locations.Register,
		m.Service.Register,
		configuration.Register,
	} {
		if err := register(g); err != nil {
			return nil, err
		}
	}

	catalog, err := argument.Build(m.Locations, m.Service, configuration, m.Plugins)
	if err != nil {
		return nil, err
	}
	m.catalog = catalog.WithResolver(session.Snapshot)

	m.workflow = workflow.New(
		[]workflow.Step{m.Locations, m.Service, configuration, m.Plugins},
		workflow.WithClosing(m.Closing),
		workflow.WithGraph(g),
		workflow.WithPrerequisites(opts.prerequisites...),
		workflow.WithLogger(opts.log),
	)
	return m, nil
}

// Base returns m. Product installers embedding a Model expose it through
// this method.
func (m *Model) Base() *Model {
	return m
}

// Workflow returns the step controller.
func (m *Model) Workflow() *workflow.Workflow {
	return m.workflow
}

// Catalog returns the argument catalog.
func (m *Model) Catalog() *argument.Catalog {
	return m.catalog
}

// Apply assigns args to the steps, recomputes derived properties and
// revalidates. Unknown names are ignored.
func (m *Model) Apply(args map[string]string) error {
	if err := m.catalog.Deserialize(args); err != nil {
		return err
	}
	m.workflow.Graph().RecomputeAll()
	m.workflow.Validate()
	return nil
}

// Set assigns one argument and propagates it through the graph.
func (m *Model) Set(name, raw string) error {
	d, ok := m.catalog.Lookup(name)
	if !ok {
		return nil
	}
	if err := m.catalog.Deserialize(map[string]string{d.Name: raw}); err != nil {
		return err
	}
	m.workflow.Changed(d.Name)
	return nil
}

// Arguments serializes the current state for the packaging layer.
func (m *Model) Arguments() map[string]string {
	return m.catalog.Serialize()
}

// ValidationSummary satisfies task.Model.
func (m *Model) ValidationSummary() error {
	return m.workflow.ValidationSummary()
}

// Layout returns the selected directories.
func (m *Model) Layout() Layout {
	return m.Locations.Layout()
}
