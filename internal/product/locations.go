package product

import (
	"path/filepath"
	"regexp"

	"github.com/hashicorp/go-version"

	"EWI/internal/argument"
	"EWI/internal/workflow"
)

// Graph property names owned by the locations step.
const (
	PropInstallDir   = "InstallDir"
	PropSamePath     = "PlaceWritableLocationsInSamePath"
	PropWritableDirs = "WritableLocations"
)

// LocationsStep holds where the product and its writable data go.
type LocationsStep struct {
	*workflow.StepBase

	desc    Descriptor
	session Session

	InstallDir      string
	ConfigDirectory string
	LogsDirectory   string
	DataDirectory   string
	SamePath        bool
}

// NewLocationsStep creates the step with defaults derived from session.
func NewLocationsStep(desc Descriptor, session Session) *LocationsStep {
	s := &LocationsStep{StepBase: workflow.NewStepBase("Locations"), desc: desc, session: session}
	s.OnRefresh(s.defaults)
	s.defaults()

	if prev, ok := session.Previous(); ok && olderThan(prev.Version, session.Version) {
		s.SetRelevant(false)
	}

	rules := workflow.Rules{
		{Field: "InstallDir", Check: absolute(func() string { return s.InstallDir }, "Install directory")},
		{Field: "ConfigDirectory", Check: absolute(func() string { return s.ConfigDirectory }, "Config directory")},
		{Field: "LogsDirectory", Check: absolute(func() string { return s.LogsDirectory }, "Logs directory")},
		{Field: "ConfigDirectory", Check: func() string {
			if s.ConfigDirectory != "" && filepath.Clean(s.ConfigDirectory) == filepath.Clean(s.InstallDir) {
				return "Config directory must differ from the install directory"
			}
			return ""
		}},
		{Field: "ExistingVersion", Check: s.checkExistingVersion},
	}
	if desc.HasDataDirectory {
		rules = append(rules, workflow.Rule{Field: "DataDirectory", Check: absolute(func() string { return s.DataDirectory }, "Data directory")})
	}
	s.SetValidator(rules)
	return s
}

func (s *LocationsStep) defaults() {
	snap := s.session.Snapshot
	programFiles := filepath.Join(snap.ProgramFiles, "Elastic", s.desc.Folder, s.session.Version)
	programData := filepath.Join(snap.ProgramData, "Elastic", s.desc.Folder)

	s.InstallDir = programFiles
	s.ConfigDirectory = filepath.Join(programData, "config")
	s.LogsDirectory = filepath.Join(programData, "logs")
	s.DataDirectory = ""
	if s.desc.HasDataDirectory {
		s.DataDirectory = filepath.Join(programData, "data")
	}
	s.SamePath = false

	if prev, ok := s.session.Previous(); ok {
		if prev.ConfigDir != "" {
			s.ConfigDirectory = prev.ConfigDir
		}
	}
	if home, ok := snap.HomeDirectory(s.desc.Variables); ok && s.session.Operation != Install {
		s.InstallDir = home
	}
	if conf, _, ok := snap.ConfigDirectory(s.desc.Variables); ok {
		s.ConfigDirectory = conf
	}
}

// ApplySamePath places the writable locations below the install directory
// when SamePath is set.
func (s *LocationsStep) ApplySamePath() {
	if !s.SamePath {
		return
	}
	s.ConfigDirectory = filepath.Join(s.InstallDir, "config")
	s.LogsDirectory = filepath.Join(s.InstallDir, "logs")
	if s.desc.HasDataDirectory {
		s.DataDirectory = filepath.Join(s.InstallDir, "data")
	}
}

// Register wires the step's derived properties into g.
func (s *LocationsStep) Register(g *workflow.Graph) error {
	return g.Derive(PropWritableDirs, s.ApplySamePath, PropInstallDir, PropSamePath)
}

// Layout returns the directories selected on this step.
func (s *LocationsStep) Layout() Layout {
	return Layout{
		InstallDir: s.InstallDir,
		ConfigDir:  s.ConfigDirectory,
		LogsDir:    s.LogsDirectory,
		DataDir:    s.DataDirectory,
		StagingDir: s.session.Snapshot.StagingDirectory(s.session.StagingRoot, s.desc.Name),
	}
}

func (s *LocationsStep) checkExistingVersion() string {
	for _, inst := range s.session.Installed {
		if olderThan(s.session.Version, inst.Version) {
			return "A newer version " + inst.Version + " of " + s.desc.DisplayName + " is already installed. Uninstall it and restart the installer"
		}
	}
	return ""
}

// StepType satisfies argument.Provider.
func (s *LocationsStep) StepType() string { return "LocationsStep" }

// Arguments satisfies argument.Provider.
func (s *LocationsStep) Arguments() []argument.Descriptor {
	args := []argument.Descriptor{
		argument.StringArg("InstallDir", func() string { return s.InstallDir }, func(v string) { s.InstallDir = v }),
		argument.StringArg("ConfigDirectory", func() string { return s.ConfigDirectory }, func(v string) { s.ConfigDirectory = v }),
		argument.StringArg("LogsDirectory", func() string { return s.LogsDirectory }, func(v string) { s.LogsDirectory = v }),
		argument.BoolArg("PlaceWritableLocationsInSamePath", func() bool { return s.SamePath }, func(v bool) { s.SamePath = v }).
			WithStaticDefault(false),
	}
	if s.desc.HasDataDirectory {
		args = append(args, argument.StringArg("DataDirectory", func() string { return s.DataDirectory }, func(v string) { s.DataDirectory = v }))
	}
	return args
}

var windowsAbs = regexp.MustCompile(`^([A-Za-z]:[\\/]|\\\\)`)

// IsAbsolute accepts Windows drive and UNC paths on every platform.
func IsAbsolute(p string) bool {
	return windowsAbs.MatchString(p) || filepath.IsAbs(p)
}

func absolute(get func() string, label string) func() string {
	return func() string {
		v := get()
		if v == "" {
			return label + " is required"
		}
		if !IsAbsolute(v) {
			return label + " must be an absolute path"
		}
		return ""
	}
}

func olderThan(a, b string) bool {
	va, err := version.NewVersion(a)
	if err != nil {
		return false
	}
	vb, err := version.NewVersion(b)
	if err != nil {
		return false
	}
	return va.LessThan(vb)
}
