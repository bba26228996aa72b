package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/gilsonsouza/yast-storage-ng/internal/disksize"
	"github.com/gilsonsouza/yast-storage-ng/internal/naming"
	"github.com/gilsonsouza/yast-storage-ng/internal/planned"
)

// EnvPrefix is the prefix of environment variables overriding settings,
// e.g. YSNG_USELVM=true.
const EnvPrefix = "YSNG"

// ProposalSettings drives the storage proposal: which volumes to plan, how
// big they may get and which existing partitions may be deleted.
type ProposalSettings struct {
	UseLVM          bool `yaml:"useLVM" mapstructure:"useLVM"`
	UseSeparateHome bool `yaml:"useSeparateHome" mapstructure:"useSeparateHome"`

	HomeMin disksize.Size `yaml:"homeMin" mapstructure:"homeMin"`
	HomeMax disksize.Size `yaml:"homeMax" mapstructure:"homeMax"`

	// RootBase and RootMax bound the root volume before the snapshot
	// increase is applied.
	RootBase disksize.Size `yaml:"rootBase" mapstructure:"rootBase"`
	RootMax  disksize.Size `yaml:"rootMax" mapstructure:"rootMax"`
	// RootSpacePercent is the weight of root when sharing space with home.
	RootSpacePercent int `yaml:"rootSpacePercent" mapstructure:"rootSpacePercent"`

	SwapMin disksize.Size `yaml:"swapMin" mapstructure:"swapMin"`
	SwapMax disksize.Size `yaml:"swapMax" mapstructure:"swapMax"`
	// EnlargeSwapForSuspend sizes swap after MemorySize so the system can
	// hibernate.
	EnlargeSwapForSuspend bool          `yaml:"enlargeSwapForSuspend" mapstructure:"enlargeSwapForSuspend"`
	MemorySize            disksize.Size `yaml:"memorySize" mapstructure:"memorySize"`

	UseSnapshots bool `yaml:"useSnapshots" mapstructure:"useSnapshots"`
	// RootSnapshotsPercent is how much root grows, in percent, when
	// snapshots are enabled on a btrfs root.
	RootSnapshotsPercent int `yaml:"rootSnapshotsPercent" mapstructure:"rootSnapshotsPercent"`

	RootFilesystem string `yaml:"rootFilesystem" mapstructure:"rootFilesystem"`
	HomeFilesystem string `yaml:"homeFilesystem" mapstructure:"homeFilesystem"`

	// EncryptionPassword encrypts every created partition when set.
	EncryptionPassword string `yaml:"encryptionPassword,omitempty" mapstructure:"encryptionPassword"`

	// CandidateDisks restricts the proposal to these disks. Empty means all.
	CandidateDisks []string `yaml:"candidateDisks,omitempty" mapstructure:"candidateDisks"`

	VolumeGroupName string                  `yaml:"volumeGroupName" mapstructure:"volumeGroupName"`
	MakeSpacePolicy planned.MakeSpacePolicy `yaml:"makeSpacePolicy" mapstructure:"makeSpacePolicy"`

	DeleteWindows bool `yaml:"deleteWindows" mapstructure:"deleteWindows"`
	DeleteLinux   bool `yaml:"deleteLinux" mapstructure:"deleteLinux"`
	DeleteOther   bool `yaml:"deleteOther" mapstructure:"deleteOther"`
}

// Default returns the settings of the classic proposal.
func Default() ProposalSettings {
	return ProposalSettings{
		UseLVM:                false,
		UseSeparateHome:       true,
		HomeMin:               10 * disksize.GiB,
		HomeMax:               disksize.Unlimited,
		RootBase:              3 * disksize.GiB,
		RootMax:               10 * disksize.GiB,
		RootSpacePercent:      40,
		SwapMin:               512 * disksize.MiB,
		SwapMax:               2 * disksize.GiB,
		EnlargeSwapForSuspend: false,
		MemorySize:            2 * disksize.GiB,
		UseSnapshots:          true,
		RootSnapshotsPercent:  300,
		RootFilesystem:        "btrfs",
		HomeFilesystem:        "xfs",
		VolumeGroupName:       naming.DefaultVGName,
		MakeSpacePolicy:       planned.Needed,
		DeleteWindows:         false,
		DeleteLinux:           true,
		DeleteOther:           true,
	}
}

// Normalize sanitizes user input to consistent formats.
// This is called automatically by Load before validation.
func (s *ProposalSettings) Normalize() {
	s.RootFilesystem = strings.ToLower(strings.TrimSpace(s.RootFilesystem))
	s.HomeFilesystem = strings.ToLower(strings.TrimSpace(s.HomeFilesystem))
	s.MakeSpacePolicy = planned.MakeSpacePolicy(strings.ToLower(strings.TrimSpace(string(s.MakeSpacePolicy))))
	if s.VolumeGroupName == "" {
		s.VolumeGroupName = naming.DefaultVGName
	}
	for i, d := range s.CandidateDisks {
		s.CandidateDisks[i] = strings.TrimSpace(d)
	}
}

// Validate checks the settings for errors. Every violated field is
// reported.
func (s *ProposalSettings) Validate() error {
	var errs []error

	if s.RootBase.IsZero() {
		errs = append(errs, fmt.Errorf("rootBase must be > 0"))
	}
	if s.RootMax.Less(s.RootBase) {
		errs = append(errs, fmt.Errorf("rootMax (%s) must be >= rootBase (%s)", s.RootMax, s.RootBase))
	}
	if s.RootSpacePercent < 0 || s.RootSpacePercent > 100 {
		errs = append(errs, fmt.Errorf("rootSpacePercent must be between 0 and 100, got %d", s.RootSpacePercent))
	}
	if s.RootSnapshotsPercent < 0 {
		errs = append(errs, fmt.Errorf("rootSnapshotsPercent must be >= 0, got %d", s.RootSnapshotsPercent))
	}
	if s.SwapMin.IsZero() {
		errs = append(errs, fmt.Errorf("swapMin must be > 0"))
	}
	if s.SwapMax.Less(s.SwapMin) {
		errs = append(errs, fmt.Errorf("swapMax (%s) must be >= swapMin (%s)", s.SwapMax, s.SwapMin))
	}
	if s.EnlargeSwapForSuspend && s.MemorySize.IsZero() {
		errs = append(errs, fmt.Errorf("memorySize is required when enlargeSwapForSuspend is set"))
	}
	if s.UseSeparateHome {
		if s.HomeMin.IsZero() {
			errs = append(errs, fmt.Errorf("homeMin must be > 0"))
		}
		if s.HomeMax.Less(s.HomeMin) {
			errs = append(errs, fmt.Errorf("homeMax (%s) must be >= homeMin (%s)", s.HomeMax, s.HomeMin))
		}
		if s.HomeFilesystem == "" {
			errs = append(errs, fmt.Errorf("homeFilesystem is required"))
		}
	}
	if s.RootFilesystem == "" {
		errs = append(errs, fmt.Errorf("rootFilesystem is required"))
	}
	if strings.ContainsAny(s.VolumeGroupName, "/ ") {
		errs = append(errs, fmt.Errorf("volumeGroupName %q must not contain '/' or spaces", s.VolumeGroupName))
	}
	if _, err := planned.ParseMakeSpacePolicy(string(s.MakeSpacePolicy)); err != nil {
		errs = append(errs, fmt.Errorf("makeSpacePolicy: %w", err))
	}
	seen := make(map[string]bool)
	for i, d := range s.CandidateDisks {
		if !strings.HasPrefix(d, "/dev/") {
			errs = append(errs, fmt.Errorf("candidateDisks[%d] must be a device path, got %q", i, d))
		}
		if seen[d] {
			errs = append(errs, fmt.Errorf("candidateDisks[%d]: duplicate disk %q", i, d))
		}
		seen[d] = true
	}

	return errors.Join(errs...)
}

// SnapshotsActive reports whether root gets the snapshot size increase.
func (s *ProposalSettings) SnapshotsActive() bool {
	return s.UseSnapshots && s.RootFilesystem == "btrfs"
}

// Load reads settings from a YAML file on top of the defaults. Every
// setting can be overridden by a YSNG_-prefixed environment variable. An
// empty path only applies defaults and environment.
func Load(path string) (*ProposalSettings, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := Default()
	for key, value := range defaultValues(defaults) {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read settings file: %w", err)
		}
	}

	settings := defaults
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&settings, hook); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}

	settings.Normalize()

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	return &settings, nil
}

// defaultValues flattens the defaults into viper keys so AutomaticEnv can
// resolve every one of them. Sizes are registered in their text form.
func defaultValues(s ProposalSettings) map[string]any {
	return map[string]any{
		"useLVM":                s.UseLVM,
		"useSeparateHome":       s.UseSeparateHome,
		"homeMin":               s.HomeMin.String(),
		"homeMax":               s.HomeMax.String(),
		"rootBase":              s.RootBase.String(),
		"rootMax":               s.RootMax.String(),
		"rootSpacePercent":      s.RootSpacePercent,
		"swapMin":               s.SwapMin.String(),
		"swapMax":               s.SwapMax.String(),
		"enlargeSwapForSuspend": s.EnlargeSwapForSuspend,
		"memorySize":            s.MemorySize.String(),
		"useSnapshots":          s.UseSnapshots,
		"rootSnapshotsPercent":  s.RootSnapshotsPercent,
		"rootFilesystem":        s.RootFilesystem,
		"homeFilesystem":        s.HomeFilesystem,
		"encryptionPassword":    s.EncryptionPassword,
		"candidateDisks":        s.CandidateDisks,
		"volumeGroupName":       s.VolumeGroupName,
		"makeSpacePolicy":       string(s.MakeSpacePolicy),
		"deleteWindows":         s.DeleteWindows,
		"deleteLinux":           s.DeleteLinux,
		"deleteOther":           s.DeleteOther,
	}
}
