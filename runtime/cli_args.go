package runtime

// CliArgs holds command-line arguments that affect an installation.
type CliArgs struct {
	SettingsFile string
	// Easyblock forces an easyblock instead of deriving it from the recipe.
	Easyblock       string
	SkipSteps       []string
	OnlySteps       []string
	Stop            string
	SanityCheckOnly bool
	ModuleOnly      bool
	DryRun          bool
	Verbose         bool
	// Parallel overrides the settings value when positive.
	Parallel int
	// Set holds key=value easyconfig overrides given with --set.
	Set []string
}

// NewCliArgs creates a new instance of CliArgs with default values.
func NewCliArgs() *CliArgs {
	return &CliArgs{}
}
