package config

import (
	"sort"
)

// Category classifies an easyconfig parameter.
type Category int

const (
	// Builtin parameters are understood by the framework for every easyblock.
	Builtin Category = iota
	// Custom parameters are declared by one easyblock and optional.
	Custom
	// Mandatory parameters must be supplied unless they carry a default.
	Mandatory
)

func (c Category) String() string {
	switch c {
	case Builtin:
		return "BUILTIN"
	case Custom:
		return "CUSTOM"
	case Mandatory:
		return "MANDATORY"
	default:
		return "UNKNOWN"
	}
}

// Parameter declares one easyconfig key.
type Parameter struct {
	Name        string
	Default     interface{}
	Description string
	Category    Category
}

// Required reports whether the parameter has to be set explicitly.
func (p Parameter) Required() bool {
	return p.Category == Mandatory && p.Default == nil
}

// Builtin parameter names.
const (
	ParamName                = "name"
	ParamVersion             = "version"
	ParamVersionSuffix       = "versionsuffix"
	ParamHomepage            = "homepage"
	ParamDescription         = "description"
	ParamToolchain           = "toolchain"
	ParamEasyblock           = "easyblock"
	ParamModuleClass         = "moduleclass"
	ParamSources             = "sources"
	ParamSourceURLs          = "source_urls"
	ParamChecksums           = "checksums"
	ParamPatches             = "patches"
	ParamDependencies        = "dependencies"
	ParamBuildDependencies   = "builddependencies"
	ParamPreConfigOpts       = "preconfigopts"
	ParamConfigOpts          = "configopts"
	ParamPreBuildOpts        = "prebuildopts"
	ParamBuildOpts           = "buildopts"
	ParamPreTestOpts         = "pretestopts"
	ParamRunTest             = "runtest"
	ParamPreInstallOpts      = "preinstallopts"
	ParamInstallOpts         = "installopts"
	ParamParallel            = "parallel"
	ParamMaxParallel         = "maxparallel"
	ParamSkipSteps           = "skipsteps"
	ParamSanityCheckPaths    = "sanity_check_paths"
	ParamSanityCheckCommands = "sanity_check_commands"
	ParamEnhanceSanityCheck  = "enhance_sanity_check"
	ParamModExtraPaths       = "modextrapaths"
	ParamModExtraVars        = "modextravars"
	ParamModAliases          = "modaliases"
	ParamIgnoreTestFailure   = "ignore_test_failure"
	ParamCleanupBuildDir     = "cleanupbuilddir"
	ParamKeepPreviousInstall = "keeppreviousinstall"
	ParamStartDir            = "start_dir"
	ParamUnpackOptions       = "unpack_options"
	ParamModLoadMsg          = "modloadmsg"
	ParamAllowSystemDeps     = "allow_system_deps"
)

var builtinParameters = []Parameter{
	{ParamName, nil, "Name of the software", Mandatory},
	{ParamVersion, nil, "Version of the software", Mandatory},
	{ParamVersionSuffix, "", "Suffix appended to the module version", Builtin},
	{ParamHomepage, "", "Project homepage", Builtin},
	{ParamDescription, "", "Short description of the software", Builtin},
	{ParamToolchain, "system", "Toolchain label, informational only", Builtin},
	{ParamEasyblock, "", "Easyblock to use instead of the one derived from the software name", Builtin},
	{ParamModuleClass, "base", "Module class the generated module belongs to", Builtin},
	{ParamSources, []interface{}{}, "Source file names", Builtin},
	{ParamSourceURLs, []interface{}{}, "Base URLs sources are downloaded from", Builtin},
	{ParamChecksums, []interface{}{}, "Checksums for sources then patches, md5 or sha256", Builtin},
	{ParamPatches, []interface{}{}, "Patch files applied after extraction", Builtin},
	{ParamDependencies, []interface{}{}, "Runtime dependencies, loaded by the generated module", Builtin},
	{ParamBuildDependencies, []interface{}{}, "Build-only dependencies", Builtin},
	{ParamPreConfigOpts, "", "Prefix for the configure command", Builtin},
	{ParamConfigOpts, "", "Extra options passed to the configure command", Builtin},
	{ParamPreBuildOpts, "", "Prefix for the build command", Builtin},
	{ParamBuildOpts, "", "Extra options passed to the build command", Builtin},
	{ParamPreTestOpts, "", "Prefix for the test command", Builtin},
	{ParamRunTest, "", "Target or command used in the test step", Builtin},
	{ParamPreInstallOpts, "", "Prefix for the install command", Builtin},
	{ParamInstallOpts, "", "Extra options passed to the install command", Builtin},
	{ParamParallel, nil, "Build parallelism, defaults to the global setting", Builtin},
	{ParamMaxParallel, nil, "Upper bound on build parallelism", Builtin},
	{ParamSkipSteps, []interface{}{}, "Steps skipped for this software", Builtin},
	{ParamSanityCheckPaths, map[string]interface{}{}, "Files and dirs that must exist after install", Builtin},
	{ParamSanityCheckCommands, []interface{}{}, "Commands that must succeed after install", Builtin},
	{ParamEnhanceSanityCheck, false, "Extend, rather than replace, the easyblock sanity check", Builtin},
	{ParamModExtraPaths, map[string]interface{}{}, "Extra path variables for the module, relative to the install dir", Builtin},
	{ParamModExtraVars, map[string]interface{}{}, "Extra environment variables set by the module", Builtin},
	{ParamModAliases, map[string]interface{}{}, "Shell aliases defined by the module", Builtin},
	{ParamIgnoreTestFailure, false, "Continue when the test step fails", Builtin},
	{ParamCleanupBuildDir, true, "Remove the build directory after a successful install", Builtin},
	{ParamKeepPreviousInstall, false, "Keep an existing install directory instead of removing it", Builtin},
	{ParamStartDir, "", "Directory, relative to the build dir, in which to start building", Builtin},
	{ParamUnpackOptions, "", "Extra options for unpacking sources", Builtin},
	{ParamModLoadMsg, "", "Message printed when the module is loaded", Builtin},
	{ParamAllowSystemDeps, []interface{}{}, "Dependencies allowed to come from the system", Builtin},
}

// BuiltinParameters returns the declarations understood for every easyblock.
func BuiltinParameters() []Parameter {
	out := make([]Parameter, len(builtinParameters))
	copy(out, builtinParameters)
	return out
}

func builtinIndex() map[string]Parameter {
	idx := make(map[string]Parameter, len(builtinParameters))
	for _, p := range builtinParameters {
		idx[p.Name] = p
	}
	return idx
}

func sortParameters(params []Parameter) {
	sort.SliceStable(params, func(i, j int) bool {
		if params[i].Category != params[j].Category {
			return params[i].Category < params[j].Category
		}
		return params[i].Name < params[j].Name
	})
}
