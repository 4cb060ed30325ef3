package sphinx

import (
	"git.home.luguber.info/inful/sphinxmk/internal/config"
)

// MakeCommand builds the make-mode invocation for an arbitrary target:
//
//	sphinx-build -M <target> <source_dir> <build_dir> <opts...>
//
// Target names are forwarded verbatim; sphinx-build itself decides whether a
// target is valid, so unknown names reach the binary unchanged.
func MakeCommand(cfg *config.Config, sphinxBuild, target string) Invocation {
	if sphinxBuild == "" {
		sphinxBuild = cfg.SphinxBuild
	}
	args := []string{"-M", target, cfg.SourceDir, cfg.BuildDir}
	args = append(args, cfg.SphinxOpts...)
	return Invocation{Binary: sphinxBuild, Args: args}
}

// ApidocCommand builds the API stub regeneration invocation:
//
//	sphinx-apidoc -o <output_dir> [-f] <module_dir> <excludes...>
func ApidocCommand(cfg *config.Config, sphinxApidoc string) Invocation {
	if sphinxApidoc == "" {
		sphinxApidoc = "sphinx-apidoc"
	}
	args := []string{"-o", cfg.Apidoc.OutputDir}
	if cfg.Apidoc.Force {
		args = append(args, "-f")
	}
	args = append(args, cfg.Apidoc.ModuleDir)
	args = append(args, cfg.Apidoc.Excludes...)
	return Invocation{Binary: sphinxApidoc, Args: args}
}
