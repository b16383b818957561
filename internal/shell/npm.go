package shell

import (
	"context"
	"fmt"
	"strings"
)

// npm simulates the package manager. install records names on the session
// and, when the Context allows it, in the project manifest. Nothing is
// downloaded.
func (i *Interpreter) npm(ctx context.Context, c *call) (Result, error) {
	if len(c.args) == 0 {
		return Result{}, usage("npm", "npm <install|list|run> [args]")
	}
	sub, rest := strings.ToLower(c.args[0]), c.args[1:]
	switch sub {
	case "install", "i", "add":
		return i.npmInstall(ctx, c, withoutFlags(rest))
	case "list", "ls":
		return npmList(c)
	case "run", "run-script":
		return npmRun(c, rest)
	case "start":
		return npmRun(c, []string{"start"})
	default:
		return Result{}, fmt.Errorf("npm: unknown command '%s'", c.args[0])
	}
}

func (i *Interpreter) npmInstall(ctx context.Context, c *call, pkgs []string) (Result, error) {
	if len(pkgs) == 0 {
		deps := 0
		if c.shell.Project != nil {
			deps = len(c.shell.Project.Dependencies)
		}
		return success(fmt.Sprintf("up to date, audited %d packages", deps))
	}

	for _, spec := range pkgs {
		name, version := SplitPackageSpec(spec)
		if name == "" {
			return Result{}, usage("npm", "npm install <package>[@version]")
		}
		if c.shell.InstallPackage != nil {
			if err := c.shell.InstallPackage(ctx, name, version); err != nil {
				return Result{}, fmt.Errorf("npm install %s: %w", name, err)
			}
		}
		c.session.addPackage(name)
	}
	noun := "package"
	if len(pkgs) > 1 {
		noun = "packages"
	}
	return success(fmt.Sprintf("+ %s\nadded %d %s", strings.Join(pkgs, "\n+ "), len(pkgs), noun))
}

// SplitPackageSpec splits name@version, leaving a leading scope "@" in the
// name.
func SplitPackageSpec(spec string) (name, version string) {
	at := strings.LastIndex(spec, "@")
	if at <= 0 {
		return spec, ""
	}
	return spec[:at], spec[at+1:]
}

func npmList(c *call) (Result, error) {
	if len(c.session.InstalledPackages) == 0 {
		return info("(empty)")
	}
	lines := make([]string, len(c.session.InstalledPackages))
	for n, pkg := range c.session.InstalledPackages {
		branch := "├── "
		if n == len(c.session.InstalledPackages)-1 {
			branch = "└── "
		}
		lines[n] = branch + pkg
	}
	return normal(strings.Join(lines, "\n"))
}

func npmRun(c *call, args []string) (Result, error) {
	if len(args) == 0 {
		return Result{}, usage("npm", "npm run <script>")
	}
	script := args[0]
	name := "app"
	if c.shell.Project != nil {
		name = slug(c.shell.Project.Name)
	}
	if script == "start" {
		return success(fmt.Sprintf("> %s@1.0.0 start\n\nStarting development server...\nCompiled successfully!\nLocal: http://localhost:3000", name))
	}
	return info(fmt.Sprintf("> %s@1.0.0 %s\n\nRunning script '%s'...", name, script, script))
}
