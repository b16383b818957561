package shell

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/fyrsmithlabs/codepad/internal/vfs"
)

const defaultBranch = "main"

var errNotRepository = errors.New("fatal: not a git repository (or any of the parent directories): .git")

// gitState is a session's in-memory repository. The worktree is a copy of
// the project files taken whenever status or add runs.
type gitState struct {
	repo    *git.Repository
	fs      billy.Filesystem
	written map[string]bool
}

func (i *Interpreter) git(ctx context.Context, c *call) (Result, error) {
	if len(c.args) == 0 {
		return Result{}, usage("git", "git <init|status|add|commit|log>")
	}
	sub := strings.ToLower(c.args[0])
	if sub == "init" {
		return gitInit(c)
	}
	if c.session.git == nil {
		return Result{}, errNotRepository
	}
	switch sub {
	case "status":
		return gitStatus(c)
	case "add":
		return gitAdd(c, c.args[1:])
	case "commit":
		return i.gitCommit(c, c.args[1:])
	case "log":
		return gitLog(c)
	default:
		return Result{}, fmt.Errorf("git: '%s' is not a git command. See 'git help'.", c.args[0])
	}
}

func gitInit(c *call) (Result, error) {
	if c.session.git != nil {
		return info("Reinitialized existing Git repository in /.git/")
	}
	fs := memfs.New()
	repo, err := git.InitWithOptions(memory.NewStorage(), fs, git.InitOptions{
		DefaultBranch: plumbing.NewBranchReferenceName(defaultBranch),
	})
	if err != nil {
		return Result{}, fmt.Errorf("git init: %w", err)
	}
	c.session.git = &gitState{repo: repo, fs: fs, written: make(map[string]bool)}
	return success("Initialized empty Git repository in /.git/")
}

// sync mirrors the project snapshot into the worktree.
func (g *gitState) sync(p *vfs.Project) error {
	if p == nil {
		return ErrNoProject
	}
	for fp, f := range p.Files {
		if err := util.WriteFile(g.fs, fp, []byte(f.Content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", fp, err)
		}
	}
	for fp := range g.written {
		if _, ok := p.Files[fp]; ok {
			continue
		}
		if err := g.fs.Remove(fp); err != nil {
			return fmt.Errorf("removing %s: %w", fp, err)
		}
		delete(g.written, fp)
	}
	for fp := range p.Files {
		g.written[fp] = true
	}
	return nil
}

func (g *gitState) status(p *vfs.Project) (git.Status, error) {
	if err := g.sync(p); err != nil {
		return nil, err
	}
	wt, err := g.repo.Worktree()
	if err != nil {
		return nil, err
	}
	return wt.Status()
}

func (g *gitState) hasCommits() bool {
	_, err := g.repo.Head()
	return err == nil
}

func gitStatus(c *call) (Result, error) {
	g := c.session.git
	st, err := g.status(c.shell.Project)
	if err != nil {
		return Result{}, fmt.Errorf("git status: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "On branch %s\n", defaultBranch)
	if !g.hasCommits() {
		b.WriteString("\nNo commits yet\n")
	}
	if st.IsClean() {
		b.WriteString("\nnothing to commit, working tree clean")
		return normal(b.String())
	}
	b.WriteString("\n")
	paths := make([]string, 0, len(st))
	for fp := range st {
		paths = append(paths, fp)
	}
	sort.Strings(paths)
	lines := make([]string, 0, len(paths))
	for _, fp := range paths {
		fs := st[fp]
		lines = append(lines, fmt.Sprintf("%c%c %s", fs.Staging, fs.Worktree, fp))
	}
	b.WriteString(strings.Join(lines, "\n"))
	return normal(b.String())
}

func gitAdd(c *call, args []string) (Result, error) {
	if len(args) == 0 {
		return Result{}, usage("git", "git add <path>|.")
	}
	g := c.session.git
	st, err := g.status(c.shell.Project)
	if err != nil {
		return Result{}, fmt.Errorf("git add: %w", err)
	}
	wt, err := g.repo.Worktree()
	if err != nil {
		return Result{}, fmt.Errorf("git add: %w", err)
	}

	staged := 0
	for _, arg := range args {
		var prefix string
		switch arg {
		case "-A", "--all":
		case ".":
			prefix = dirPrefix(c.session.CurrentDirectory)
		default:
			if prefix, err = c.vfsPath(arg); err != nil {
				return Result{}, fmt.Errorf("fatal: pathspec '%s' did not match any files", arg)
			}
		}

		matched := false
		for fp, fs := range st {
			if prefix != "" && fp != prefix && !strings.HasPrefix(fp, prefix+"/") {
				continue
			}
			matched = true
			if fs.Worktree == git.Unmodified {
				continue
			}
			if _, err := wt.Add(fp); err != nil {
				return Result{}, fmt.Errorf("git add %s: %w", fp, err)
			}
			staged++
		}
		if !matched && prefix != "" && !g.written[prefix] && !hasPrefixed(g.written, prefix) {
			return Result{}, fmt.Errorf("fatal: pathspec '%s' did not match any files", arg)
		}
	}
	return normal(fmt.Sprintf("Staged %d file(s)", staged))
}

func hasPrefixed(set map[string]bool, dir string) bool {
	for fp := range set {
		if strings.HasPrefix(fp, dir+"/") {
			return true
		}
	}
	return false
}

// commitMessage re-joins every token after -m and strips one pair of
// surrounding quotes.
func commitMessage(args []string) (string, bool) {
	for n, a := range args {
		if a != "-m" {
			continue
		}
		msg := strings.Join(args[n+1:], " ")
		if len(msg) >= 2 {
			if q := msg[0]; (q == '"' || q == '\'') && msg[len(msg)-1] == q {
				msg = msg[1 : len(msg)-1]
			}
		}
		return msg, msg != ""
	}
	return "", false
}

func (i *Interpreter) gitCommit(c *call, args []string) (Result, error) {
	msg, ok := commitMessage(args)
	if !ok {
		return Result{}, usage("git commit", `git commit -m "<message>"`)
	}
	g := c.session.git
	wt, err := g.repo.Worktree()
	if err != nil {
		return Result{}, fmt.Errorf("git commit: %w", err)
	}
	st, err := wt.Status()
	if err != nil {
		return Result{}, fmt.Errorf("git commit: %w", err)
	}
	changed := 0
	for _, fs := range st {
		if fs.Staging != git.Unmodified && fs.Staging != git.Untracked {
			changed++
		}
	}
	if changed == 0 {
		return info("nothing to commit (use \"git add\" to stage changes)")
	}

	user := c.session.Environment["USER"]
	hash, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: user, Email: user + "@codepad.local", When: i.now()},
	})
	if err != nil {
		return Result{}, fmt.Errorf("git commit: %w", err)
	}
	return success(fmt.Sprintf("[%s %s] %s\n %d file(s) changed", defaultBranch, hash.String()[:7], msg, changed))
}

func gitLog(c *call) (Result, error) {
	g := c.session.git
	if !g.hasCommits() {
		return Result{}, fmt.Errorf("fatal: your current branch '%s' does not have any commits yet", defaultBranch)
	}
	iter, err := g.repo.Log(&git.LogOptions{})
	if err != nil {
		return Result{}, fmt.Errorf("git log: %w", err)
	}
	defer iter.Close()

	var blocks []string
	err = iter.ForEach(func(cm *object.Commit) error {
		blocks = append(blocks, fmt.Sprintf("commit %s\nAuthor: %s <%s>\nDate:   %s\n\n    %s",
			cm.Hash, cm.Author.Name, cm.Author.Email,
			cm.Author.When.Format("Mon Jan 2 15:04:05 2006 -0700"),
			strings.TrimSpace(cm.Message)))
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("git log: %w", err)
	}
	return normal(strings.Join(blocks, "\n\n"))
}
