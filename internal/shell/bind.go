package shell

import (
	"context"

	"github.com/fyrsmithlabs/codepad/internal/vfs"
)

// Projects is the part of *vfs.Service a shell session works against.
type Projects interface {
	GetProject(ctx context.Context, id string) (*vfs.Project, error)
	CreateFile(ctx context.Context, id, path string) error
	DeleteFile(ctx context.Context, id, path string) error
	InstallPackage(ctx context.Context, id, name, version string) error
}

// Bind snapshots project id and returns a Context whose callbacks write
// back to it. Take a fresh Context for every command line.
func Bind(ctx context.Context, projects Projects, id string) (*Context, error) {
	p, err := projects.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Context{
		Project: p,
		CreateFile: func(ctx context.Context, path string) error {
			return projects.CreateFile(ctx, id, path)
		},
		DeleteFile: func(ctx context.Context, path string) error {
			return projects.DeleteFile(ctx, id, path)
		},
		InstallPackage: func(ctx context.Context, name, version string) error {
			return projects.InstallPackage(ctx, id, name, version)
		},
	}, nil
}
