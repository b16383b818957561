package http

import (
	"time"

	"github.com/fyrsmithlabs/codepad/internal/shell"
	"github.com/fyrsmithlabs/codepad/internal/vfs"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateProjectRequest is the request body for POST /api/v1/projects.
type CreateProjectRequest struct {
	Name     string `json:"name"`
	Template string `json:"template"`
}

// RenameProjectRequest is the request body for PATCH /api/v1/projects/:id.
type RenameProjectRequest struct {
	Name string `json:"name"`
}

// ProjectSummary is one entry of GET /api/v1/projects. File contents are
// left out; fetch the project for those.
type ProjectSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Template     string    `json:"template"`
	Files        int       `json:"files"`
	Dependencies []string  `json:"dependencies"`
	CreatedAt    time.Time `json:"created_at"`
	LastModified time.Time `json:"last_modified"`
}

func summarize(p *vfs.Project) ProjectSummary {
	return ProjectSummary{
		ID:           p.ID,
		Name:         p.Name,
		Template:     p.Template,
		Files:        len(p.Files),
		Dependencies: p.Dependencies,
		CreatedAt:    p.CreatedAt,
		LastModified: p.LastModified,
	}
}

// FileResponse is the response body for GET .../files/*.
type FileResponse struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// SaveFileRequest is the request body for PUT .../files/*.
type SaveFileRequest struct {
	Content string `json:"content"`
}

// InstallPackageRequest is the request body for POST .../packages.
type InstallPackageRequest struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// SessionResponse describes an open shell session.
type SessionResponse struct {
	ID               string `json:"id"`
	ProjectID        string `json:"project_id"`
	CurrentDirectory string `json:"cwd"`
}

// ExecRequest is the request body for POST /api/v1/sessions/:sid/exec.
type ExecRequest struct {
	Line string `json:"line"`
}

// ExecResponse is one interpreter result plus the session's directory
// after the command ran.
type ExecResponse struct {
	shell.Result
	CurrentDirectory string `json:"cwd"`
}
