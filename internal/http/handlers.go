package http

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codepad/internal/logging"
	"github.com/fyrsmithlabs/codepad/internal/shell"
)

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleListProjects(c echo.Context) error {
	projects, err := s.projects.GetAllProjects(c.Request().Context())
	if err != nil {
		return err
	}
	out := make([]ProjectSummary, 0, len(projects))
	for _, p := range projects {
		out = append(out, summarize(p))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleCreateProject(c echo.Context) error {
	var req CreateProjectRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	p, err := s.projects.CreateProject(c.Request().Context(), req.Name, req.Template)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (s *Server) handleGetProject(c echo.Context) error {
	p, err := s.projects.GetProject(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleRenameProject(c echo.Context) error {
	var req RenameProjectRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	ctx := c.Request().Context()
	id := c.Param("id")
	if err := s.projects.RenameProject(ctx, id, req.Name); err != nil {
		return err
	}
	p, err := s.projects.GetProject(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summarize(p))
}

func (s *Server) handleDeleteProject(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if err := s.projects.DeleteProject(ctx, id); err != nil {
		return err
	}
	if n := s.sessions.closeProject(id); n > 0 {
		s.logger.Debug(logging.WithProjectID(ctx, id), "closed sessions of deleted project", zap.Int("sessions", n))
	}
	return c.NoContent(http.StatusNoContent)
}

// filePath returns the wildcard part of a .../files/* route.
func filePath(c echo.Context) (string, error) {
	raw := c.Param("*")
	p, err := url.PathUnescape(raw)
	if err != nil {
		return "", badRequest("invalid file path")
	}
	if strings.Trim(p, "/") == "" {
		return "", badRequest("file path is required")
	}
	return p, nil
}

func (s *Server) handleReadFile(c echo.Context) error {
	fp, err := filePath(c)
	if err != nil {
		return err
	}
	content, err := s.projects.ReadFile(c.Request().Context(), c.Param("id"), fp)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, FileResponse{Path: strings.TrimPrefix(fp, "/"), Content: content})
}

func (s *Server) handleSaveFile(c echo.Context) error {
	fp, err := filePath(c)
	if err != nil {
		return err
	}
	var req SaveFileRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if err := s.projects.SaveFile(c.Request().Context(), c.Param("id"), fp, req.Content); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleDeleteFile(c echo.Context) error {
	fp, err := filePath(c)
	if err != nil {
		return err
	}
	if err := s.projects.DeleteFile(c.Request().Context(), c.Param("id"), fp); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleListPackages(c echo.Context) error {
	pkgs, err := s.projects.GetInstalledPackages(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pkgs)
}

func (s *Server) handleInstallPackage(c echo.Context) error {
	var req InstallPackageRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	ctx := c.Request().Context()
	id := c.Param("id")
	if err := s.projects.InstallPackage(ctx, id, req.Name, req.Version); err != nil {
		return err
	}
	pkgs, err := s.projects.GetInstalledPackages(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, pkgs)
}

func (s *Server) handlePreview(c echo.Context) error {
	p, err := s.projects.GetProject(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	doc, err := s.synthesizer.Synthesize(p)
	if err != nil {
		return err
	}
	return c.HTML(http.StatusOK, doc)
}

func (s *Server) handleOpenSession(c echo.Context) error {
	id := c.Param("id")
	if _, err := s.projects.GetProject(c.Request().Context(), id); err != nil {
		return err
	}
	sess := s.sessions.open(id)
	return c.JSON(http.StatusCreated, SessionResponse{
		ID:               sess.shell.ID,
		ProjectID:        id,
		CurrentDirectory: sess.shell.CurrentDirectory,
	})
}

func (s *Server) handleExec(c echo.Context) error {
	sess, err := s.sessions.get(c.Param("sid"))
	if err != nil {
		return err
	}
	var req ExecRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	ctx := c.Request().Context()
	sc, err := shell.Bind(ctx, s.projects, sess.projectID)
	if err != nil {
		return err
	}
	res := s.interp.Execute(ctx, sess.shell, req.Line, sc)
	return c.JSON(http.StatusOK, ExecResponse{Result: res, CurrentDirectory: sess.shell.CurrentDirectory})
}

func (s *Server) handleCloseSession(c echo.Context) error {
	if err := s.sessions.close(c.Param("sid")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
