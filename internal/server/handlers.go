package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spigell/autocv/internal/compiler"
	"github.com/spigell/autocv/internal/jobposting"
	"github.com/spigell/autocv/internal/logger"
	"github.com/spigell/autocv/internal/settings"
)

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) getSettings(c *fiber.Ctx) error {
	return c.JSON(s.settings.Snapshot().Redacted())
}

func (s *Server) updateSettings(c *fiber.Ctx) error {
	var patch map[string]any
	if err := c.BodyParser(&patch); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid settings payload")
	}

	updated, err := s.settings.Update(patch)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return c.JSON(updated.Redacted())
}

func (s *Server) providers(c *fiber.Ctx) error {
	return c.JSON(settings.Providers())
}

func (s *Server) latexStatus(c *fiber.Ctx) error {
	return c.JSON(s.compiler.CheckToolchain(c.UserContext()))
}

func (s *Server) generate(c *fiber.Ctx) error {
	jobURL := strings.TrimSpace(c.FormValue("job_url"))
	jobText := strings.TrimSpace(c.FormValue("job_text"))
	if jobURL == "" && jobText == "" {
		return fiber.NewError(fiber.StatusBadRequest, "job url or text must be provided")
	}

	profileFile, _ := c.FormFile("profile_file")
	profileText := c.FormValue("profile_text")
	if profileFile == nil && strings.TrimSpace(profileText) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "profile file or text must be provided")
	}

	ctx := c.UserContext()
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	log := s.logger.With(zap.String(logger.FieldRequestID, requestID(c)))

	job := jobposting.FromText(jobText)
	if jobURL != "" {
		fetched, err := s.jobs.Fetch(ctx, jobURL)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, fmt.Sprintf("failed to process job information: %v", err))
		}
		job = fetched
	}

	if profileFile != nil {
		f, err := profileFile.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, fmt.Sprintf("failed to process profile: %v", err))
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, fmt.Sprintf("failed to process profile: %v", err))
		}
		if !utf8.Valid(data) {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to process profile: file is not valid UTF-8 text")
		}
		profileText = string(data)
	}

	log.Info("generating cv", zap.String("job_title", job.Title), zap.Bool("from_url", jobURL != ""))

	source, err := s.generator.Generate(ctx, profileText, job)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, fmt.Sprintf("failed to generate cv: %v", err))
	}

	pdf, err := s.compiler.Compile(ctx, source)
	if err != nil {
		var compErr *compiler.CompilationError
		if errors.As(err, &compErr) {
			log.Error("cv compilation failed", zap.Int("exit_code", compErr.ExitCode), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"detail": fmt.Sprintf("failed to generate cv: %v", err),
				"log":    compErr.Log,
			})
		}
		return fiber.NewError(fiber.StatusInternalServerError, fmt.Sprintf("failed to generate cv: %v", err))
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="cv.pdf"`)
	return c.Send(pdf)
}
