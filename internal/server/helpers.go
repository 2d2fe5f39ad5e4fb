package server

import (
	"errors"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"lumen/internal/media"
	"lumen/internal/models"
	"lumen/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper.  Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const maxPaginationLimit = 100

// parsePagination extracts limit and offset query parameters with the given default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return Pagination{Limit: limit, Offset: offset}
}

// parseID extracts a route parameter that must hold a record id (a UUID).
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func (s *Server) parseID(c *fiber.Ctx, param string) (string, error) {
	id := strings.TrimSpace(c.Params(param))
	if uuid.Validate(id) != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return "", errResponseWritten
	}
	return id, nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "postId" -> "post ID", "commentId" -> "comment ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		words := splitCamel(param[:len(param)-2])
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	return append(words, s[start:])
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// currentUserID returns the id stored by AuthRequired.
func currentUserID(c *fiber.Ctx) string {
	id, _ := c.Locals("userID").(string)
	return id
}

// statusFor maps an error's code onto its HTTP status.
func statusFor(err error) int {
	switch models.ErrorCode(err) {
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeConflict:
		return fiber.StatusConflict
	case models.CodeUnauthorized:
		return fiber.StatusUnauthorized
	case models.CodeForbidden:
		return fiber.StatusForbidden
	case models.CodeValidation:
		return fiber.StatusBadRequest
	case models.CodeUpstream:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func codeForStatus(status int) string {
	switch {
	case status == fiber.StatusNotFound:
		return models.CodeNotFound
	case status == fiber.StatusUnauthorized:
		return models.CodeUnauthorized
	case status == fiber.StatusForbidden:
		return models.CodeForbidden
	case status == fiber.StatusConflict:
		return models.CodeConflict
	case status >= 400 && status < 500:
		return models.CodeValidation
	default:
		return models.CodeInternal
	}
}

// respondError writes err with the status for its code. Server-side
// failures are logged; their details never reach the client.
func (s *Server) respondError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		observability.LoggerFromContext(c.UserContext(), s.logger).Error("request error",
			zap.Int("status", status),
			zap.String("code", models.ErrorCode(err)),
			zap.String("path", c.Path()),
			zap.Error(err))
	}
	return models.RespondWithError(c, status, err)
}

func (s *Server) uploadTempDir() string {
	if s.config.UploadTempDir != "" {
		return s.config.UploadTempDir
	}
	return os.TempDir()
}

// saveUploads writes the multipart files under field to the temp directory
// with random names. The caller owns the returned files and must remove them.
func (s *Server) saveUploads(c *fiber.Ctx, field string) ([]media.LocalFile, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, models.NewValidationError("Expected a multipart/form-data body")
	}
	return s.saveFileHeaders(c, form.File[field])
}

func (s *Server) saveFileHeaders(c *fiber.Ctx, headers []*multipart.FileHeader) ([]media.LocalFile, error) {
	maxBytes := int64(s.config.UploadMaxSizeMB) * bytesPerMB
	dir := s.uploadTempDir()
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, models.NewInternalError(err)
	}

	files := make([]media.LocalFile, 0, len(headers))
	for _, fh := range headers {
		if maxBytes > 0 && fh.Size > maxBytes {
			media.RemoveLocal(s.logger, files...)
			return nil, models.NewValidationError(fmt.Sprintf("%s exceeds the %d MB upload limit", fh.Filename, s.config.UploadMaxSizeMB))
		}
		path := filepath.Join(dir, "upload-"+uuid.NewString()+strings.ToLower(filepath.Ext(fh.Filename)))
		if err := c.SaveFile(fh, path); err != nil {
			media.RemoveLocal(s.logger, files...)
			return nil, models.NewInternalError(err)
		}
		files = append(files, media.LocalFile{
			Path:        path,
			Filename:    filepath.Base(fh.Filename),
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Size:        fh.Size,
		})
	}
	return files, nil
}

// removeUploads is deferred by every upload handler; files the uploader already removed are skipped.
func (s *Server) removeUploads(files []media.LocalFile) {
	media.RemoveLocal(s.logger, files...)
}
