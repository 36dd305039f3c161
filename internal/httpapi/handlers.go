package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ziedsayadi/Cvmodel/internal/docschema"
	"github.com/ziedsayadi/Cvmodel/internal/translate"
)

func (s *Server) handleHealth(c echo.Context) error {
	return success(c, map[string]any{
		"service": "cvmodel",
		"time":    time.Now().UTC(),
	})
}

func (s *Server) handleTranslate(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return fail(c, http.StatusBadRequest, "Failed to read request body", nil)
	}

	request, err := docschema.ValidateTranslationRequest(body)
	if err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}

	ctx := c.Request().Context()
	var result *translate.Result
	if request.Mode == docschema.ModeFields {
		result, err = s.translator.TranslateFields(ctx, request.Document, request.TargetLanguage)
	} else {
		result, err = s.translator.Translate(ctx, request.Document, request.TargetLanguage)
	}
	if err != nil {
		return s.translationError(c, err)
	}

	return success(c, map[string]any{
		"document":       json.RawMessage(result.Document),
		"segmentCount":   result.SegmentCount,
		"cached":         result.CacheHit,
		"sourceLanguage": result.SourceLang,
		"mode":           request.Mode,
	})
}

func (s *Server) handleTranslateStream(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return fail(c, http.StatusBadRequest, "Failed to read request body", nil)
	}

	request, err := docschema.ValidateTranslationRequest(body)
	if err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}
	if request.Mode == docschema.ModeFields {
		return failValidation(c, map[string]string{"mode": "fields mode does not support streaming"})
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set("Connection", "keep-alive")

	streamErr := s.translator.Stream(c.Request().Context(), request.Document, request.TargetLanguage, func(ev translate.ProgressEvent) error {
		return writeSSE(res, ev)
	})
	if streamErr != nil {
		if !res.Committed {
			res.Header().Del(echo.HeaderContentType)
			return s.translationError(c, streamErr)
		}
		// The terminal error event already went out on the stream.
		s.logger.Error().Err(streamErr).Msg("streamed translation failed")
	}
	return nil
}

func (s *Server) handleModels(c echo.Context) error {
	if s.models == nil {
		return errorWithCode(c, http.StatusServiceUnavailable, "Model listing is not configured")
	}

	models, err := s.models.ListModels(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("list models failed")
		return errorWithCode(c, http.StatusBadGateway, "Failed to list models")
	}
	return success(c, map[string]any{"models": models})
}

func (s *Server) handleLanguages(c echo.Context) error {
	return success(c, map[string]any{"languages": translate.LanguageOptions()})
}

func (s *Server) handleCacheStats(c echo.Context) error {
	if s.cacheAdmin == nil {
		return fail(c, http.StatusServiceUnavailable, "Cache is not configured", nil)
	}
	return success(c, s.cacheAdmin.Stats())
}

func (s *Server) handleCacheClear(c echo.Context) error {
	if s.cacheAdmin == nil {
		return fail(c, http.StatusServiceUnavailable, "Cache is not configured", nil)
	}
	if err := s.cacheAdmin.Clear(c.Request().Context()); err != nil {
		s.logger.Error().Err(err).Msg("cache clear failed")
		return internalError(c, "Failed to clear cache")
	}
	return success(c, map[string]any{"cleared": true})
}

func (s *Server) translationError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, translate.ErrInvalidRequest):
		return fail(c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, translate.ErrUnparseable):
		s.logger.Error().Err(err).Msg("translation produced an unparseable document")
		return errorWithCode(c, http.StatusBadGateway, "Translation produced an unparseable document")
	case errors.Is(err, translate.ErrRetriesExhausted):
		s.logger.Error().Err(err).Msg("translation retries exhausted")
		return errorWithCode(c, http.StatusServiceUnavailable, "Translation service is unavailable")
	default:
		s.logger.Error().Err(err).Msg("translation failed")
		return internalError(c, "Translation failed")
	}
}

func writeSSE(res *echo.Response, ev translate.ProgressEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode progress event: %w", err)
	}
	if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", ev.Kind, payload); err != nil {
		return fmt.Errorf("write progress event: %w", err)
	}
	res.Flush()
	return nil
}

func errorWithCode(c echo.Context, code int, message string) error {
	return c.JSON(code, jsendResponse{
		Status:  "error",
		Message: message,
		Code:    code,
	})
}
