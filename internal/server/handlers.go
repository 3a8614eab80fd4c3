package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sandeepkv93/trackd/internal/catalog"
	"github.com/sandeepkv93/trackd/internal/ledger"
	"github.com/sandeepkv93/trackd/internal/model"
	"github.com/sandeepkv93/trackd/internal/storage"
	"github.com/sandeepkv93/trackd/internal/visibility"
)

var errBadRequest = errors.New("bad request")

type trackerRequest struct {
	Title    string            `json:"title"`
	Category string            `json:"category"`
	Emoji    string            `json:"emoji"`
	Color    string            `json:"color"`
	Schedule model.Schedule    `json:"schedule"`
	Type     model.TrackerType `json:"type"`
}

func (r trackerRequest) tracker() (model.Tracker, error) {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		return model.Tracker{}, fmt.Errorf("%w: title is required", errBadRequest)
	}
	if utf8.RuneCountInString(title) > model.MaxTitleLength {
		return model.Tracker{}, fmt.Errorf("%w: title is longer than %d characters", errBadRequest, model.MaxTitleLength)
	}
	out := model.Tracker{Title: title, Emoji: r.Emoji, Schedule: r.Schedule, Type: r.Type}
	if r.Color != "" {
		color, err := model.ParseHexColor(r.Color)
		if err != nil {
			return model.Tracker{}, err
		}
		out.Color = color
	}
	return out, nil
}

type listResponse struct {
	Date   model.Day     `json:"date"`
	Groups []model.Group `json:"groups"`
	HasAny bool          `json:"has_any"`
	Empty  string        `json:"empty,omitempty"`
}

type statusResponse struct {
	TrackerID string    `json:"tracker_id"`
	Date      model.Day `json:"date"`
	Completed bool      `json:"completed"`
	Count     int       `json:"count"`
	Label     string    `json:"label"`
}

type statsResponse struct {
	Completed int    `json:"completed"`
	Label     string `json:"label"`
}

func (s *Server) handleListTrackers(c echo.Context) error {
	ctx := c.Request().Context()
	date, err := s.dateParam(c)
	if err != nil {
		return err
	}
	var filter model.Filter
	if raw := c.QueryParam("filter"); raw != "" {
		if filter, err = model.ParseFilter(raw); err != nil {
			return err
		}
	}
	query := c.QueryParam("q")

	groups, err := s.app.Filter.VisibleTrackers(ctx, date, query, filter)
	if err != nil {
		return err
	}
	hasAny, err := s.app.Filter.HasAnyVisibleTracker(ctx, date, query)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listResponse{
		Date:   model.DayOf(date, s.loc),
		Groups: groups,
		HasAny: hasAny,
		Empty:  visibility.EmptyStateOf(query, groups).String(),
	})
}

func (s *Server) handleTrackerStatus(c echo.Context) error {
	ctx := c.Request().Context()
	date, err := s.dateParam(c)
	if err != nil {
		return err
	}
	t, err := s.app.Catalog.GetTracker(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	done, err := s.app.Ledger.IsCompleted(ctx, t.ID, date)
	if err != nil {
		return err
	}
	n, err := s.app.Ledger.CompletionCount(ctx, t.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statusResponse{
		TrackerID: t.ID,
		Date:      model.DayOf(date, s.loc),
		Completed: done,
		Count:     n,
		Label:     model.DayCount(n),
	})
}

func (s *Server) handleTrackerRecords(c echo.Context) error {
	ctx := c.Request().Context()
	t, err := s.app.Catalog.GetTracker(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	records, err := s.app.Ledger.Records(ctx, t.ID)
	if err != nil {
		return err
	}
	if records == nil {
		records = []model.Record{}
	}
	return c.JSON(http.StatusOK, records)
}

func (s *Server) handleGetTracker(c echo.Context) error {
	t, err := s.app.Catalog.GetTracker(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) handleCreateTracker(c echo.Context) error {
	var req trackerRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	t, err := req.tracker()
	if err != nil {
		return err
	}
	created, err := s.app.Catalog.CreateTracker(c.Request().Context(), t, req.Category)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) handleUpdateTracker(c echo.Context) error {
	var req trackerRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	t, err := req.tracker()
	if err != nil {
		return err
	}
	t.ID = c.Param("id")
	ctx := c.Request().Context()
	if err := s.app.Catalog.UpdateTracker(ctx, t); err != nil {
		return err
	}
	if strings.TrimSpace(req.Category) != "" {
		if err := s.app.Catalog.MoveTracker(ctx, t.ID, req.Category); err != nil {
			return err
		}
	}
	updated, err := s.app.Catalog.GetTracker(ctx, t.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) handleMoveTracker(c echo.Context) error {
	var req struct {
		Category string `json:"category"`
	}
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := s.app.Catalog.MoveTracker(c.Request().Context(), c.Param("id"), req.Category); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleDeleteTracker(c echo.Context) error {
	if err := s.app.Catalog.DeleteTracker(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleToggle(c echo.Context) error {
	date, err := s.dateParam(c)
	if err != nil {
		return err
	}
	res, err := s.app.Ledger.Toggle(c.Request().Context(), c.Param("id"), date)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleListCategories(c echo.Context) error {
	cats, err := s.app.Catalog.Categories(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cats)
}

type categoryRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleCreateCategory(c echo.Context) error {
	var req categoryRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	cat, err := s.app.Catalog.CreateCategory(c.Request().Context(), req.Title)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, cat)
}

func (s *Server) handleRenameCategory(c echo.Context) error {
	var req categoryRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := s.app.Catalog.RenameCategory(c.Request().Context(), c.Param("id"), req.Title); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleDeleteCategory(c echo.Context) error {
	title := c.QueryParam("title")
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title is required", errBadRequest)
	}
	if err := s.app.Catalog.DeleteCategory(c.Request().Context(), title); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleStats(c echo.Context) error {
	n, err := s.app.Stats.Cached(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statsResponse{Completed: n, Label: model.DayCount(n)})
}

// handleEvents streams change batches as server-sent events until the client
// goes away.
func (s *Server) handleEvents(c echo.Context) error {
	sub := s.app.Bus.Subscribe(s.app.Config.NotifyBuffer)
	defer sub.Close()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-sub.C():
			if !ok {
				return nil
			}
			body, err := json.Marshal(batch)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(res, "event: changes\ndata: %s\n\n", body); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}

func (s *Server) dateParam(c echo.Context) (time.Time, error) {
	raw := c.QueryParam("date")
	if raw == "" {
		return time.Now().In(s.loc), nil
	}
	day, err := model.ParseDay(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return day.Time(s.loc)
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	msg := err.Error()

	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		status = he.Code
		msg = fmt.Sprint(he.Message)
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, catalog.ErrDuplicateTracker), errors.Is(err, catalog.ErrCategoryExists):
		status = http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, catalog.ErrCategoryRequired),
		errors.Is(err, model.ErrInvalidFilter),
		errors.Is(err, model.ErrInvalidColor),
		errors.Is(err, model.ErrInvalidType),
		errors.Is(err, model.ErrInvalidWeekday):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrStopped), errors.Is(err, ledger.ErrNotStarted):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("uri", c.Request().RequestURI), zap.Error(err))
	}
	if err := c.JSON(status, map[string]string{"error": msg}); err != nil {
		s.logger.Warn("write error response", zap.Error(err))
	}
}
