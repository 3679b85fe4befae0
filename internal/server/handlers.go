package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"

	"github.com/brettg0396/skyface-go/internal/domain"
	"github.com/brettg0396/skyface-go/internal/render"
)

// maxScale caps the ?scale= upscaling factor.
const maxScale = 16

var validate = validator.New()

// ParseMode maps a mode name to a render mode. Empty and "interactive"
// select the interactive face.
func ParseMode(name string) (render.Mode, error) {
	switch name {
	case "", "interactive":
		return render.Mode{}, nil
	case "ambient":
		return render.Mode{Ambient: true}, nil
	case "lowbit":
		return render.Mode{Ambient: true, LowBit: true}, nil
	case "burnin":
		return render.Mode{Ambient: true, BurnIn: true}, nil
	}
	return render.Mode{}, errors.New("mode must be interactive, ambient, lowbit or burnin")
}

func parseScale(raw string) (int, error) {
	if raw == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxScale {
		return 0, errors.New("scale must be an integer from 1 to 16")
	}
	return n, nil
}

// getSky handles GET /sky.png?mode=&scale=.
func (s *Server) getSky(w http.ResponseWriter, r *http.Request) {
	mode, err := ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_MODE", err.Error())
		return
	}
	scale, err := parseScale(r.URL.Query().Get("scale"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_SCALE", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	s.writePNG(w, r, s.engine.Render(ctx, s.now(), mode), scale)
}

// getEffects handles GET /effects.png?scale=.
func (s *Server) getEffects(w http.ResponseWriter, r *http.Request) {
	scale, err := parseScale(r.URL.Query().Get("scale"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_SCALE", err.Error())
		return
	}
	s.writePNG(w, r, s.engine.CombinedEffectFrame(s.now()), scale)
}

func (s *Server) writePNG(w http.ResponseWriter, r *http.Request, img *image.RGBA, scale int) {
	var out image.Image = img
	if scale > 1 {
		b := img.Bounds()
		dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
		xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
		out = dst
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		requestLogger(r, s.logger).Error("failed to encode png", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "ENCODE_FAILED", "failed to encode image")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

type statusResponse struct {
	Zone            string                  `json:"zone"`
	Phase           string                  `json:"phase"`
	Offset          int                     `json:"offset"`
	ConditionCode   int                     `json:"conditionCode"`
	Base            string                  `json:"base"`
	Effects         []string                `json:"effects"`
	Flashing        bool                    `json:"flashing"`
	Location        *domain.Location        `json:"location,omitempty"`
	Snapshot        *domain.WeatherSnapshot `json:"snapshot,omitempty"`
	Observed        string                  `json:"observed,omitempty"`
	Sunrise         time.Time               `json:"sunrise"`
	Sunset          time.Time               `json:"sunset"`
	ForecastEntries int                     `json:"forecastEntries"`
	Updated         string                  `json:"updated"`
	BuiltAt         time.Time               `json:"builtAt"`
}

// getStatus handles GET /status.
func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	st := s.engine.Status()
	now := s.now()

	resp := statusResponse{
		Zone:            st.Zone,
		Phase:           st.Phase,
		Offset:          st.Offset,
		ConditionCode:   st.Code,
		Base:            st.Base,
		Effects:         st.Effects,
		Flashing:        st.Flashing,
		Location:        st.Location,
		Snapshot:        st.Snapshot,
		Sunrise:         st.Phases.Sunrise,
		Sunset:          st.Phases.Sunset,
		ForecastEntries: st.ForecastEntries,
		Updated:         "never",
		BuiltAt:         st.BuiltAt,
	}
	if resp.Effects == nil {
		resp.Effects = []string{}
	}
	if !st.LastRefresh.IsZero() {
		resp.Updated = humanize.RelTime(st.LastRefresh, now, "ago", "from now")
	}
	if st.Snapshot != nil {
		resp.Observed = humanize.RelTime(st.Snapshot.ObservedAt, now, "ago", "from now")
	}
	writeJSON(w, http.StatusOK, resp)
}

// postLocation handles POST /location with a {"lat": , "lon": } body.
func (s *Server) postLocation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
		Lon *float64 `json:"lon" validate:"required,gte=-180,lte=180"`
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10))
	if err := dec.Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "body must be JSON with lat and lon")
		return
	}
	if err := validate.Struct(body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", err.Error())
		return
	}

	loc := domain.Location{Lat: *body.Lat, Lon: *body.Lon}
	requestLogger(r, s.logger).Info("location updated", zap.String("location", loc.String()))
	s.engine.OnLocationUpdated(loc.Lat, loc.Lon)
	writeJSON(w, http.StatusAccepted, loc)
}

// getHealth handles GET /health.
func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"cache": "healthy"}
	status, code := "healthy", http.StatusOK
	if s.cachePing != nil {
		if err := s.cachePing(); err != nil {
			requestLogger(r, s.logger).Warn("cache ping failed", zap.Error(err))
			checks["cache"] = "unhealthy"
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, map[string]any{
		"status":    status,
		"checks":    checks,
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error": {"code", "message", "requestId"}}.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": correlationID(r),
		},
	})
}
