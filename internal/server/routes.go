package server

import (
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/berfenger/solaxcloud2mqtt/internal/core/domain"
	"github.com/berfenger/solaxcloud2mqtt/internal/core/events"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type deviceView struct {
	Id           string `json:"id"`
	Name         string `json:"name"`
	SerialNumber string `json:"sn"`
}

type metricView struct {
	Key   string   `json:"key"`
	Name  string   `json:"name"`
	Unit  string   `json:"unit,omitempty"`
	Icon  string   `json:"icon,omitempty"`
	Value *float64 `json:"value"`
}

type deviceMetricsView struct {
	Device         deviceView   `json:"device"`
	State          string       `json:"state"`
	LastSuccessAt  *time.Time   `json:"last_success_at"`
	LastError      string       `json:"last_error,omitempty"`
	UploadTime     string       `json:"upload_time,omitempty"`
	InverterStatus string       `json:"inverter_status,omitempty"`
	Metrics        []metricView `json:"metrics"`
}

type errorView struct {
	Error string `json:"error"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/api/devices", s.ListDevicesHandler)
	e.GET("/api/devices/:id/metrics", s.DeviceMetricsHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) ListDevicesHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ListDevicesRequest{}, 2*time.Second).Result()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errorView{Error: err.Error()})
	}
	response, ok := res.(domain.ListDevicesResponse)
	if !ok {
		return c.JSON(http.StatusInternalServerError, errorView{Error: "unexpected response"})
	}
	devices := make([]deviceView, 0, len(response.Devices))
	for _, d := range response.Devices {
		devices = append(devices, toDeviceView(d))
	}
	return c.JSON(http.StatusOK, devices)
}

func (s *Server) DeviceMetricsHandler(c echo.Context) error {
	req := domain.GetDeviceMetricsRequest{
		DeviceRequestMixIn: domain.DeviceRequestMixIn{
			DeviceId: c.Param("id"),
		},
	}
	res, err := s.rootContext.RequestFuture(s.masterActor, req, s.requestTimeout).Result()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errorView{Error: err.Error()})
	}
	response, ok := res.(domain.GetDeviceMetricsResponse)
	if !ok {
		return c.JSON(http.StatusInternalServerError, errorView{Error: "unexpected response"})
	}
	if response.HasResponseError() {
		if errors.Is(response.GetResponseError(), domain.ErrUnknownDevice) {
			return c.JSON(http.StatusNotFound, errorView{Error: response.GetResponseError().Error()})
		}
		return c.JSON(http.StatusServiceUnavailable, errorView{Error: response.GetResponseError().Error()})
	}
	return c.JSON(http.StatusOK, toDeviceMetricsView(response.Reading))
}

func toDeviceView(d domain.SolaxDevice) deviceView {
	return deviceView{
		Id:           d.Id,
		Name:         d.Name,
		SerialNumber: d.Credentials.SerialNumber,
	}
}

func toDeviceMetricsView(r domain.DeviceReading) deviceMetricsView {
	view := deviceMetricsView{
		Device:        toDeviceView(r.Device),
		State:         r.State.String(),
		LastSuccessAt: r.LastSuccessAt,
		LastError:     r.LastError,
		UploadTime:    r.UploadTime,
		Metrics:       make([]metricView, 0, len(r.Metrics)),
	}
	for _, m := range r.Metrics {
		mv := metricView{
			Key:  m.Descriptor.Key,
			Name: m.Name,
			Unit: m.Descriptor.Unit,
			Icon: m.Descriptor.DisplayHint,
		}
		// NaN is not valid JSON, no data is null
		if !math.IsNaN(m.Value) {
			v := m.Value
			mv.Value = &v
		}
		view.Metrics = append(view.Metrics, mv)
	}
	view.InverterStatus = events.InverterStatusText(r)
	return view
}
