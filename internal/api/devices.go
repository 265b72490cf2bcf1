package api

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/srcfl/srcful-gateway-sub001/internal/blackboard"
	"github.com/srcfl/srcful-gateway-sub001/internal/device"
	"github.com/srcfl/srcful-gateway-sub001/internal/lifecycle"
	"github.com/srcfl/srcful-gateway-sub001/internal/settings"
)

// handleListDevices returns the open devices in the registry. Closed
// handles waiting for a reconnect are left out.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := slices.DeleteFunc(s.bb.State().Devices.Configured, func(d blackboard.DeviceState) bool {
		return !d.IsOpen
	})
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleDeleteDevice removes a device from the registry. The registry
// observers disconnect it and drop its saved connection, so it is not
// reconnected.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	sn := chi.URLParam(r, "sn")

	d := s.bb.Devices().FindBySerial(sn)
	if d == nil {
		writeNotFound(w, "device not found")
		return
	}

	s.bb.Devices().Remove(d)
	s.logger.Info("device removed via API", "sn", sn)
	w.WriteHeader(http.StatusNoContent)
}

// handleListConnections returns the configured device connections.
func (s *Server) handleListConnections(w http.ResponseWriter, _ *http.Request) {
	conns := s.bb.Settings().Devices.Connections()
	if conns == nil {
		conns = []device.Config{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"connections": conns, "count": len(conns)})
}

// handleAddConnection stores a connection in settings and schedules a
// connection task for it. The response is 202: connecting happens on the
// scheduler.
func (s *Server) handleAddConnection(w http.ResponseWriter, r *http.Request) {
	var cfg device.Config
	if !decodeJSON(w, r, &cfg) {
		return
	}
	if cfg.SerialNumber() == "" {
		writeValidationError(w, `"sn" is required`)
		return
	}

	dev, err := s.devices.NewFromConfig(cfg)
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}

	s.bb.Settings().Devices.AddConnection(cfg, settings.SourceLocal)
	s.bb.AddTask(lifecycle.NewConnectionTask(s.bb.NowMs()+lifecycle.StaggerMs, s.bb, dev))

	s.logger.Info("connection added via API", "config", cfg.String())
	writeJSON(w, http.StatusAccepted, map[string]any{"connection": dev.Config()})
}
