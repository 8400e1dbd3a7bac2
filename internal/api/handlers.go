package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/nerrad567/avoip-core/internal/coordinator"
	"github.com/nerrad567/avoip-core/internal/device"
	"github.com/nerrad567/avoip-core/internal/snapshot"
)

// handleGetSnapshot returns the full merged snapshot: devices, statuses,
// matrix assignments and per-section versions. Served from memory, never
// blocks on the controller.
func (s *Server) handleGetSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.ReadSnapshot())
}

// deviceView is one device row of the /devices response, with its status
// joined in when available.
type deviceView struct {
	device.Device
	Status *device.Status `json:"status,omitempty"`
}

// handleListDevices returns the device list with statuses joined in.
// Supports ?role=encoder|decoder filtering.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	roleFilter := device.Role(r.URL.Query().Get("role"))
	if roleFilter != "" && !roleFilter.Valid() {
		writeBadRequest(w, "role must be encoder or decoder")
		return
	}

	snap := s.coord.ReadSnapshot()

	views := make([]deviceView, 0, len(snap.Devices))
	for name, dev := range snap.Devices {
		if roleFilter != "" && dev.Role != roleFilter {
			continue
		}
		v := deviceView{Device: dev}
		if st, ok := snap.Statuses[name]; ok {
			stCopy := st
			v.Status = &stCopy
		}
		views = append(views, v)
	}

	// Deterministic ordering for clients and tests
	sort.Slice(views, func(i, j int) bool {
		return views[i].TrueName < views[j].TrueName
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": views,
		"version": snap.Version(snapshot.SectionDevices),
	})
}

// handleGetMatrix returns the current decoder → encoder routing table.
func (s *Server) handleGetMatrix(w http.ResponseWriter, _ *http.Request) {
	snap := s.coord.ReadSnapshot()

	assignments := make([]device.Assignment, 0, len(snap.Assignments))
	for decoder, encoder := range snap.Assignments {
		assignments = append(assignments, device.Assignment{
			Decoder: decoder,
			Encoder: encoder,
		})
	}
	sort.Slice(assignments, func(i, j int) bool {
		return assignments[i].Decoder < assignments[j].Decoder
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"assignments": assignments,
		"version":     snap.Version(snapshot.SectionMatrix),
	})
}

// refreshRequest is the request body for POST /refresh.
// An empty section list refreshes everything.
type refreshRequest struct {
	Sections []string `json:"sections"`
}

// handleRefresh forces a refresh of the named sections (or all sections)
// and blocks until the refresh completes.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
	}

	sections := snapshot.AllSections()
	if len(req.Sections) > 0 {
		sections = sections[:0]
		for _, name := range req.Sections {
			sec := snapshot.Section(name)
			if !sec.Valid() {
				writeBadRequest(w, "unknown section: "+name)
				return
			}
			sections = append(sections, sec)
		}
	}

	if err := s.coord.RequestRefresh(r.Context(), sections...); err != nil {
		writeCommandError(w, err)
		return
	}

	snap := s.coord.ReadSnapshot()
	versions := make(map[string]uint64, len(sections))
	for _, sec := range sections {
		versions[string(sec)] = snap.Version(sec)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"refreshed": versions,
	})
}

// matrixRequest is the request body for POST /matrix.
// An empty source disconnects the targets.
type matrixRequest struct {
	Source  string   `json:"source"`
	Targets []string `json:"targets"`
}

// handleSetMatrix routes a source encoder to target decoders, or disconnects
// the targets when source is empty.
func (s *Server) handleSetMatrix(w http.ResponseWriter, r *http.Request) {
	var req matrixRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.coord.SetMatrix(r.Context(), req.Source, req.Targets); err != nil {
		writeCommandError(w, err)
		return
	}

	snap := s.coord.ReadSnapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"source":         req.Source,
		"targets":        req.Targets,
		"matrix_version": snap.Version(snapshot.SectionMatrix),
	})
}

// powerRequest is the request body for POST /power.
type powerRequest struct {
	Targets []string `json:"targets"`
	State   string   `json:"state"`
}

// handleSetPower sends a display power command to target decoders.
func (s *Server) handleSetPower(w http.ResponseWriter, r *http.Request) {
	var req powerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	state := device.PowerState(req.State)
	if err := s.coord.SetPower(r.Context(), req.Targets, state); err != nil {
		writeCommandError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"targets": req.Targets,
		"state":   req.State,
	})
}

// writeCommandError maps coordinator and device errors to HTTP responses.
func writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, coordinator.ErrNoTargets),
		errors.Is(err, coordinator.ErrNoSections),
		errors.Is(err, device.ErrInvalidRole),
		errors.Is(err, device.ErrInvalidPowerState):
		writeBadRequest(w, err.Error())
	case errors.Is(err, device.ErrTransport):
		writeError(w, http.StatusBadGateway, ErrCodeUpstream, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}
