package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/gatehousehq/gatehouse/internal/model"
	"github.com/gatehousehq/gatehouse/internal/store"
)

type HostHandler struct {
	hosts *store.HostStore
}

func NewHostHandler(hs *store.HostStore) *HostHandler {
	return &HostHandler{hosts: hs}
}

type hostRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *HostHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req hostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	host, err := h.hosts.Create(req.Name, strings.TrimSpace(req.Email))
	if err != nil {
		log.Printf("failed to create host: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create host"})
		return
	}

	writeJSON(w, http.StatusCreated, host)
}

func (h *HostHandler) List(w http.ResponseWriter, r *http.Request) {
	hosts, err := h.hosts.List()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list hosts"})
		return
	}
	if hosts == nil {
		hosts = []model.Host{}
	}
	writeJSON(w, http.StatusOK, hosts)
}

func (h *HostHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	host, err := h.hosts.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get host"})
		return
	}
	if host == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "host not found"})
		return
	}
	writeJSON(w, http.StatusOK, host)
}
