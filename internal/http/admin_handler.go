package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/Miraitowa2001/sms-web/internal/models"
	"github.com/Miraitowa2001/sms-web/internal/repository"
)

// AdminHandler 运维侧最小配置面：通知渠道与 SIM 来源时区
type AdminHandler struct {
	channels *repository.ChannelRepository
	sims     *repository.SimCardRepository
	logger   *zap.Logger
}

// NewAdminHandler 创建配置 Handler
func NewAdminHandler(channels *repository.ChannelRepository, sims *repository.SimCardRepository, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		channels: channels,
		sims:     sims,
		logger:   logger,
	}
}

type channelView struct {
	Name    string            `json:"name"`
	Enabled bool              `json:"enabled"`
	Config  map[string]string `json:"config"`
	Events  []string          `json:"events"`
}

// Channels GET 列出全部渠道，POST 保存单个渠道（upsert）
func (h *AdminHandler) Channels(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listChannels(w)
	case http.MethodPost:
		h.saveChannel(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *AdminHandler) listChannels(w http.ResponseWriter) {
	all, err := h.channels.List()
	if err != nil {
		h.logger.Error("Failed to list channels", zap.Error(err))
		writeJSON(w, http.StatusOK, fail("failed to list channels"))
		return
	}

	views := make([]channelView, 0, len(all))
	for _, c := range all {
		views = append(views, channelView{
			Name:    c.Name,
			Enabled: c.Enabled,
			Config:  c.Config,
			Events:  c.Events,
		})
	}
	writeJSON(w, http.StatusOK, okData(views))
}

func (h *AdminHandler) saveChannel(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeJSON(w, http.StatusOK, fail("failed to read body"))
		return
	}

	var req channelView
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusOK, fail("malformed payload"))
		return
	}
	if !knownChannel(req.Name) {
		writeJSON(w, http.StatusOK, fail("unknown channel: "+req.Name))
		return
	}

	err = h.channels.Save(&models.ChannelConfig{
		Name:    req.Name,
		Enabled: req.Enabled,
		Config:  req.Config,
		Events:  req.Events,
	})
	if err != nil {
		h.logger.Error("Failed to save channel",
			zap.String("channel", req.Name),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, fail("failed to save channel"))
		return
	}

	h.logger.Info("Channel config saved",
		zap.String("channel", req.Name),
		zap.Bool("enabled", req.Enabled),
	)
	writeJSON(w, http.StatusOK, ok())
}

type timezoneReq struct {
	DevID string `json:"devId"`
	Slot  int    `json:"slot"`
	Hours *int   `json:"hours"`
}

// SimTimezone POST 配置某张卡的来源时区（hours 为空则清除）
func (h *AdminHandler) SimTimezone(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := readBody(r)
	if err != nil {
		writeJSON(w, http.StatusOK, fail("failed to read body"))
		return
	}

	var req timezoneReq
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusOK, fail("malformed payload"))
		return
	}
	if req.DevID == "" || req.Slot <= 0 {
		writeJSON(w, http.StatusOK, fail("devId and slot are required"))
		return
	}

	// 卡行可能还没出现过（设备未上报），确保有行可配
	if _, err := h.sims.GetBySlot(req.DevID, req.Slot); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusOK, fail("failed to query sim card"))
			return
		}
		if err := h.sims.MergeUpsert(&models.SimCard{DevID: req.DevID, Slot: req.Slot, SignalLevel: -1}); err != nil {
			writeJSON(w, http.StatusOK, fail("failed to create sim card"))
			return
		}
	}

	if err := h.sims.SetTimezoneOffset(req.DevID, req.Slot, req.Hours); err != nil {
		h.logger.Error("Failed to set timezone offset",
			zap.String("dev_id", req.DevID),
			zap.Int("slot", req.Slot),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, fail("failed to set timezone"))
		return
	}
	writeJSON(w, http.StatusOK, ok())
}

func knownChannel(name string) bool {
	for _, n := range models.KnownChannels {
		if n == name {
			return true
		}
	}
	return false
}
