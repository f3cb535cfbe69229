package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Miraitowa2001/sms-web/internal/codec"
	"github.com/Miraitowa2001/sms-web/internal/models"
)

// MessageSink 解码后事件的去向，由 service.IngestService 实现
type MessageSink interface {
	HandleMessage(rec models.Event)
}

// MessageHandler 网关上报入口
// 同一路径接受三种形态：POST JSON、POST 表单、GET 查询串
type MessageHandler struct {
	decoder *codec.Decoder
	sink    MessageSink
	logger  *zap.Logger
}

// NewMessageHandler 创建上报 Handler
func NewMessageHandler(decoder *codec.Decoder, sink MessageSink, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{
		decoder: decoder,
		sink:    sink,
		logger:  logger,
	}
}

// Report 处理一次上报
// 解码/解密/必填校验失败才返回非零 code；
// 事件入库后的任何下游问题都不回传给固件
func (h *MessageHandler) Report(w http.ResponseWriter, r *http.Request) {
	var (
		rec models.Event
		err error
	)

	switch r.Method {
	case http.MethodGet:
		rec, err = h.decoder.DecodeValues(r.URL.Query())
	case http.MethodPost:
		ct := r.Header.Get("Content-Type")
		if strings.Contains(ct, "json") {
			body, readErr := readBody(r)
			if readErr != nil {
				writeJSON(w, http.StatusOK, fail("failed to read body"))
				return
			}
			rec, err = h.decoder.DecodeJSON(body)
		} else {
			if parseErr := r.ParseForm(); parseErr != nil {
				writeJSON(w, http.StatusOK, fail("failed to parse form"))
				return
			}
			rec, err = h.decoder.DecodeValues(r.PostForm)
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if err != nil {
		h.logger.Warn("Rejected gateway report",
			zap.String("remote", r.RemoteAddr),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, fail(rejectReason(err)))
		return
	}

	h.sink.HandleMessage(rec)
	writeJSON(w, http.StatusOK, ok())
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, codec.ErrDecrypt):
		return "decrypt failed"
	case errors.Is(err, codec.ErrValidation):
		return "missing devId or type"
	case errors.Is(err, codec.ErrDecode):
		return "malformed payload"
	default:
		return "bad request"
	}
}
