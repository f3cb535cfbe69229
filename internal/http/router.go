package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterMessageRoutes 网关上报路由
// 固件侧只知道一个 URL，三种形态都打到这里
func (r *Router) RegisterMessageRoutes(h *MessageHandler) {
	r.Handle("/api/message", h.Report)
}

// RegisterAdminRoutes 运维配置路由
func (r *Router) RegisterAdminRoutes(h *AdminHandler) {
	r.Handle("/api/admin/channels", h.Channels)
	r.Handle("/api/admin/sim/timezone", h.SimTimezone)
}

// RegisterHealthRoutes 存活探针
func (r *Router) RegisterHealthRoutes() {
	r.Handle("/api/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, ok())
	})
}
