package httpapi

// 网关固件约定的应答封套：code=0 即成功，固件只认 code 字段
// 管理接口复用同一封套，带可选 data
type result struct {
	Code int    `json:"code"`
	Msg  string `json:"msg,omitempty"`
	Data any    `json:"data,omitempty"`
}

func ok() result {
	return result{Code: 0}
}

func okData(data any) result {
	return result{Code: 0, Data: data}
}

func fail(msg string) result {
	return result{Code: 1, Msg: msg}
}
