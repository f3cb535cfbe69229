package service

import (
	"go.uber.org/zap"

	"github.com/Miraitowa2001/sms-web/internal/models"
	"github.com/Miraitowa2001/sms-web/internal/telemetry"
)

// 落库接口，由 repository 层实现；测试里用内存 fake 替换
type deviceStore interface {
	Ensure(devID string) error
	UpdateNetworkState(devID, ip, ssid, hwVer string, signalLevel int) error
	TouchLastSeen(devID string) error
}

type simStore interface {
	MergeUpsert(card *models.SimCard) error
	LookupTimezoneOffset(devID string, slot int, imsi string) int
}

type messageStore interface {
	Append(msg *models.Message) error
}

type smsStore interface {
	Append(rec *models.SmsRecord) error
}

type callStore interface {
	Append(rec *models.CallRecord) error
}

// Notifier 通知分发口；投递完全异步，绝不阻塞上报响应
type Notifier interface {
	Dispatch(event string, data map[string]any)
}

// SIM 类型码 → 卡状态固定映射
var simStatusByCode = map[int]string{
	202: models.SimStatusRegistering,
	203: models.SimStatusReady,
	204: models.SimStatusReady,
	205: models.SimStatusRemoved,
	209: models.SimStatusError,
}

// 呼叫类事件里值得提醒的码：振铃、对端挂断、载波断开
// 中间呼叫控制码不提醒，避免通知风暴
var notifiableCallCodes = map[int]bool{601: true, 603: true, 623: true}

// IngestService 状态对账：按类别把事件落成设备/SIM 状态和三张流水
// 所有落库都是幂等 upsert；可选字段缺失一律按零值处理，不会让事件失败
type IngestService struct {
	devices  deviceStore
	sims     simStore
	messages messageStore
	sms      smsStore
	calls    callStore
	notifier Notifier
	rawLog   bool
	logger   *zap.Logger
}

// NewIngestService 创建上报处理服务
// rawLog 关闭时不写原始审计流水，其余链路不变
func NewIngestService(
	devices deviceStore,
	sims simStore,
	messages messageStore,
	sms smsStore,
	calls callStore,
	notifier Notifier,
	rawLog bool,
	logger *zap.Logger,
) *IngestService {
	return &IngestService{
		devices:  devices,
		sims:     sims,
		messages: messages,
		sms:      sms,
		calls:    calls,
		notifier: notifier,
		rawLog:   rawLog,
		logger:   logger,
	}
}

// HandleMessage 处理一条已解码事件
// 到这一步事件已通过必填校验，之后任何存储/通知失败都只记日志、
// 不向上报方传播——网关固件没有重试能力，不能被下游问题卡住
func (s *IngestService) HandleMessage(rec models.Event) {
	devID := rec.DevID()
	code := rec.Type()
	et := telemetry.Classify(code)

	if s.rawLog {
		err := s.messages.Append(&models.Message{
			DevID:    devID,
			Type:     code,
			TypeName: et.Label,
			Payload:  rec.Raw(),
		})
		if err != nil {
			s.logger.Error("Failed to append raw message",
				zap.String("dev_id", devID),
				zap.Error(err),
			)
		}
	}

	switch et.Category {
	case telemetry.CategoryNetwork:
		s.handleNetwork(devID, et, rec)
	case telemetry.CategorySim:
		s.handleSim(devID, code, et, rec)
	case telemetry.CategorySms:
		s.handleSms(devID, code, rec)
	case telemetry.CategoryCall:
		s.handleCall(devID, code, et, rec)
	case telemetry.CategorySystem:
		s.handleSystem(devID, code, et)
	case telemetry.CategoryModule, telemetry.CategoryCommand:
		// 无独立对账逻辑，但设备显然在线
		if err := s.devices.TouchLastSeen(devID); err != nil {
			s.logStoreError(devID, code, err)
		}
	default:
		// 未知类型码：仅留审计流水，不算错误
		s.logger.Debug("Unclassified event recorded",
			zap.String("dev_id", devID),
			zap.Int("type", code),
		)
	}
}

// handleNetwork 联网事件：设备上线 + 网络侧字段落库
func (s *IngestService) handleNetwork(devID string, et telemetry.EventType, rec models.Event) {
	ip := rec.GetString(models.AliasIP...)
	ssid := rec.GetString(models.AliasSSID...)
	hwVer := rec.GetString(models.AliasHwVer...)
	signal := rec.GetIntDefault(-1, models.AliasSignal...)

	if err := s.devices.UpdateNetworkState(devID, ip, ssid, hwVer, signal); err != nil {
		s.logStoreError(devID, rec.Type(), err)
		return
	}

	data := map[string]any{
		"devId": devID,
		"event": et.Label,
	}
	if ip != "" {
		data["ip"] = ip
	}
	if signal >= 0 {
		data["signal"] = signal
	}
	s.notifier.Dispatch(models.NotifyDeviceStatus, data)
}

// handleSim SIM 事件：增量合并卡状态
func (s *IngestService) handleSim(devID string, code int, et telemetry.EventType, rec models.Event) {
	if err := s.devices.TouchLastSeen(devID); err != nil {
		s.logStoreError(devID, code, err)
	}

	slot := rec.GetIntDefault(1, models.AliasSlot...)
	card := &models.SimCard{
		DevID:        devID,
		Slot:         slot,
		ICCID:        rec.GetString(models.AliasICCID...),
		IMSI:         rec.GetString(models.AliasIMSI...),
		MSISDN:       rec.GetString(models.AliasMSISDN...),
		OperatorPLMN: rec.GetString(models.AliasOperator...),
		SignalLevel:  rec.GetIntDefault(-1, models.AliasSignal...),
		Status:       simStatusByCode[code],
	}
	if err := s.sims.MergeUpsert(card); err != nil {
		s.logStoreError(devID, code, err)
		return
	}

	// 202/203 属于注册过程噪音，只有 204/205/209 值得提醒
	if code == 204 || code == 205 || code == 209 {
		s.notifier.Dispatch(models.NotifySimStatus, map[string]any{
			"devId":  devID,
			"slot":   slot,
			"status": card.Status,
			"event":  et.Label,
		})
	}
}

// handleSms 短信事件：按卡时区归一时间后落流水
func (s *IngestService) handleSms(devID string, code int, rec models.Event) {
	if err := s.devices.TouchLastSeen(devID); err != nil {
		s.logStoreError(devID, code, err)
	}

	slot := rec.GetIntDefault(1, models.AliasSlot...)
	phone := rec.GetString(models.AliasPhone...)
	content := rec.GetString(models.AliasContent...)
	imsi := rec.GetString(models.AliasIMSI...)

	tz := s.sims.LookupTimezoneOffset(devID, slot, imsi)
	smsTime := telemetry.NormalizeTime(rec.First(models.AliasSmsTime...), tz)

	direction := models.SmsDirectionIn
	if code == 502 {
		direction = models.SmsDirectionOut
	}

	err := s.sms.Append(&models.SmsRecord{
		DevID:     devID,
		Slot:      slot,
		PhoneNum:  phone,
		Content:   content,
		SmsTime:   smsTime,
		Direction: direction,
	})
	if err != nil {
		s.logStoreError(devID, code, err)
		return
	}

	s.notifier.Dispatch(models.NotifySms, map[string]any{
		"devId":     devID,
		"slot":      slot,
		"phone":     phone,
		"content":   content,
		"direction": direction,
		"time":      smsTime,
	})
}

// handleCall 呼叫事件：时长由起止时间差出，仅部分码触发提醒
func (s *IngestService) handleCall(devID string, code int, et telemetry.EventType, rec models.Event) {
	if err := s.devices.TouchLastSeen(devID); err != nil {
		s.logStoreError(devID, code, err)
	}

	slot := rec.GetIntDefault(1, models.AliasSlot...)
	phone := rec.GetString(models.AliasPhone...)
	imsi := rec.GetString(models.AliasIMSI...)

	tz := s.sims.LookupTimezoneOffset(devID, slot, imsi)
	startTime := telemetry.NormalizeTime(rec.First(models.AliasStartTime...), tz)
	duration := callDuration(rec)

	err := s.calls.Append(&models.CallRecord{
		DevID:           devID,
		Slot:            slot,
		PhoneNum:        phone,
		MsgType:         code,
		CallType:        et.Label,
		StartTime:       startTime,
		DurationSeconds: duration,
	})
	if err != nil {
		s.logStoreError(devID, code, err)
		return
	}

	if notifiableCallCodes[code] {
		s.notifier.Dispatch(models.NotifyCall, map[string]any{
			"devId":    devID,
			"slot":     slot,
			"phone":    phone,
			"event":    et.Label,
			"time":     startTime,
			"duration": duration,
		})
	}
}

// handleSystem 心跳等系统事件：刷新在线状态，998 心跳永不提醒
func (s *IngestService) handleSystem(devID string, code int, et telemetry.EventType) {
	if err := s.devices.TouchLastSeen(devID); err != nil {
		s.logStoreError(devID, code, err)
		return
	}

	if code != 998 {
		s.notifier.Dispatch(models.NotifySystem, map[string]any{
			"devId": devID,
			"event": et.Label,
		})
	}
}

// callDuration 起止皆为 epoch 且 end > start 时取差值，否则 0
func callDuration(rec models.Event) int {
	start, sok := rec.GetInt(models.AliasStartTime...)
	end, eok := rec.GetInt(models.AliasEndTime...)
	if !sok || !eok {
		return 0
	}

	s := epochSeconds(int64(start))
	e := epochSeconds(int64(end))
	if e > s {
		return int(e - s)
	}
	return 0
}

// epochSeconds 毫秒值归一到秒
func epochSeconds(n int64) int64 {
	if n >= 10_000_000_000 {
		return n / 1000
	}
	return n
}

func (s *IngestService) logStoreError(devID string, code int, err error) {
	s.logger.Error("Store write failed, event absorbed",
		zap.String("dev_id", devID),
		zap.Int("type", code),
		zap.Error(err),
	)
}
