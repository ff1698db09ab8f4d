package services

import "fmt"

// 登记协调器的错误类型。每一类对应一种明确的操作员提示，
// 控制器层据此映射到不同的错误码，绝不合并成笼统的"登记失败"。

// ValidationError 登记信息不合法，未写入任何文档
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("登记信息不合法: %s %s", e.Field, e.Reason)
}

// DeviceUnavailableError 发起时设备不在线/不可达/被占用，未写入任何文档
type DeviceUnavailableError struct {
	DeviceID string
	Reason   string
}

func (e *DeviceUnavailableError) Error() string {
	return fmt.Sprintf("设备 %s 不可用: %s", e.DeviceID, e.Reason)
}

// EnrollmentTimeoutError 超时前未观察到终态
type EnrollmentTimeoutError struct {
	DeviceID      string
	CorrelationID string
}

func (e *EnrollmentTimeoutError) Error() string {
	return fmt.Sprintf("设备 %s 登记超时 (correlationID=%s)", e.DeviceID, e.CorrelationID)
}

// HardwareEnrollmentError 设备明确上报登记失败，携带设备侧的原因
type HardwareEnrollmentError struct {
	DeviceID string
	Message  string
}

func (e *HardwareEnrollmentError) Error() string {
	return fmt.Sprintf("设备 %s 登记失败: %s", e.DeviceID, e.Message)
}

// UserCancelledError 操作员取消了登记
type UserCancelledError struct {
	DeviceID string
}

func (e *UserCancelledError) Error() string {
	return fmt.Sprintf("设备 %s 上的登记已被取消", e.DeviceID)
}

// DeviceProtocolError 设备上报的数据违反协议约定
// （如completed却没有指纹ID，或出现未知状态值）
type DeviceProtocolError struct {
	DeviceID string
	Detail   string
}

func (e *DeviceProtocolError) Error() string {
	return fmt.Sprintf("设备 %s 违反登记协议: %s", e.DeviceID, e.Detail)
}

// ConnectionError 与状态存储本身的订阅/传输故障
type ConnectionError struct {
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("状态存储连接异常: %v", e.Cause)
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}
