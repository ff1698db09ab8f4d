package code

// HTTP状态码.
const (
	// StatusOK - 200: 成功.
	StatusOK = 200
	// StatusBadRequest - 400: 请求参数错误.
	StatusBadRequest = 400
	// StatusUnauthorized - 401: 未授权.
	StatusUnauthorized = 401
	// StatusForbidden - 403: 禁止访问.
	StatusForbidden = 403
	// StatusNotFound - 404: 资源不存在.
	StatusNotFound = 404
	// StatusConflict - 409: 资源冲突.
	StatusConflict = 409
	// StatusInternalServerError - 500: 服务器内部错误.
	StatusInternalServerError = 500
	// StatusGatewayTimeout - 504: 上游超时.
	StatusGatewayTimeout = 504
	// StatusTooManyRequests - 429: 请求过多.
	StatusTooManyRequests = 429
)

// 通用错误码 (100xxx).
const (
	// ErrSuccess - 200: 成功.
	ErrSuccess int = iota + 100000
	// ErrUnknown - 500: 未知错误.
	ErrUnknown
	// ErrBind - 400: 请求参数绑定错误.
	ErrBind
	// ErrValidation - 400: 请求参数验证错误.
	ErrValidation
	// ErrTokenInvalid - 401: 令牌无效.
	ErrTokenInvalid
	// ErrTooManyRequests - 429: 请求频率过高.
	ErrTooManyRequests
)

// 用户相关错误码 (101xxx).
const (
	// ErrUserNotFound - 404: 用户不存在.
	ErrUserNotFound int = iota + 101000
	// ErrUserAlreadyExist - 400: 用户已存在.
	ErrUserAlreadyExist
	// ErrUserPasswordIncorrect - 401: 用户密码错误.
	ErrUserPasswordIncorrect
)

// 设备相关错误码 (102xxx).
const (
	// ErrDeviceNotFound - 404: 设备不存在.
	ErrDeviceNotFound int = iota + 102000
	// ErrDeviceAlreadyExist - 400: 设备已存在.
	ErrDeviceAlreadyExist
	// ErrDeviceOffline - 400: 设备离线.
	ErrDeviceOffline
	// ErrDeviceBusy - 409: 设备忙.
	ErrDeviceBusy
)

// 会员相关错误码 (103xxx).
const (
	// ErrMemberNotFound - 404: 会员不存在.
	ErrMemberNotFound int = iota + 103000
	// ErrMemberAlreadyExist - 400: 会员已存在.
	ErrMemberAlreadyExist
)

// 考勤相关错误码 (104xxx).
const (
	// ErrAttendanceNotFound - 404: 考勤记录不存在.
	ErrAttendanceNotFound int = iota + 104000
	// ErrAlreadyCheckedIn - 400: 已签到未签退.
	ErrAlreadyCheckedIn
	// ErrNotCheckedIn - 400: 尚未签到.
	ErrNotCheckedIn
)

// 数据库相关错误码 (105xxx).
const (
	// ErrDatabase - 500: 数据库错误.
	ErrDatabase int = iota + 105000
	// ErrRecordNotFound - 404: 记录不存在.
	ErrRecordNotFound
)

// 指纹登记相关错误码 (106xxx).
const (
	// ErrEnrollValidation - 400: 登记信息不合法.
	ErrEnrollValidation int = iota + 106000
	// ErrEnrollDeviceUnavailable - 409: 设备不可用，无法发起登记.
	ErrEnrollDeviceUnavailable
	// ErrEnrollTimeout - 504: 登记等待设备响应超时.
	ErrEnrollTimeout
	// ErrEnrollHardwareFailed - 400: 设备上报登记失败.
	ErrEnrollHardwareFailed
	// ErrEnrollCancelled - 400: 登记已被操作员取消.
	ErrEnrollCancelled
	// ErrEnrollProtocol - 500: 设备上报数据违反协议.
	ErrEnrollProtocol
	// ErrEnrollConnection - 500: 与状态存储的连接异常.
	ErrEnrollConnection
	// ErrEnrollSessionNotFound - 404: 没有进行中的登记会话.
	ErrEnrollSessionNotFound
)
