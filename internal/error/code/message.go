package code

// 错误码消息映射
var codeMessageMap = map[int]string{
	// 通用错误码
	ErrSuccess:         "成功",
	ErrUnknown:         "未知错误",
	ErrBind:            "请求参数绑定错误",
	ErrValidation:      "请求参数验证错误",
	ErrTokenInvalid:    "无效的认证令牌",
	ErrTooManyRequests: "请求频率过高",

	// 用户相关错误码
	ErrUserNotFound:          "用户不存在",
	ErrUserAlreadyExist:      "用户已存在",
	ErrUserPasswordIncorrect: "用户密码错误",

	// 设备相关错误码
	ErrDeviceNotFound:     "设备不存在",
	ErrDeviceAlreadyExist: "设备已存在",
	ErrDeviceOffline:      "设备当前离线",
	ErrDeviceBusy:         "设备忙，请稍后再试",

	// 会员相关错误码
	ErrMemberNotFound:     "会员不存在",
	ErrMemberAlreadyExist: "会员已存在",

	// 考勤相关错误码
	ErrAttendanceNotFound: "考勤记录不存在",
	ErrAlreadyCheckedIn:   "该会员已签到且未签退",
	ErrNotCheckedIn:       "该会员今日尚未签到",

	// 数据库相关错误码
	ErrDatabase:       "数据库错误",
	ErrRecordNotFound: "记录不存在",

	// 指纹登记相关错误码
	ErrEnrollValidation:        "登记信息不合法，请检查姓名、电话、年龄",
	ErrEnrollDeviceUnavailable: "指纹设备不可用，请确认设备在线后重试",
	ErrEnrollTimeout:           "等待指纹设备响应超时，请检查设备后重新发起登记",
	ErrEnrollHardwareFailed:    "指纹设备登记失败",
	ErrEnrollCancelled:         "登记已被取消",
	ErrEnrollProtocol:          "设备上报数据异常，请联系技术支持",
	ErrEnrollConnection:        "与状态存储的连接异常，请稍后重试",
	ErrEnrollSessionNotFound:   "该设备上没有进行中的登记",
}

// 错误码HTTP状态码映射
var codeStatusMap = map[int]int{
	// 通用错误码
	ErrSuccess:         StatusOK,
	ErrUnknown:         StatusInternalServerError,
	ErrBind:            StatusBadRequest,
	ErrValidation:      StatusBadRequest,
	ErrTokenInvalid:    StatusUnauthorized,
	ErrTooManyRequests: StatusTooManyRequests,

	// 用户相关错误码
	ErrUserNotFound:          StatusNotFound,
	ErrUserAlreadyExist:      StatusBadRequest,
	ErrUserPasswordIncorrect: StatusUnauthorized,

	// 设备相关错误码
	ErrDeviceNotFound:     StatusNotFound,
	ErrDeviceAlreadyExist: StatusBadRequest,
	ErrDeviceOffline:      StatusBadRequest,
	ErrDeviceBusy:         StatusConflict,

	// 会员相关错误码
	ErrMemberNotFound:     StatusNotFound,
	ErrMemberAlreadyExist: StatusBadRequest,

	// 考勤相关错误码
	ErrAttendanceNotFound: StatusNotFound,
	ErrAlreadyCheckedIn:   StatusBadRequest,
	ErrNotCheckedIn:       StatusBadRequest,

	// 数据库相关错误码
	ErrDatabase:       StatusInternalServerError,
	ErrRecordNotFound: StatusNotFound,

	// 指纹登记相关错误码
	ErrEnrollValidation:        StatusBadRequest,
	ErrEnrollDeviceUnavailable: StatusConflict,
	ErrEnrollTimeout:           StatusGatewayTimeout,
	ErrEnrollHardwareFailed:    StatusBadRequest,
	ErrEnrollCancelled:         StatusBadRequest,
	ErrEnrollProtocol:          StatusInternalServerError,
	ErrEnrollConnection:        StatusInternalServerError,
	ErrEnrollSessionNotFound:   StatusNotFound,
}

// GetMessage 获取错误码对应的消息
func GetMessage(code int) string {
	if msg, ok := codeMessageMap[code]; ok {
		return msg
	}
	return "未知错误"
}

// GetStatus 获取错误码对应的HTTP状态码
func GetStatus(code int) int {
	if status, ok := codeStatusMap[code]; ok {
		return status
	}
	return StatusInternalServerError
}
