package errs

import (
	"errors"
)

var ErrDuplicateHook = errors.New("钩子重复注册")
var ErrHookNotFound = errors.New("钩子未注册")
var ErrAlreadyInstalled = errors.New("追踪器已经安装")
var ErrNotInstalled = errors.New("追踪器尚未安装")
var ErrInvalidConfig = errors.New("配置非法")
var ErrUnsupported = errors.New("不支持的语句")
var ErrInvalidArgument = errors.New("参数非法")
var ErrSessionClosed = errors.New("会话已经关闭")
