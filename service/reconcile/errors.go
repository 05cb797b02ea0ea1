/*
 * @module service/reconcile/errors
 * @description 对账引擎错误分类定义,区分存储不可用、非法日期、聚合写入失败与运行互斥
 * @architecture 分层架构 - 核心服务层
 * @documentReference ai_docs/reconcile_design.md
 * @stateFlow 错误产生 -> 分类包装 -> 控制器映射为 HTTP 状态
 * @rules 单条脏数据不允许中断整次运行,只计入跳过数;存储级错误必须向上传播
 * @dependencies errors
 * @refs api/controllers/reconcile_controller.go
 */

package reconcile

import (
	"errors"
	"fmt"
)

// 错误分类哨兵,控制器据此映射 HTTP 状态码
var (
	// ErrStoreUnavailable 存储不可用,运行失败但可重试,已存在的异常集不受影响
	ErrStoreUnavailable = errors.New("存储不可用")
	// ErrInvalidDate 日期非法(格式错误或晚于当前日期),在任何工作开始前拒绝
	ErrInvalidDate = errors.New("对账日期非法")
	// ErrAggregatorWrite 异常集原子替换失败,运行失败并回滚,之前的异常集保持完整
	ErrAggregatorWrite = errors.New("异常集写入失败")
	// ErrRunInFlight 同一日期已有运行在执行,第二个请求被拒绝
	ErrRunInFlight = errors.New("该日期已有对账运行在执行")
	// ErrRunNotFound 运行记录不存在
	ErrRunNotFound = errors.New("对账运行不存在")
	// ErrQueueFull 运行队列已满
	ErrQueueFull = errors.New("对账队列已满,请稍后重试")
	// ErrRunTimeout 运行超出时间预算
	ErrRunTimeout = errors.New("对账运行超时")
)

// InFlightError 同日期运行冲突错误,携带在执行中的任务 ID 供调用方跟踪
type InFlightError struct {
	Date  string
	RunID string
}

func (e *InFlightError) Error() string {
	return fmt.Sprintf("日期 %s 已有对账运行 %s 在执行", e.Date, e.RunID)
}

// Unwrap 支持 errors.Is(err, ErrRunInFlight)
func (e *InFlightError) Unwrap() error {
	return ErrRunInFlight
}

// storeErr 将底层存储错误包装为可识别的存储不可用错误
func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}
