package core

import "errors"

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持错误检查函数（IsXXX），HTTP 层据 Code 映射状态码
//
// 使用场景：
//   - Store 错误：NOT_FOUND
//   - Model 错误：UNAVAILABLE（模型尚未训练）
//   - Engine 错误：INVALID_INPUT（count < 0）
//   - Catalog 错误：UNAVAILABLE（外部书目服务不可用）
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "INVALID_INPUT"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "model", "engine"）
}

func (e *DomainError) Error() string {
	return e.Message
}

// IsDomainError 检查错误链中是否有 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 沿错误链获取 DomainError，如果没有则返回 nil。
// 调用方通常会用 fmt.Errorf("...: %w", err) 包装，所以这里用 errors.As。
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound      = "NOT_FOUND"      // 资源不存在
	ErrorCodeNotSupported  = "NOT_SUPPORTED"  // 操作不支持
	ErrorCodeUnavailable   = "UNAVAILABLE"    // 服务不可用
	ErrorCodeInvalidInput  = "INVALID_INPUT"  // 输入无效
	ErrorCodeInternalError = "INTERNAL_ERROR" // 内部错误
)

// 模块名称常量
const (
	ModuleStore   = "store"   // 存储模块
	ModuleRating  = "rating"  // 评分数据模块
	ModuleModel   = "model"   // 相似度模型
	ModuleEngine  = "engine"  // 推荐引擎
	ModuleCatalog = "catalog" // 外部书目服务
)

var (
	// ErrInvalidCount 表示请求的推荐数量为负数
	ErrInvalidCount = NewDomainError(ModuleEngine, ErrorCodeInvalidInput, "engine: count must be >= 0")

	// ErrModelNotTrained 表示在训练完成前就发起了查询
	ErrModelNotTrained = NewDomainError(ModuleModel, ErrorCodeUnavailable, "model: similarity model not trained")

	// ErrCatalogUnavailable 表示外部书目服务不可用（熔断或网络错误）
	ErrCatalogUnavailable = NewDomainError(ModuleCatalog, ErrorCodeUnavailable, "catalog: service unavailable")
)

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	return hasCode(err, ErrorCodeNotFound)
}

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool {
	return hasCode(err, ErrorCodeNotSupported)
}

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool {
	return hasCode(err, ErrorCodeUnavailable)
}

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool {
	return hasCode(err, ErrorCodeInvalidInput)
}

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}
