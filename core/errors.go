package core

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持错误检查函数（IsXXX）
//
// 注意：冷启动（COLD_START）与无可用模型（NO_MODEL）是路由信号而非请求失败，
// 调用方应降级到内容/热度路径，不向最终用户暴露。
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "NO_MODEL"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "embedding", "model"）
}

func (e *DomainError) Error() string {
	return e.Message
}

// GetDomainError 获取 DomainError，如果不是则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	if domainErr, ok := err.(*DomainError); ok {
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
	ErrorCodeNotFound       = "NOT_FOUND"       // 资源不存在
	ErrorCodeNotSupported   = "NOT_SUPPORTED"   // 操作不支持
	ErrorCodeUnavailable    = "UNAVAILABLE"     // 服务不可用
	ErrorCodeInvalidInput   = "INVALID_INPUT"   // 输入无效
	ErrorCodeInternalError  = "INTERNAL_ERROR"  // 内部错误
	ErrorCodeColdStart      = "COLD_START"      // 用户历史不足（路由信号）
	ErrorCodeNoModel        = "NO_MODEL"        // 尚无生产模型（路由信号）
	ErrorCodeTrainingFailed = "TRAINING_FAILED" // 训练失败（不收敛/NaN）
)

// 模块名称常量
const (
	ModuleStore     = "store"     // 存储模块
	ModuleEmbedding = "embedding" // 向量索引模块
	ModuleModel     = "model"     // 协同过滤模型模块
	ModuleRegistry  = "registry"  // 模型版本管理模块
	ModuleDataset   = "dataset"   // 训练数据构建模块
	ModuleService   = "service"   // 服务边界模块
)

func isCode(err error, module, code string) bool {
	domainErr := GetDomainError(err)
	if domainErr == nil {
		return false
	}
	if module != "" && domainErr.Module != module {
		return false
	}
	return domainErr.Code == code
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	return isCode(err, "", ErrorCodeNotFound)
}

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool {
	return isCode(err, "", ErrorCodeNotSupported)
}

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool {
	return isCode(err, "", ErrorCodeUnavailable)
}

// IsColdStart 检查错误是否为冷启动信号（用户不在当前模型索引中）。
func IsColdStart(err error) bool {
	return isCode(err, "", ErrorCodeColdStart)
}

// IsNoModel 检查错误是否为"尚无生产模型"信号。
func IsNoModel(err error) bool {
	return isCode(err, "", ErrorCodeNoModel)
}

// IsTrainingFailed 检查错误是否为训练失败。
func IsTrainingFailed(err error) bool {
	return isCode(err, "", ErrorCodeTrainingFailed)
}

// 常用领域错误（跨包共享的信号值）
var (
	// ErrColdStartUser 表示用户交互历史不足，协同过滤信号不可用。
	ErrColdStartUser = NewDomainError(ModuleModel, ErrorCodeColdStart, "model: user not in trained index")

	// ErrNoModelAvailable 表示从未有模型被提升为生产版本。
	ErrNoModelAvailable = NewDomainError(ModuleRegistry, ErrorCodeNoModel, "registry: no model promoted yet")

	// ErrEmbeddingNotFound 表示电影尚无向量。
	ErrEmbeddingNotFound = NewDomainError(ModuleEmbedding, ErrorCodeNotFound, "embedding: vector not found for movie")
)
