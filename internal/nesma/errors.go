package nesma

import (
	"fmt"
	"strconv"
	"strings"
)

// ErrorType классифицирует отказы расчёта функциональных точек NESMA.
type ErrorType int

const (
	ProjectNotFound ErrorType = iota
	InvalidFunctionPoint
	ComplexityDeterminationFailed
	WeightConfigurationError
	VAFCalculationError
	PrecisionCalculationError
	CalculationTimeout
	InsufficientResources
	DataValidationError
	SystemError
)

var errorTypes = [...]struct {
	code        string
	description string
}{
	ProjectNotFound:               {"PROJECT_NOT_FOUND", "项目数据错误"},
	InvalidFunctionPoint:          {"INVALID_FUNCTION_POINT", "功能点数据错误"},
	ComplexityDeterminationFailed: {"COMPLEXITY_DETERMINATION_FAILED", "复杂度判定失败"},
	WeightConfigurationError:      {"WEIGHT_CONFIGURATION_ERROR", "权重配置错误"},
	VAFCalculationError:           {"VAF_CALCULATION_ERROR", "VAF计算异常"},
	PrecisionCalculationError:     {"PRECISION_CALCULATION_ERROR", "数值计算异常"},
	CalculationTimeout:            {"CALCULATION_TIMEOUT", "计算超时"},
	InsufficientResources:         {"INSUFFICIENT_RESOURCES", "系统资源不足"},
	DataValidationError:           {"DATA_VALIDATION_ERROR", "数据验证失败"},
	SystemError:                   {"SYSTEM_ERROR", "系统错误"},
}

// Code возвращает машинный код, например PROJECT_NOT_FOUND.
// Неизвестные значения сводятся к SYSTEM_ERROR.
func (t ErrorType) Code() string {
	if t < 0 || int(t) >= len(errorTypes) {
		return errorTypes[SystemError].code
	}
	return errorTypes[t].code
}

// Description: короткое описание для пользователя.
func (t ErrorType) Description() string {
	if t < 0 || int(t) >= len(errorTypes) {
		return errorTypes[SystemError].description
	}
	return errorTypes[t].description
}

func (t ErrorType) String() string { return t.Code() }

// ErrorTypes перечисляет все типы в порядке объявления.
func ErrorTypes() []ErrorType {
	out := make([]ErrorType, 0, len(errorTypes))
	for i := range errorTypes {
		out = append(out, ErrorType(i))
	}
	return out
}

// CalculationError: ошибка расчёта с привязкой к проекту и функциональной точке.
type CalculationError struct {
	Type            ErrorType
	Message         string
	ProjectID       *int64
	FunctionPointID *int64
	Details         string
	Cause           error
}

func (e *CalculationError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Type.Code(), e.Message)
}

func (e *CalculationError) Unwrap() error { return e.Cause }

// FullDescription собирает строку для журнала:
// [CODE] описание: сообщение (项目ID: x) (功能点ID: y) - 详细信息: d
func (e *CalculationError) FullDescription() string {
	var sb strings.Builder
	sb.WriteString("[" + e.Type.Code() + "] ")
	sb.WriteString(e.Type.Description() + ": ")
	sb.WriteString(e.Message)
	if e.ProjectID != nil {
		sb.WriteString(" (项目ID: " + strconv.FormatInt(*e.ProjectID, 10) + ")")
	}
	if e.FunctionPointID != nil {
		sb.WriteString(" (功能点ID: " + strconv.FormatInt(*e.FunctionPointID, 10) + ")")
	}
	if e.Details != "" {
		sb.WriteString(" - 详细信息: " + e.Details)
	}
	return sb.String()
}

// WithDetails возвращает копию ошибки с дополнительными сведениями.
func (e *CalculationError) WithDetails(details string) *CalculationError {
	cp := *e
	cp.Details = details
	return &cp
}

// WithCause возвращает копию ошибки с исходной причиной.
func (e *CalculationError) WithCause(cause error) *CalculationError {
	cp := *e
	cp.Cause = cause
	return &cp
}

func New(t ErrorType, message string) *CalculationError {
	return &CalculationError{Type: t, Message: message}
}

func newForProject(t ErrorType, message string, projectID int64) *CalculationError {
	return &CalculationError{Type: t, Message: message, ProjectID: &projectID}
}

func newForFunctionPoint(t ErrorType, message string, projectID, functionPointID int64) *CalculationError {
	return &CalculationError{Type: t, Message: message, ProjectID: &projectID, FunctionPointID: &functionPointID}
}

func NewProjectNotFound(projectID int64) *CalculationError {
	return newForProject(ProjectNotFound, "项目不存在或已删除", projectID)
}

func NewInvalidFunctionPoint(projectID, functionPointID int64, reason string) *CalculationError {
	return newForFunctionPoint(InvalidFunctionPoint, "功能点数据无效: "+reason, projectID, functionPointID)
}

func NewComplexityDeterminationFailed(projectID, functionPointID int64, functionPointType, reason string) *CalculationError {
	return newForFunctionPoint(ComplexityDeterminationFailed,
		fmt.Sprintf("功能点类型 %s 的复杂度判定失败: %s", functionPointType, reason),
		projectID, functionPointID)
}

func NewWeightConfigurationError(functionPointType, complexityLevel, reason string) *CalculationError {
	return New(WeightConfigurationError,
		fmt.Sprintf("功能点类型 %s，复杂度 %s 的权重配置错误: %s", functionPointType, complexityLevel, reason))
}

func NewVAFCalculationError(projectID int64, reason string) *CalculationError {
	return newForProject(VAFCalculationError, "VAF值计算失败: "+reason, projectID)
}

func NewCalculationTimeout(projectID int64, timeoutMs int64) *CalculationError {
	return newForProject(CalculationTimeout, fmt.Sprintf("计算超时，超过 %d 毫秒限制", timeoutMs), projectID)
}

func NewDataValidationError(fieldName string, value any, reason string) *CalculationError {
	return New(DataValidationError, fmt.Sprintf("字段 %s 的值 %v 验证失败: %s", fieldName, value, reason))
}

func NewPrecisionCalculationError(operation, reason string) *CalculationError {
	return New(PrecisionCalculationError, fmt.Sprintf("数值计算异常，操作: %s，原因: %s", operation, reason))
}

func NewInsufficientResources(resource, details string) *CalculationError {
	return New(InsufficientResources, fmt.Sprintf("系统资源不足: %s - %s", resource, details))
}

func NewSystemError(message string, cause error) *CalculationError {
	return &CalculationError{Type: SystemError, Message: message, Cause: cause}
}
