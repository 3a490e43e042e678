package common

import (
	"errors"
	"net/http"
)

// ErrorResponse 定義 API 錯誤響應結構
type ErrorResponse struct {
	Code    string `json:"code"`              // 錯誤代碼
	Message string `json:"message"`           // 錯誤信息
	Details string `json:"details,omitempty"` // 詳細信息（僅在開發模式顯示）
}

// CustomError 定義自定義錯誤類型
type CustomError struct {
	Code    string // 錯誤代碼
	Message string // 錯誤信息
	Err     error  // 原始錯誤
	Status  int    // HTTP 狀態碼
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap 回傳原始錯誤
func (e *CustomError) Unwrap() error {
	return e.Err
}

// Is 以錯誤代碼比對
func (e *CustomError) Is(target error) bool {
	var t *CustomError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// Wrap 以相同代碼包裝原始錯誤
func (e *CustomError) Wrap(err error) *CustomError {
	return &CustomError{
		Code:    e.Code,
		Message: e.Message,
		Status:  e.Status,
		Err:     err,
	}
}

// NewError 創建新的自定義錯誤
func NewError(code string, message string, status int, err error) *CustomError {
	return &CustomError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// ValidationError 表示驗證錯誤
type ValidationError struct {
	message string
}

// Error 實現 error 介面
func (e *ValidationError) Error() string {
	return e.message
}

// NewValidationError 創建新的驗證錯誤
func NewValidationError(message string) error {
	return &ValidationError{
		message: message,
	}
}

// IsValidationError 檢查是否為驗證錯誤
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// ToResponse 轉換為 API 錯誤響應與狀態碼
func ToResponse(err error, debug bool) (int, ErrorResponse) {
	if IsValidationError(err) {
		return http.StatusBadRequest, ErrorResponse{Code: ErrCodeInvalidRequest, Message: err.Error()}
	}
	var ce *CustomError
	if errors.As(err, &ce) {
		resp := ErrorResponse{Code: ce.Code, Message: ce.Message}
		if debug && ce.Err != nil {
			resp.Details = ce.Err.Error()
		}
		return ce.Status, resp
	}
	resp := ErrorResponse{Code: ErrCodeInternalError, Message: "internal error"}
	if debug {
		resp.Details = err.Error()
	}
	return http.StatusInternalServerError, resp
}

// 預定義錯誤代碼
const (
	// 客戶端錯誤 (4xx)
	ErrCodeInvalidRequest  = "INVALID_REQUEST"   // 400
	ErrCodeNotFound        = "NOT_FOUND"         // 404
	ErrCodeConflict        = "CONFLICT"          // 409
	ErrCodeTooManyRequests = "TOO_MANY_REQUESTS" // 429

	// 服務器錯誤 (5xx)
	ErrCodeInternalError      = "INTERNAL_ERROR"      // 500
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE" // 503

	// 推薦引擎
	ErrCodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	ErrCodeStoreWriteFailed    = "STORE_WRITE_FAILED"
	ErrCodeEmptyPoolAfterRelax = "EMPTY_POOL_AFTER_RELAX"
	ErrCodeStaleRequest        = "STALE_REQUEST"
	ErrCodeSessionNotFound     = "SESSION_NOT_FOUND"
	ErrCodeRecipeNotFound      = "RECIPE_NOT_FOUND"
)

// 預定義錯誤
var (
	ErrInvalidRequest     = NewError(ErrCodeInvalidRequest, "無效的請求", http.StatusBadRequest, nil)
	ErrNotFound           = NewError(ErrCodeNotFound, "資源不存在", http.StatusNotFound, nil)
	ErrTooManyRequests    = NewError(ErrCodeTooManyRequests, "請求過於頻繁", http.StatusTooManyRequests, nil)
	ErrInternalError      = NewError(ErrCodeInternalError, "服務器內部錯誤", http.StatusInternalServerError, nil)
	ErrServiceUnavailable = NewError(ErrCodeServiceUnavailable, "服務暫時不可用", http.StatusServiceUnavailable, nil)

	// 業務錯誤
	ErrProviderUnavailable = NewError(ErrCodeProviderUnavailable, "營養資料供應商不可用", http.StatusServiceUnavailable, nil)
	ErrStoreWriteFailed    = NewError(ErrCodeStoreWriteFailed, "食譜寫回失敗", http.StatusInternalServerError, nil)
	ErrEmptyPoolAfterRelax = NewError(ErrCodeEmptyPoolAfterRelax, "放寬條件後仍無候選餐點", http.StatusOK, nil)
	ErrStaleRequest        = NewError(ErrCodeStaleRequest, "已有較新的請求", http.StatusConflict, nil)
	ErrSessionNotFound     = NewError(ErrCodeSessionNotFound, "工作階段不存在", http.StatusNotFound, nil)
	ErrRecipeNotFound      = NewError(ErrCodeRecipeNotFound, "食譜不存在", http.StatusNotFound, nil)
)
