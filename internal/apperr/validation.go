package apperr

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	phonePattern    = regexp.MustCompile(`^1[3-9]\d{9}$`)
	passwordCharset = regexp.MustCompile(`^[a-zA-Z\d@$!%*?&]+$`)
)

// NewValidator настраивает validator/v10: имена полей берутся из json-тегов,
// добавлены правила username, cnphone и strongpassword.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("cnphone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return IsStrongPassword(fl.Field().String())
	})
	return v
}

// IsStrongPassword: строчная, заглавная буква и цифра; только разрешённые символы.
func IsStrongPassword(s string) bool {
	if len(s) < 8 || !passwordCharset.MatchString(s) {
		return false
	}
	var lower, upper, digit bool
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}
	return lower && upper && digit
}

// ValidateStruct возвращает *Error с картой полей либо nil.
func ValidateStruct(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		out := Validation(FieldErrors(ve))
		out.Cause = err
		return out
	}
	return Wrap(KindRuntime, err, "validator misuse")
}

// FieldErrors сворачивает ошибки валидатора в карту поле → сообщение (первая ошибка на поле).
func FieldErrors(ve validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(ve))
	for _, fe := range ve {
		if _, seen := out[fe.Field()]; seen {
			continue
		}
		out[fe.Field()] = fieldMessage(fe)
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return "不能为空"
	case "min":
		if isString {
			return fmt.Sprintf("长度不能少于%s个字符", fe.Param())
		}
		return "不能小于" + fe.Param()
	case "max":
		if isString {
			return fmt.Sprintf("长度不能超过%s个字符", fe.Param())
		}
		return "不能大于" + fe.Param()
	case "email":
		return "请输入有效的邮箱地址"
	case "eqfield":
		return "两次输入的密码不一致"
	case "username":
		return "用户名只能包含字母、数字和下划线"
	case "cnphone":
		return "请输入有效的手机号码"
	case "strongpassword":
		return "密码必须包含大小写字母和数字"
	}
	return "格式不正确"
}
