package apperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Username        string `json:"username" validate:"required,min=3,max=50,username"`
	Password        string `json:"password" validate:"required,strongpassword"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone,omitempty" validate:"omitempty,cnphone"`
}

func TestValidateStructCollectsFieldsByJSONName(t *testing.T) {
	v := NewValidator()

	err := ValidateStruct(v, &signup{
		Username:        "a b",
		Password:        "weakpass",
		ConfirmPassword: "other",
		Email:           "not-an-email",
		Phone:           "123",
	})
	require.Error(t, err)

	var ae *Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, KindValidation, ae.Kind)
	assert.Equal(t, "用户名只能包含字母、数字和下划线", ae.Fields["username"])
	assert.Equal(t, "密码必须包含大小写字母和数字", ae.Fields["password"])
	assert.Equal(t, "两次输入的密码不一致", ae.Fields["confirmPassword"])
	assert.Equal(t, "请输入有效的邮箱地址", ae.Fields["email"])
	assert.Equal(t, "请输入有效的手机号码", ae.Fields["phone"])
}

func TestValidateStructAcceptsValidInput(t *testing.T) {
	v := NewValidator()
	err := ValidateStruct(v, &signup{
		Username:        "wang_wu",
		Password:        "Passw0rd!",
		ConfirmPassword: "Passw0rd!",
		Email:           "wang@cs.gov.cn",
		Phone:           "13812345678",
	})
	assert.NoError(t, err)
}

func TestRequiredAndLength(t *testing.T) {
	err := ValidateStruct(NewValidator(), &signup{Username: "ab"})

	var ae *Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "长度不能少于3个字符", ae.Fields["username"])
	assert.Equal(t, "不能为空", ae.Fields["password"])
	assert.NotContains(t, ae.Fields, "phone")
}

func TestIsStrongPassword(t *testing.T) {
	assert.True(t, IsStrongPassword("Abcdefg1"))
	assert.False(t, IsStrongPassword("abcdefg1"))
	assert.False(t, IsStrongPassword("ABCDEFG1"))
	assert.False(t, IsStrongPassword("Abcdefgh"))
	assert.False(t, IsStrongPassword("Abc1"))
	assert.False(t, IsStrongPassword("Abcdefg1#"))
}
