package account

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/weiliu/h5client/internal/api"
)

// Validation messages shown to the viewer verbatim.
const (
	MsgFieldsRequired       = "请填写所有字段"
	MsgAccountCharset       = "账号只能包含字母和数字"
	MsgAccountLength        = "账号长度应在4-20位之间"
	MsgAccountComposition   = "账号必须包含字母或数字"
	MsgNicknameLength       = "昵称长度应在2-20个字符之间"
	MsgProfileNicknameLen   = "昵称长度应在2-8个字符之间"
	MsgPasswordComposition  = "密码必须同时包含数字和字母"
	MsgPasswordLength       = "密码长度不能少于8位"
	MsgPasswordMismatch     = "两次输入的密码不一致"
	MsgPasswordFieldsNeeded = "请填写所有密码字段"
	MsgNewPasswordLength    = "新密码长度不能少于6位"
	MsgNewPasswordMismatch  = "两次输入的新密码不一致"
	MsgNewPasswordSame      = "新密码不能与旧密码相同"
)

// LoginForm holds the login page's input.
type LoginForm struct {
	Username string
	Password string
}

// Validate checks the form before any request is made.
func (f LoginForm) Validate() error {
	if f.Username == "" || f.Password == "" {
		return invalid(MsgFieldsRequired)
	}
	return nil
}

// RegisterForm holds the registration page's input.
type RegisterForm struct {
	Account         string
	Nickname        string
	Password        string
	ConfirmPassword string
	Icon            string
}

// Validate applies the account, nickname and password rules in page order.
func (f RegisterForm) Validate() error {
	if f.Account == "" || f.Nickname == "" || f.Password == "" || f.ConfirmPassword == "" {
		return invalid(MsgFieldsRequired)
	}

	hasLetter, hasDigit := false, false
	for _, r := range f.Account {
		switch {
		case r < unicode.MaxASCII && unicode.IsLetter(r):
			hasLetter = true
		case r < unicode.MaxASCII && unicode.IsDigit(r):
			hasDigit = true
		default:
			return invalid(MsgAccountCharset)
		}
	}
	if n := len(f.Account); n < 4 || n > 20 {
		return invalid(MsgAccountLength)
	}
	if !hasLetter && !hasDigit {
		return invalid(MsgAccountComposition)
	}

	if n := utf8.RuneCountInString(f.Nickname); n < 2 || n > 20 {
		return invalid(MsgNicknameLength)
	}

	if !strings.ContainsAny(f.Password, "0123456789") || !strings.ContainsAny(f.Password, "abcdefghijklmnopqrstuvwxyz") {
		return invalid(MsgPasswordComposition)
	}
	if len(f.Password) < 8 {
		return invalid(MsgPasswordLength)
	}
	if f.Password != f.ConfirmPassword {
		return invalid(MsgPasswordMismatch)
	}
	return nil
}

// PasswordForm holds the change-password page's input.
type PasswordForm struct {
	OldPassword     string
	NewPassword     string
	ConfirmPassword string
}

// Validate checks the password change rules.
func (f PasswordForm) Validate() error {
	if f.OldPassword == "" || f.NewPassword == "" || f.ConfirmPassword == "" {
		return invalid(MsgPasswordFieldsNeeded)
	}
	if len(f.NewPassword) < 6 {
		return invalid(MsgNewPasswordLength)
	}
	if f.NewPassword != f.ConfirmPassword {
		return invalid(MsgNewPasswordMismatch)
	}
	if f.OldPassword == f.NewPassword {
		return invalid(MsgNewPasswordSame)
	}
	return nil
}

// ProfileForm holds editable profile fields. Nil fields are left unchanged.
type ProfileForm struct {
	NickName *string
	Note     *string
	Icon     *string
	Email    *string
}

// Validate checks the profile edit rules.
func (f ProfileForm) Validate() error {
	if f.NickName != nil {
		if n := utf8.RuneCountInString(strings.TrimSpace(*f.NickName)); n < 2 || n > 8 {
			return invalid(MsgProfileNicknameLen)
		}
	}
	return nil
}

func invalid(message string) error {
	return api.Validation(message).Err()
}
