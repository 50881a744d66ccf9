package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"invhistory/internal/parser"
)

// Validate 校验配置
func Validate(cfg *AppConfig) error {
	validate := validator.New()

	// 文件名正则必须可编译且带日期捕获组
	_ = validate.RegisterValidation("snapshotpattern", func(fl validator.FieldLevel) bool {
		_, err := parser.CompileSnapshotPattern(fl.Field().String())
		return err == nil
	})

	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("config validation failed: %w", err)
	}

	msgs := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		msgs = append(msgs, fmt.Sprintf("%s: failed '%s' (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
