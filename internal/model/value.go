package model

import (
	"strconv"
	"strings"
	"time"
)

// ValueKind 单元格值类型
type ValueKind int

const (
	KindEmpty  ValueKind = iota // 空/缺失
	KindString                  // 文本
	KindNumber                  // 数值
	KindBool                    // 布尔
	KindDate                    // 日期/时间
)

// String 返回类型名称
func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	default:
		return "empty"
	}
}

// Value 快照单元格中的标量值（字符串、数值、布尔、日期或缺失）
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	Bool bool
	Time time.Time
}

// Empty 缺失值
func Empty() Value { return Value{} }

// StringValue 文本值
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// NumberValue 数值
func NumberValue(n float64) Value { return Value{Kind: KindNumber, Num: n} }

// BoolValue 布尔值
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// DateValue 日期/时间值
func DateValue(t time.Time) Value { return Value{Kind: KindDate, Time: t} }

// IsEmpty 是否为缺失值
func (v Value) IsEmpty() bool {
	return v.Kind == KindEmpty
}

// String 渲染为可读文本；缺失值为空串
func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindDate:
		if HasClock(v.Time) {
			return v.Time.Format(time.DateTime)
		}
		return v.Time.Format(time.DateOnly)
	default:
		return ""
	}
}

// Interface 转换为 excelize 可直接写入的值；缺失值返回 nil
func (v Value) Interface() any {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return v.Num
	case KindBool:
		return v.Bool
	case KindDate:
		return v.Time
	default:
		return nil
	}
}

// SerialKey 将单元格值规范化为序列号键。
// 缺失值或去除首尾空白后为空时 ok 为 false。
func (v Value) SerialKey() (key string, ok bool) {
	if v.IsEmpty() {
		return "", false
	}
	key = strings.TrimSpace(v.String())
	return key, key != ""
}

// HasClock 是否带有时分秒
func HasClock(t time.Time) bool {
	return t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0 || t.Nanosecond() != 0
}
