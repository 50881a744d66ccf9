package parser

import "strings"

// 内置日期/时间数字格式 ID（含中日韩本地化格式）
var builtInDateNumFmts = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true, 21: true, 22: true,
	27: true, 28: true, 29: true, 30: true, 31: true, 32: true, 33: true, 34: true, 35: true, 36: true,
	45: true, 46: true, 47: true,
	50: true, 51: true, 52: true, 53: true, 54: true, 55: true, 56: true, 57: true, 58: true,
}

// isDateNumFmt 判断数字格式是否表示日期或时间。
// 自定义格式去掉引号文本、转义字符与方括号段（[h]/[mm]/[ss] 除外）后，含 y/m/d/h/s 即视为日期。
func isDateNumFmt(id int, custom *string) bool {
	if custom == nil {
		return builtInDateNumFmts[id]
	}

	code := strings.ToLower(*custom)
	// 只看正数段
	if i := strings.IndexByte(code, ';'); i >= 0 {
		code = code[:i]
	}
	if code == "general" || code == "@" {
		return false
	}

	var b strings.Builder
	for i := 0; i < len(code); i++ {
		switch c := code[i]; c {
		case '"':
			j := strings.IndexByte(code[i+1:], '"')
			if j < 0 {
				i = len(code)
			} else {
				i += j + 1
			}
		case '\\', '_', '*':
			i++
		case '[':
			j := strings.IndexByte(code[i:], ']')
			if j < 0 {
				i = len(code)
				break
			}
			inner := code[i+1 : i+j]
			if strings.Trim(inner, "hms") == "" {
				b.WriteString(inner)
			}
			i += j
		default:
			b.WriteByte(c)
		}
	}
	return strings.ContainsAny(b.String(), "ymdhs")
}
