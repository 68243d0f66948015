package claim

import "strings"

// ExtractField 从上下文串中提取标记之后的字段值。
// 定位 marker 的第一次出现，从其末尾开始读取，直到下一个未转义的双引号。
// 找不到 marker 时返回空串，由调用方决定"字段缺失"是否致命。
// 这是字节级扫描而非 JSON 解析：引号是否转义只看前一个字节是不是
// 反斜杠，不识别双重转义。该宽松行为与已签发声明保持兼容，
// 不要改成严格解析器。
func ExtractField(context, marker string) string {
	start := strings.Index(context, marker)
	if start < 0 {
		return ""
	}
	start += len(marker)
	for i := start; i < len(context); i++ {
		if context[i] == '"' && (i == start || context[i-1] != '\\') {
			return context[start:i]
		}
	}
	return context[start:]
}
