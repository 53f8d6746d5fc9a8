package security

import (
	"regexp"
	"strings"
)

// Filter 请求内容过滤器。
//
// 按固定顺序匹配一组可疑特征：SQL 关键字注入（整词、忽略大小写）
// 与脚本/标记注入。命中即拒绝，特征内容只进审计日志，不回传调用方。
type Filter struct {
	patterns []*regexp.Regexp
}

// NewFilter 创建请求内容过滤器
func NewFilter() *Filter {
	return &Filter{
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(select|insert|update|delete|drop|union|sleep|benchmark)\b`),
			regexp.MustCompile(`(?i)<script`),
			regexp.MustCompile(`(?i)onerror=`),
			regexp.MustCompile(`(?i)onload=`),
		},
	}
}

// Match 对合并后的请求内容做特征匹配，返回第一个命中的特征。
func (f *Filter) Match(payload string) (string, bool) {
	for _, pattern := range f.patterns {
		if pattern.MatchString(payload) {
			return pattern.String(), true
		}
	}
	return "", false
}

// SanitizeString 对字符串做 HTML 实体转义。
//
// & 必须最先替换，否则后续替换引入的实体会被二次转义。
func SanitizeString(value string) string {
	value = strings.ReplaceAll(value, "&", "&amp;")
	value = strings.ReplaceAll(value, "<", "&lt;")
	value = strings.ReplaceAll(value, ">", "&gt;")
	value = strings.ReplaceAll(value, `"`, "&quot;")
	value = strings.ReplaceAll(value, "'", "&#39;")
	return value
}

// SanitizeValue 深度优先转义任意 JSON 值中的全部字符串。
//
// 映射与序列递归处理，非字符串标量原样返回。
func SanitizeValue(value interface{}) interface{} {
	switch typed := value.(type) {
	case string:
		return SanitizeString(typed)
	case map[string]interface{}:
		sanitized := make(map[string]interface{}, len(typed))
		for key, item := range typed {
			sanitized[key] = SanitizeValue(item)
		}
		return sanitized
	case []interface{}:
		sanitized := make([]interface{}, len(typed))
		for i, item := range typed {
			sanitized[i] = SanitizeValue(item)
		}
		return sanitized
	default:
		return value
	}
}
