package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter_Match(t *testing.T) {
	filter := NewFilter()

	t.Run("SQL注入特征命中", func(t *testing.T) {
		payloads := []string{
			"' OR 1=1; DROP TABLE users",
			"1 UNION SELECT password FROM accounts",
			"sleep(5)",
			"BENCHMARK(1000000,MD5('x'))",
			"DELETE FROM mailboxes",
		}

		for _, payload := range payloads {
			pattern, hit := filter.Match(payload)
			assert.True(t, hit, "payload: %s", payload)
			assert.NotEmpty(t, pattern)
		}
	})

	t.Run("脚本注入特征命中", func(t *testing.T) {
		payloads := []string{
			`<script>alert(1)</script>`,
			`<SCRIPT src="evil.js">`,
			`<img src=x onerror=alert(1)>`,
			`<body onload=steal()>`,
		}

		for _, payload := range payloads {
			_, hit := filter.Match(payload)
			assert.True(t, hit, "payload: %s", payload)
		}
	})

	t.Run("SQL关键字按整词匹配", func(t *testing.T) {
		// 含关键字子串的普通单词不应命中
		payloads := []string{
			"my selection of books",
			"updated profile",
			"dropdown menu",
			"reunion party",
		}

		for _, payload := range payloads {
			pattern, hit := filter.Match(payload)
			assert.False(t, hit, "payload: %s matched %s", payload, pattern)
		}
	})

	t.Run("正常请求内容放行", func(t *testing.T) {
		_, hit := filter.Match("POST /v1/temp-emails hello world")
		assert.False(t, hit)
	})

	t.Run("大小写不敏感", func(t *testing.T) {
		_, hit := filter.Match("SeLeCt * from users")
		assert.True(t, hit)
	})
}

func TestSanitizeString(t *testing.T) {
	t.Run("转义全部五种特殊字符", func(t *testing.T) {
		result := SanitizeString(`<a href="x" onclick='y'>M & Co</a>`)
		assert.Equal(t, "&lt;a href=&quot;x&quot; onclick=&#39;y&#39;&gt;M &amp; Co&lt;/a&gt;", result)
	})

	t.Run("普通字符串原样返回", func(t *testing.T) {
		assert.Equal(t, "hello world", SanitizeString("hello world"))
	})

	t.Run("重复转义会叠加", func(t *testing.T) {
		// & 最先替换，已转义的实体再过一遍会被二次转义
		once := SanitizeString("<b>")
		twice := SanitizeString(once)
		assert.Equal(t, "&lt;b&gt;", once)
		assert.Equal(t, "&amp;lt;b&amp;gt;", twice)
	})
}

func TestSanitizeValue(t *testing.T) {
	t.Run("递归处理嵌套结构", func(t *testing.T) {
		input := map[string]interface{}{
			"subject": "<script>",
			"tags":    []interface{}{"a&b", "plain"},
			"nested": map[string]interface{}{
				"body": `"quoted"`,
			},
			"count":  float64(3),
			"active": true,
			"empty":  nil,
		}

		result := SanitizeValue(input).(map[string]interface{})

		assert.Equal(t, "&lt;script&gt;", result["subject"])
		assert.Equal(t, []interface{}{"a&amp;b", "plain"}, result["tags"])
		assert.Equal(t, "&quot;quoted&quot;", result["nested"].(map[string]interface{})["body"])
		assert.Equal(t, float64(3), result["count"])
		assert.Equal(t, true, result["active"])
		assert.Nil(t, result["empty"])
	})

	t.Run("顶层字符串直接转义", func(t *testing.T) {
		assert.Equal(t, "&lt;b&gt;", SanitizeValue("<b>"))
	})
}
