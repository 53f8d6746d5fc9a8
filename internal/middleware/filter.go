package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kezmail/backend/internal/audit"
	"kezmail/backend/internal/domain"
	"kezmail/backend/internal/monitoring"
	"kezmail/backend/internal/security"
)

// RequestFilter 请求过滤中间件。
//
// 把 URL、查询串与请求体拼成一个文本后做特征匹配：命中即写审计
// 并返回通用 400，不向调用方泄露命中细节；未命中时对请求体与
// 查询串中的所有字符串做 HTML 实体转义后放行。
type RequestFilter struct {
	filter  *security.Filter
	auditor *audit.Logger
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewRequestFilter 创建请求过滤中间件
func NewRequestFilter(auditor *audit.Logger, metrics *monitoring.Metrics, log *zap.Logger) *RequestFilter {
	return &RequestFilter{
		filter:  security.NewFilter(),
		auditor: auditor,
		metrics: metrics,
		log:     log,
	}
}

// Handler 返回 gin 中间件
func (f *RequestFilter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body []byte
		if c.Request.Body != nil {
			var err error
			body, err = io.ReadAll(c.Request.Body)
			if err != nil {
				f.log.Warn("failed to read request body", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"message": "请求体读取失败",
				})
				return
			}
		}

		rawQuery, err := url.QueryUnescape(c.Request.URL.RawQuery)
		if err != nil {
			rawQuery = c.Request.URL.RawQuery
		}

		combined := strings.Join([]string{
			c.Request.URL.Path,
			rawQuery,
			string(body),
		}, " ")

		if pattern, matched := f.filter.Match(combined); matched {
			f.metrics.PatternHits.Inc()
			f.auditor.Record(c.ClientIP(), c.Request.UserAgent(),
				domain.ActionPatternDetected, "pattern: "+pattern)
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"message": "检测到异常请求，已拒绝访问",
			})
			return
		}

		f.sanitizeBody(c, body)
		f.sanitizeQuery(c)

		c.Next()
	}
}

// sanitizeBody 转义 JSON 请求体中的全部字符串后写回。
//
// 非 JSON 请求体不做改写，原样透传（特征匹配已经覆盖过它）。
func (f *RequestFilter) sanitizeBody(c *gin.Context, body []byte) {
	if len(body) == 0 {
		return
	}

	restore := func() {
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
	}

	if !strings.Contains(c.ContentType(), "application/json") {
		restore()
		return
	}

	var payload interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		restore()
		return
	}

	sanitized, err := json.Marshal(security.SanitizeValue(payload))
	if err != nil {
		restore()
		return
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(sanitized))
	c.Request.ContentLength = int64(len(sanitized))
}

// sanitizeQuery 转义查询串中的所有值并重写回请求 URL。
func (f *RequestFilter) sanitizeQuery(c *gin.Context) {
	values := c.Request.URL.Query()
	if len(values) == 0 {
		return
	}

	sanitized := make(url.Values, len(values))
	for key, items := range values {
		for _, item := range items {
			sanitized.Add(key, security.SanitizeString(item))
		}
	}
	c.Request.URL.RawQuery = sanitized.Encode()
}
