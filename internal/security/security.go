package security

import (
	"context"
	"html"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/errors"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/types"
)

// InputPolicy bounds what the HTTP layer accepts before a request reaches
// the engine
type InputPolicy struct {
	MaxContentLength int           `json:"max_content_length"` // in runes
	MaxCountries     int           `json:"max_countries"`
	RequestTimeout   time.Duration `json:"request_timeout"`
}

// DefaultInputPolicy returns the limits used by the server
func DefaultInputPolicy() InputPolicy {
	return InputPolicy{
		MaxContentLength: 20000,
		MaxCountries:     50,
		RequestTimeout:   30 * time.Second,
	}
}

var (
	scriptPattern  = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	htmlTagPattern = regexp.MustCompile(`<[^>]+>`)
	spacePattern   = regexp.MustCompile(`\s+`)
)

// SanitizeContent strips markup from pasted campaign copy and collapses
// whitespace, leaving the visible text
func SanitizeContent(input string) string {
	input = scriptPattern.ReplaceAllString(input, " ")
	input = htmlTagPattern.ReplaceAllString(input, " ")
	input = html.UnescapeString(input)
	input = spacePattern.ReplaceAllString(input, " ")
	return strings.TrimSpace(input)
}

// ValidateContent rejects content the engine should never see. Emptiness is
// left to the engine.
func (p InputPolicy) ValidateContent(input string) error {
	if !utf8.ValidString(input) {
		return errors.NewValidationError("campaign_content contains invalid UTF-8 encoding")
	}
	if strings.ContainsRune(input, 0) {
		return errors.NewValidationError("campaign_content contains invalid characters")
	}
	if p.MaxContentLength > 0 && utf8.RuneCountInString(input) > p.MaxContentLength {
		return errors.NewValidationError("campaign_content is too long",
			"maximum length is "+strconv.Itoa(p.MaxContentLength)+" characters")
	}
	return nil
}

// ValidateAnalyzeRequest checks the HTTP-level bounds of req and sanitizes
// its content in place
func (p InputPolicy) ValidateAnalyzeRequest(req *types.AnalyzeRequest) error {
	if err := p.ValidateContent(req.CampaignContent); err != nil {
		return err
	}
	if p.MaxCountries > 0 && len(req.TargetCountries) > p.MaxCountries {
		return errors.NewValidationError("too many target_countries",
			"at most "+strconv.Itoa(p.MaxCountries)+" countries per request")
	}
	req.CampaignContent = SanitizeContent(req.CampaignContent)
	return nil
}

// ValidateContentType rejects request bodies that are not JSON
func ValidateContentType() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodPost && c.ContentType() != "application/json" {
			c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{
				"error": "unsupported content type, expected application/json",
			})
			return
		}
		c.Next()
	}
}

// RequestTimeout bounds the request context
func RequestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Timeout", strconv.Itoa(int(timeout.Seconds())))

		c.Next()
	}
}
