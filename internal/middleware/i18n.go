// internal/middleware/i18n.go
package middleware

import (
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/vendor-settlement/internal/i18n"
)

// I18nMiddleware stores the best loaded locale for the request's
// Accept-Language header under "lang".
func I18nMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("lang", PreferredLanguage(c.GetHeader("Accept-Language")))
		c.Next()
	}
}

// PreferredLanguage walks an Accept-Language value such as
// "fr-CH, zh-TW;q=0.9, en;q=0.8" in quality order and returns the first
// tag with a loaded locale, or the default language.
func PreferredLanguage(header string) string {
	type candidate struct {
		tag     string
		quality float64
	}

	var candidates []candidate
	for _, part := range strings.Split(header, ",") {
		fields := strings.Split(part, ";")
		tag := strings.TrimSpace(fields[0])
		if tag == "" || tag == "*" {
			continue
		}

		quality := 1.0
		for _, param := range fields[1:] {
			param = strings.TrimSpace(param)
			if v, ok := strings.CutPrefix(param, "q="); ok {
				if q, err := strconv.ParseFloat(v, 64); err == nil {
					quality = q
				}
			}
		}
		if quality <= 0 {
			continue
		}
		candidates = append(candidates, candidate{tag: tag, quality: quality})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].quality > candidates[j].quality
	})

	for _, cand := range candidates {
		if lang := i18n.Match(cand.tag); lang != "" {
			return lang
		}
	}
	return i18n.DefaultLanguage()
}
