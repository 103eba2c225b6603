package router

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// Page describes an offset window over a listing of total items.
type Page struct {
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
	Total  int64 `json:"total"`
}

// NextOffset returns the offset of the following page, or -1 on the last page.
func (p Page) NextOffset() int {
	next := p.Offset + p.Limit
	if p.Limit <= 0 || int64(next) >= p.Total {
		return -1
	}
	return next
}

// PrevOffset returns the offset of the previous page, or -1 on the first page.
func (p Page) PrevOffset() int {
	if p.Offset <= 0 || p.Limit <= 0 {
		return -1
	}
	return max(p.Offset-p.Limit, 0)
}

// SetLinkHeaders writes RFC 8288 next/prev links for page.
func SetLinkHeaders(c *gin.Context, page Page) {
	links := make([]string, 0, 2)
	if next := page.NextOffset(); next >= 0 {
		links = append(links, buildLink(c, next, "next"))
	}
	if prev := page.PrevOffset(); prev >= 0 {
		links = append(links, buildLink(c, prev, "prev"))
	}
	c.Header("X-Total-Count", strconv.FormatInt(page.Total, 10))
	if len(links) > 0 {
		c.Header("Link", strings.Join(links, ", "))
	}
}

func buildLink(c *gin.Context, offset int, rel string) string {
	u, err := url.Parse(c.Request.URL.String())
	if err != nil || u == nil {
		return ""
	}
	q := u.Query()
	q.Set("offset", strconv.Itoa(offset))
	u.RawQuery = q.Encode()
	return fmt.Sprintf("<%s>; rel=%q", sanitizedURL(u), rel)
}

func sanitizedURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	if u.Scheme == "" && u.Host == "" {
		if u.RawQuery == "" {
			return u.Path
		}
		return u.Path + "?" + u.RawQuery
	}
	return u.String()
}
