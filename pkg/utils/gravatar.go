package utils

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"strings"
)

// GravatarURL 200px, pg 级, 无头像时用 mystery-man
func GravatarURL(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	q := url.Values{}
	q.Set("s", "200")
	q.Set("r", "pg")
	q.Set("d", "mm")
	return "https://www.gravatar.com/avatar/" + hex.EncodeToString(sum[:]) + "?" + q.Encode()
}
