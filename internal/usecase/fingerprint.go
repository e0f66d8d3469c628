package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Fingerprint строит отпечаток нормализованного запроса для кэша результатов.
// Page и Size в отпечаток не входят: они влияют только на срез уже
// посчитанного списка кандидатов.
func Fingerprint(req *RecommendReq) string {
	var sb strings.Builder

	sb.WriteString("q=")
	sb.WriteString(strings.ToLower(strings.TrimSpace(req.Query)))
	sb.WriteString("\nimg=")
	sb.WriteString(strings.TrimSpace(req.ImageRef))
	fmt.Fprintf(&sb, "\nk=%d", req.K)

	keys := make([]string, 0, len(req.Filters))
	for k := range req.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "\nf:%s=%s", k, strings.ToLower(strings.TrimSpace(req.Filters[k])))
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}
