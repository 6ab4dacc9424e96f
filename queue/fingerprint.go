package queue

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/hexquarry/battle/types"
)

// Fingerprint computes a stable hash over a canonicalized GenerationRequest.
// Field order and incidental whitespace never affect the result; distinct
// requests collide only with cryptographic improbability.
func Fingerprint(req types.GenerationRequest) string {
	canonical := canonicalize(req)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// canonicalize renders req as JSON with map-like key ordering fixed and
// string fields trimmed, so that semantically identical requests always
// produce byte-identical input to the hash.
func canonicalize(req types.GenerationRequest) string {
	imageDigest := ""
	if len(req.RawImage) > 0 {
		sum := sha256.Sum256(req.RawImage)
		imageDigest = hex.EncodeToString(sum[:])
	}

	fields := map[string]any{
		"type":                string(req.Type),
		"style":               strings.TrimSpace(req.Style),
		"size_width":          req.Size.Width,
		"size_height":         req.Size.Height,
		"action":              strings.TrimSpace(req.Action),
		"description":         strings.Join(strings.Fields(req.Description), " "),
		"text_guidance_scale": req.TextGuidanceScale,
		"raw_image_digest":    imageDigest,
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		encoded, _ := json.Marshal(fields[k])
		b.WriteString(k)
		b.WriteByte(':')
		b.Write(encoded)
		b.WriteByte('\n')
	}
	return b.String()
}
