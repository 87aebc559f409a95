package upstream

import (
	"math/rand"
	"net/http"

	"github.com/google/uuid"
)

// fingerprintHeaders returns the fixed browser-fingerprint header set the
// upstream's anti-bot layer expects, for the given user-agent and origin.
// The sec-ch-ua values are pinned to the Chrome generation in the default
// rotation list; mismatched client hints are themselves a bot signal.
func fingerprintHeaders(userAgent, origin string) http.Header {
	h := http.Header{}
	h.Set("accept", "*/*")
	h.Set("accept-language", "en-US,en;q=0.9,de-DE;q=0.8,de;q=0.7")
	h.Set("cache-control", "no-cache")
	h.Set("content-type", "application/json")
	h.Set("origin", origin)
	h.Set("pragma", "no-cache")
	h.Set("priority", "u=1, i")
	h.Set("referer", origin+"/")
	h.Set("sec-ch-ua", `"Chromium";v="140", "Not=A?Brand";v="24", "Google Chrome";v="140"`)
	h.Set("sec-ch-ua-mobile", "?0")
	h.Set("sec-ch-ua-platform", `"Windows"`)
	h.Set("sec-fetch-dest", "empty")
	h.Set("sec-fetch-mode", "cors")
	h.Set("sec-fetch-site", "same-origin")
	h.Set("user-agent", userAgent)
	h.Set("x-xai-request-id", uuid.NewString())
	return h
}

// pickUserAgent selects uniformly at random from the rotation list. The
// choice is made once per attempt and stays stable within it.
func pickUserAgent(agents []string) string {
	if len(agents) == 0 {
		return "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36"
	}
	return agents[rand.Intn(len(agents))]
}
