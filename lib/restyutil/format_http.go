package restyutil

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/go-resty/resty/v2"
)

// formatHttpMessage renders one request/response exchange as a plain-text
// transcript for the dump output.
func formatHttpMessage(res *resty.Response) string {
	var b strings.Builder

	b.WriteString("---- REQUEST ----\n\n")
	fmt.Fprintf(&b, "%s %s\n\n", res.Request.Method, res.Request.URL)
	writeHeaders(&b, res.Request.RawRequest.Header)
	b.WriteString("\n")
	b.WriteString(requestBody(res.Request.RawRequest))

	b.WriteString("\n\n---- RESPONSE ----\n\n")
	fmt.Fprintf(&b, "%d %s\n\n", res.StatusCode(), responseUrl(res))
	writeHeaders(&b, res.Header())
	b.WriteString("\n")
	b.WriteString(res.String())

	return b.String()
}

// headers are written in sorted order so transcripts of repeated calls diff
// cleanly
func writeHeaders(b *strings.Builder, headers http.Header) {
	keys := make([]string, 0, len(headers))
	for key := range headers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		for _, value := range headers[key] {
			fmt.Fprintf(b, "%s: %s\n", key, value)
		}
	}
}

// the original body reader was consumed by the transport, so the body has to
// be re-read through GetBody; requests without one (all GETs) render empty
func requestBody(req *http.Request) string {
	if req.GetBody == nil {
		return ""
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("failed to get request body: %s", err)
	}
	contents, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("failed to read request body: %s", err)
	}
	return string(contents)
}

// a redirected exchange reports the final location it landed on
func responseUrl(res *resty.Response) string {
	redirected, err := res.RawResponse.Location()
	if err == nil {
		return redirected.String()
	}
	return res.Request.URL
}
