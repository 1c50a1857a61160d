package audit

import (
	"strings"

	"github.com/mssola/useragent"
)

// ParseDevice builds a DeviceContext from a raw User-Agent header and the
// client IP. Unrecognized agents fall back to "Desconocido" rather than
// failing; the audit trail must record something for every request.
func ParseDevice(rawUA, ip string) DeviceContext {
	ctx := DeviceContext{
		IP:        ip,
		UserAgent: rawUA,
		Device:    "Escritorio",
		Browser:   "Desconocido",
		OS:        "Desconocido",
	}
	if rawUA == "" {
		return ctx
	}

	ua := useragent.New(rawUA)
	if name, version := ua.Browser(); name != "" {
		ctx.Browser = name
		if version != "" {
			ctx.Browser = name + " " + version
		}
	}
	if os := ua.OSInfo().FullName; os != "" {
		ctx.OS = os
	}
	switch {
	case strings.Contains(rawUA, "iPad"):
		ctx.Device = "Tablet"
	case ua.Mobile():
		ctx.Device = "Móvil"
	case ua.Bot():
		ctx.Device = "Bot"
	}
	return ctx
}
