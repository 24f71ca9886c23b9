// Package redirect implements the redirect resolution pipeline: request
// context extraction and the pure target-resolution engine.
package redirect

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mileusna/useragent"

	"github.com/linkpulse/linkpulse/internal/geo"
	"github.com/linkpulse/linkpulse/internal/model"
)

// Device is the coarse device class derived from the user agent.
type Device string

const (
	DeviceMobile  Device = "mobile"
	DeviceTablet  Device = "tablet"
	DeviceDesktop Device = "desktop"
	DeviceBot     Device = "bot"
)

// Context is the normalized per-request view the engine matches rules
// against. Empty strings and nil pointers mean "unknown", not "false".
type Context struct {
	Country   string // ISO 3166-1 alpha-2, upper-cased
	Language  string // two-letter code, lower-cased
	Hour      *int   // 0-23, UTC
	DayOfWeek *int   // 0-6, Sunday = 0, UTC
	Device    Device
	OS        string
	Browser   string
	Campaign  string
	Referrer  string
}

// ClientIP returns the client address for a request: the first entry of
// X-Forwarded-For when present, else the socket's remote address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := xff
		if i := strings.IndexByte(xff, ','); i >= 0 {
			first = xff[:i]
		}
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// ExtractContext derives a Context from the request. Pure: geo resolution
// happens upstream and the location is passed in; now supplies the clock.
// Hour and day-of-week use UTC so rule authors have a fixed reference frame.
func ExtractContext(r *http.Request, loc *geo.Location, now time.Time) Context {
	ctx := Context{
		Referrer: r.Header.Get("Referer"),
	}

	ua := useragent.Parse(r.UserAgent())
	ctx.Browser = ua.Name
	ctx.OS = ua.OS
	ctx.Device = classifyDevice(ua)

	if loc != nil && loc.Country != "" {
		ctx.Country = strings.ToUpper(loc.Country)
	}

	if lang := r.Header.Get("Accept-Language"); len(lang) >= 2 {
		ctx.Language = strings.ToLower(lang[:2])
	}

	utc := now.UTC()
	hour := utc.Hour()
	dow := int(utc.Weekday())
	ctx.Hour = &hour
	ctx.DayOfWeek = &dow

	query := r.URL.Query()
	ctx.Campaign = query.Get("utm_campaign")
	if ctx.Campaign == "" {
		ctx.Campaign = query.Get("campaign")
	}

	return ctx
}

// classifyDevice maps parser output to a device class. A missing browser
// name or one containing "bot" always classifies as bot, regardless of the
// parser's device-type guess.
func classifyDevice(ua useragent.UserAgent) Device {
	if ua.Name == "" || strings.Contains(strings.ToLower(ua.Name), "bot") || ua.Bot {
		return DeviceBot
	}
	switch {
	case ua.Mobile:
		return DeviceMobile
	case ua.Tablet:
		return DeviceTablet
	default:
		return DeviceDesktop
	}
}

// fieldValue is the optional variant returned by the typed field accessor.
type fieldValue struct {
	str     string
	num     float64
	numeric bool
}

// value resolves a condition field against the context. ok is false when
// the field is unknown for this request; unknown never matches.
func (c *Context) value(f model.ConditionField) (fieldValue, bool) {
	switch f {
	case model.FieldCountry:
		return fieldValue{str: c.Country}, c.Country != ""
	case model.FieldLanguage:
		return fieldValue{str: c.Language}, c.Language != ""
	case model.FieldDevice:
		return fieldValue{str: string(c.Device)}, c.Device != ""
	case model.FieldOS:
		return fieldValue{str: c.OS}, c.OS != ""
	case model.FieldBrowser:
		return fieldValue{str: c.Browser}, c.Browser != ""
	case model.FieldCampaign:
		return fieldValue{str: c.Campaign}, c.Campaign != ""
	case model.FieldReferrer:
		return fieldValue{str: c.Referrer}, c.Referrer != ""
	case model.FieldHour:
		if c.Hour == nil {
			return fieldValue{}, false
		}
		return fieldValue{str: strconv.Itoa(*c.Hour), num: float64(*c.Hour), numeric: true}, true
	case model.FieldDayOfWeek:
		if c.DayOfWeek == nil {
			return fieldValue{}, false
		}
		return fieldValue{str: strconv.Itoa(*c.DayOfWeek), num: float64(*c.DayOfWeek), numeric: true}, true
	}
	return fieldValue{}, false
}
