package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/arrival-display/internal/logic"
	"github.com/sweeney/arrival-display/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"onoff": func(b bool) string {
		if b {
			return "ON"
		}
		return "OFF"
	},
	"indicator": func(c logic.IndicatorCommand) string {
		if c.Mode == logic.Blinking {
			return fmt.Sprintf("blinking %v", c.Period())
		}
		if c.Option != 0 {
			return "on"
		}
		return "off"
	},
	"countdown": func(at, now time.Time) string {
		d := at.Sub(now).Truncate(time.Second)
		if d < 0 {
			return "departed"
		}
		return d.String()
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Arrival Display</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Arrival Display</h1>

<h2>Screen</h2>
<table>
<tr><th>Mode</th><td>{{.Mode}}</td></tr>
<tr><th>Selected line</th><td>{{.SelectedLine}}</td></tr>
<tr><th>Backlight</th><td class="{{if .Backlight}}on{{else}}off{{end}}">{{onoff .Backlight}}</td></tr>
<tr><th>Night mode</th><td class="{{if .NightMode}}on{{else}}off{{end}}">{{onoff .NightMode}}</td></tr>
<tr><th>Indicator</th><td>{{indicator .Indicator}} ({{.Override}})</td></tr>
<tr><th>Button events</th><td>{{.Events}}</td></tr>
</table>

<h2>Next arrivals</h2>
<table>
{{range .Arrivals}}<tr><th>{{.At.Format "15:04:05"}}{{if not .RealTime}} (timetable){{end}}</th><td>{{countdown .At $.Now}}</td></tr>
{{else}}<tr><td>no data</td></tr>
{{end}}</table>

{{if .Weather}}<h2>Weather</h2>
<table>
<tr><th>Temperature</th><td>{{printf "%.1f" .Weather.Temperature}}&deg;C (feels {{printf "%.1f" .Weather.FeelsLike}})</td></tr>
<tr><th>Humidity</th><td>{{printf "%.0f" .Weather.Humidity}}%</td></tr>
<tr><th>Wind</th><td>{{printf "%.0f" .Weather.WindSpeed}} km/h from {{printf "%.0f" .Weather.WindHeading}}&deg;</td></tr>
<tr><th>Clouds / rain</th><td>{{printf "%.0f" .Weather.CloudCover}}% / {{printf "%.1f" .Weather.Rainfall}} mm</td></tr>
</table>{{end}}

{{if .Devices}}<h2>Devices</h2>
<table>
{{range .Devices}}<tr><th>{{.Name}}</th><td>{{.State}}</td></tr>
{{end}}</table>{{end}}

<h2>Connectivity</h2>
<table>
<tr><th>Internet</th><td class="{{if .Connected}}connected{{else}}disconnected{{end}}">{{if .Connected}}reachable{{else}}unreachable{{end}}</td></tr>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{range .Feeds}}<tr><th>Feed {{.Name}}</th><td>{{.Breaker}}{{if .LastError}}: {{.LastError}}{{end}}</td></tr>
{{end}}{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Button poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Render</th><td>{{.Config.RenderMs}}ms</td></tr>
<tr><th>Night timeout</th><td>{{.Config.NightTimeoutMs}}ms</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> &middot; <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	return indexTmpl.Execute(w, snap)
}
