package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/blinker/internal/mqtt"
	"github.com/sweeney/blinker/internal/status"
)

// mqttJSURL is the browser MQTT client used by the live view.
const mqttJSURL = "https://unpkg.com/mqtt@5/dist/mqtt.min.js"

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		switch {
		case days > 0:
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		case h > 0:
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		case m > 0:
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"levelClass": func(level string) string {
		switch level {
		case "HIGH":
			return "high"
		case "LOW":
			return "low"
		}
		return "unknown"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
{{if not .Config.WSBroker}}<meta http-equiv="refresh" content="5">{{end}}
<title>Blinker</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.high { color: green; font-weight: bold; }
.low { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Blinker{{if .DeviceID}} <small>{{.DeviceID}}</small>{{end}}{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>Pin</h2>
<table>
<tr><th>Level</th><td id="level" class="{{levelClass .Level}}">{{.Level}}</td></tr>
<tr><th>Pin</th><td>{{.Config.Pin}} ({{.Config.Backend}}{{if eq .Config.Backend "gpiocdev"}} {{.Config.Chip}}{{end}})</td></tr>
<tr><th>Loop</th><td id="loop">{{if .Running}}running{{else}}stopped{{end}}</td></tr>
<tr><th>Tick</th><td id="tick">{{.Tick}}</td></tr>
<tr><th>Next threshold</th><td id="next">{{.Next}}</td></tr>
</table>

<h2>Counts</h2>
<table>
<tr><th>Toggles</th><td id="toggles">{{.Counts.Toggles}}</td></tr>
<tr><th>Failures</th><td id="failures">{{.Counts.Failures}}</td></tr>
<tr><th>Late</th><td id="late">{{.Counts.Late}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .MQTTDropped}}<tr><th>Dropped</th><td>{{.MQTTDropped}}</td></tr>{{end}}
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Interval</th><td>{{.Config.IntervalTicks}} ticks</td></tr>
<tr><th>Poll</th><td>{{if eq .Config.PollMs 0}}spin{{else}}{{.Config.PollMs}}ms{{end}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatTicks 0}}disabled{{else}}{{.Config.HeartbeatTicks}} ticks{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
{{if .Config.WSBroker}}
<script src="{{.MQTTJS}}"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var eventsTopic = "{{.EventsTopic}}";
  var systemTopic = "{{.SystemTopic}}";
  var interval = {{.Config.IntervalTicks}};
  var dot = document.getElementById("live-dot");

  function set(id, value) {
    document.getElementById(id).textContent = value;
  }

  function setLevel(level) {
    var el = document.getElementById("level");
    el.textContent = level;
    el.className = level === "HIGH" ? "high" : level === "LOW" ? "low" : "unknown";
  }

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe([eventsTopic, systemTopic]);
  });
  client.on("reconnect", function() { setDot("pending", "reconnecting"); });
  client.on("offline", function() { setDot("err", "offline"); });
  client.on("error", function() { setDot("err", "error"); });

  client.on("message", function(t, payload) {
    var msg;
    try { msg = JSON.parse(payload.toString()); } catch (e) { return; }
    if (msg.blink) {
      // Toggle events: level, tick and the threshold after this one.
      if (msg.blink.level !== "UNKNOWN") { setLevel(msg.blink.level); }
      set("tick", msg.blink.tick);
      set("next", msg.blink.threshold + interval);
    } else if (msg.status) {
      // STARTUP, HEARTBEAT and SHUTDOWN carry a full snapshot.
      setLevel(msg.status.level);
      set("tick", msg.status.tick);
      set("next", msg.status.next_threshold);
      set("loop", msg.status.running ? "running" : "stopped");
      set("toggles", msg.status.counts.toggles);
      set("failures", msg.status.counts.failures);
      set("late", msg.status.counts.late);
    } else if (msg.system && msg.system.event === "OFFLINE") {
      set("loop", "offline");
    }
  });
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime      time.Duration
		Level       string
		MQTTJS      string
		EventsTopic string
		SystemTopic string
	}{
		Snapshot:    snap,
		Uptime:      snap.Uptime(),
		Level:       string(snap.Level),
		MQTTJS:      mqttJSURL,
		EventsTopic: mqtt.Topic,
		SystemTopic: mqtt.TopicSystem,
	}
	if data.Level == "" {
		data.Level = "UNKNOWN"
	}
	return indexTmpl.Execute(w, data)
}
