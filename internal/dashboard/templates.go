package dashboard

import "net/http"

// ServeIndex serves the inline single-page dashboard.
func (d *Dashboard) ServeIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexHTML))
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>gkchatty</title>
<style>
  * { box-sizing: border-box; }
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif;
         margin: 0; background: #f6f7f9; color: #1f2328; }
  header { background: #24292f; color: #fff; padding: 12px 24px; display: flex;
           justify-content: space-between; align-items: center; }
  header h1 { font-size: 18px; margin: 0; }
  main { display: grid; grid-template-columns: 1fr 1fr; gap: 16px;
         padding: 16px 24px; max-width: 1200px; margin: 0 auto; }
  .card { background: #fff; border: 1px solid #d0d7de; border-radius: 6px; padding: 16px; }
  .card h2 { font-size: 14px; margin: 0 0 12px; color: #57606a; text-transform: uppercase; }
  #stats { display: flex; gap: 24px; flex-wrap: wrap; }
  .stat b { display: block; font-size: 24px; }
  .stat span { font-size: 12px; color: #57606a; }
  #chat { grid-column: 1 / -1; }
  #messages { height: 280px; overflow-y: auto; border: 1px solid #d0d7de;
              border-radius: 6px; padding: 8px; margin-bottom: 8px; background: #fafbfc; }
  .msg { margin: 6px 0; }
  .msg.user { text-align: right; color: #0969da; }
  .msg .sources { font-size: 11px; color: #57606a; }
  #chat form { display: flex; gap: 8px; }
  #chat input { flex: 1; padding: 8px; border: 1px solid #d0d7de; border-radius: 6px; }
  #chat button { padding: 8px 16px; border: 0; border-radius: 6px;
                 background: #1f883d; color: #fff; cursor: pointer; }
  table { width: 100%; border-collapse: collapse; font-size: 13px; }
  td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #eaeef2; }
  .sev-critical { color: #cf222e; font-weight: 600; }
  .sev-warning { color: #9a6700; }
  #report { grid-column: 1 / -1; }
  #report-body pre { background: #f6f8fa; padding: 8px; overflow-x: auto; }
</style>
</head>
<body>
<header>
  <h1>gkchatty</h1>
  <div id="conn">disconnected</div>
</header>
<main>
  <div class="card" style="grid-column: 1 / -1">
    <h2>Deployment</h2>
    <div id="stats"></div>
  </div>
  <div class="card" id="chat">
    <h2>Chat</h2>
    <div id="messages"></div>
    <form id="chat-form">
      <input id="chat-input" placeholder="Ask the knowledge base..." autocomplete="off">
      <button type="submit">Send</button>
    </form>
  </div>
  <div class="card">
    <h2>Recent audit</h2>
    <table id="audit"></table>
  </div>
  <div class="card">
    <h2>Open findings</h2>
    <table id="findings"></table>
  </div>
  <div class="card" id="report">
    <h2>Latest diagnostic report</h2>
    <div id="report-body">No report yet. Run <code>gkchatty diag</code>.</div>
  </div>
</main>
<script>
let ws = null;
let sessionId = "";

function token() {
  let t = localStorage.getItem("gkchatty_token");
  if (!t) {
    t = prompt("API token (from gkchatty login or /api/auth/login):") || "";
    if (t) localStorage.setItem("gkchatty_token", t);
  }
  return t;
}

function connect() {
  const t = token();
  if (!t) return;
  const proto = location.protocol === "https:" ? "wss" : "ws";
  ws = new WebSocket(proto + "://" + location.host + "/api/chat/ws?token=" + encodeURIComponent(t));
  ws.onopen = () => { document.getElementById("conn").textContent = "connected"; };
  ws.onclose = () => { document.getElementById("conn").textContent = "disconnected"; ws = null; };
  ws.onmessage = (ev) => {
    const frame = JSON.parse(ev.data);
    if (frame.type === "error") { addMsg("error: " + frame.error, "bot"); return; }
    sessionId = frame.session_id || sessionId;
    const a = frame.answer || {};
    let text = a.answer || "";
    addMsg(text, "bot", a.sources || []);
  };
}

function addMsg(text, who, sources) {
  const div = document.createElement("div");
  div.className = "msg " + who;
  div.textContent = text;
  if (sources && sources.length) {
    const s = document.createElement("div");
    s.className = "sources";
    s.textContent = "sources: " + sources.map(x => x.file_name).join(", ");
    div.appendChild(s);
  }
  const box = document.getElementById("messages");
  box.appendChild(div);
  box.scrollTop = box.scrollHeight;
}

document.getElementById("chat-form").addEventListener("submit", (e) => {
  e.preventDefault();
  const input = document.getElementById("chat-input");
  const text = input.value.trim();
  if (!text) return;
  if (!ws || ws.readyState !== WebSocket.OPEN) connect();
  if (!ws) return;
  const sendIt = () => { ws.send(JSON.stringify({message: text, session_id: sessionId})); };
  if (ws.readyState === WebSocket.OPEN) sendIt(); else ws.addEventListener("open", sendIt, {once: true});
  addMsg(text, "user");
  input.value = "";
});

async function refresh() {
  try {
    const stats = await (await fetch("/api/dashboard/stats")).json();
    document.getElementById("stats").innerHTML =
      ["documents", "vectors", "namespaces", "open_findings", "sessions"]
        .map(k => '<div class="stat"><b>' + (stats[k] ?? 0) + "</b><span>" + k.replace("_", " ") + "</span></div>")
        .join("");

    const recent = await (await fetch("/api/dashboard/recent")).json();
    document.getElementById("audit").innerHTML =
      (recent.audit || []).map(e =>
        "<tr><td>" + e.action + "</td><td>" + (e.username || "-") + "</td><td>" +
        (e.success ? "ok" : "failed") + "</td></tr>").join("") || "<tr><td>no entries</td></tr>";
    document.getElementById("findings").innerHTML =
      (recent.findings || []).map(f =>
        '<tr><td class="sev-' + f.severity + '">' + f.severity + "</td><td>" + f.title + "</td></tr>").join("") ||
      "<tr><td>none open</td></tr>";

    const report = await (await fetch("/api/dashboard/report")).json();
    if (report.html) document.getElementById("report-body").innerHTML = report.html;
  } catch (err) { /* server restarting; retry on next tick */ }
}

connect();
refresh();
setInterval(refresh, 10000);
</script>
</body>
</html>
`
