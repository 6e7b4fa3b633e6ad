package monitor

// dashboardHTML is the landing page for the debug charts. Chart query
// parameters (classifier, run_id) are set per-iframe by the inputs at the
// top of the page.
const dashboardHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Landform Debug Charts</title>
<style>
body { font-family: sans-serif; margin: 1em; background: #111; color: #ddd; }
iframe { border: 1px solid #333; width: 100%; height: 760px; margin-bottom: 1em; }
input, button { font-size: 1em; padding: 0.2em 0.5em; }
label { margin-right: 1em; }
</style>
</head>
<body>
<h1>Landform Debug Charts</h1>
<p>
<label>classifier <input id="clf" value="E5"></label>
<label>ensemble run_id <input id="run" size="40"></label>
<button onclick="reload()">reload</button>
</p>
<iframe id="confusion" src="/debug/charts/confusion?classifier=E5"></iframe>
<iframe id="metrics" src="/debug/charts/metrics?classifier=E5"></iframe>
<iframe id="labels" src="about:blank"></iframe>
<script>
function reload() {
  const clf = encodeURIComponent(document.getElementById('clf').value);
  const run = encodeURIComponent(document.getElementById('run').value);
  document.getElementById('confusion').src = '/debug/charts/confusion?classifier=' + clf;
  document.getElementById('metrics').src = '/debug/charts/metrics?classifier=' + clf;
  if (run) {
    document.getElementById('labels').src = '/debug/charts/labels?run_id=' + run;
  }
}
</script>
</body>
</html>
`
