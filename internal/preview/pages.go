package preview

import (
	"github.com/leapstack-labs/leaptmpl/pkg/engine"
	"github.com/leapstack-labs/leaptmpl/pkg/eval"
)

// The preview UI is itself rendered with the engine.
var pageSources = []engine.Source{
	{Name: "layout", Content: `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{% block title %}leaptmpl{% endblock %}</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; color: #222; }
table { border-collapse: collapse; }
td, th { padding: .25rem .75rem; border-bottom: 1px solid #ddd; text-align: left; }
pre.error { background: #fee; border: 1px solid #c33; padding: 1rem; white-space: pre-wrap; }
</style>
</head>
<body>
{% block body %}{% endblock %}
<script>{{ reload_script | safe }}</script>
</body>
</html>
`},
	{Name: "index", Content: `{% extends "layout" %}
{% block title %}Templates - {{ super() }}{% endblock %}
{% block body %}
<h1>Templates</h1>
{% if error %}<pre class="error">{{ error }}</pre>{% endif %}
<table>
<tr><th>Template</th><th>Extends</th><th>Level</th><th>Imports</th></tr>
{% for t in templates -%}
<tr><td><a href="/render/{{ t.name }}">{{ t.name }}</a></td><td>{{ t.parent | default("-", boolean=true) }}</td><td>{{ t.level }}</td><td>{{ t.imports | join(", ") }}</td></tr>
{% else -%}
<tr><td colspan="4">No templates found.</td></tr>
{% endfor -%}
</table>
{% if filters %}<p>Filters: {{ filters | join(", ") }}</p>{% endif %}
{% endblock %}
`},
	{Name: "error", Content: `{% extends "layout" %}
{% block title %}{{ status }} - {{ super() }}{% endblock %}
{% block body %}
<h1>{{ status }}{% if name %} {{ name }}{% endif %}</h1>
<pre class="error">{{ error }}</pre>
<p><a href="/">All templates</a></p>
{% endblock %}
`},
}

// reloadScript subscribes to reload events and reloads the page when it is
// affected.
const reloadScript = `(function() {
  var page = decodeURIComponent(location.pathname.replace(/^\/render\//, ""));
  var es = new EventSource("/__reload");
  es.addEventListener("reload", function(e) {
    var ev = JSON.parse(e.data);
    if (ev.error || !ev.affected || location.pathname === "/" || ev.affected.indexOf(page) >= 0) {
      location.reload();
    }
  });
})();`

var pages = mustPages()

func mustPages() *engine.Registry {
	reg := engine.New()
	if err := reg.RegisterMany(pageSources); err != nil {
		panic(err)
	}
	if err := reg.Resolve(); err != nil {
		panic(err)
	}
	return reg
}

func renderPage(name string, data map[string]any) (string, error) {
	data["reload_script"] = reloadScript
	ctx, err := eval.NewContext(data)
	if err != nil {
		return "", err
	}
	return pages.Render(name, ctx)
}
