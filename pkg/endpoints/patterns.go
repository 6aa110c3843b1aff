package endpoints

import "regexp"

// Quote characters are written as ["'\x60] so backtick template literals
// are matched alongside ordinary strings.

func urlPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// Absolute http(s) URLs
		regexp.MustCompile(`https?://[a-zA-Z0-9\-._~%]+(?::\d{1,5})?(?:[/?#][^\s"'\x60<>\\]*)?`),
		// Protocol-relative URLs inside a string
		regexp.MustCompile(`["'\x60](//[a-zA-Z0-9][a-zA-Z0-9\-._~%]*\.[a-zA-Z]{2,}(?::\d{1,5})?(?:[/?#][^\s"'\x60<>\\]*)?)["'\x60]`),
		// Root-relative and dot-relative paths inside a string
		regexp.MustCompile(`["'\x60]((?:/|\.\.?/)[a-zA-Z0-9_\-.~%]+(?:/[a-zA-Z0-9_\-.~%{}:]*)*(?:\?[^\s"'\x60<>]*)?)["'\x60]`),
	}
}

func callSitePatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// fetch API
		regexp.MustCompile(`\bfetch\s*\(\s*["'\x60]([^"'\x60\s]+)["'\x60]`),
		// axios, axios.get(...), axios.post(...)
		regexp.MustCompile(`\baxios(?:\s*\.\s*(?:get|post|put|patch|delete|head|options|request))?\s*\(\s*["'\x60]([^"'\x60\s]+)["'\x60]`),
		// jQuery AJAX helpers
		regexp.MustCompile(`\$\s*\.\s*(?:ajax|get|post|getJSON|getScript)\s*\(\s*["'\x60]([^"'\x60\s]+)["'\x60]`),
		// Config objects: { url: "..." }
		regexp.MustCompile(`\burl\s*:\s*["'\x60]([^"'\x60\s]+)["'\x60]`),
		// XMLHttpRequest.open
		regexp.MustCompile(`\.open\s*\(\s*["'](?:GET|POST|PUT|PATCH|DELETE|HEAD|OPTIONS|get|post|put|patch|delete)["']\s*,\s*["'\x60]([^"'\x60\s]+)["'\x60]`),
		// Angular HttpClient and common request clients
		regexp.MustCompile(`\b(?:this\s*\.\s*)?(?:http|httpClient|\$http|api|client|request|superagent)\s*\.\s*(?:get|post|put|patch|delete|head|request)\s*[<(]\s*(?:[A-Za-z_$][\w$.<>\[\]]*>\s*\(\s*)?["'\x60]([^"'\x60\s]+)["'\x60]`),
	}
}

func routePatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// Vue/Angular/React router definitions: { path: "/users/:id" }
		regexp.MustCompile(`\bpath\s*:\s*["'\x60](/[a-zA-Z0-9_\-/:.*{}]*)["'\x60]`),
		// JSX <Route path="...">
		regexp.MustCompile(`<Route[^>]*\bpath\s*=\s*["'{\x60]+(/[^"'}\x60\s]*)`),
		// Express-style server routes
		regexp.MustCompile(`\b(?:router|app|route|server)\s*\.\s*(?:get|post|put|patch|delete|all|use|route)\s*\(\s*["'\x60](/[^"'\x60\s]*)["'\x60]`),
		// Versioned or API-prefixed paths inside absolute URLs
		regexp.MustCompile(`https?://[a-zA-Z0-9\-._~%]+(?::\d{1,5})?(/(?:api|v\d+|rest|internal|admin)(?:/[a-zA-Z0-9_\-.~%{}:]+)*)`),
		// Versioned or API-prefixed paths inside a string
		regexp.MustCompile(`["'\x60](/(?:api|v\d+|rest|internal|admin)(?:/[a-zA-Z0-9_\-.~%{}:]+)*/?)["'\x60]`),
	}
}

func graphQLPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// Named operations
		regexp.MustCompile(`\b((?:query|mutation|subscription)\s+[A-Za-z_][A-Za-z0-9_]*)\s*(?:\([^)]*\))?\s*\{`),
		// gql tagged templates
		regexp.MustCompile(`\bgql\s*\x60([^\x60]+)\x60`),
		// GraphQL endpoints
		regexp.MustCompile(`["'\x60]([^"'\x60\s]*/graphql[^"'\x60\s]*)["'\x60]`),
	}
}

func webSocketPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`wss?://[a-zA-Z0-9\-._~%]+(?::\d{1,5})?(?:[/?#][^\s"'\x60<>\\]*)?`),
		regexp.MustCompile(`new\s+WebSocket\s*\(\s*["'\x60]([^"'\x60]+)["'\x60]`),
		regexp.MustCompile(`new\s+EventSource\s*\(\s*["'\x60]([^"'\x60]+)["'\x60]`),
		// socket.io clients
		regexp.MustCompile(`\bio(?:\s*\.\s*connect)?\s*\(\s*["'\x60]([^"'\x60\s]+)["'\x60]`),
	}
}

func uploadPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`(?i)["'\x60]([^"'\x60\s]*/(?:upload|uploads|attachments?|file-?upload|media/upload|import)(?:[/?][^"'\x60\s]*)?)["'\x60]`),
		regexp.MustCompile(`\b(?:upload|file)(?:Url|URL|Endpoint|Path|Action)\s*[:=]\s*["'\x60]([^"'\x60\s]+)["'\x60]`),
		regexp.MustCompile(`\bmultipart/form-data\b`),
	}
}

func docPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`(?i)https?://[^\s"'\x60<>]*(?:swagger|openapi|api-docs|redoc)[^\s"'\x60<>]*`),
		regexp.MustCompile(`(?i)["'\x60]([^"'\x60\s]*(?:swagger|openapi|api-docs|apidocs|redoc|graphiql|docs/api)[^"'\x60\s]*)["'\x60]`),
	}
}
